// Copyright (C) 2024 Arolla authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package compile

import "github.com/arolla-go/arolla/expr"

// CompileResult is returned by a CompileFunc (spec §6: "Each
// compile-operator callback returns one of: not handled, handled
// successfully, or handled with error").
type CompileResult int

const (
	NotHandled CompileResult = iota
	Handled
	HandledWithError
)

// CompileFunc attempts to emit ops for node, whose operator the
// dispatch table does not otherwise recognize. b is the in-progress
// executable builder for the current (sub)program; the callback emits
// through it exactly as the visitor itself would. A callback that
// returns Handled must have recorded the node's output slot in b's
// allocator under the node's fingerprint; the visitor reads it from
// there.
type CompileFunc func(b *Builder, node *expr.Operator) (result CompileResult, err error)

// ExtensionRegistry holds the compile-operator callbacks consulted by
// the evaluation visitor once its built-in dispatch table declines a
// node (spec §6: "(ii) compile-operator functions, consulted by the
// evaluation visitor for operators not otherwise recognized"). It is a
// plain ordered slice rather than internal/registry's Directory: entries
// are tried in registration order until one claims the node, not looked
// up by key.
type ExtensionRegistry struct {
	funcs []CompileFunc
}

// NewExtensionRegistry returns an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{}
}

// Register appends f to the end of the consultation order.
func (r *ExtensionRegistry) Register(f CompileFunc) {
	r.funcs = append(r.funcs, f)
}

// TryCompile consults each registered callback in order, stopping at
// the first one that does not return NotHandled.
func (r *ExtensionRegistry) TryCompile(b *Builder, node *expr.Operator) (CompileResult, error) {
	if r == nil {
		return NotHandled, nil
	}
	for _, f := range r.funcs {
		result, err := f(b, node)
		if result != NotHandled {
			return result, err
		}
	}
	return NotHandled, nil
}
