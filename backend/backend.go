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

// Package backend declares the operator/casting/extension registry
// contracts the compiler treats as external collaborators (spec §6):
// the preparation pipeline's implicit-casting stage and the evaluation
// visitor's backend dispatch both consult a Directory, never enumerate
// it. Concrete directories (arithmetic, string, whatever a given
// deployment needs) live outside this package; package compile's test
// suite and cmd/arollac supply small ones of their own.
package backend

import (
	"fmt"

	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/qtype"
)

// Operator is one registered backend operator: a fixed, concrete
// signature plus the ability to bind itself to slots (spec §6: "An
// operator exposes a QExpr signature... and a bind(...) method").
type Operator interface {
	Name() string
	InputQTypes() []*qtype.QType
	OutputQType() *qtype.QType
	Bind(inputs []frame.Slot, output frame.Slot) (frame.Op, error)
}

// Directory answers backend-operator lookups by (name, input qtypes,
// output qtype) without ever being enumerated by the compiler (spec
// §6: "Query: lookup(name, input_qtypes, output_qtype) -> operator or
// not-found. The compiler does not enumerate the registry.").
type Directory interface {
	Lookup(name string, inputQTypes []*qtype.QType, outputQType *qtype.QType) (Operator, bool)
}

// CastingDirectory supplies the implicit casts the preparation
// pipeline's casting stage inserts when a backend operator's declared
// input qtypes don't match the node's actual child qtypes (spec §4.2
// stage 5). Cast returns a unary operator performing the reinterpret
// or conversion from `from` to `to`; Broadcast returns one performing
// an array-broadcast cast of a scalar up to shape (taken from
// `shapeOf`'s array-typed first input, per spec §4.2: "Array-
// broadcasting casts take a broadcast shape").
type CastingDirectory interface {
	Cast(from, to *qtype.QType) (Operator, bool)
	Broadcast(from *qtype.QType, shapeOf *qtype.QType) (Operator, bool)
}

// simpleOp is the straightforward Operator implementation used by the
// small built-in directories in this module (arithmetic, casts): bind is
// called with the bound input/output slots already resolved.
type simpleOp struct {
	name    string
	inputs  []*qtype.QType
	output  *qtype.QType
	bind    func(inputs []frame.Slot, output frame.Slot) (frame.Op, error)
}

func (o *simpleOp) Name() string                  { return o.name }
func (o *simpleOp) InputQTypes() []*qtype.QType    { return o.inputs }
func (o *simpleOp) OutputQType() *qtype.QType      { return o.output }
func (o *simpleOp) Bind(in []frame.Slot, out frame.Slot) (frame.Op, error) {
	if len(in) != len(o.inputs) {
		return nil, fmt.Errorf("backend: %s: expected %d inputs, got %d", o.name, len(o.inputs), len(in))
	}
	for i, s := range in {
		if !s.Type.Equal(o.inputs[i]) {
			return nil, fmt.Errorf("backend: %s: input %d has qtype %s, want %s", o.name, i, s.Type, o.inputs[i])
		}
	}
	if !out.Type.Equal(o.output) {
		return nil, fmt.Errorf("backend: %s: output has qtype %s, want %s", o.name, out.Type, o.output)
	}
	return o.bind(in, out)
}

// NewOperator builds a simple fixed-signature backend operator from a
// raw binder, for use by small ad hoc directories (tests, cmd/arollac).
func NewOperator(name string, inputs []*qtype.QType, output *qtype.QType, bind func(in []frame.Slot, out frame.Slot) (frame.Op, error)) Operator {
	return &simpleOp{name: name, inputs: inputs, output: output, bind: bind}
}
