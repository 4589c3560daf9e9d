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

package prepare

import (
	"fmt"

	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/qtype"
)

// implicitCastingStage returns stage 5 (spec §4.2: "Array-broadcasting
// casts take a broadcast shape... derived qtype casts wrap the backend
// call"). BackendOp nodes here already carry a fixed, self-consistent
// signature (package expr's documented simplification of a real
// polymorphic backend lookup, see DESIGN.md), so there is never a
// child-qtype mismatch to repair by the time a node reaches this stage.
// What this stage does resolve: a backend operator declared against a
// derived output qtype for which only the base-typed kernel is actually
// registered is rewritten to call the base-typed kernel and wrap the
// result in an explicit upcast, so the evaluation visitor's backend
// dispatch (compile/dispatch.go) always finds an exact match.
func implicitCastingStage(opts Options) func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		op, ok := n.(*expr.Operator)
		if !ok {
			return n, nil
		}
		bo, ok := op.Op().(*expr.BackendOp)
		if !ok || opts.Backends == nil {
			return n, nil
		}

		children := op.Children()
		inTypes := make([]*qtype.QType, len(children))
		for i, c := range children {
			inTypes[i] = c.Attributes().QType
		}
		wantOut := op.Attributes().QType

		if _, ok := opts.Backends.Lookup(bo.DisplayName(), inTypes, wantOut); ok {
			return n, nil
		}
		base := wantOut.DecaysTo()
		if base.Equal(wantOut) {
			return n, nil
		}
		if _, ok := opts.Backends.Lookup(bo.DisplayName(), inTypes, base); !ok {
			return n, nil
		}

		baseOp := expr.NewBackendOp(bo.DisplayName(), bo.InputTypes, base)
		rebuilt, err := expr.NewOperator(baseOp, children)
		if err != nil {
			return nil, fmt.Errorf("rebuilding %s against base qtype: %w", bo.DisplayName(), err)
		}
		cast, err := expr.NewOperator(expr.NewCastOp(wantOut), []expr.Node{rebuilt})
		if err != nil {
			return nil, fmt.Errorf("wrapping %s in upcast to %s: %w", bo.DisplayName(), wantOut, err)
		}
		return cast, nil
	}
}
