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
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/qtype"
)

// foldLiteralsStage returns stage 2 (spec §4.2): any operator node
// whose every child is already a literal is evaluated once and replaced
// by the resulting literal. Root markers, while loops, seq.map and
// unpacked short-circuit conditionals are never folded: their semantics
// aren't expressible as a single evaluate-this-node step, since their
// condition/body/inner operator aren't ordinary children (spec §4.7,
// §4.8 compile them through dedicated sub-program machinery instead).
func foldLiteralsStage(opts Options) func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		op, ok := n.(*expr.Operator)
		if !ok || !foldable(op.Op()) {
			return n, nil
		}
		children := op.Children()
		values := make([]qtype.Value, len(children))
		for i, c := range children {
			lit, ok := c.(*expr.Literal)
			if !ok {
				return n, nil
			}
			values[i] = lit.Value()
		}
		val, err := evalFolded(op, values, opts)
		if err != nil {
			return nil, fmt.Errorf("folding %s: %w", op.Op().DisplayName(), err)
		}
		return expr.NewLiteral(val), nil
	}
}

func foldable(op expr.Op) bool {
	switch op.(type) {
	case *expr.RootOp, *expr.WhileOp, *expr.SeqMapOp, *expr.ShortCircuitWhereOp,
		*expr.QTypeAnnotation, *expr.MetadataAnnotation:
		return false
	}
	return true
}

func evalFolded(op *expr.Operator, values []qtype.Value, opts Options) (qtype.Value, error) {
	switch o := op.Op().(type) {
	case *expr.TupleOp:
		return foldTuple(op.Attributes().QType, values), nil
	case *expr.GetNthOp:
		return foldGetNth(values[0], o.Index), nil
	case *expr.HasOptionalOp:
		return foldHasOptional(values[0]), nil
	case *expr.CastOp:
		return qtype.NewValue(o.To, values[0].Raw), nil
	case *expr.BackendOp:
		return evalBackendLiteral(op, o, values, opts)
	default:
		// Literal folding (stage 2) runs before lowering (stage 3), so a
		// user expression can still carry a TagNone/Lowerable operator
		// over all-literal children here (e.g. a custom sugar op that
		// lowers to a BackendOp). Lower it and keep evaluating the
		// result, rather than rejecting an otherwise-foldable node.
		lowerable, ok := op.Op().(expr.Lowerable)
		if !ok {
			return qtype.Value{}, fmt.Errorf("unsupported operator for literal folding: %s", op.Op().DisplayName())
		}
		lowered, ok, err := lowerable.ToLower(op)
		if err != nil {
			return qtype.Value{}, fmt.Errorf("lowering %s for literal folding: %w", op.Op().DisplayName(), err)
		}
		if !ok {
			return qtype.Value{}, fmt.Errorf("unsupported operator for literal folding: %s", op.Op().DisplayName())
		}
		return evalNode(lowered, opts)
	}
}

// evalNode recursively folds an arbitrary node to a literal value,
// lowering any TagNone operator it encounters along the way. It is the
// same evaluation evalFolded performs for a single node, generalized to
// the node tree ToLower can return (which may nest further literal-
// foldable or lowerable operators over the same literal children).
func evalNode(n expr.Node, opts Options) (qtype.Value, error) {
	switch v := n.(type) {
	case *expr.Literal:
		return v.Value(), nil
	case *expr.Operator:
		children := v.Children()
		values := make([]qtype.Value, len(children))
		for i, c := range children {
			val, err := evalNode(c, opts)
			if err != nil {
				return qtype.Value{}, err
			}
			values[i] = val
		}
		return evalFolded(v, values, opts)
	default:
		return qtype.Value{}, fmt.Errorf("literal folding: cannot evaluate a %T node", n)
	}
}

func foldTuple(t *qtype.QType, values []qtype.Value) qtype.Value {
	buf := make([]byte, t.ByteSize)
	for i, f := range t.Fields {
		copy(buf[f.Offset:f.Offset+f.Type.ByteSize], values[i].Raw)
	}
	return qtype.NewValue(t, buf)
}

func foldGetNth(v qtype.Value, i int) qtype.Value {
	f := v.Type.Fields[i]
	return qtype.NewValue(f.Type, v.Raw[f.Offset:f.Offset+f.Type.ByteSize])
}

func foldHasOptional(v qtype.Value) qtype.Value {
	return qtype.BoolValue(len(v.Raw) > 0 && v.Raw[0] != 0)
}

// evalBackendLiteral folds a single backend-operator invocation over
// known literal inputs by binding it against a scratch, one-shot frame
// — the same Builder/Frame/Op machinery package compile uses, just
// without any of the slot-recycling or trace bookkeeping a full
// compiled program needs.
func evalBackendLiteral(op *expr.Operator, bo *expr.BackendOp, values []qtype.Value, opts Options) (qtype.Value, error) {
	if opts.Backends == nil {
		return qtype.Value{}, fmt.Errorf("no backend directory configured")
	}
	inTypes := make([]*qtype.QType, len(values))
	for i, v := range values {
		inTypes[i] = v.Type
	}
	wantOut := op.Attributes().QType
	backendOp, ok := opts.Backends.Lookup(bo.DisplayName(), inTypes, wantOut)
	if !ok {
		return qtype.Value{}, fmt.Errorf("unknown operator %q", bo.DisplayName())
	}

	fb := frame.NewBuilder()
	inSlots := make([]frame.Slot, len(values))
	for i, v := range values {
		inSlots[i] = fb.Reserve(v.Type)
	}
	outSlot := fb.Reserve(wantOut)
	fr := frame.NewFrame(fb.Build())
	for i, v := range values {
		copy(fr.Bytes(inSlots[i]), v.Raw)
	}

	runOp, err := backendOp.Bind(inSlots, outSlot)
	if err != nil {
		return qtype.Value{}, fmt.Errorf("binding %q: %w", bo.DisplayName(), err)
	}
	ctx := frame.NewEvalContext()
	runOp(ctx, fr)
	if ctx.Failed() {
		return qtype.Value{}, ctx.Err()
	}
	return qtype.NewValue(wantOut, fr.Bytes(outSlot)), nil
}
