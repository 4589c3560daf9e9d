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

package backend

import (
	"testing"

	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/qtype"
)

func newNegOp() Operator {
	return NewOperator("math.neg", []*qtype.QType{qtype.Int64}, qtype.Int64,
		func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
			return func(ctx *frame.EvalContext, fr *frame.Frame) {
				v := qtype.DecodeInt64(fr.Bytes(in[0]))
				fr.CopyRawInto(out, qtype.Int64Value(-v).Raw)
			}, nil
		})
}

func TestSimpleOpBindValidatesInputArity(t *testing.T) {
	op := newNegOp()
	b := frame.NewBuilder()
	in := b.Reserve(qtype.Int64)
	out := b.Reserve(qtype.Int64)
	if _, err := op.Bind([]frame.Slot{in, in}, out); err == nil {
		t.Fatal("expected an error for a mismatched input count")
	}
}

func TestSimpleOpBindValidatesInputQType(t *testing.T) {
	op := newNegOp()
	b := frame.NewBuilder()
	wrongType := b.Reserve(qtype.Bool)
	out := b.Reserve(qtype.Int64)
	if _, err := op.Bind([]frame.Slot{wrongType}, out); err == nil {
		t.Fatal("expected an error for an input slot of the wrong qtype")
	}
}

func TestSimpleOpBindValidatesOutputQType(t *testing.T) {
	op := newNegOp()
	b := frame.NewBuilder()
	in := b.Reserve(qtype.Int64)
	wrongOut := b.Reserve(qtype.Bool)
	if _, err := op.Bind([]frame.Slot{in}, wrongOut); err == nil {
		t.Fatal("expected an error for an output slot of the wrong qtype")
	}
}

func TestSimpleOpBindRunsTheBoundOperation(t *testing.T) {
	op := newNegOp()
	b := frame.NewBuilder()
	in := b.Reserve(qtype.Int64)
	out := b.Reserve(qtype.Int64)
	l := b.Build()
	fr := frame.NewFrame(l)
	fr.CopyRawInto(in, qtype.Int64Value(5).Raw)

	evalOp, err := op.Bind([]frame.Slot{in}, out)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	ctx := frame.NewEvalContext()
	evalOp(ctx, fr)
	if got := qtype.DecodeInt64(fr.Bytes(out)); got != -5 {
		t.Fatalf("math.neg(5) = %d, want -5", got)
	}
}

func TestOperatorAccessors(t *testing.T) {
	op := newNegOp()
	if op.Name() != "math.neg" {
		t.Errorf("Name() = %q, want math.neg", op.Name())
	}
	if len(op.InputQTypes()) != 1 || op.InputQTypes()[0] != qtype.Int64 {
		t.Error("InputQTypes() must report the declared signature")
	}
	if op.OutputQType() != qtype.Int64 {
		t.Error("OutputQType() must report the declared output qtype")
	}
}
