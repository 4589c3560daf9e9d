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

package main

import (
	"testing"

	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/qtype"
)

// runOp binds the frame.Op a backend.Operator produces against a fresh
// frame.Builder, writes the given input byte slices into adjacent
// slots, runs it, and returns the output slot's bytes.
func runOp(t *testing.T, in []*qtype.QType, out *qtype.QType, name string, d *arithmeticDirectory, inputs [][]byte) []byte {
	t.Helper()
	op, ok := d.Lookup(name, in, out)
	if !ok {
		t.Fatalf("Lookup(%q, %v, %s): not found", name, in, out)
	}
	fb := frame.NewBuilder()
	inSlots := make([]frame.Slot, len(in))
	for i, t := range in {
		inSlots[i] = fb.Reserve(t)
	}
	outSlot := fb.Reserve(out)
	evalOp, err := op.Bind(inSlots, outSlot)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	fr := frame.NewFrame(fb.Build())
	for i, b := range inputs {
		copy(fr.Bytes(inSlots[i]), b)
	}
	evalOp(frame.NewEvalContext(), fr)
	return fr.Bytes(outSlot)
}

func TestArithmeticDirectoryLookupDisambiguatesByType(t *testing.T) {
	d := newArithmeticDirectory()
	if _, ok := d.Lookup("math.add", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64); !ok {
		t.Fatal("expected math.add(INT64, INT64) -> INT64 to be registered")
	}
	if _, ok := d.Lookup("math.add", []*qtype.QType{qtype.Float64, qtype.Float64}, qtype.Float64); !ok {
		t.Fatal("expected math.add(FLOAT64, FLOAT64) -> FLOAT64 to be registered")
	}
	if _, ok := d.Lookup("math.add", []*qtype.QType{qtype.Int64, qtype.Float64}, qtype.Int64); ok {
		t.Fatal("a mixed int/float signature must not resolve to either registered overload")
	}
	if _, ok := d.Lookup("math.sub", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Bool); ok {
		t.Fatal("a correct name/inputs with the wrong output qtype must not resolve")
	}
	if _, ok := d.Lookup("math.pow", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64); ok {
		t.Fatal("an unregistered name must not resolve")
	}
}

func TestArithmeticDirectoryBinaryIntOps(t *testing.T) {
	d := newArithmeticDirectory()
	in := []*qtype.QType{qtype.Int64, qtype.Int64}
	for _, td := range []struct {
		name string
		a, b int64
		want int64
	}{
		{"math.add", 2, 3, 5},
		{"math.sub", 5, 3, 2},
		{"math.mul", 4, 3, 12},
	} {
		out := runOp(t, in, qtype.Int64, td.name, d, [][]byte{
			qtype.Int64Value(td.a).Raw,
			qtype.Int64Value(td.b).Raw,
		})
		if got := qtype.DecodeInt64(out); got != td.want {
			t.Errorf("%s(%d, %d) = %d, want %d", td.name, td.a, td.b, got, td.want)
		}
	}
}

func TestArithmeticDirectoryBinaryFloatOps(t *testing.T) {
	d := newArithmeticDirectory()
	in := []*qtype.QType{qtype.Float64, qtype.Float64}
	for _, td := range []struct {
		name string
		a, b float64
		want float64
	}{
		{"math.add", 2.5, 1.5, 4},
		{"math.sub", 5.5, 2, 3.5},
		{"math.mul", 2, 3.5, 7},
	} {
		out := runOp(t, in, qtype.Float64, td.name, d, [][]byte{
			qtype.Float64Value(td.a).Raw,
			qtype.Float64Value(td.b).Raw,
		})
		if got := qtype.DecodeFloat64(out); got != td.want {
			t.Errorf("%s(%v, %v) = %v, want %v", td.name, td.a, td.b, got, td.want)
		}
	}
}

func TestArithmeticDirectoryUnaryNeg(t *testing.T) {
	d := newArithmeticDirectory()
	out := runOp(t, []*qtype.QType{qtype.Int64}, qtype.Int64, "math.neg", d, [][]byte{
		qtype.Int64Value(7).Raw,
	})
	if got := qtype.DecodeInt64(out); got != -7 {
		t.Fatalf("math.neg(7) = %d, want -7", got)
	}
	outF := runOp(t, []*qtype.QType{qtype.Float64}, qtype.Float64, "math.neg", d, [][]byte{
		qtype.Float64Value(2.5).Raw,
	})
	if got := qtype.DecodeFloat64(outF); got != -2.5 {
		t.Fatalf("math.neg(2.5) = %v, want -2.5", got)
	}
}

func TestArithmeticDirectoryCompareOps(t *testing.T) {
	d := newArithmeticDirectory()
	out := runOp(t, []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Bool, "math.eq", d, [][]byte{
		qtype.Int64Value(4).Raw,
		qtype.Int64Value(4).Raw,
	})
	if got := qtype.DecodeBool(out); got != true {
		t.Fatalf("math.eq(4, 4) = %v, want true", got)
	}
	out = runOp(t, []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Bool, "math.eq", d, [][]byte{
		qtype.Int64Value(4).Raw,
		qtype.Int64Value(5).Raw,
	})
	if got := qtype.DecodeBool(out); got != false {
		t.Fatalf("math.eq(4, 5) = %v, want false", got)
	}
	outF := runOp(t, []*qtype.QType{qtype.Float64, qtype.Float64}, qtype.Bool, "math.eq", d, [][]byte{
		qtype.Float64Value(1.5).Raw,
		qtype.Float64Value(1.5).Raw,
	})
	if got := qtype.DecodeBool(outF); got != true {
		t.Fatalf("math.eq(1.5, 1.5) = %v, want true", got)
	}
}
