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

func newAddOp(out *qtype.QType, in ...*qtype.QType) Operator {
	return NewOperator("math.add", in, out, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {}, nil
	})
}

func TestMapDirectoryLookupDisambiguatesOverloads(t *testing.T) {
	d := NewMapDirectory()
	intAdd := newAddOp(qtype.Int64, qtype.Int64, qtype.Int64)
	floatAdd := newAddOp(qtype.Float64, qtype.Float64, qtype.Float64)
	d.Register(intAdd)
	d.Register(floatAdd)
	d.Freeze()

	got, ok := d.Lookup("math.add", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64)
	if !ok || got != intAdd {
		t.Fatal("Lookup must select the overload matching the INT64 signature")
	}
	got, ok = d.Lookup("math.add", []*qtype.QType{qtype.Float64, qtype.Float64}, qtype.Float64)
	if !ok || got != floatAdd {
		t.Fatal("Lookup must select the overload matching the FLOAT64 signature")
	}
}

func TestMapDirectoryLookupMissingNameOrSignature(t *testing.T) {
	d := NewMapDirectory()
	d.Register(newAddOp(qtype.Int64, qtype.Int64, qtype.Int64))
	d.Freeze()

	if _, ok := d.Lookup("math.sub", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64); ok {
		t.Fatal("Lookup of an unregistered operator name must report false")
	}
	if _, ok := d.Lookup("math.add", []*qtype.QType{qtype.Bool, qtype.Bool}, qtype.Int64); ok {
		t.Fatal("Lookup must reject a signature with the wrong input qtypes")
	}
}

func TestMapDirectoryLookupNilOutputQTypeMatchesAny(t *testing.T) {
	d := NewMapDirectory()
	op := newAddOp(qtype.Int64, qtype.Int64, qtype.Int64)
	d.Register(op)
	d.Freeze()

	got, ok := d.Lookup("math.add", []*qtype.QType{qtype.Int64, qtype.Int64}, nil)
	if !ok || got != op {
		t.Fatal("Lookup with a nil outputQType must match regardless of declared output")
	}
}

func TestDerivedCastingDirectoryUpAndDowncast(t *testing.T) {
	base := qtype.Int64
	derived := qtype.Derived("USER_ID", base)
	var cd DerivedCastingDirectory

	up, ok := cd.Cast(base, derived)
	if !ok || up.OutputQType() != derived {
		t.Fatal("Cast must produce an upcast operator from base to derived")
	}
	down, ok := cd.Cast(derived, base)
	if !ok || down.OutputQType() != base {
		t.Fatal("Cast must produce a downcast operator from derived to base")
	}
	if _, ok := cd.Cast(qtype.Bool, qtype.Float64); ok {
		t.Fatal("Cast must refuse qtypes that share no base relationship")
	}
}

func TestDerivedCastingDirectorySameQTypeIsIdentityCast(t *testing.T) {
	var cd DerivedCastingDirectory
	op, ok := cd.Cast(qtype.Int64, qtype.Int64)
	if !ok {
		t.Fatal("Cast must handle from==to as a trivial reinterpret")
	}
	if op.InputQTypes()[0] != qtype.Int64 || op.OutputQType() != qtype.Int64 {
		t.Fatal("identity cast must preserve the qtype on both sides")
	}
}

func TestDerivedCastingDirectoryBroadcastUnsupported(t *testing.T) {
	var cd DerivedCastingDirectory
	if _, ok := cd.Broadcast(qtype.Int64, qtype.Sequence(qtype.Int64)); ok {
		t.Fatal("DerivedCastingDirectory must not support array broadcasting")
	}
}

func TestReinterpretCastCopiesBytesUnchanged(t *testing.T) {
	derived := qtype.Derived("USER_ID", qtype.Int64)
	op := NewReinterpretCast(qtype.Int64, derived)

	b := frame.NewBuilder()
	in := b.Reserve(qtype.Int64)
	out := b.Reserve(derived)
	l := b.Build()
	fr := frame.NewFrame(l)
	fr.CopyRawInto(in, qtype.Int64Value(99).Raw)

	evalOp, err := op.Bind([]frame.Slot{in}, out)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	ctx := frame.NewEvalContext()
	evalOp(ctx, fr)
	if qtype.DecodeInt64(fr.Bytes(out)) != 99 {
		t.Fatal("reinterpret cast must copy the same bytes through unchanged")
	}
}
