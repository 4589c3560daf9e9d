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

package expr

import (
	"testing"

	"github.com/arolla-go/arolla/qtype"
)

func TestBackendOpInferAttributesValidatesInputTypes(t *testing.T) {
	op := NewBackendOp("math.add", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64)
	good := []Attributes{{QType: qtype.Int64}, {QType: qtype.Int64}}
	attrs, err := op.InferAttributes(good)
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if attrs.QType != qtype.Int64 {
		t.Fatal("expected output qtype INT64")
	}

	if _, err := op.InferAttributes([]Attributes{{QType: qtype.Int64}}); err == nil {
		t.Fatal("expected arity mismatch error")
	}
	if _, err := op.InferAttributes([]Attributes{{}, {QType: qtype.Int64}}); err == nil {
		t.Fatal("expected error when an argument has no qtype")
	}
	bad := []Attributes{{QType: qtype.Float64}, {QType: qtype.Int64}}
	if _, err := op.InferAttributes(bad); err == nil {
		t.Fatal("expected error when an argument's qtype mismatches the declared signature")
	}
}

func TestQTypeAnnotationTransfersQType(t *testing.T) {
	ann := NewQTypeAnnotation(qtype.Int64)
	attrs, err := ann.InferAttributes([]Attributes{{}})
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if attrs.QType != qtype.Int64 {
		t.Fatal("annotation must set QType on an unannotated input")
	}
	if _, err := ann.InferAttributes([]Attributes{{QType: qtype.Float64}}); err == nil {
		t.Fatal("expected error for an inconsistent pre-existing qtype")
	}
	consistent, err := ann.InferAttributes([]Attributes{{QType: qtype.Int64}})
	if err != nil {
		t.Fatalf("InferAttributes with consistent pre-existing qtype: %v", err)
	}
	if consistent.QType != qtype.Int64 {
		t.Fatal("annotation must preserve an already-consistent qtype")
	}
}

func TestMetadataAnnotationIsIdentity(t *testing.T) {
	ann := NewMetadataAnnotation("note")
	in := Attributes{QType: qtype.Int64, HasValue: true, Value: qtype.Int64Value(1)}
	out, err := ann.InferAttributes([]Attributes{in})
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if out.QType != in.QType || out.HasValue != in.HasValue {
		t.Fatal("metadata annotation must pass through attributes unchanged")
	}
}

func TestTupleOpBuildsProductType(t *testing.T) {
	op := NewTupleOp()
	attrs, err := op.InferAttributes([]Attributes{{QType: qtype.Int64}, {QType: qtype.Bool}})
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if attrs.QType == nil || len(attrs.QType.Fields) != 2 {
		t.Fatal("core.make_tuple must produce a 2-field product qtype")
	}
	if _, err := op.InferAttributes([]Attributes{{}}); err == nil {
		t.Fatal("expected error when an element has no qtype")
	}
}

func TestRootOpRequiresMainQTypeAndMatchingSideCount(t *testing.T) {
	root := NewRootOp([]string{"side1"})
	attrs, err := root.InferAttributes([]Attributes{{QType: qtype.Int64}, {QType: qtype.Bool}})
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if attrs.QType != qtype.Int64 {
		t.Fatal("core._root must adopt the main output's qtype")
	}
	if _, err := root.InferAttributes([]Attributes{{QType: qtype.Int64}}); err == nil {
		t.Fatal("expected error when side-output count mismatches Names")
	}
	if _, err := root.InferAttributes([]Attributes{{}, {QType: qtype.Bool}}); err == nil {
		t.Fatal("expected error when the main output has no qtype")
	}
}

func TestGetNthOpProjectsField(t *testing.T) {
	tup := qtype.Product("PAIR", qtype.Int64, qtype.Bool)
	get0 := NewGetNthOp(0)
	attrs, err := get0.InferAttributes([]Attributes{{QType: tup}})
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if attrs.QType != qtype.Int64 {
		t.Fatal("core.get_nth[0] of a (INT64, BOOLEAN) tuple must yield INT64")
	}
	if _, err := get0.InferAttributes([]Attributes{{QType: qtype.Int64}}); err == nil {
		t.Fatal("expected error projecting a field out of a non-product qtype")
	}
	get5 := NewGetNthOp(5)
	if _, err := get5.InferAttributes([]Attributes{{QType: tup}}); err == nil {
		t.Fatal("expected error for an out-of-range field index")
	}
}

func TestHasOptionalOpRequiresOptional(t *testing.T) {
	op := NewHasOptionalOp()
	attrs, err := op.InferAttributes([]Attributes{{QType: qtype.Optional(qtype.Int64)}})
	if err != nil {
		t.Fatalf("InferAttributes: %v", err)
	}
	if attrs.QType != qtype.Bool {
		t.Fatal("core.has._optional must produce a BOOLEAN")
	}
	if _, err := op.InferAttributes([]Attributes{{QType: qtype.Int64}}); err == nil {
		t.Fatal("expected error for a non-optional argument")
	}
}

func TestCastOpRequiresSharedBase(t *testing.T) {
	derived := qtype.Derived("USER_ID", qtype.Int64)
	up := NewCastOp(derived)
	attrs, err := up.InferAttributes([]Attributes{{QType: qtype.Int64}})
	if err != nil {
		t.Fatalf("InferAttributes (upcast): %v", err)
	}
	if attrs.QType != derived {
		t.Fatal("core.cast must adopt the target qtype")
	}
	down := NewCastOp(qtype.Int64)
	if _, err := down.InferAttributes([]Attributes{{QType: derived}}); err != nil {
		t.Fatalf("InferAttributes (downcast): %v", err)
	}
	mismatched := NewCastOp(qtype.Bool)
	if _, err := mismatched.InferAttributes([]Attributes{{QType: qtype.Int64}}); err == nil {
		t.Fatal("expected error casting between qtypes that share no base")
	}
}
