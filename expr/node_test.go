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

func TestLeafUnannotatedHasNilQType(t *testing.T) {
	l := NewLeaf("x")
	if l.Attributes().QType != nil {
		t.Fatal("an unannotated leaf must have a nil QType")
	}
	if l.Key() != "x" {
		t.Errorf("Key() = %q, want x", l.Key())
	}
}

func TestLeafWithQTypeCarriesIt(t *testing.T) {
	l := NewLeafWithQType("x", qtype.Int64)
	if l.Attributes().QType != qtype.Int64 {
		t.Fatal("NewLeafWithQType must set Attributes().QType")
	}
}

func TestLeafFingerprintDependsOnKeyAndQType(t *testing.T) {
	a := NewLeaf("x")
	b := NewLeaf("y")
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("leaves with different keys must have different fingerprints")
	}
	c := NewLeafWithQType("x", qtype.Int64)
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("an annotated leaf must fingerprint differently than its unannotated form")
	}
}

func TestLiteralAttributesCarryValue(t *testing.T) {
	lit := NewLiteral(qtype.Int64Value(5))
	attrs := lit.Attributes()
	if attrs.QType != qtype.Int64 || !attrs.HasValue {
		t.Fatal("a literal's attributes must carry QType and HasValue")
	}
	if attrs.Value.Fingerprint() != qtype.Int64Value(5).Fingerprint() {
		t.Fatal("a literal's attributes must carry the wrapped value's fingerprint")
	}
}

func TestLiteralsWithEqualValuesShareFingerprint(t *testing.T) {
	a := NewLiteral(qtype.Int64Value(5))
	b := NewLiteral(qtype.Int64Value(5))
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("two literals wrapping equal values must fingerprint identically")
	}
	c := NewLiteral(qtype.Int64Value(6))
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatal("literals wrapping different values must fingerprint differently")
	}
}

func TestPlaceholderAttributesAreEmpty(t *testing.T) {
	p := NewPlaceholder("hole")
	if p.Attributes().QType != nil || p.Attributes().HasValue {
		t.Fatal("a placeholder must have empty attributes")
	}
	if p.Key() != "hole" {
		t.Errorf("Key() = %q, want hole", p.Key())
	}
}

func TestAttributesSubset(t *testing.T) {
	empty := Attributes{}
	typed := Attributes{QType: qtype.Int64}
	if !empty.Subset(typed) {
		t.Fatal("empty attributes must be a subset of any attributes")
	}
	if typed.Subset(empty) {
		t.Fatal("typed attributes must not be a subset of empty attributes")
	}
	if !typed.Subset(typed) {
		t.Fatal("attributes must be a subset of themselves")
	}
	other := Attributes{QType: qtype.Float64}
	if typed.Subset(other) {
		t.Fatal("attributes with a conflicting qtype must not be a subset")
	}
}

func TestAttributesSubsetValueAndQValueFingerprint(t *testing.T) {
	withValue := Attributes{HasValue: true, Value: qtype.Int64Value(1)}
	if withValue.Subset(Attributes{}) {
		t.Fatal("a known value must not be a subset of attributes lacking it")
	}
	sameValue := Attributes{HasValue: true, Value: qtype.Int64Value(1)}
	if !withValue.Subset(sameValue) {
		t.Fatal("attributes with the same value must be mutual subsets")
	}
	diffValue := Attributes{HasValue: true, Value: qtype.Int64Value(2)}
	if withValue.Subset(diffValue) {
		t.Fatal("attributes with differing values must not be subsets")
	}
}

func newTypedLeaf(key string, qt *qtype.QType) Node {
	return NewLeafWithQType(key, qt)
}

func TestOperatorInferAttributesAndFingerprint(t *testing.T) {
	x := newTypedLeaf("x", qtype.Int64)
	op, err := NewOperator(NewTupleOp(), []Node{x})
	if err != nil {
		t.Fatalf("NewOperator: %v", err)
	}
	if op.Attributes().QType == nil {
		t.Fatal("a successfully constructed operator must have inferred a qtype")
	}
	if len(op.Children()) != 1 || op.Children()[0].Fingerprint() != x.Fingerprint() {
		t.Fatal("Children() must return the exact children passed to NewOperator")
	}
}

func TestOperatorConstructionFailurePropagates(t *testing.T) {
	// TupleOp requires every child to already carry a qtype.
	bare := NewLeaf("unannotated")
	if _, err := NewOperator(NewTupleOp(), []Node{bare}); err == nil {
		t.Fatal("expected an error when a child lacks a qtype")
	}
}

func TestChildrenReturnsDefensiveCopy(t *testing.T) {
	x := newTypedLeaf("x", qtype.Int64)
	op, err := NewOperator(NewTupleOp(), []Node{x})
	if err != nil {
		t.Fatalf("NewOperator: %v", err)
	}
	children := op.Children()
	children[0] = NewLeaf("mutated")
	if op.Children()[0].Fingerprint() != x.Fingerprint() {
		t.Fatal("mutating a returned Children() slice must not affect the operator's own children")
	}
}

func TestWithNewChildrenLeafLiteralPlaceholderRejectNonEmpty(t *testing.T) {
	leaf := NewLeaf("x")
	if _, err := WithNewChildren(leaf, []Node{NewLeaf("y")}); err == nil {
		t.Fatal("expected an error rebuilding a leaf with non-empty children")
	}
	lit := NewLiteral(qtype.Int64Value(1))
	if _, err := WithNewChildren(lit, []Node{NewLeaf("y")}); err == nil {
		t.Fatal("expected an error rebuilding a literal with non-empty children")
	}
	ph := NewPlaceholder("h")
	if _, err := WithNewChildren(ph, []Node{NewLeaf("y")}); err == nil {
		t.Fatal("expected an error rebuilding a placeholder with non-empty children")
	}
}

func TestWithNewChildrenLeafReturnsUnchangedWhenEmpty(t *testing.T) {
	leaf := NewLeaf("x")
	got, err := WithNewChildren(leaf, nil)
	if err != nil {
		t.Fatalf("WithNewChildren: %v", err)
	}
	if got.Fingerprint() != leaf.Fingerprint() {
		t.Fatal("WithNewChildren on a leaf with no new children must return it unchanged")
	}
}

func TestWithNewChildrenOperatorRebuilds(t *testing.T) {
	x := newTypedLeaf("x", qtype.Int64)
	y := newTypedLeaf("y", qtype.Int64)
	op, err := NewOperator(NewTupleOp(), []Node{x})
	if err != nil {
		t.Fatalf("NewOperator: %v", err)
	}
	rebuilt, err := WithNewChildren(op, []Node{y})
	if err != nil {
		t.Fatalf("WithNewChildren: %v", err)
	}
	if rebuilt.Fingerprint() == op.Fingerprint() {
		t.Fatal("rebuilding with a different child must change the fingerprint")
	}
}

func TestDebugStringTruncates(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "a"
	}
	s := DebugString(NewLeaf(long))
	if len(s) > 203 {
		t.Fatalf("DebugString must truncate to ~200 chars, got %d", len(s))
	}
}

func TestKindString(t *testing.T) {
	for _, td := range []struct {
		k    Kind
		want string
	}{
		{KindLiteral, "literal"},
		{KindLeaf, "leaf"},
		{KindPlaceholder, "placeholder"},
		{KindOperator, "operator"},
	} {
		if got := td.k.String(); got != td.want {
			t.Errorf("%d.String() = %q, want %q", td.k, got, td.want)
		}
	}
}
