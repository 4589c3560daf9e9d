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

// Package expr implements the immutable expression DAG
// (spec §3, §4.1): the four node variants (literal, leaf, placeholder,
// operator), their attribute cache, and the visitor utilities
// (PostOrder, TransformOnPostOrder, DeepTransform) used by the
// preparation pipeline and the evaluation visitor.
//
// The visitor shape is grounded on the teacher's expr.Walk/expr.Rewrite
// pair, generalized from a single recursive-descent pass to an
// explicit-stack traversal with fingerprint-based deduplication and
// (for DeepTransform) memoized fixed-point re-entry.
package expr

import (
	"fmt"
	"strings"

	"github.com/arolla-go/arolla/internal/fingerprint"
	"github.com/arolla-go/arolla/qtype"
)

// Kind discriminates the four node variants.
type Kind int

const (
	KindLiteral Kind = iota
	KindLeaf
	KindPlaceholder
	KindOperator
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindLeaf:
		return "leaf"
	case KindPlaceholder:
		return "placeholder"
	case KindOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// Attributes is the (qtype?, value?, qvalue-fingerprint?) triple cached
// on every node (spec §3). A node's Attributes must be a subset of any
// rewrite's Attributes (the no-retract invariant, enforced in package
// prepare).
type Attributes struct {
	QType *qtype.QType

	// HasValue / Value: a known constant value. Spec §3: "optional
	// constant value (forcing a literal promotion if set alongside a
	// qtype)" — see Node.AsLiteral.
	HasValue bool
	Value    qtype.Value

	HasQValueFingerprint bool
	QValueFingerprint    fingerprint.Fingerprint
}

// Subset reports whether a is a subset of b: every field a sets must be
// set identically in b. This is the no-retract check of spec §3/§8
// invariant 2.
func (a Attributes) Subset(b Attributes) bool {
	if a.QType != nil {
		if b.QType == nil || !a.QType.Equal(b.QType) {
			return false
		}
	}
	if a.HasValue {
		if !b.HasValue || a.Value.Fingerprint() != b.Value.Fingerprint() {
			return false
		}
	}
	if a.HasQValueFingerprint {
		if !b.HasQValueFingerprint || a.QValueFingerprint != b.QValueFingerprint {
			return false
		}
	}
	return true
}

// Node is one of Literal, Leaf, Placeholder, or *Operator. Nodes are
// immutable; every rewrite produces a new Node. Identity is by
// Fingerprint (spec §3), not by Go pointer equality: the constructors
// allocate a new node on every call, so structurally identical nodes
// are distinct values with equal fingerprints (no hash-consing).
type Node interface {
	Kind() Kind
	Attributes() Attributes
	Fingerprint() fingerprint.Fingerprint
	Children() []Node
	// String returns a short, single-line debug rendering, used by
	// compile-time error messages (spec §7: truncated to ~200 chars by
	// the caller).
	String() string
}

// Literal carries an immutable typed value.
type Literal struct {
	value qtype.Value
	fp    fingerprint.Fingerprint
}

// NewLiteral returns a Literal node wrapping v.
func NewLiteral(v qtype.Value) *Literal {
	b := fingerprint.NewBuilder()
	b.WriteByte(byte(KindLiteral))
	b.WriteString(v.Type.Name)
	b.WriteFingerprint(v.Fingerprint())
	return &Literal{value: v, fp: b.Sum()}
}

func (l *Literal) Kind() Kind                        { return KindLiteral }
func (l *Literal) Children() []Node                  { return nil }
func (l *Literal) Fingerprint() fingerprint.Fingerprint { return l.fp }
func (l *Literal) Value() qtype.Value                { return l.value }
func (l *Literal) Attributes() Attributes {
	return Attributes{
		QType:                l.value.Type,
		HasValue:             true,
		Value:                l.value,
		HasQValueFingerprint: true,
		QValueFingerprint:    l.value.Fingerprint(),
	}
}
func (l *Literal) String() string { return fmt.Sprintf("literal[%s]", l.value.String()) }

// Leaf is a named external input (spec §3: "leaf (named external input,
// carries only a name)"). A Leaf only gains a qtype via an enclosing
// qtype-annotation operator node (populated during preparation stage 1)
// or via an Attributes override constructed directly (used by tests
// that already know the leaf's type).
type Leaf struct {
	key   string
	attrs Attributes
	fp    fingerprint.Fingerprint
}

// NewLeaf returns an unannotated Leaf named key.
func NewLeaf(key string) *Leaf {
	return newLeafAttrs(key, Attributes{})
}

// NewLeafWithQType returns a Leaf whose Attributes already carry qt,
// equivalent to a leaf that has passed through qtype-annotation
// stripping (spec §4.2 stage 1).
func NewLeafWithQType(key string, qt *qtype.QType) *Leaf {
	return newLeafAttrs(key, Attributes{QType: qt})
}

func newLeafAttrs(key string, attrs Attributes) *Leaf {
	b := fingerprint.NewBuilder()
	b.WriteByte(byte(KindLeaf))
	b.WriteString(key)
	if attrs.QType != nil {
		b.WriteFingerprint(attrs.QType.Fingerprint())
	}
	return &Leaf{key: key, attrs: attrs, fp: b.Sum()}
}

func (l *Leaf) Kind() Kind                          { return KindLeaf }
func (l *Leaf) Children() []Node                    { return nil }
func (l *Leaf) Fingerprint() fingerprint.Fingerprint { return l.fp }
func (l *Leaf) Key() string                         { return l.key }
func (l *Leaf) Attributes() Attributes              { return l.attrs }
func (l *Leaf) String() string                      { return fmt.Sprintf("L.%s", l.key) }

// Placeholder is a named template hole (spec §3). Residual placeholders
// after preparation are a fatal error (spec §4.2, §7: "unresolved
// placeholder").
type Placeholder struct {
	key string
	fp  fingerprint.Fingerprint
}

// NewPlaceholder returns a Placeholder node named key.
func NewPlaceholder(key string) *Placeholder {
	b := fingerprint.NewBuilder()
	b.WriteByte(byte(KindPlaceholder))
	b.WriteString(key)
	return &Placeholder{key: key, fp: b.Sum()}
}

func (p *Placeholder) Kind() Kind                          { return KindPlaceholder }
func (p *Placeholder) Children() []Node                    { return nil }
func (p *Placeholder) Fingerprint() fingerprint.Fingerprint { return p.fp }
func (p *Placeholder) Key() string                         { return p.key }
func (p *Placeholder) Attributes() Attributes              { return Attributes{} }
func (p *Placeholder) String() string                      { return fmt.Sprintf("P.%s", p.key) }

// Operator is an operator-invocation node: an operator reference plus an
// ordered vector of child node references (spec §3).
type Operator struct {
	op       Op
	children []Node
	attrs    Attributes
	fp       fingerprint.Fingerprint
}

// NewOperator constructs an operator node, inferring its attributes via
// op.InferAttributes(children's attributes). It fails if attribute
// inference fails (spec §4.1: "with_new_children... fails if
// infer_attributes fails").
func NewOperator(op Op, children []Node) (*Operator, error) {
	childAttrs := make([]Attributes, len(children))
	for i, c := range children {
		childAttrs[i] = c.Attributes()
	}
	attrs, err := op.InferAttributes(childAttrs)
	if err != nil {
		return nil, fmt.Errorf("infer attributes for operator %s: %w", op.DisplayName(), err)
	}
	return newOperatorWithAttrs(op, children, attrs), nil
}

func newOperatorWithAttrs(op Op, children []Node, attrs Attributes) *Operator {
	b := fingerprint.NewBuilder()
	b.WriteByte(byte(KindOperator))
	b.WriteFingerprint(op.Fingerprint())
	for _, c := range children {
		b.WriteFingerprint(c.Fingerprint())
	}
	return &Operator{op: op, children: append([]Node(nil), children...), attrs: attrs, fp: b.Sum()}
}

func (o *Operator) Kind() Kind                          { return KindOperator }
func (o *Operator) Children() []Node                    { return append([]Node(nil), o.children...) }
func (o *Operator) Fingerprint() fingerprint.Fingerprint { return o.fp }
func (o *Operator) Attributes() Attributes              { return o.attrs }
func (o *Operator) Op() Op                              { return o.op }
func (o *Operator) String() string {
	parts := make([]string, len(o.children))
	for i, c := range o.children {
		parts[i] = shortString(c)
	}
	return fmt.Sprintf("%s(%s)", o.op.DisplayName(), strings.Join(parts, ", "))
}

func shortString(n Node) string {
	s := n.String()
	const max = 40
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

// DebugString renders n truncated to ~200 characters, matching the
// compile-time error snippet convention (spec §7).
func DebugString(n Node) string {
	s := n.String()
	const max = 200
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

// WithNewChildren rebuilds n with newChildren in place of its existing
// children, preserving the operator and re-inferring attributes (spec
// §4.1). Literal, Leaf, and Placeholder nodes have no children and are
// returned unchanged if newChildren is empty; passing a non-empty slice
// for one of them is a programmer error.
func WithNewChildren(n Node, newChildren []Node) (Node, error) {
	switch v := n.(type) {
	case *Literal:
		if len(newChildren) != 0 {
			return nil, fmt.Errorf("literal node has no children, got %d", len(newChildren))
		}
		return v, nil
	case *Leaf:
		if len(newChildren) != 0 {
			return nil, fmt.Errorf("leaf node has no children, got %d", len(newChildren))
		}
		return v, nil
	case *Placeholder:
		if len(newChildren) != 0 {
			return nil, fmt.Errorf("placeholder node has no children, got %d", len(newChildren))
		}
		return v, nil
	case *Operator:
		return NewOperator(v.op, newChildren)
	default:
		return nil, fmt.Errorf("expr: unknown node type %T", n)
	}
}
