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
	"fmt"
	"strings"

	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/qtype"
)

// fixture is the on-disk shape this command loads: the external qtype
// of every leaf the expression references, plus the expression itself
// (spec §1 scopes out a real front-end/parser, so a fixture encodes the
// already-built node tree directly rather than source text).
type fixture struct {
	LeafQTypes map[string]string `json:"leaf_qtypes"`
	Expr       exprNode          `json:"expr"`
}

// exprNode is the YAML rendering of one expr.Node. Exactly one of its
// fields is set, mirroring the leaf and literal node variants (there is
// no placeholder field) plus the small set
// of builtin/backend operators this command knows how to build (spec
// §4.4's dispatch table; the tuple/get_nth/cast/backend cases below
// cover what a hand-authored fixture is likely to need).
type exprNode struct {
	Leaf    string       `json:"leaf,omitempty"`
	Literal *literalSpec `json:"literal,omitempty"`
	Tuple   []exprNode   `json:"tuple,omitempty"`
	GetNth  *getNthSpec  `json:"get_nth,omitempty"`
	Cast    *castSpec    `json:"cast,omitempty"`
	Backend *backendSpec `json:"backend,omitempty"`
}

type literalSpec struct {
	QType string   `json:"qtype"`
	Int   *int64   `json:"int,omitempty"`
	Float *float64 `json:"float,omitempty"`
	Bool  *bool    `json:"bool,omitempty"`
}

type getNthSpec struct {
	Index int      `json:"index"`
	Arg   exprNode `json:"arg"`
}

type castSpec struct {
	To  string   `json:"to"`
	Arg exprNode `json:"arg"`
}

type backendSpec struct {
	Name string     `json:"name"`
	Out  string     `json:"out"`
	Args []exprNode `json:"args"`
}

// parseQType resolves a fixture-supplied qtype name, recognizing the
// built-in scalar registry plus the OPTIONAL[...]/SEQUENCE[...]
// container syntax (spec §3).
func parseQType(name string) (*qtype.QType, error) {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "OPTIONAL[") && strings.HasSuffix(name, "]") {
		elem, err := parseQType(name[len("OPTIONAL[") : len(name)-1])
		if err != nil {
			return nil, err
		}
		return qtype.Optional(elem), nil
	}
	if strings.HasPrefix(name, "SEQUENCE[") && strings.HasSuffix(name, "]") {
		elem, err := parseQType(name[len("SEQUENCE[") : len(name)-1])
		if err != nil {
			return nil, err
		}
		return qtype.Sequence(elem), nil
	}
	t, ok := qtype.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown qtype %q", name)
	}
	return t, nil
}

func parseLeafQTypes(raw map[string]string) (map[string]*qtype.QType, error) {
	out := make(map[string]*qtype.QType, len(raw))
	for key, name := range raw {
		t, err := parseQType(name)
		if err != nil {
			return nil, fmt.Errorf("leaf %q: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}

// build converts a fixture expression node into an expr.Node. Every
// leaf reference is wrapped in its externally-supplied qtype
// annotation immediately, since the builtin operators below
// (TupleOp/GetNthOp/CastOp/BackendOp) all infer their attributes from
// already-typed children — by the time a real pipeline's lowering
// stage introduces a BackendOp (spec §4.2 stage 3), preparation's
// populate-qtypes stage (stage 1) has already run, so this mirrors
// that post-stage-1 shape rather than the pre-stage-1 bare-leaf one.
func (n exprNode) build(leafQTypes map[string]*qtype.QType) (expr.Node, error) {
	switch {
	case n.Leaf != "":
		qt, ok := leafQTypes[n.Leaf]
		if !ok {
			return nil, fmt.Errorf("leaf %q has no entry in leaf_qtypes", n.Leaf)
		}
		return expr.NewOperator(expr.NewQTypeAnnotation(qt), []expr.Node{expr.NewLeaf(n.Leaf)})
	case n.Literal != nil:
		return n.Literal.build()
	case n.Tuple != nil:
		children := make([]expr.Node, len(n.Tuple))
		for i, c := range n.Tuple {
			child, err := c.build(leafQTypes)
			if err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
			children[i] = child
		}
		return expr.NewOperator(expr.NewTupleOp(), children)
	case n.GetNth != nil:
		arg, err := n.GetNth.Arg.build(leafQTypes)
		if err != nil {
			return nil, fmt.Errorf("get_nth argument: %w", err)
		}
		return expr.NewOperator(expr.NewGetNthOp(n.GetNth.Index), []expr.Node{arg})
	case n.Cast != nil:
		to, err := parseQType(n.Cast.To)
		if err != nil {
			return nil, fmt.Errorf("cast target: %w", err)
		}
		arg, err := n.Cast.Arg.build(leafQTypes)
		if err != nil {
			return nil, fmt.Errorf("cast argument: %w", err)
		}
		return expr.NewOperator(expr.NewCastOp(to), []expr.Node{arg})
	case n.Backend != nil:
		return n.Backend.build(leafQTypes)
	default:
		return nil, fmt.Errorf("empty expression node")
	}
}

func (l *literalSpec) build() (expr.Node, error) {
	t, err := parseQType(l.QType)
	if err != nil {
		return nil, fmt.Errorf("literal qtype: %w", err)
	}
	switch {
	case l.Int != nil:
		return expr.NewLiteral(qtype.Int64Value(*l.Int)), requireQType(t, qtype.Int64)
	case l.Float != nil:
		return expr.NewLiteral(qtype.Float64Value(*l.Float)), requireQType(t, qtype.Float64)
	case l.Bool != nil:
		return expr.NewLiteral(qtype.BoolValue(*l.Bool)), requireQType(t, qtype.Bool)
	default:
		return nil, fmt.Errorf("literal has no int/float/bool value")
	}
}

// requireQType guards against a fixture whose declared literal qtype
// doesn't match the value kind it supplied (only INT64/FLOAT64/BOOLEAN
// literals are representable by this loader; anything else is a
// fixture authoring error, not a compiler concern).
func requireQType(declared, actual *qtype.QType) error {
	if !declared.Equal(actual) {
		return fmt.Errorf("literal declared as %s but value is %s-shaped", declared, actual)
	}
	return nil
}

func (b *backendSpec) build(leafQTypes map[string]*qtype.QType) (expr.Node, error) {
	out, err := parseQType(b.Out)
	if err != nil {
		return nil, fmt.Errorf("backend %s: output qtype: %w", b.Name, err)
	}
	children := make([]expr.Node, len(b.Args))
	inTypes := make([]*qtype.QType, len(b.Args))
	for i, a := range b.Args {
		c, err := a.build(leafQTypes)
		if err != nil {
			return nil, fmt.Errorf("backend %s: argument %d: %w", b.Name, i, err)
		}
		if c.Attributes().QType == nil {
			return nil, fmt.Errorf("backend %s: argument %d has no qtype", b.Name, i)
		}
		children[i] = c
		inTypes[i] = c.Attributes().QType
	}
	return expr.NewOperator(expr.NewBackendOp(b.Name, inTypes, out), children)
}
