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
	"fmt"

	"github.com/arolla-go/arolla/qtype"
)

// ShortCircuitWhereOp is the input form of a conditional, before the
// global where pass (spec §4.6) has decided whether it can be
// compiled short-circuit. Children are [condition, trueBranch,
// falseBranch]. It is recognized by the where-global-pass
// (package prepare) and rewritten into either CoreWhereOp (no
// short-circuitable region in either branch) or a packed form owned by
// package compile.
type ShortCircuitWhereOp struct {
	baseOp
}

// NewShortCircuitWhereOp returns the builtin _short_circuit_where
// operator.
func NewShortCircuitWhereOp() *ShortCircuitWhereOp {
	return &ShortCircuitWhereOp{
		baseOp: newBaseOp("_short_circuit_where", TagBuiltin, Signature{Positional: []Param{
			{Name: "condition"}, {Name: "true_branch"}, {Name: "false_branch"},
		}}),
	}
}

func (w *ShortCircuitWhereOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 3 {
		return Attributes{}, fmt.Errorf("_short_circuit_where: expected 3 arguments, got %d", len(inputs))
	}
	cond, t, f := inputs[0], inputs[1], inputs[2]
	if cond.QType != nil && !qtype.IsUnitOptional(cond.QType) {
		return Attributes{}, fmt.Errorf("_short_circuit_where: condition must be optional-unit, got %s", cond.QType)
	}
	if t.QType != nil && f.QType != nil && !t.QType.Equal(f.QType) {
		return Attributes{}, fmt.Errorf("_short_circuit_where: branches have mismatched qtypes %s vs %s", t.QType, f.QType)
	}
	out := Attributes{}
	if t.QType != nil {
		out.QType = t.QType
	} else {
		out.QType = f.QType
	}
	return out, nil
}

// CoreWhereOp is the non-short-circuit fallback conditional (spec
// §4.6: "If neither branch has any short-circuitable region, replace
// with the non-short-circuit core.where"). It is a backend operator:
// both branches are always evaluated and the result selected by the
// condition, semantics owned by the (out-of-scope) backend registry.
// NewCoreWhereOp below constructs it as a BackendOp so the evaluation
// visitor dispatches it through the ordinary backend path.
func NewCoreWhereOp(branchType *qtype.QType) *BackendOp {
	return NewBackendOp("core.where", []*qtype.QType{qtype.Optional(qtype.Unit), branchType, branchType}, branchType)
}

// WhileOp is the bounded-loop operator (spec §4.7). Condition and Body
// are sub-expressions built over leaves named by StateNames and
// ConstNames; they are compiled into four sub-programs by package
// compile (while.go), never by the general evaluation visitor
// recursion. Children of the *Operator node using this Op are the
// initial values for each state parameter followed by the values for
// each constant parameter, in the same order as StateNames/ConstNames.
type WhileOp struct {
	baseOp
	Condition  Node // boolean-optional, over State∪Const leaves
	Body       Node // tuple-typed (one field per state param), over State∪Const leaves
	StateNames []string
	ConstNames []string
}

// NewWhileOp constructs the builtin while operator.
func NewWhileOp(condition, body Node, stateNames, constNames []string) *WhileOp {
	params := make([]Param, 0, len(stateNames)+len(constNames))
	for _, n := range stateNames {
		params = append(params, Param{Name: n})
	}
	for _, n := range constNames {
		params = append(params, Param{Name: n})
	}
	return &WhileOp{
		baseOp:     newBaseOp("while", TagBuiltin, Signature{Positional: params}),
		Condition:  condition,
		Body:       body,
		StateNames: append([]string(nil), stateNames...),
		ConstNames: append([]string(nil), constNames...),
	}
}

func (w *WhileOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	want := len(w.StateNames) + len(w.ConstNames)
	if len(inputs) != want {
		return Attributes{}, fmt.Errorf("while: expected %d arguments (state+const), got %d", want, len(inputs))
	}
	stateTypes := make([]*qtype.QType, len(w.StateNames))
	for i := range w.StateNames {
		if inputs[i].QType == nil {
			return Attributes{}, fmt.Errorf("while: state argument %d (%s) has no qtype", i, w.StateNames[i])
		}
		stateTypes[i] = inputs[i].QType
	}
	condAttrs := w.Condition.Attributes()
	if condAttrs.QType != nil && !qtype.IsUnitOptional(condAttrs.QType) {
		return Attributes{}, fmt.Errorf("while: condition must be optional-unit, got %s", condAttrs.QType)
	}
	return Attributes{QType: qtype.Product("WHILE_STATE", stateTypes...)}, nil
}

// SeqMapOp is seq.map(op, seq1, ..., seqN) (spec §4.8). Inner is the
// scalar operator applied to each tuple of elements. Constructing a
// SeqMapOp directly corresponds to the spec's "packed_seq_map" form
// (carrying the operator in its operator identity); the textual
// surface syntax in which the operator appears as a literal child
// expression is a front-end/parser concern and is out of scope here
// (spec §1: "parsers and front-end builders of expression DAGs").
type SeqMapOp struct {
	baseOp
	Inner Op
}

// NewSeqMapOp constructs seq.map parameterized by inner, applied to n
// sequence arguments.
func NewSeqMapOp(inner Op, n int) *SeqMapOp {
	params := make([]Param, n)
	for i := range params {
		params[i] = Param{Name: fmt.Sprintf("seq%d", i)}
	}
	return &SeqMapOp{
		baseOp: newBaseOp("seq.map["+inner.DisplayName()+"]", TagBuiltin, Signature{Positional: params}),
		Inner:  inner,
	}
}

func (s *SeqMapOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	elemTypes := make([]*qtype.QType, len(inputs))
	for i, in := range inputs {
		seqElem, ok := qtype.SequenceElement(in.QType)
		if !ok {
			return Attributes{}, fmt.Errorf("seq.map: argument %d is not a sequence qtype", i)
		}
		elemTypes[i] = seqElem
	}
	innerAttrs := make([]Attributes, len(elemTypes))
	for i, t := range elemTypes {
		innerAttrs[i] = Attributes{QType: t}
	}
	out, err := s.Inner.InferAttributes(innerAttrs)
	if err != nil {
		return Attributes{}, fmt.Errorf("seq.map: inner operator: %w", err)
	}
	return Attributes{QType: qtype.Sequence(out.QType)}, nil
}
