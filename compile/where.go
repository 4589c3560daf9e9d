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

package compile

import (
	"fmt"

	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/internal/fingerprint"
	"github.com/arolla-go/arolla/qtype"
	"github.com/arolla-go/arolla/trace"
)

// SubProgram is one branch of a packed conditional (spec §4.6): a body
// expression over a fixed set of named, typed parameters, standing in
// for the part of a where branch that the global pre-pass determined is
// exclusively owned by that branch (and so safe to skip entirely when
// the branch isn't taken).
type SubProgram struct {
	ParamNames  []string
	ParamQTypes []*qtype.QType
	Body        expr.Node
	OutputQType *qtype.QType
}

// NewSubProgram validates and returns a SubProgram over body.
func NewSubProgram(paramNames []string, paramQTypes []*qtype.QType, body expr.Node) (*SubProgram, error) {
	if len(paramNames) != len(paramQTypes) {
		return nil, fmt.Errorf("compile: sub-program: %d param names but %d param qtypes", len(paramNames), len(paramQTypes))
	}
	out := body.Attributes().QType
	if out == nil {
		return nil, fmt.Errorf("compile: sub-program: body has no qtype")
	}
	return &SubProgram{
		ParamNames:  append([]string(nil), paramNames...),
		ParamQTypes: append([]*qtype.QType(nil), paramQTypes...),
		Body:        body,
		OutputQType: out,
	}, nil
}

// PackedWhereOp is the builtin short-circuit conditional emitted by the
// where global pre-pass (package prepare) once it has partitioned a
// _short_circuit_where's branches into their exclusively-owned regions.
// Unlike ShortCircuitWhereOp (expr package, the unpacked input form),
// this type lives in package compile because its two branches are
// themselves SubPrograms that only the executable builder knows how to
// bind. Children of the *expr.Operator node carrying this Op are, in
// order: the condition, then the true branch's parameters (in
// trueProgram.ParamNames order), then the false branch's parameters (in
// falseProgram.ParamNames order).
type PackedWhereOp struct {
	trueProgram, falseProgram *SubProgram
	fp                        fingerprint.Fingerprint
}

// NewPackedWhereOp validates that the two branches agree on output
// qtype and returns the packed operator.
func NewPackedWhereOp(trueProgram, falseProgram *SubProgram) (*PackedWhereOp, error) {
	if !trueProgram.OutputQType.Equal(falseProgram.OutputQType) {
		return nil, fmt.Errorf("compile: packed_where: branch qtypes differ: %s vs %s", trueProgram.OutputQType, falseProgram.OutputQType)
	}
	b := fingerprint.NewBuilder()
	b.WriteString("op:packed_where")
	b.WriteFingerprint(trueProgram.Body.Fingerprint())
	b.WriteFingerprint(falseProgram.Body.Fingerprint())
	for _, n := range trueProgram.ParamNames {
		b.WriteString("t:" + n)
	}
	for _, n := range falseProgram.ParamNames {
		b.WriteString("f:" + n)
	}
	return &PackedWhereOp{trueProgram: trueProgram, falseProgram: falseProgram, fp: b.Sum()}, nil
}

func (p *PackedWhereOp) DisplayName() string { return "packed_where" }

func (p *PackedWhereOp) Signature() expr.Signature {
	params := []expr.Param{{Name: "condition"}}
	for _, n := range p.trueProgram.ParamNames {
		params = append(params, expr.Param{Name: "true." + n})
	}
	for _, n := range p.falseProgram.ParamNames {
		params = append(params, expr.Param{Name: "false." + n})
	}
	return expr.Signature{Positional: params}
}

func (p *PackedWhereOp) Tag() expr.Tag { return expr.TagBuiltin }

func (p *PackedWhereOp) Fingerprint() fingerprint.Fingerprint { return p.fp }

// InferAttributes is a purely structural check (spec §4.6: "attribute
// inference for the packed form is purely structural, it does not
// re-derive short-circuitability"): argument count and per-argument
// qtype match against each branch's declared parameter types, plus the
// condition's optional-unit shape. It does not attempt to verify that
// the packing was actually sound; that is the global pre-pass's job.
func (p *PackedWhereOp) InferAttributes(inputs []expr.Attributes) (expr.Attributes, error) {
	want := 1 + len(p.trueProgram.ParamNames) + len(p.falseProgram.ParamNames)
	if len(inputs) != want {
		return expr.Attributes{}, fmt.Errorf("packed_where: expected %d arguments, got %d", want, len(inputs))
	}
	cond := inputs[0]
	if cond.QType != nil && !qtype.IsUnitOptional(cond.QType) {
		return expr.Attributes{}, fmt.Errorf("packed_where: condition must be optional-unit, got %s", cond.QType)
	}
	off := 1
	for i, t := range p.trueProgram.ParamQTypes {
		in := inputs[off+i]
		if in.QType != nil && !in.QType.Equal(t) {
			return expr.Attributes{}, fmt.Errorf("packed_where: true.%s: expected %s, got %s", p.trueProgram.ParamNames[i], t, in.QType)
		}
	}
	off += len(p.trueProgram.ParamNames)
	for i, t := range p.falseProgram.ParamQTypes {
		in := inputs[off+i]
		if in.QType != nil && !in.QType.Equal(t) {
			return expr.Attributes{}, fmt.Errorf("packed_where: false.%s: expected %s, got %s", p.falseProgram.ParamNames[i], t, in.QType)
		}
	}
	return expr.Attributes{QType: p.trueProgram.OutputQType}, nil
}

// visitPackedWhere emits the jump-based short-circuit sequence (spec
// §4.6): [jump_if_not(+T+1)] [true ops (T)] [jump(+F)] [false ops (F)].
// Because jump displacement is additive (newPC = oldPC + 1 + N, spec
// §4.6), jump_if_not at index 0 lands exactly at index T+2 (the first
// false op) when the condition is absent, skipping the T true ops and
// the jump instruction itself; jump at index T+1, reached only by
// falling through the true block, lands at index T+2+F (just past the
// false block). Every individual op is appended through b.emit, one
// call per instruction, so the trace index stays aligned with eval-op
// position even though the two branch sub-programs were bound as flat,
// separately-compiled op lists.
func (b *Builder) visitPackedWhere(op *expr.Operator, p *PackedWhereOp) (frame.Slot, error) {
	children := op.Children()
	want := 1 + len(p.trueProgram.ParamNames) + len(p.falseProgram.ParamNames)
	if len(children) != want {
		return frame.Slot{}, fmt.Errorf("compile: internal invariant: packed_where: expected %d children, got %d", want, len(children))
	}

	condSlot, err := b.visit(children[0])
	if err != nil {
		return frame.Slot{}, err
	}

	off := 1
	trueArgs := make(map[string]frame.Slot, len(p.trueProgram.ParamNames))
	for i, name := range p.trueProgram.ParamNames {
		s, err := b.visit(children[off+i])
		if err != nil {
			return frame.Slot{}, err
		}
		trueArgs[name] = s
	}
	off += len(p.trueProgram.ParamNames)
	falseArgs := make(map[string]frame.Slot, len(p.falseProgram.ParamNames))
	for i, name := range p.falseProgram.ParamNames {
		s, err := b.visit(children[off+i])
		if err != nil {
			return frame.Slot{}, err
		}
		falseArgs[name] = s
	}

	outType := op.Attributes().QType
	out := b.alloc.Allocate(op.Fingerprint(), outType, true)

	trueInit, trueEval, err := b.bindSubProgram(p.trueProgram.Body, trueArgs, out)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: packed_where: true branch: %w", err)
	}
	falseInit, falseEval, err := b.bindSubProgram(p.falseProgram.Body, falseArgs, out)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: packed_where: false branch: %w", err)
	}
	b.initOps = append(b.initOps, trueInit...)
	b.initOps = append(b.initOps, falseInit...)

	nodeRepr := expr.DebugString(op)
	desc := describeNode(op, out, []frame.Slot{condSlot})
	T := len(trueEval)
	F := len(falseEval)

	b.emit(func(ctx *frame.EvalContext, fr *frame.Frame) {
		presence := fr.Bytes(frame.PresenceSlot(condSlot).Slot)
		if presence[0] == 0 {
			ctx.Jump(T + 1)
		}
	}, trace.NodeTrace{OpName: "jump_if_not", OriginalRepr: nodeRepr, CompiledRepr: desc})

	for _, o := range trueEval {
		b.emit(o, trace.NodeTrace{OpName: p.DisplayName(), OriginalRepr: nodeRepr, CompiledRepr: desc})
	}

	b.emit(func(ctx *frame.EvalContext, fr *frame.Frame) {
		ctx.Jump(F)
	}, trace.NodeTrace{OpName: "jump", OriginalRepr: nodeRepr, CompiledRepr: desc})

	for _, o := range falseEval {
		b.emit(o, trace.NodeTrace{OpName: p.DisplayName(), OriginalRepr: nodeRepr, CompiledRepr: desc})
	}

	return out, nil
}
