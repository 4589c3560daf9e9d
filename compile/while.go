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
	"github.com/arolla-go/arolla/qtype"
	"github.com/arolla-go/arolla/trace"
)

// visitWhile compiles the bounded-loop operator (spec §4.7). Four
// sub-programs are pre-compiled once at bind time; the runtime op below
// alternates between them exactly as specified, eliminating a copy on
// every iteration while guaranteeing the output slot holds the correct
// state whichever sub-program last signalled termination.
func (b *Builder) visitWhile(op *expr.Operator, w *expr.WhileOp) (frame.Slot, error) {
	in, err := b.childSlots(op)
	if err != nil {
		return frame.Slot{}, err
	}
	if len(in) != len(w.StateNames)+len(w.ConstNames) {
		return frame.Slot{}, fmt.Errorf("compile: internal invariant: while: got %d args, want %d", len(in), len(w.StateNames)+len(w.ConstNames))
	}
	stateType := op.Attributes().QType

	out := b.alloc.Allocate(op.Fingerprint(), stateType, true)
	tmp := b.fb.Reserve(stateType)
	condSlot := b.fb.Reserve(qtype.Optional(qtype.Unit))

	constArgs := make(map[string]frame.Slot, len(w.ConstNames))
	for i, name := range w.ConstNames {
		constArgs[name] = in[len(w.StateNames)+i]
	}

	argsFor := func(base frame.Slot) map[string]frame.Slot {
		m := make(map[string]frame.Slot, len(w.StateNames)+len(w.ConstNames))
		for i, name := range w.StateNames {
			m[name] = frame.FieldSlot(base, i).Slot
		}
		for name, s := range constArgs {
			m[name] = s
		}
		return m
	}

	condOutInit, condOutEval, err := b.bindSubProgram(w.Condition, argsFor(out), condSlot)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: while: condition-on-out: %w", err)
	}
	bodyOutInit, bodyOutEval, err := b.bindSubProgram(w.Body, argsFor(out), tmp)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: while: body-out-to-tmp: %w", err)
	}
	condTmpInit, condTmpEval, err := b.bindSubProgram(w.Condition, argsFor(tmp), condSlot)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: while: condition-on-tmp: %w", err)
	}
	bodyTmpInit, bodyTmpEval, err := b.bindSubProgram(w.Body, argsFor(tmp), out)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: while: body-tmp-to-out: %w", err)
	}
	b.initOps = append(b.initOps, condOutInit...)
	b.initOps = append(b.initOps, bodyOutInit...)
	b.initOps = append(b.initOps, condTmpInit...)
	b.initOps = append(b.initOps, bodyTmpInit...)

	presence := frame.PresenceSlot(condSlot)
	truthy := func(fr *frame.Frame) bool {
		return fr.Bytes(presence.Slot)[0] != 0
	}
	// runSub executes a pre-compiled sub-program's flat op list, honoring
	// any jump displacement an op sets (a sub-program's condition or body
	// may itself contain a packed_where and so isn't necessarily a
	// straight-line list; spec §4.6's additive jump semantics apply here
	// exactly as in the top-level program).
	runSub := func(ops []frame.Op, ctx *frame.EvalContext, fr *frame.Frame) bool {
		for i := 0; i < len(ops); {
			ops[i](ctx, fr)
			if ctx.Failed() {
				return false
			}
			i += 1 + ctx.TakeJump()
		}
		return true
	}

	b.emit(func(ctx *frame.EvalContext, fr *frame.Frame) {
		for i := range w.StateNames {
			fr.CopyInto(frame.FieldSlot(out, i).Slot, in[i])
		}
		for {
			if !runSub(condOutEval, ctx, fr) {
				return
			}
			if !truthy(fr) {
				return
			}
			if !runSub(bodyOutEval, ctx, fr) {
				return
			}
			if !runSub(condTmpEval, ctx, fr) {
				return
			}
			if !truthy(fr) {
				fr.CopyInto(out, tmp)
				return
			}
			if !runSub(bodyTmpEval, ctx, fr) {
				return
			}
		}
	}, trace.NodeTrace{OpName: w.DisplayName(), OriginalRepr: expr.DebugString(op), CompiledRepr: describeNode(op, out, in)})

	return out, nil
}
