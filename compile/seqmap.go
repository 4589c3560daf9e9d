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

// visitSeqMap compiles seq.map(op, seq1, ..., seqN) (spec §4.8): a
// per-element scalar slot for each input sequence plus one for the
// output element, a nested sub-program for the inner operator compiled
// once at bind time, and a single eval op that drives it once per row.
func (b *Builder) visitSeqMap(op *expr.Operator, s *expr.SeqMapOp) (frame.Slot, error) {
	in, err := b.childSlots(op)
	if err != nil {
		return frame.Slot{}, err
	}

	elemTypes := make([]*qtype.QType, len(in))
	for i, slot := range in {
		elem, ok := qtype.SequenceElement(slot.Type)
		if !ok {
			return frame.Slot{}, fmt.Errorf("compile: seq.map: argument %d has non-sequence qtype %s", i, slot.Type)
		}
		elemTypes[i] = elem
	}

	elemSlots := make([]frame.Slot, len(in))
	for i, t := range elemTypes {
		elemSlots[i] = b.fb.Reserve(t)
	}

	innerAttrs := make([]expr.Attributes, len(elemTypes))
	for i, t := range elemTypes {
		innerAttrs[i] = expr.Attributes{QType: t}
	}
	outAttrs, err := s.Inner.InferAttributes(innerAttrs)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: seq.map: inner operator: %w", err)
	}
	outElemSlot := b.fb.Reserve(outAttrs.QType)

	paramNames := make([]string, len(in))
	leaves := make([]expr.Node, len(in))
	for i := range in {
		paramNames[i] = fmt.Sprintf("elem%d", i)
		leaves[i] = expr.NewLeafWithQType(paramNames[i], elemTypes[i])
	}
	innerNode, err := expr.NewOperator(s.Inner, leaves)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: seq.map: building inner call: %w", err)
	}

	args := make(map[string]frame.Slot, len(in))
	for i, name := range paramNames {
		args[name] = elemSlots[i]
	}
	innerInit, innerEval, err := b.bindSubProgram(innerNode, args, outElemSlot)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: seq.map: inner sub-program: %w", err)
	}
	b.initOps = append(b.initOps, innerInit...)

	outSeqType := op.Attributes().QType
	outElemType := outAttrs.QType
	out := b.alloc.Allocate(op.Fingerprint(), outSeqType, true)

	b.emit(func(ctx *frame.EvalContext, fr *frame.Frame) {
		seqs := make([]*qtype.SequenceData, len(in))
		n := -1
		for i, slot := range in {
			data := fr.GetSequence(slot)
			seqs[i] = data
			l := data.Len()
			if n == -1 {
				n = l
			} else if l != n {
				ctx.SetError(fmt.Errorf("seq.map: argument %d has length %d, expected %d", i, l, n))
				return
			}
		}
		if n < 0 {
			n = 0
		}
		rows := make([][]byte, n)
		for row := 0; row < n; row++ {
			for i, data := range seqs {
				fr.CopyRawInto(elemSlots[i], data.Elems[row])
			}
			for pc := 0; pc < len(innerEval); {
				innerEval[pc](ctx, fr)
				if ctx.Failed() {
					return
				}
				pc += 1 + ctx.TakeJump()
			}
			buf := make([]byte, len(fr.Bytes(outElemSlot)))
			copy(buf, fr.Bytes(outElemSlot))
			rows[row] = buf
		}
		fr.PutSequence(out, qtype.NewSequenceData(outElemType, rows))
	}, trace.NodeTrace{OpName: s.DisplayName(), OriginalRepr: expr.DebugString(op), CompiledRepr: describeNode(op, out, in)})

	return out, nil
}
