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

// visitOperator implements the concrete-type rows of the dispatch
// table (spec §4.4). Node kinds handled by a dedicated sub-compiler
// (packed_where, while, seq.map) delegate to where.go/while.go/seqmap.go.
func (b *Builder) visitOperator(op *expr.Operator) (frame.Slot, error) {
	switch o := op.Op().(type) {
	case *expr.QTypeAnnotation, *expr.MetadataAnnotation:
		children := op.Children()
		if len(children) != 1 {
			return frame.Slot{}, fmt.Errorf("compile: internal invariant: annotation with %d children", len(children))
		}
		s, err := b.visit(children[0])
		if err != nil {
			return frame.Slot{}, err
		}
		b.alloc.BindExisting(op.Fingerprint(), s)
		return s, nil

	case *expr.TupleOp:
		return b.visitTuple(op)

	case *expr.GetNthOp:
		return b.visitGetNth(op, o)

	case *expr.HasOptionalOp:
		return b.visitHasOptional(op)

	case *expr.CastOp:
		return b.visitCast(op, o)

	case *PackedWhereOp:
		return b.visitPackedWhere(op, o)

	case *expr.WhileOp:
		return b.visitWhile(op, o)

	case *expr.SeqMapOp:
		return b.visitSeqMap(op, o)

	case *expr.BackendOp:
		return b.visitBackend(op, o)

	case *expr.RootOp:
		return frame.Slot{}, fmt.Errorf("compile: internal invariant: nested core._root node")

	default:
		result, err := b.opts.Extensions.TryCompile(b, op)
		switch result {
		case Handled:
			if err != nil {
				return frame.Slot{}, err
			}
			s, ok := b.alloc.SlotOf(op.Fingerprint())
			if !ok {
				return frame.Slot{}, fmt.Errorf("compile: internal invariant: extension claimed %s but allocated no slot", op.Op().DisplayName())
			}
			return s, nil
		case HandledWithError:
			return frame.Slot{}, err
		default:
			return frame.Slot{}, fmt.Errorf("compile: unknown operator %q: neither builtin nor backend, and no extension handled it: %s", op.Op().DisplayName(), expr.DebugString(op))
		}
	}
}

func (b *Builder) visitTuple(op *expr.Operator) (frame.Slot, error) {
	in, err := b.childSlots(op)
	if err != nil {
		return frame.Slot{}, err
	}
	t := op.Attributes().QType
	out := b.alloc.Allocate(op.Fingerprint(), t, true)
	b.emit(func(ctx *frame.EvalContext, fr *frame.Frame) {
		for i, f := range t.Fields {
			dst := frame.Slot{Type: f.Type, Offset: out.Offset + f.Offset}
			fr.CopyInto(dst, in[i])
		}
	}, trace.NodeTrace{OpName: op.Op().DisplayName(), OriginalRepr: expr.DebugString(op), CompiledRepr: describeNode(op, out, in)})
	return out, nil
}

func (b *Builder) visitGetNth(op *expr.Operator, g *expr.GetNthOp) (frame.Slot, error) {
	children := op.Children()
	if len(children) != 1 {
		return frame.Slot{}, fmt.Errorf("compile: core.get_nth: expected 1 child, got %d", len(children))
	}
	parent, err := b.visit(children[0])
	if err != nil {
		return frame.Slot{}, err
	}
	b.alloc.TakeSubslotView(parent)
	sub := frame.FieldSlot(parent, g.Index)
	b.alloc.BindExisting(op.Fingerprint(), sub.Slot)
	return sub.Slot, nil
}

func (b *Builder) visitHasOptional(op *expr.Operator) (frame.Slot, error) {
	children := op.Children()
	if len(children) != 1 {
		return frame.Slot{}, fmt.Errorf("compile: core.has._optional: expected 1 child, got %d", len(children))
	}
	parent, err := b.visit(children[0])
	if err != nil {
		return frame.Slot{}, err
	}
	b.alloc.TakeSubslotView(parent)
	presence := frame.PresenceSlot(parent)
	b.alloc.BindExisting(op.Fingerprint(), presence.Slot)
	return presence.Slot, nil
}

func (b *Builder) visitCast(op *expr.Operator, c *expr.CastOp) (frame.Slot, error) {
	children := op.Children()
	if len(children) != 1 {
		return frame.Slot{}, fmt.Errorf("compile: core.cast: expected 1 child, got %d", len(children))
	}
	in, err := b.visit(children[0])
	if err != nil {
		return frame.Slot{}, err
	}
	view, err := b.fb.RegisterUnsafeSlot(in, c.To, true)
	if err != nil {
		return frame.Slot{}, fmt.Errorf("compile: core.cast: %w", err)
	}
	b.alloc.TakeSubslotView(in)
	b.alloc.BindExisting(op.Fingerprint(), view.Slot)
	return view.Slot, nil
}

// visitBackend implements the "Backend operator" and "Derived qtype
// up/downcast" dispatch rows: it looks the operator up in opts.Backends
// by (name, input qtypes, output qtype). When that misses and the output
// qtype is derived, it looks the operator up in opts.Backends again
// against the decayed base output qtype, writes into a base-typed
// scratch slot and binds the node to a reinterpreted view of that slot
// (spec §4.4: "If the backend output type differs from the
// node's declared type only by derived-qtype decay, emit a
// reinterpretation rather than a copy").
func (b *Builder) visitBackend(op *expr.Operator, bo *expr.BackendOp) (frame.Slot, error) {
	in, err := b.childSlots(op)
	if err != nil {
		return frame.Slot{}, err
	}
	wantOut := op.Attributes().QType
	name := bo.DisplayName()

	if b.opts.Backends == nil {
		return frame.Slot{}, fmt.Errorf("compile: unknown operator %q: no backend directory configured: %s", name, expr.DebugString(op))
	}

	inTypes := make([]*qtype.QType, len(in))
	for i, s := range in {
		inTypes[i] = s.Type
	}

	backendOp, ok := b.opts.Backends.Lookup(name, inTypes, wantOut)
	if ok {
		out := b.alloc.Allocate(op.Fingerprint(), wantOut, true)
		boundOp, err := backendOp.Bind(in, out)
		if err != nil {
			return frame.Slot{}, fmt.Errorf("compile: operator binding failure for %q: %w (node: %s)", name, err, expr.DebugString(op))
		}
		b.emit(boundOp, trace.NodeTrace{OpName: name, OriginalRepr: expr.DebugString(op), CompiledRepr: describeNode(op, out, in)})
		return out, nil
	}

	base := wantOut.DecaysTo()
	if !base.Equal(wantOut) {
		if backendOp, ok := b.opts.Backends.Lookup(name, inTypes, base); ok {
			tmp := b.alloc.Allocate(decayScratchFingerprint(op.Fingerprint()), base, true)
			boundOp, err := backendOp.Bind(in, tmp)
			if err != nil {
				return frame.Slot{}, fmt.Errorf("compile: operator binding failure for %q: %w (node: %s)", name, err, expr.DebugString(op))
			}
			b.emit(boundOp, trace.NodeTrace{OpName: name, OriginalRepr: expr.DebugString(op), CompiledRepr: describeNode(op, tmp, in)})
			view, err := b.fb.RegisterUnsafeSlot(tmp, wantOut, true)
			if err != nil {
				return frame.Slot{}, fmt.Errorf("compile: %q: %w", name, err)
			}
			b.alloc.TakeSubslotView(tmp)
			b.alloc.BindExisting(op.Fingerprint(), view.Slot)
			return view.Slot, nil
		}
	}

	return frame.Slot{}, fmt.Errorf("compile: unknown operator %q for input types %v and output %s: %s", name, inTypes, wantOut, expr.DebugString(op))
}

// decayScratchFingerprint derives the identity of the base-typed
// physical slot a derived-output backend call writes into, before it is
// reinterpreted back to the node's own declared (derived) qtype: a
// fingerprint distinct from op's own so the reinterpreted view (bound
// under op's real fingerprint) and the underlying physical write don't
// collide in the allocator's slot map.
func decayScratchFingerprint(fp fingerprint.Fingerprint) fingerprint.Fingerprint {
	b := fingerprint.NewBuilder()
	b.WriteString("_derived_decay_scratch")
	b.WriteFingerprint(fp)
	return b.Sum()
}
