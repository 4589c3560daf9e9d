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
	"sort"

	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/internal/fingerprint"
	"github.com/arolla-go/arolla/qtype"
	"github.com/arolla-go/arolla/trace"
)

// Builder is the executable builder threaded through one compilation
// (spec §4.4 "Contract": "produces a bound program via an executable
// builder"). It owns the frame layout under construction, the slot
// allocator, and the growing init/eval op streams. Nested sub-programs
// (where/while/seq.map branches) get their own Builder sharing the same
// underlying *frame.Builder so every slot, inner or outer, lives in one
// physical frame.
type Builder struct {
	fb         *frame.Builder
	alloc      *frame.Allocator
	opts       Options
	consumers  map[fingerprint.Fingerprint][]fingerprint.Fingerprint
	literals   []literalInit
	initOps    []frame.Op
	evalOps    []frame.Op
	descs      []string
	traceIdx   *trace.Index
	inputSlots map[string]frame.Slot
}

type literalInit struct {
	slot frame.Slot
	val  qtype.Value
}

// Options returns the compile options in effect for this builder.
func (b *Builder) Options() Options { return b.opts }

// FrameBuilder exposes the shared layout builder, for extensions and
// control-flow compilers that need to reserve raw slots directly.
func (b *Builder) FrameBuilder() *frame.Builder { return b.fb }

// Visit compiles n (if not already compiled) and returns its output
// slot. Exported for use by registered extensions (spec §6 "compile-
// operator functions") which must recurse into their own children
// exactly as the core visitor does.
func (b *Builder) Visit(n expr.Node) (frame.Slot, error) {
	return b.visit(n)
}

// Bind produces a BoundExpr for ce against a fresh frame layout (spec
// §6: "Binding a CompiledExpr to a layout builder yields a BoundExpr").
func (ce *CompiledExpr) Bind() (*BoundExpr, error) {
	fb := frame.NewBuilder()

	keys := make([]string, 0, len(ce.InputQTypes))
	for k := range ce.InputQTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inputSlots := make(map[string]frame.Slot, len(keys))
	var inputSlotList []frame.Slot
	for _, k := range keys {
		s := fb.Reserve(ce.InputQTypes[k])
		inputSlots[k] = s
		inputSlotList = append(inputSlotList, s)
	}

	mainBody, sideBodies, sideKeys, err := splitRoot(ce.prepared)
	if err != nil {
		return nil, err
	}

	all := append([]expr.Node{mainBody}, sideBodies...)
	combinedFP := combineRoots(all)

	traceIdx := trace.NewIndex(ce.opts.Log)

	alloc := frame.NewAllocator(fb, inputSlotList, ce.opts.OverwriteInputs)
	b := &Builder{
		fb:         fb,
		alloc:      alloc,
		opts:       ce.opts,
		consumers:  countConsumers(combinedFP),
		traceIdx:   traceIdx,
		inputSlots: inputSlots,
	}
	for _, n := range allLeaves(combinedFP) {
		leaf := n.(*expr.Leaf)
		s, ok := inputSlots[leaf.Key()]
		if !ok {
			return nil, fmt.Errorf("compile: leaf %q has no input qtype", leaf.Key())
		}
		b.alloc.BindExisting(leaf.Fingerprint(), s)
	}

	outSlot, err := b.visit(mainBody)
	if err != nil {
		return nil, err
	}
	sideSlots := make(map[string]frame.Slot, len(sideKeys))
	for i, n := range sideBodies {
		s, err := b.visit(n)
		if err != nil {
			return nil, err
		}
		sideSlots[sideKeys[i]] = s
	}
	b.flushLiterals()

	return &BoundExpr{
		Layout:          fb.Build(),
		InputSlots:      inputSlots,
		OutputSlot:      outSlot,
		SideOutputSlots: sideSlots,
		InitOps:         b.initOps,
		EvalOps:         b.evalOps,
		Descriptions:    b.descs,
		trace:           traceIdx,
	}, nil
}

// combineRoots wraps several root nodes in a synthetic tuple so a
// single PostOrder/consumer-count pass covers all of them; it is never
// emitted itself.
func combineRoots(nodes []expr.Node) expr.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	tup, err := expr.NewOperator(expr.NewTupleOp(), nodes)
	if err != nil {
		// Each node already carries a valid qtype (it passed
		// preparation); grouping them cannot fail attribute inference.
		panic(fmt.Sprintf("compile: internal invariant: combining compiled roots: %v", err))
	}
	return tup
}

func allLeaves(root expr.Node) []expr.Node {
	var out []expr.Node
	for _, n := range expr.PostOrder(root) {
		if n.Kind() == expr.KindLeaf {
			out = append(out, n)
		}
	}
	return out
}

func countConsumers(root expr.Node) map[fingerprint.Fingerprint][]fingerprint.Fingerprint {
	order := expr.PostOrder(root)
	seen := make(map[fingerprint.Fingerprint]map[fingerprint.Fingerprint]bool)
	out := make(map[fingerprint.Fingerprint][]fingerprint.Fingerprint)
	for _, n := range order {
		fp := n.Fingerprint()
		for _, c := range n.Children() {
			cfp := c.Fingerprint()
			if seen[cfp] == nil {
				seen[cfp] = make(map[fingerprint.Fingerprint]bool)
			}
			if seen[cfp][fp] {
				continue
			}
			seen[cfp][fp] = true
			out[cfp] = append(out[cfp], fp)
		}
	}
	return out
}

// visit is the post-order evaluation visitor's single entry point
// (spec §4.4 dispatch table). It is memoized by fingerprint, so a node
// shared by two parents (DAG sharing) is only ever compiled once.
func (b *Builder) visit(n expr.Node) (frame.Slot, error) {
	fp := n.Fingerprint()
	if s, ok := b.alloc.SlotOf(fp); ok {
		return s, nil
	}

	var (
		slot frame.Slot
		err  error
	)
	switch v := n.(type) {
	case *expr.Placeholder:
		return frame.Slot{}, fmt.Errorf("compile: internal invariant: unresolved placeholder %q reached the evaluation visitor", v.Key())
	case *expr.Leaf:
		return frame.Slot{}, fmt.Errorf("compile: leaf %q has no bound input slot", v.Key())
	case *expr.Literal:
		slot, err = b.visitLiteral(v)
	case *expr.Operator:
		slot, err = b.visitOperator(v)
	default:
		return frame.Slot{}, fmt.Errorf("compile: internal invariant: unrecognized node type %T", n)
	}
	if err != nil {
		return frame.Slot{}, err
	}
	b.finishNode(n, fp)
	return slot, nil
}

// finishNode runs after a node's own slot is allocated: it marks every
// child as consumed by n. The consumer sets in b.consumers are never
// registered with the allocator (no SetConsumerCount call), so these
// calls free no slot and every node keeps a slot of its own.
func (b *Builder) finishNode(n expr.Node, fp fingerprint.Fingerprint) {
	for _, c := range n.Children() {
		b.alloc.Consumed(c.Fingerprint(), fp)
	}
}

func (b *Builder) visitLiteral(l *expr.Literal) (frame.Slot, error) {
	slot := b.alloc.Allocate(l.Fingerprint(), l.Value().Type, false)
	b.literals = append(b.literals, literalInit{slot: slot, val: l.Value()})
	return slot, nil
}

func (b *Builder) flushLiterals() {
	for _, lit := range b.literals {
		slot, val := lit.slot, lit.val
		b.initOps = append(b.initOps, func(ctx *frame.EvalContext, fr *frame.Frame) {
			copy(fr.Bytes(slot), val.Raw)
		})
	}
}

func (b *Builder) childSlots(op *expr.Operator) ([]frame.Slot, error) {
	children := op.Children()
	slots := make([]frame.Slot, len(children))
	for i, c := range children {
		s, err := b.visit(c)
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}
	return slots, nil
}

func (b *Builder) emit(op frame.Op, nt trace.NodeTrace) {
	idx := b.traceIdx.Add(nt)
	_ = idx
	b.evalOps = append(b.evalOps, op)
	if b.opts.Debug {
		b.descs = append(b.descs, nt.CompiledRepr)
	}
}

// bindSubProgram compiles body as a self-contained nested program
// reading its free variables from args and writing its result into
// output, sharing the outer frame but with its own allocator (so the
// same body evaluated against two different argument sets — as while's
// condition/body are, once against OUT and once against TMP — never
// collides in the memoization cache). Used by where.go, while.go and
// seqmap.go for their pre-compiled branch/body/inner-operator programs
// (spec §4.6, §4.7, §4.8). Sub-programs never overwrite their input
// slots (spec: "Branch sub-programs must not allow input-slot
// overwriting").
func (b *Builder) bindSubProgram(body expr.Node, args map[string]frame.Slot, output frame.Slot) (init, eval []frame.Op, err error) {
	argSlots := make([]frame.Slot, 0, len(args))
	for _, s := range args {
		argSlots = append(argSlots, s)
	}
	sub := &Builder{
		fb:         b.fb,
		alloc:      frame.NewAllocator(b.fb, argSlots, false),
		opts:       b.opts,
		consumers:  countConsumers(body),
		traceIdx:   trace.NewIndex(nil), // scratch: re-emitted into the outer stream by the caller
		inputSlots: args,
	}
	for _, n := range allLeaves(body) {
		leaf := n.(*expr.Leaf)
		s, ok := args[leaf.Key()]
		if !ok {
			return nil, nil, fmt.Errorf("compile: sub-program: leaf %q has no bound slot", leaf.Key())
		}
		sub.alloc.BindExisting(leaf.Fingerprint(), s)
	}
	bodySlot, err := sub.visit(body)
	if err != nil {
		return nil, nil, err
	}
	sub.flushLiterals()
	eval = sub.evalOps
	if bodySlot != output {
		eval = append(eval, func(ctx *frame.EvalContext, fr *frame.Frame) {
			fr.CopyInto(output, bodySlot)
		})
	}
	return sub.initOps, eval, nil
}

func describeNode(op *expr.Operator, out frame.Slot, in []frame.Slot) string {
	parts := make([]string, len(in))
	for i, s := range in {
		parts[i] = fmt.Sprintf("%s [0x%02x]", s.Type, s.Offset)
	}
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += ", "
		}
		joined += p
	}
	return fmt.Sprintf("%s [0x%02x] = %s(%s)", out.Type, out.Offset, op.Op().DisplayName(), joined)
}
