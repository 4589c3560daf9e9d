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

package frame

import (
	"github.com/arolla-go/arolla/internal/fingerprint"
	"github.com/arolla-go/arolla/qtype"
)

// consumers tracks, for one live local slot, the set of node
// fingerprints that still need to read it.
type consumers map[fingerprint.Fingerprint]bool

// freeSlot is a previously-reserved, now-unclaimed region the
// allocator can hand back out for a same-qtype output.
type freeSlot struct {
	slot Slot
}

// Allocator implements the compile-time slot allocator (spec §4.3):
// given remaining-consumer counts for each node's output, it decides
// whether a node's result can reuse an existing local slot or must
// claim a fresh one, and it never recycles an input slot unless the
// caller opted in, nor a slot with a live subslot view, nor a literal
// slot. It is grounded on the teacher's vm register allocator
// (vm/ssa.go's value liveness bookkeeping), generalized from a fixed
// register file to the byte-addressed frame.
type Allocator struct {
	b                *Builder
	overwriteInputs  bool
	inputSlots       map[Slot]bool
	liveSubslotOf    map[Slot]int // slot -> count of live subslot views into it
	remaining        map[fingerprint.Fingerprint]consumers
	slotOf           map[fingerprint.Fingerprint]Slot
	freeByType       map[*qtype.QType][]freeSlot
	pinned           map[Slot]bool // slots allocated with recyclable=false
}

// NewAllocator returns an allocator writing new reservations into b.
// inputSlots marks which slots were supplied as leaf inputs (and so are
// never recycled unless overwriteInputs is set).
func NewAllocator(b *Builder, inputSlots []Slot, overwriteInputs bool) *Allocator {
	in := make(map[Slot]bool, len(inputSlots))
	for _, s := range inputSlots {
		in[s] = true
	}
	return &Allocator{
		b:               b,
		overwriteInputs: overwriteInputs,
		inputSlots:      in,
		liveSubslotOf:   make(map[Slot]int),
		remaining:       make(map[fingerprint.Fingerprint]consumers),
		slotOf:          make(map[fingerprint.Fingerprint]Slot),
		freeByType:      make(map[*qtype.QType][]freeSlot),
		pinned:          make(map[Slot]bool),
	}
}

// SetConsumerCount records that n distinct nodes still need to read
// fp's output, before any of them has been visited (spec §4.3:
// "maintains for each live slot the set of remaining consumer nodes").
// Consumed frees a slot only for producers registered here. The
// evaluation visitor in package compile computes consumer sets but does
// not call SetConsumerCount, so a compiled program never recycles a
// slot.
func (a *Allocator) SetConsumerCount(fp fingerprint.Fingerprint, consumerFPs []fingerprint.Fingerprint) {
	set := make(consumers, len(consumerFPs))
	for _, c := range consumerFPs {
		set[c] = true
	}
	a.remaining[fp] = set
}

// Allocate returns the slot to use for the output of node fp, whose
// declared qtype is t. recyclable must be false for leaf and literal
// outputs (spec §4.3: "eligible for reuse only for non-leaf,
// non-literal outputs"); Allocate always claims a fresh, permanently
// non-recycled slot when recyclable is false.
func (a *Allocator) Allocate(fp fingerprint.Fingerprint, t *qtype.QType, recyclable bool) Slot {
	if recyclable {
		if free := a.takeFree(t); free != nil {
			s := *free
			a.slotOf[fp] = s
			return s
		}
	}
	s := a.b.Reserve(t)
	a.slotOf[fp] = s
	if !recyclable {
		a.pinned[s] = true
	}
	return s
}

// Alias records that fp's value lives in an already-allocated slot
// (e.g. an identity rewrite, a reinterpretation, or a subslot view)
// rather than a fresh write, merging its consumer set into the
// existing owner instead of allocating (spec §4.3: "When extending a
// slot's lifetime... the allocator merges the consumer sets instead of
// allocating").
func (a *Allocator) Alias(fp fingerprint.Fingerprint, existing fingerprint.Fingerprint) {
	s, ok := a.slotOf[existing]
	if !ok {
		return
	}
	a.slotOf[fp] = s
	merged := a.remaining[existing]
	if merged == nil {
		merged = make(consumers)
		a.remaining[existing] = merged
	}
	for c := range a.remaining[fp] {
		merged[c] = true
	}
	a.remaining[fp] = merged
}

// BindExisting directly records that fp's value lives at s, without
// consulting the free list or reserving new space. Used for leaves
// (whose storage is the externally supplied input slot) and for other
// zero-allocation identity views the visitor constructs by hand
// (subslots, reinterpretations).
func (a *Allocator) BindExisting(fp fingerprint.Fingerprint, s Slot) {
	a.slotOf[fp] = s
}

// SlotOf returns the slot previously allocated for fp.
func (a *Allocator) SlotOf(fp fingerprint.Fingerprint) (Slot, bool) {
	s, ok := a.slotOf[fp]
	return s, ok
}

// Consumed marks that consumer has read producer's output; once every
// registered consumer has done so, the slot becomes eligible for
// recycling (unless it is a literal, an input, or has a live subslot
// view).
func (a *Allocator) Consumed(producer, consumer fingerprint.Fingerprint) {
	set := a.remaining[producer]
	if set == nil {
		return
	}
	delete(set, consumer)
	if len(set) > 0 {
		return
	}
	slot, ok := a.slotOf[producer]
	if !ok {
		return
	}
	if !a.overwriteInputs && a.inputSlots[slot] {
		return
	}
	if a.pinned[slot] {
		return
	}
	if a.liveSubslotOf[slot] > 0 {
		return
	}
	a.freeByType[slot.Type] = append(a.freeByType[slot.Type], freeSlot{slot: slot})
}

// TakeSubslotView records that a subslot view into parent is now live,
// excluding parent from recycling until ReleaseSubslotView is called
// (spec §4.3: "The allocator never recycles a parent slot while any
// subslot view is live").
func (a *Allocator) TakeSubslotView(parent Slot) {
	a.liveSubslotOf[parent]++
}

// ReleaseSubslotView undoes TakeSubslotView. When the last live view
// is released and every consumer of parent's producer has already run,
// parent becomes eligible for recycling.
func (a *Allocator) ReleaseSubslotView(parent Slot) {
	if a.liveSubslotOf[parent] == 0 {
		return
	}
	a.liveSubslotOf[parent]--
	if a.liveSubslotOf[parent] > 0 || a.pinned[parent] || (!a.overwriteInputs && a.inputSlots[parent]) {
		return
	}
	drained := false
	for fp, s := range a.slotOf {
		if set, ok := a.remaining[fp]; s == parent && ok {
			if len(set) > 0 {
				return
			}
			drained = true
		}
	}
	if drained {
		a.freeByType[parent.Type] = append(a.freeByType[parent.Type], freeSlot{slot: parent})
	}
}

func (a *Allocator) takeFree(t *qtype.QType) *Slot {
	free := a.freeByType[t]
	if len(free) == 0 {
		return nil
	}
	last := free[len(free)-1]
	a.freeByType[t] = free[:len(free)-1]
	return &last.slot
}
