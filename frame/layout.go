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
	"fmt"

	"github.com/arolla-go/arolla/qtype"
)

// Layout is the finished, immutable description of a frame's shape: its
// total byte size, alignment, and the set of slots reserved within it
// (spec §4.3: "A frame layout is a flat list of (offset, qtype) slot
// descriptions"). It is produced by Builder.Build and shared by every
// BoundExpr compiled against it.
type Layout struct {
	Size      int
	Alignment int
	slots     []Slot
}

// NumSlots returns the number of slots reserved in the layout.
func (l *Layout) NumSlots() int { return len(l.slots) }

// Slot returns the i-th reserved slot.
func (l *Layout) Slot(i int) Slot { return l.slots[i] }

// Builder incrementally reserves slots within a frame, tracking the
// high-water mark of bytes used so far (spec §4.3). It is grounded on
// the teacher's ssa.prog slot reservation (vm/ssa.go), generalized from
// a fixed register file to an arbitrarily sized byte-addressed region.
type Builder struct {
	offset int
	align  int
	slots  []Slot

	// unsafeAliased tracks, by byte offset, whether a register-unsafe-
	// slot aliasing view has already been recorded there (spec §4.3).
	unsafeAliased map[int]bool
}

// NewBuilder returns an empty frame builder.
func NewBuilder() *Builder {
	return &Builder{align: 1, unsafeAliased: make(map[int]bool)}
}

// RegisterUnsafeSlot records that the byte range backing parent is also
// read/written under t, and returns the aliased view (spec §3: "A slot
// may be explicitly registered as 'unsafe aliased' when multiple views
// of the same bytes are intended"; spec §4.3: "register-unsafe-slot
// records that an existing byte range will be read/written under a
// second qtype; duplicate registrations are permitted only when
// explicitly opted in"). A second (or further) aliasing at the same
// offset is rejected unless allowDuplicate is set, so that an
// uncoordinated reinterpretation of already-aliased bytes is caught as
// a bug rather than silently accepted.
func (b *Builder) RegisterUnsafeSlot(parent Slot, t *qtype.QType, allowDuplicate bool) (Subslot, error) {
	if b.unsafeAliased[parent.Offset] && !allowDuplicate {
		return Subslot{}, fmt.Errorf("frame: unsafe-aliased slot already registered at offset %d", parent.Offset)
	}
	b.unsafeAliased[parent.Offset] = true
	return Subslot{
		Slot:       Slot{Type: t, Offset: parent.Offset},
		Parent:     parent,
		FieldIndex: -1,
	}, nil
}

// Reserve allocates byte-aligned space for t and returns the Slot
// referring to it. Reserve never reuses space; reuse across
// non-overlapping lifetimes is the job of Allocator, which calls
// Reserve only for the slots it decides cannot be recycled.
func (b *Builder) Reserve(t *qtype.QType) Slot {
	align := t.Alignment
	if align < 1 {
		align = 1
	}
	off := alignUp(b.offset, align)
	s := Slot{Type: t, Offset: off}
	b.offset = off + t.ByteSize
	if align > b.align {
		b.align = align
	}
	b.slots = append(b.slots, s)
	return s
}

// ReserveAt places a slot for t at a caller-chosen offset. Allocator
// does not call it: it recycles a region by handing out the previously
// reserved Slot again. ReserveAt does not
// advance the builder's high-water mark beyond off+t.ByteSize if that
// is already covered by a prior Reserve.
func (b *Builder) ReserveAt(t *qtype.QType, off int) Slot {
	s := Slot{Type: t, Offset: off}
	if end := off + t.ByteSize; end > b.offset {
		b.offset = end
	}
	if align := t.Alignment; align > b.align {
		b.align = align
	}
	b.slots = append(b.slots, s)
	return s
}

// Build finalizes the layout. The total size is padded up to the
// layout's own alignment, matching ordinary struct layout rules.
func (b *Builder) Build() *Layout {
	size := alignUp(b.offset, b.align)
	return &Layout{
		Size:      size,
		Alignment: b.align,
		slots:     append([]Slot(nil), b.slots...),
	}
}

func (l *Layout) String() string {
	return fmt.Sprintf("frame<size=%d align=%d slots=%d>", l.Size, l.Alignment, len(l.slots))
}
