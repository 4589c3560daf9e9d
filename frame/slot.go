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

// Package frame implements the offset-based memory frame model (spec
// §4.3): the layout builder, slots and subslots, and the lifetime-based
// slot allocator used by the evaluation visitor. It is grounded on the
// teacher's vm.stackslot reservation (vm/ssa.go's prog.ReserveSlot),
// generalized from the teacher's fixed SIMD register window to general
// byte-offset consumer-set lifetime analysis.
package frame

import (
	"fmt"

	"github.com/arolla-go/arolla/qtype"
)

// Slot is a typed view into a frame at a fixed byte offset (spec §3:
// "Slot. Typed view into a frame at a fixed byte offset").
type Slot struct {
	Type   *qtype.QType
	Offset int
}

func (s Slot) String() string {
	return fmt.Sprintf("%s [0x%02x]", s.Type, s.Offset)
}

// IsValid reports whether s refers to an actual region (the zero Slot
// is invalid; Offset -1 is used as an explicit "no slot" sentinel by
// some callers).
func (s Slot) IsValid() bool { return s.Type != nil && s.Offset >= 0 }

// Subslot is a slot-like view into the interior of a product or
// optional slot (spec §3: "Subslot"). It embeds Slot so that a Subslot
// can be used anywhere a Slot is expected (e.g. as a backend operator's
// input).
type Subslot struct {
	Slot
	Parent Slot
	// FieldIndex is set (>=0) when this subslot is a product field
	// projection; -1 for the presence byte or value subslot of an
	// optional.
	FieldIndex int
}

// PresenceSlot returns the one-byte presence subslot of an
// optional-of-T slot (spec §3, §4.3: "An optional-of-T... exposes a
// presence subslot").
func PresenceSlot(opt Slot) Subslot {
	if !opt.Type.IsOptional {
		panic(fmt.Sprintf("frame: PresenceSlot called on non-optional slot %s", opt))
	}
	return Subslot{
		Slot:       Slot{Type: qtype.Bool, Offset: opt.Offset},
		Parent:     opt,
		FieldIndex: -1,
	}
}

// ValueSlot returns the value subslot of an optional-of-T slot (T !=
// UNIT), at the alignment-padded offset following the presence byte.
func ValueSlot(opt Slot) Subslot {
	if !opt.Type.IsOptional {
		panic(fmt.Sprintf("frame: ValueSlot called on non-optional slot %s", opt))
	}
	elem := opt.Type.Element
	align := elem.Alignment
	if align < 1 {
		align = 1
	}
	off := alignUp(opt.Offset+1, align)
	return Subslot{
		Slot:       Slot{Type: elem, Offset: off},
		Parent:     opt,
		FieldIndex: -1,
	}
}

// FieldSlot returns the subslot of field i of a product-typed slot.
func FieldSlot(product Slot, i int) Subslot {
	if product.Type.Fields == nil {
		panic(fmt.Sprintf("frame: FieldSlot called on non-product slot %s", product))
	}
	f := product.Type.Fields[i]
	return Subslot{
		Slot:       Slot{Type: f.Type, Offset: product.Offset + f.Offset},
		Parent:     product,
		FieldIndex: i,
	}
}

func alignUp(off, align int) int {
	if align <= 1 {
		return off
	}
	if rem := off % align; rem != 0 {
		return off + (align - rem)
	}
	return off
}
