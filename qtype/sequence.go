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

package qtype

// SequenceData is the backing store a SEQUENCE[T] fat-pointer slot
// refers to (spec §3, §4.8): an immutable vector of element byte
// rows. Package frame keeps the *SequenceData alive for the life of
// the Frame it is stored in (see Frame.PutSequence); the 16-byte slot
// itself only ever holds an opaque reference plus the length, matching
// the "fat pointer, opaque to the core" representation of SEQUENCE and
// BYTES/TEXT qtypes.
type SequenceData struct {
	Element *QType
	Elems   [][]byte
}

// NewSequenceData returns a frozen sequence of elem-typed rows. elems
// is taken by reference, not copied; callers that build a mutable
// sequence row-by-row (seq.map's output construction) must stop
// mutating it once it is stored in a slot.
func NewSequenceData(elem *QType, elems [][]byte) *SequenceData {
	return &SequenceData{Element: elem, Elems: elems}
}

// Len returns the number of elements.
func (s *SequenceData) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Elems)
}
