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

import (
	"fmt"
	"sync"

	"github.com/arolla-go/arolla/internal/registry"
)

// builtins is the process-wide, read-mostly scalar/container catalog.
// It follows the startup-then-freeze discipline of spec §5/§9: scalar
// qtypes register during package init, and Optional/Product variants
// are memoized lazily under a single writer lock so that structurally
// identical container qtypes are pointer-identical.
var builtins = registry.New[string, *QType]()

var (
	// Unit is the zero-byte type used as the element of presence-only
	// optionals (spec §3, §4.4: "core.has._optional on an optional
	// type").
	Unit = registerScalar("UNIT", 0, 1)

	Bool    = registerScalar("BOOLEAN", 1, 1)
	Int32   = registerScalar("INT32", 4, 4)
	Int64   = registerScalar("INT64", 8, 8)
	Float32 = registerScalar("FLOAT32", 4, 4)
	Float64 = registerScalar("FLOAT64", 8, 8)
	Bytes   = registerScalar("BYTES", 16, 8) // (ptr, len) fat pointer, opaque to the core
	Text    = registerScalar("TEXT", 16, 8)

	// QTYPE is the distinguished qtype that represents a qtype value
	// itself (spec §3: "A distinguished QTYPE qtype represents qtypes
	// as values").
	QTYPE = registerScalar("QTYPE", 8, 8)
)

func registerScalar(name string, size, align int) *QType {
	t := &QType{Name: name, ByteSize: size, Alignment: align}
	t.fp = computeFingerprint("scalar", name, size, align)
	builtins.Register(name, t)
	return t
}

var (
	optionalMu    sync.Mutex
	optionalCache = map[*QType]*QType{}
	productMu     sync.Mutex
	productCache  = map[string]*QType{}
	derivedMu     sync.Mutex
	derivedCache  = map[string]*QType{}
)

// Optional returns (constructing and memoizing if necessary) the
// optional-of-elem qtype: a one-byte presence flag followed by elem's
// bytes, aligned to elem's alignment (spec §3: "an optional-of-T slot
// exposes a presence subslot... and a value subslot").
func Optional(elem *QType) *QType {
	optionalMu.Lock()
	defer optionalMu.Unlock()
	if t, ok := optionalCache[elem]; ok {
		return t
	}
	align := elem.Alignment
	if align < 1 {
		align = 1
	}
	valueOff := alignUp(1, align)
	t := &QType{
		Name:       "OPTIONAL[" + elem.Name + "]",
		ByteSize:   alignUp(valueOff+elem.ByteSize, align),
		Alignment:  align,
		Element:    elem,
		IsOptional: true,
	}
	t.fp = computeFingerprint("optional", elem.Fingerprint())
	optionalCache[elem] = t
	return t
}

var (
	sequenceMu    sync.Mutex
	sequenceCache = map[*QType]*QType{}
)

// Sequence returns (constructing and memoizing if necessary) the
// sequence-of-elem qtype used by seq.map (spec §4.8): a fat pointer to
// an immutable backing array of elem.
func Sequence(elem *QType) *QType {
	sequenceMu.Lock()
	defer sequenceMu.Unlock()
	if t, ok := sequenceCache[elem]; ok {
		return t
	}
	t := &QType{
		Name:       "SEQUENCE[" + elem.Name + "]",
		ByteSize:   16, // (ptr, len) fat pointer; opaque to the core
		Alignment:  8,
		Element:    elem,
		IsSequence: true,
	}
	t.fp = computeFingerprint("sequence", elem.Fingerprint())
	sequenceCache[elem] = t
	return t
}

// SequenceElement returns t's element type and true if t is a sequence
// qtype.
func SequenceElement(t *QType) (*QType, bool) {
	if t == nil || !t.IsSequence {
		return nil, false
	}
	return t.Element, true
}

// IsUnitOptional reports whether t is OPTIONAL[UNIT], the
// presence-only type used as the condition of a short-circuit `where`
// and as the output of core.has._optional and boolean-optional
// comparisons (spec §4.6).
func IsUnitOptional(t *QType) bool {
	return t != nil && t.IsOptional && t.Element == Unit
}

// Product returns (constructing and memoizing if necessary) a product
// qtype with the given fields laid out at increasing, alignment-padded
// offsets.
func Product(name string, fieldTypes ...*QType) *QType {
	key := name
	for _, f := range fieldTypes {
		key += "|" + f.Name
	}
	productMu.Lock()
	defer productMu.Unlock()
	if t, ok := productCache[key]; ok {
		return t
	}
	fields := make([]Field, len(fieldTypes))
	off := 0
	maxAlign := 1
	for i, ft := range fieldTypes {
		a := ft.Alignment
		if a < 1 {
			a = 1
		}
		off = alignUp(off, a)
		fields[i] = Field{Name: fmt.Sprintf("f%d", i), Type: ft, Offset: off}
		off += ft.ByteSize
		if a > maxAlign {
			maxAlign = a
		}
	}
	t := &QType{
		Name:      name,
		ByteSize:  alignUp(off, maxAlign),
		Alignment: maxAlign,
		Fields:    fields,
	}
	parts := []any{name}
	for _, ft := range fieldTypes {
		parts = append(parts, ft.Fingerprint())
	}
	t.fp = computeFingerprint("product", parts...)
	productCache[key] = t
	return t
}

// Derived returns (constructing and memoizing if necessary) a qtype
// that decays to base under the given name: all casts between the
// derived type and base are zero-cost reinterpretations of the same
// bytes (spec §3, §4.4 "Derived qtype up/downcast").
func Derived(name string, base *QType) *QType {
	derivedMu.Lock()
	defer derivedMu.Unlock()
	key := name + "|" + base.Name
	if t, ok := derivedCache[key]; ok {
		return t
	}
	t := &QType{
		Name:      name,
		ByteSize:  base.ByteSize,
		Alignment: base.Alignment,
		Base:      base,
	}
	t.fp = computeFingerprint("derived", name, base.Fingerprint())
	derivedCache[key] = t
	return t
}

func alignUp(off, align int) int {
	if align <= 1 {
		return off
	}
	rem := off % align
	if rem == 0 {
		return off
	}
	return off + (align - rem)
}

// Lookup returns a registered scalar qtype by name.
func Lookup(name string) (*QType, bool) {
	return builtins.Lookup(name)
}

func init() {
	builtins.Freeze()
}
