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

// Package qtype describes runtime type descriptors (QTypes) and the
// typed values that carry them. The compiler treats the catalog of
// concrete QTypes as an external collaborator (spec §1 non-goals); this
// package supplies only the descriptor shape and the small built-in set
// needed to compile and test the core (scalars, optionals, products).
package qtype

import (
	"fmt"

	"github.com/arolla-go/arolla/internal/fingerprint"
)

// QType is a runtime type descriptor. QTypes are immutable and
// compared by pointer identity once registered (spec §3: "Runtime type
// descriptor").
type QType struct {
	Name      string
	ByteSize  int
	Alignment int

	// Element is set for containers/optionals: the element's QType.
	Element *QType

	// Fields is set for product types: one entry per field, in order.
	Fields []Field

	// Base is set for derived qtypes: the qtype this one decays to.
	// All casts between a derived qtype and its Base are zero-cost
	// reinterpretations (spec §3).
	Base *QType

	// IsOptional marks a qtype assembled by Optional(elem): its byte
	// layout is a one-byte presence flag followed by Element.
	IsOptional bool

	// IsSequence marks a qtype assembled by Sequence(elem): a
	// variable-length homogeneous sequence, represented at runtime as
	// a fat pointer (ptr, len) to an immutable backing array of
	// Element, the container spec §4.8's seq.map operates over.
	IsSequence bool

	fp fingerprint.Fingerprint
}

// Field describes one member of a product QType.
type Field struct {
	Name   string
	Type   *QType
	Offset int // byte offset within the product's region
}

// Fingerprint returns the qtype's own structural fingerprint, computed
// once at registration/construction time.
func (t *QType) Fingerprint() fingerprint.Fingerprint { return t.fp }

// String implements fmt.Stringer.
func (t *QType) String() string {
	if t == nil {
		return "<nil qtype>"
	}
	return t.Name
}

// DecaysTo returns the base of a derived qtype, or t itself if t is not
// derived.
func (t *QType) DecaysTo() *QType {
	if t.Base != nil {
		return t.Base
	}
	return t
}

// Equal reports whether two qtypes are the same registered type.
// QTypes are deduplicated by construction (see registerScalar/Optional/
// Product), so pointer equality suffices, but Fingerprint equality is
// also checked defensively for qtypes built outside the registry.
func (t *QType) Equal(o *QType) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return t.fp == o.fp
}

func computeFingerprint(kind string, parts ...any) fingerprint.Fingerprint {
	b := fingerprint.NewBuilder()
	b.WriteString(kind)
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			b.WriteString(v)
		case int:
			b.WriteUint64(uint64(v))
		case fingerprint.Fingerprint:
			b.WriteFingerprint(v)
		default:
			panic(fmt.Sprintf("qtype: unsupported fingerprint part %T", p))
		}
	}
	return b.Sum()
}
