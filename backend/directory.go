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

package backend

import (
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/internal/registry"
	"github.com/arolla-go/arolla/qtype"
)

// MapDirectory is a register-then-freeze Directory backed by
// internal/registry's read-mostly map, the same concurrency pattern
// the teacher uses for its function/operator tables: registration is
// single-writer during setup, lookups afterward are lock-free (spec
// §5: "registries... expose read-only lookups after initialization...
// registration mutates them under a single writer lock and is
// expected during process startup only").
type MapDirectory struct {
	byName *registry.Directory[string, []Operator]
}

// NewMapDirectory returns an empty, mutable directory. Call Register
// for each operator, then Freeze before compiling anything against it.
func NewMapDirectory() *MapDirectory {
	return &MapDirectory{byName: registry.New[string, []Operator]()}
}

// Register adds op under its own name. Multiple operators may share a
// name (overloads distinguished by signature); Lookup disambiguates by
// input/output qtype.
func (d *MapDirectory) Register(op Operator) {
	existing, _ := d.byName.Lookup(op.Name())
	d.byName.Register(op.Name(), append(existing, op))
}

// Freeze locks the directory against further registration.
func (d *MapDirectory) Freeze() { d.byName.Freeze() }

// Lookup implements Directory.
func (d *MapDirectory) Lookup(name string, inputQTypes []*qtype.QType, outputQType *qtype.QType) (Operator, bool) {
	candidates, ok := d.byName.Lookup(name)
	if !ok {
		return nil, false
	}
	for _, op := range candidates {
		if signatureMatches(op, inputQTypes, outputQType) {
			return op, true
		}
	}
	return nil, false
}

func signatureMatches(op Operator, inputQTypes []*qtype.QType, outputQType *qtype.QType) bool {
	want := op.InputQTypes()
	if len(want) != len(inputQTypes) {
		return false
	}
	for i, t := range want {
		if !t.Equal(inputQTypes[i]) {
			return false
		}
	}
	return outputQType == nil || op.OutputQType().Equal(outputQType)
}

// reinterpretOp emits a copy between two same-sized slots, used for
// derived-qtype up/downcasts: the bytes are unchanged, only the static
// type attached to the slot differs (spec §4.4: "Derived qtype
// up/downcast | Emit a reinterpretation of the same bytes under the
// new qtype").
func reinterpretOp(in, out frame.Slot) frame.Op {
	return func(ctx *frame.EvalContext, fr *frame.Frame) {
		fr.CopyInto(out, in)
	}
}

// NewReinterpretCast returns a CastingDirectory-compatible operator
// that reinterprets from's bytes as to without conversion; valid only
// when from and to share the same ByteSize (derived/base qtype pairs
// always do, by construction in package qtype).
func NewReinterpretCast(from, to *qtype.QType) Operator {
	return NewOperator(to.Name+"_from_"+from.Name, []*qtype.QType{from}, to,
		func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
			return reinterpretOp(in[0], out), nil
		})
}

// DerivedCastingDirectory is the built-in CastingDirectory covering
// the only casts the compiler itself understands: a derived qtype and
// its base are always zero-cost reinterpretations of one another (spec
// §3). Anything else (numeric conversions, array broadcasts) is an
// external collaborator; callers wanting those compose their own
// CastingDirectory, falling back to DerivedCastingDirectory for the
// base case.
type DerivedCastingDirectory struct{}

func (DerivedCastingDirectory) Cast(from, to *qtype.QType) (Operator, bool) {
	if from.Equal(to) {
		return NewReinterpretCast(from, to), true
	}
	if from.Base != nil && from.Base.Equal(to) {
		return NewReinterpretCast(from, to), true
	}
	if to.Base != nil && to.Base.Equal(from) {
		return NewReinterpretCast(from, to), true
	}
	return nil, false
}

func (DerivedCastingDirectory) Broadcast(from *qtype.QType, shapeOf *qtype.QType) (Operator, bool) {
	return nil, false
}
