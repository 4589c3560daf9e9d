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

package expr

import (
	"fmt"

	"github.com/arolla-go/arolla/qtype"
)

// This file defines the small set of builtin operators the evaluation
// visitor must recognize by concrete type (spec §4.4's dispatch
// table). Real backend operator semantics (math.add, math.floordiv,
// etc.) are an external collaborator (spec §1); BackendOp below is a
// placeholder that only carries the statically-declared signature a
// caller supplies, since polymorphic type inference of backend
// operators is explicitly out of scope (spec §1 non-goals).

// BackendOp is a reference to an operator dispatched by name at
// evaluation time (spec §3: "backend... dispatched to the backend
// registry by name + input qtypes"). Because inferring a backend
// operator's output type from its inputs is out of scope here, a
// BackendOp is constructed with its output type already fixed by the
// caller (mirroring how a parser/front-end — also out of scope — would
// normally consult the real backend registry to resolve this).
type BackendOp struct {
	baseOp
	InputTypes []*qtype.QType
	OutputType *qtype.QType
}

// NewBackendOp constructs a backend-tagged operator named name.
func NewBackendOp(name string, inputTypes []*qtype.QType, outputType *qtype.QType) *BackendOp {
	params := make([]Param, len(inputTypes))
	for i := range inputTypes {
		params[i] = Param{Name: fmt.Sprintf("arg%d", i)}
	}
	return &BackendOp{
		baseOp:     newBaseOp(name, TagBackend, Signature{Positional: params}),
		InputTypes: inputTypes,
		OutputType: outputType,
	}
}

func (b *BackendOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != len(b.InputTypes) {
		return Attributes{}, fmt.Errorf("%s: expected %d args, got %d", b.name, len(b.InputTypes), len(inputs))
	}
	for i, in := range inputs {
		if in.QType == nil {
			return Attributes{}, fmt.Errorf("%s: argument %d has no qtype", b.name, i)
		}
		if !in.QType.Equal(b.InputTypes[i]) {
			return Attributes{}, fmt.Errorf("%s: argument %d has qtype %s, want %s", b.name, i, in.QType, b.InputTypes[i])
		}
	}
	return Attributes{QType: b.OutputType}, nil
}

// QTypeAnnotation wraps a leaf to record an externally-supplied qtype
// (spec §4.2 stage 1). It is an annotation-tagged operator: identity at
// runtime. Stage 1 strips it where the inner node already carries the
// same qtype, and stage 4 strips it unless it directly wraps a leaf; the
// leaf itself is not retyped, so an annotation over a leaf stays in the
// prepared expression (spec §4.2 stage 1, stage 4).
type QTypeAnnotation struct {
	baseOp
	QType *qtype.QType
}

// NewQTypeAnnotation constructs the annotation operator for qt.
func NewQTypeAnnotation(qt *qtype.QType) *QTypeAnnotation {
	return &QTypeAnnotation{
		baseOp: newBaseOp("annotation.qtype["+qt.Name+"]", TagAnnotation, Signature{Positional: []Param{{Name: "value"}}}),
		QType:  qt,
	}
}

func (a *QTypeAnnotation) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 1 {
		return Attributes{}, fmt.Errorf("qtype annotation expects exactly 1 argument, got %d", len(inputs))
	}
	in := inputs[0]
	if in.QType != nil && !in.QType.Equal(a.QType) {
		return Attributes{}, fmt.Errorf("inconsistent qtype annotation: inner node has qtype %s, annotation requests %s", in.QType, a.QType)
	}
	in.QType = a.QType
	return in, nil
}

// MetadataAnnotation is a generic non-qtype annotation (e.g. a naming
// hint), stripped unconditionally by preparation stage 4 (spec §4.2
// stage 4: "Strip non-qtype annotations"). It is identity at runtime
// and identity on attribute inference.
type MetadataAnnotation struct {
	baseOp
	Note string
}

// NewMetadataAnnotation constructs a generic annotation carrying note.
func NewMetadataAnnotation(note string) *MetadataAnnotation {
	return &MetadataAnnotation{
		baseOp: newBaseOp("annotation.meta["+note+"]", TagAnnotation, Signature{Positional: []Param{{Name: "value"}}}),
		Note:   note,
	}
}

func (a *MetadataAnnotation) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 1 {
		return Attributes{}, fmt.Errorf("metadata annotation expects exactly 1 argument, got %d", len(inputs))
	}
	return inputs[0], nil
}

// TupleOp groups its children into a single product-typed value (spec
// §4.4: "handling special node kinds (tuples...)").
type TupleOp struct {
	baseOp
}

// NewTupleOp returns the builtin tuple operator.
func NewTupleOp() *TupleOp {
	return &TupleOp{baseOp: newBaseOp("core.make_tuple", TagBuiltin, Signature{Variadic: &Param{Name: "elements"}})}
}

func (t *TupleOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	types := make([]*qtype.QType, len(inputs))
	for i, in := range inputs {
		if in.QType == nil {
			return Attributes{}, fmt.Errorf("core.make_tuple: argument %d has no qtype", i)
		}
		types[i] = in.QType
	}
	return Attributes{QType: qtype.Product("TUPLE", types...)}, nil
}

// RootOp wraps a main output expression together with zero or more
// named side-output expressions into a single tuple-typed node (spec
// §4.4: "Root-marker operator... carries main output + side outputs in
// a single tuple"). Children()[0] is the main output; Children()[1:]
// correspond 1:1 with Names.
type RootOp struct {
	baseOp
	Names []string
}

// NewRootOp returns a root-marker operator exporting the given
// side-output names (in the same order the side-output children will
// be supplied).
func NewRootOp(names []string) *RootOp {
	return &RootOp{
		baseOp: newBaseOp("core._root", TagBuiltin, Signature{Variadic: &Param{Name: "outputs"}}),
		Names:  append([]string(nil), names...),
	}
}

func (r *RootOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 1+len(r.Names) {
		return Attributes{}, fmt.Errorf("core._root: expected 1 main + %d side outputs, got %d children", len(r.Names), len(inputs))
	}
	if inputs[0].QType == nil {
		return Attributes{}, fmt.Errorf("core._root: main output has no qtype")
	}
	return Attributes{QType: inputs[0].QType}, nil
}

// GetNthOp projects field i out of a product-typed value (spec §4.4:
// "core.get_nth on a product type | Emit a subslot view rather than a
// copy").
type GetNthOp struct {
	baseOp
	Index int
}

// NewGetNthOp returns the field-projection operator for field index i.
func NewGetNthOp(i int) *GetNthOp {
	return &GetNthOp{
		baseOp: newBaseOp(fmt.Sprintf("core.get_nth[%d]", i), TagBuiltin, Signature{Positional: []Param{{Name: "tuple"}}}),
		Index:  i,
	}
}

func (g *GetNthOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 1 {
		return Attributes{}, fmt.Errorf("core.get_nth: expected 1 argument, got %d", len(inputs))
	}
	t := inputs[0].QType
	if t == nil || t.Fields == nil {
		return Attributes{}, fmt.Errorf("core.get_nth: argument is not a product qtype")
	}
	if g.Index < 0 || g.Index >= len(t.Fields) {
		return Attributes{}, fmt.Errorf("core.get_nth: index %d out of range for %d fields", g.Index, len(t.Fields))
	}
	return Attributes{QType: t.Fields[g.Index].Type}, nil
}

// HasOptionalOp is core.has._optional: reports the presence bit of an
// optional value as a boolean (spec §4.4: "core.has._optional on an
// optional type | Emit a zero-cost reinterpretation").
type HasOptionalOp struct {
	baseOp
}

// NewHasOptionalOp returns the builtin presence-test operator.
func NewHasOptionalOp() *HasOptionalOp {
	return &HasOptionalOp{baseOp: newBaseOp("core.has._optional", TagBuiltin, Signature{Positional: []Param{{Name: "value"}}})}
}

func (h *HasOptionalOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 1 {
		return Attributes{}, fmt.Errorf("core.has._optional: expected 1 argument, got %d", len(inputs))
	}
	t := inputs[0].QType
	if t == nil || !t.IsOptional {
		return Attributes{}, fmt.Errorf("core.has._optional: argument is not an optional qtype")
	}
	return Attributes{QType: qtype.Bool}, nil
}

// CastOp reinterprets the same bytes under a derived/base qtype pair
// (spec §4.4: "Derived qtype up/downcast | Emit a reinterpretation of
// the same bytes under the new qtype").
type CastOp struct {
	baseOp
	To *qtype.QType
}

// NewCastOp returns the builtin derived-qtype cast operator targeting
// to (either the derived type, for an upcast, or its Base, for a
// downcast).
func NewCastOp(to *qtype.QType) *CastOp {
	return &CastOp{
		baseOp: newBaseOp("core.cast["+to.Name+"]", TagBuiltin, Signature{Positional: []Param{{Name: "value"}}}),
		To:     to,
	}
}

func (c *CastOp) InferAttributes(inputs []Attributes) (Attributes, error) {
	if len(inputs) != 1 {
		return Attributes{}, fmt.Errorf("core.cast: expected 1 argument, got %d", len(inputs))
	}
	from := inputs[0].QType
	if from == nil {
		return Attributes{}, fmt.Errorf("core.cast: argument has no qtype")
	}
	if !(from.DecaysTo().Equal(c.To.DecaysTo())) {
		return Attributes{}, fmt.Errorf("core.cast: %s and %s do not share a base qtype", from, c.To)
	}
	return Attributes{QType: c.To}, nil
}
