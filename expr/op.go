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

import "github.com/arolla-go/arolla/internal/fingerprint"

// Tag marks how an operator is handled by the evaluation visitor (spec
// §3: "tag markers: builtin... backend... annotation").
type Tag int

const (
	// TagNone means the operator is none of builtin/backend/annotation
	// and must be lowered (spec §4.2 stage 3) before it can appear in a
	// prepared expression.
	TagNone Tag = iota
	// TagBuiltin operators are handled directly by the evaluation
	// visitor (spec §4.4 dispatch table).
	TagBuiltin
	// TagBackend operators are dispatched to the backend registry by
	// name + input qtypes (spec §4.4).
	TagBackend
	// TagAnnotation operators are identity at runtime and carry only
	// metadata; stripped during preparation stage 4 except for qtype
	// annotations on leaves (spec §4.2 stage 4).
	TagAnnotation
)

// Signature describes an operator's parameter shape: a fixed positional
// prefix plus an optional variadic-positional tail (spec §3:
// "signature (positional + variadic-positional parameter list)").
type Signature struct {
	Positional []Param
	// Variadic, if non-nil, describes the type of any further
	// arguments beyond len(Positional).
	Variadic *Param
}

// Param is one parameter of a Signature.
type Param struct {
	Name string
}

// Arity reports whether n arguments satisfy sig.
func (sig Signature) Arity(n int) bool {
	if n < len(sig.Positional) {
		return false
	}
	if sig.Variadic == nil {
		return n == len(sig.Positional)
	}
	return true
}

// Op is the polymorphic operator capability set (spec §3: "Polymorphic
// over a small capability set"). Concrete operators (the backend
// registry's scalar implementations, user-defined composite operators)
// are out of scope (spec §1); this package defines only the interface
// and a handful of builtin operators the evaluation visitor must
// recognize by identity (spec §4.4 dispatch table, §4.6-§4.8).
type Op interface {
	// DisplayName is the operator's human-readable name, used in debug
	// strings and error messages.
	DisplayName() string
	// Signature describes the operator's parameter shape.
	Signature() Signature
	// InferAttributes computes the node's Attributes from its
	// children's Attributes (spec §3: "An operator node's attributes
	// equal op.infer_attributes(children.attributes)").
	InferAttributes(inputs []Attributes) (Attributes, error)
	// Tag reports how the evaluation visitor should treat nodes using
	// this operator.
	Tag() Tag
	// Fingerprint identifies this operator instance; operators that
	// are semantically interchangeable (same name, same behavior) must
	// return equal fingerprints (spec §3: "Operator fingerprints
	// identify equivalent instances").
	Fingerprint() fingerprint.Fingerprint
}

// Lowerable is implemented by operators expressible in terms of
// lower-level ones (spec §3: "optional to_lower(node) -> node").
type Lowerable interface {
	Op
	// ToLower rewrites node (whose Op is this Lowerable) into an
	// equivalent node built from other operators. It returns
	// (nil, false, nil) if no further lowering applies (e.g. the
	// operator's to_lower is conditional on the node's current
	// attributes).
	ToLower(node *Operator) (Node, bool, error)
}

// baseOp is embedded by the builtin operator types defined in this
// package (control-flow markers, qtype annotation, root marker) to
// share the boilerplate Signature/Fingerprint/Tag plumbing, mirroring
// how the teacher's expr.Comparison/expr.StringMatch share an *Op
// backing struct for their operator metadata.
type baseOp struct {
	name string
	sig  Signature
	tag  Tag
	fp   fingerprint.Fingerprint
}

func newBaseOp(name string, tag Tag, sig Signature) baseOp {
	b := fingerprint.NewBuilder()
	b.WriteString("op:" + name)
	return baseOp{name: name, sig: sig, tag: tag, fp: b.Sum()}
}

func (b baseOp) DisplayName() string                  { return b.name }
func (b baseOp) Signature() Signature                 { return b.sig }
func (b baseOp) Tag() Tag                              { return b.tag }
func (b baseOp) Fingerprint() fingerprint.Fingerprint { return b.fp }
