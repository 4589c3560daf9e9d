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

	"github.com/arolla-go/arolla/internal/fingerprint"
)

// Value is an owned (qtype, bytes) pair with value-semantic identity
// (spec §3: "Typed value. An owned (qtype, bytes) pair with
// value-semantic fingerprint").
type Value struct {
	Type *QType
	Raw  []byte

	fp    fingerprint.Fingerprint
	fpSet bool
}

// NewValue copies raw and returns a Value of the given qtype. Copying
// is required because the core never assumes ownership of caller
// buffers outside of a Frame (spec §3 lifetimes).
func NewValue(t *QType, raw []byte) Value {
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return Value{Type: t, Raw: buf}
}

// Fingerprint computes (and memoizes) the value's content fingerprint.
func (v *Value) Fingerprint() fingerprint.Fingerprint {
	if !v.fpSet {
		v.fp = fingerprint.OfBytes(v.Type.Name, v.Raw)
		v.fpSet = true
	}
	return v.fp
}

// String implements fmt.Stringer with a short debug rendering, used by
// the compile-time error annotator (spec §7: "truncated to ~200
// characters").
func (v Value) String() string {
	return fmt.Sprintf("%s{%d bytes}", v.Type, len(v.Raw))
}

// BoolValue, Int64Value, Float32Value, Float64Value construct scalar
// values of the matching built-in qtype. These are convenience
// constructors for tests and the CLI fixture loader; the core operator
// semantics for arithmetic etc. are out of scope (spec §1 non-goals).
func BoolValue(b bool) Value {
	v := byte(0)
	if b {
		v = 1
	}
	return NewValue(Bool, []byte{v})
}

func Int64Value(i int64) Value {
	return NewValue(Int64, encodeInt64(i))
}

func Float32Value(f float32) Value {
	return NewValue(Float32, encodeFloat32(f))
}

func Float64Value(f float64) Value {
	return NewValue(Float64, encodeFloat64(f))
}
