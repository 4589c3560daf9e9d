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

// Package fingerprint implements the content-addressing primitives used
// to identify expression nodes and typed values.
//
// Node identity (the structural fingerprint) is computed with siphash,
// which is cheap enough to recompute on every rewrite. Typed-value
// identity (the qvalue fingerprint) is computed with blake2b over the
// value's raw byte representation, since it is only computed once per
// literal rather than once per rewrite.
package fingerprint

import (
	"encoding/binary"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a 128-bit content-addressed identity.
type Fingerprint [2]uint64

// Zero is the fingerprint of no value; used as a sentinel for "absent".
var Zero Fingerprint

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Zero
}

// siphash key pairs for the two independent 64-bit halves of a node
// fingerprint. Using two distinct keys (rather than hashing twice with
// the same key) avoids correlated collisions between the halves.
const (
	nodeK0lo, nodeK1lo = 0x5345646f6e4b6579, 0x4c6f48616c66
	nodeK0hi, nodeK1hi = 0x486948616c664b65, 0x793031323334
)

// Builder incrementally accumulates bytes for a node fingerprint. It is
// analogous to hash.Hash but produces a 128-bit Fingerprint instead of a
// streamed digest, following the same buffer-then-hash pattern the
// teacher uses in its redaction hashing (siphash.Hash over an assembled
// buffer) rather than an incremental sponge.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WriteByte appends tag to the buffer; used to distinguish node kinds.
func (b *Builder) WriteByte(tag byte) {
	b.buf = append(b.buf, tag)
}

// WriteString appends a length-prefixed string, so that two different
// strings never collide on concatenation boundaries.
func (b *Builder) WriteString(s string) {
	var lenbuf [8]byte
	binary.LittleEndian.PutUint64(lenbuf[:], uint64(len(s)))
	b.buf = append(b.buf, lenbuf[:]...)
	b.buf = append(b.buf, s...)
}

// WriteUint64 appends a little-endian uint64.
func (b *Builder) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.buf = append(b.buf, buf[:]...)
}

// WriteFingerprint appends another fingerprint's bytes; used to fold a
// child's identity into a parent's.
func (b *Builder) WriteFingerprint(f Fingerprint) {
	b.WriteUint64(f[0])
	b.WriteUint64(f[1])
}

// Sum finalizes the accumulated bytes into a Fingerprint.
func (b *Builder) Sum() Fingerprint {
	return Fingerprint{
		siphash.Hash(nodeK0lo, nodeK1lo, b.buf),
		siphash.Hash(nodeK0hi, nodeK1hi, b.buf),
	}
}

// OfBytes computes the qvalue fingerprint of a typed value's raw byte
// representation using blake2b-256, truncated to 128 bits. blake2b is
// used here (rather than siphash) because typed-value bytes can be
// arbitrarily large (e.g. a literal array or string), and blake2b's
// stronger avalanche properties matter more when the input isn't a
// small, fixed-shape structural descriptor.
func OfBytes(qtypeName string, raw []byte) Fingerprint {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(qtypeName))
	h.Write([]byte{0})
	h.Write(raw)
	sum := h.Sum(nil)
	return Fingerprint{
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	}
}
