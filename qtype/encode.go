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
	"encoding/binary"
	"math"
)

// The codecs below implement the minimal in-memory representation
// needed to exercise the compiler's own tests and the CLI fixture
// runner; real scalar kernels are a backend-operator concern (spec §1
// non-goals).

func encodeInt64(i int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(i))
	return buf
}

func DecodeInt64(raw []byte) int64 {
	return int64(binary.LittleEndian.Uint64(raw))
}

func encodeFloat32(f float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
	return buf
}

func DecodeFloat32(raw []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(raw))
}

func encodeFloat64(f float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	return buf
}

func DecodeFloat64(raw []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(raw))
}

func DecodeBool(raw []byte) bool {
	return raw[0] != 0
}
