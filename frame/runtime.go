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

package frame

import (
	"encoding/binary"
	"unsafe"

	"github.com/arolla-go/arolla/qtype"
)

// Frame is the runtime byte buffer backing a Layout: the concrete
// storage a bound program reads and writes (spec §3: "Frame").
type Frame struct {
	Layout *Layout
	buf    []byte

	// refs pins the heap objects referenced by fat-pointer slots (spec
	// §3: SEQUENCE/BYTES/TEXT are "opaque... fat pointer"). buf is a
	// plain []byte and so cannot itself keep a Go pointer alive; refs
	// holds one entry per PutSequence call for the frame's lifetime.
	refs []*qtype.SequenceData
}

// NewFrame allocates a zeroed frame for l.
func NewFrame(l *Layout) *Frame {
	return &Frame{Layout: l, buf: make([]byte, l.Size)}
}

// Bytes returns the byte range backing s. Callers reinterpret it
// according to s.Type; the frame itself does not care about typed
// access, matching the teacher's raw []byte vm.stackslot storage.
func (f *Frame) Bytes(s Slot) []byte {
	return f.buf[s.Offset : s.Offset+s.Type.ByteSize]
}

// CopyInto copies one slot's storage into another same-sized region,
// used for reinterpreting-free copies between slots of the same
// ByteSize (e.g. derived-qtype reinterpretation, presence-byte views).
func (f *Frame) CopyInto(dst, src Slot) {
	copy(f.Bytes(dst), f.Bytes(src))
}

// CopyRawInto copies a raw byte row (e.g. one element of a
// qtype.SequenceData) into s, used by seq.map to stage each input
// element into its per-element slot before running the inner
// sub-program (spec §4.8).
func (f *Frame) CopyRawInto(s Slot, raw []byte) {
	copy(f.Bytes(s), raw)
}

// PutSequence stores data in s's fat-pointer slot and keeps it alive
// for the frame's lifetime (spec §4.8: "Store the frozen output
// sequence in the output slot").
func (f *Frame) PutSequence(s Slot, data *qtype.SequenceData) {
	f.refs = append(f.refs, data)
	bytes := f.Bytes(s)
	binary.LittleEndian.PutUint64(bytes[0:8], uint64(uintptr(unsafe.Pointer(data))))
	binary.LittleEndian.PutUint64(bytes[8:16], uint64(data.Len()))
}

// GetSequence reads back a *qtype.SequenceData previously stored by
// PutSequence. It is only valid to call on a slot this frame itself
// populated (the pointer is not portable across frames).
func (f *Frame) GetSequence(s Slot) *qtype.SequenceData {
	bytes := f.Bytes(s)
	addr := binary.LittleEndian.Uint64(bytes[0:8])
	return (*qtype.SequenceData)(unsafe.Pointer(uintptr(addr)))
}

// EvalContext carries the single piece of mutable state threaded
// through a bound program's evaluation ops: the first error raised, if
// any (spec §4.4: "A runtime error in any eval op is stored on the
// evaluation context and halts the program").
type EvalContext struct {
	err error
	// jump is the extra forward displacement requested by the op that
	// just ran, consumed by the program loop after each op: the next
	// instruction index becomes current+1+jump (spec §4.6: "jump<+N>()
	// and jump_if_not<+N>(...)" render as exactly this additive form).
	jump int
}

// NewEvalContext returns a fresh, error-free context.
func NewEvalContext() *EvalContext {
	return &EvalContext{}
}

// SetError records err as the context's error, if one is not already
// set. Only the first error along an evaluation is kept.
func (c *EvalContext) SetError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first error raised during evaluation, or nil.
func (c *EvalContext) Err() error { return c.err }

// Failed reports whether the context already holds an error; bound
// programs consult this between ops to halt early.
func (c *EvalContext) Failed() bool { return c.err != nil }

// Reset clears the context so it can be reused for another evaluation
// of the same (or a different) bound program.
func (c *EvalContext) Reset() { c.err = nil; c.jump = 0 }

// Jump requests that the program skip n extra instructions beyond the
// normal advance-by-one, used by packed_where's jump/jump_if_not ops
// (spec §4.6).
func (c *EvalContext) Jump(n int) { c.jump = n }

// TakeJump returns and clears the pending jump displacement.
func (c *EvalContext) TakeJump() int {
	n := c.jump
	c.jump = 0
	return n
}

// Op is one runtime evaluation step: a function of the evaluation
// context and the frame it mutates. Init ops and eval ops share this
// shape, and so do packed_where's jump ops (see package compile), which
// request a displacement through EvalContext.Jump instead of changing
// frame contents.
type Op func(ctx *EvalContext, fr *Frame)
