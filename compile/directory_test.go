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

package compile

import (
	"fmt"

	"github.com/arolla-go/arolla/backend"
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/qtype"
)

// testBackends returns a small arithmetic directory covering every
// scenario this package's tests exercise: math.add/math.mul/math.sub
// (INT64), math.div (INT64, sets a runtime error on division by zero),
// int.mod (Go's truncated remainder, a % b) and int.ne_zero (INT64 ->
// OPTIONAL[UNIT] presence test, used as a while loop condition).
func testBackends() *backend.MapDirectory {
	d := backend.NewMapDirectory()
	d.Register(binaryInt64Op("math.add", func(a, b int64) int64 { return a + b }))
	d.Register(binaryInt64Op("math.mul", func(a, b int64) int64 { return a * b }))
	d.Register(binaryInt64Op("math.sub", func(a, b int64) int64 { return a - b }))
	d.Register(binaryInt64Op("int.mod", func(a, b int64) int64 { return a % b }))
	d.Register(backend.NewOperator("math.div", []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64,
		func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
			return func(ctx *frame.EvalContext, fr *frame.Frame) {
				a := qtype.DecodeInt64(fr.Bytes(in[0]))
				b := qtype.DecodeInt64(fr.Bytes(in[1]))
				if b == 0 {
					ctx.SetError(fmt.Errorf("math.div: division by zero"))
					return
				}
				fr.CopyRawInto(out, qtype.Int64Value(a/b).Raw)
			}, nil
		}))
	d.Register(backend.NewOperator("int.ne_zero", []*qtype.QType{qtype.Int64}, qtype.Optional(qtype.Unit),
		func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
			return func(ctx *frame.EvalContext, fr *frame.Frame) {
				v := qtype.DecodeInt64(fr.Bytes(in[0]))
				presence := frame.PresenceSlot(out)
				if v != 0 {
					fr.Bytes(presence.Slot)[0] = 1
				} else {
					fr.Bytes(presence.Slot)[0] = 0
				}
			}, nil
		}))
	d.Freeze()
	return d
}

func binaryInt64Op(name string, fn func(a, b int64) int64) backend.Operator {
	return backend.NewOperator(name, []*qtype.QType{qtype.Int64, qtype.Int64}, qtype.Int64,
		func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
			return func(ctx *frame.EvalContext, fr *frame.Frame) {
				a := qtype.DecodeInt64(fr.Bytes(in[0]))
				b := qtype.DecodeInt64(fr.Bytes(in[1]))
				fr.CopyRawInto(out, qtype.Int64Value(fn(a, b)).Raw)
			}, nil
		})
}
