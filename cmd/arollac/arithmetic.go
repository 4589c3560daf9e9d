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

package main

import (
	"encoding/binary"
	"math"

	"github.com/arolla-go/arolla/backend"
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/qtype"
)

// arithmeticDirectory is the small built-in backend.Directory this
// command exercises the compiler against: math.add/sub/mul/neg over
// INT64 and FLOAT64, plus math.eq over either into a BOOLEAN (spec §6
// calls out that real backend semantics are an external collaborator;
// this is the stand-in a deployment would otherwise supply).
type arithmeticDirectory struct {
	ops map[string]backend.Operator
}

func newArithmeticDirectory() *arithmeticDirectory {
	d := &arithmeticDirectory{ops: map[string]backend.Operator{}}
	d.addBinary("math.add", qtype.Int64, func(a, b int64) int64 { return a + b })
	d.addBinary("math.sub", qtype.Int64, func(a, b int64) int64 { return a - b })
	d.addBinary("math.mul", qtype.Int64, func(a, b int64) int64 { return a * b })
	d.addBinaryFloat("math.add", qtype.Float64, func(a, b float64) float64 { return a + b })
	d.addBinaryFloat("math.sub", qtype.Float64, func(a, b float64) float64 { return a - b })
	d.addBinaryFloat("math.mul", qtype.Float64, func(a, b float64) float64 { return a * b })
	d.addUnary("math.neg", qtype.Int64, func(a int64) int64 { return -a })
	d.addUnaryFloat("math.neg", qtype.Float64, func(a float64) float64 { return -a })
	d.addCompare("math.eq", qtype.Int64, func(a, b int64) bool { return a == b })
	d.addCompareFloat("math.eq", qtype.Float64, func(a, b float64) bool { return a == b })
	return d
}

func key(name string, in []*qtype.QType, out *qtype.QType) string {
	s := name + "|" + out.Name
	for _, t := range in {
		s += "|" + t.Name
	}
	return s
}

func (d *arithmeticDirectory) Lookup(name string, in []*qtype.QType, out *qtype.QType) (backend.Operator, bool) {
	op, ok := d.ops[key(name, in, out)]
	return op, ok
}

func (d *arithmeticDirectory) addBinary(name string, t *qtype.QType, fn func(a, b int64) int64) {
	op := backend.NewOperator(name, []*qtype.QType{t, t}, t, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {
			a := int64(binary.LittleEndian.Uint64(fr.Bytes(in[0])))
			b := int64(binary.LittleEndian.Uint64(fr.Bytes(in[1])))
			binary.LittleEndian.PutUint64(fr.Bytes(out), uint64(fn(a, b)))
		}, nil
	})
	d.ops[key(name, []*qtype.QType{t, t}, t)] = op
}

func (d *arithmeticDirectory) addUnary(name string, t *qtype.QType, fn func(a int64) int64) {
	op := backend.NewOperator(name, []*qtype.QType{t}, t, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {
			a := int64(binary.LittleEndian.Uint64(fr.Bytes(in[0])))
			binary.LittleEndian.PutUint64(fr.Bytes(out), uint64(fn(a)))
		}, nil
	})
	d.ops[key(name, []*qtype.QType{t}, t)] = op
}

func (d *arithmeticDirectory) addBinaryFloat(name string, t *qtype.QType, fn func(a, b float64) float64) {
	op := backend.NewOperator(name, []*qtype.QType{t, t}, t, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {
			a := math.Float64frombits(binary.LittleEndian.Uint64(fr.Bytes(in[0])))
			b := math.Float64frombits(binary.LittleEndian.Uint64(fr.Bytes(in[1])))
			binary.LittleEndian.PutUint64(fr.Bytes(out), math.Float64bits(fn(a, b)))
		}, nil
	})
	d.ops[key(name, []*qtype.QType{t, t}, t)] = op
}

func (d *arithmeticDirectory) addUnaryFloat(name string, t *qtype.QType, fn func(a float64) float64) {
	op := backend.NewOperator(name, []*qtype.QType{t}, t, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {
			a := math.Float64frombits(binary.LittleEndian.Uint64(fr.Bytes(in[0])))
			binary.LittleEndian.PutUint64(fr.Bytes(out), math.Float64bits(fn(a)))
		}, nil
	})
	d.ops[key(name, []*qtype.QType{t}, t)] = op
}

func (d *arithmeticDirectory) addCompare(name string, t *qtype.QType, fn func(a, b int64) bool) {
	op := backend.NewOperator(name, []*qtype.QType{t, t}, qtype.Bool, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {
			a := int64(binary.LittleEndian.Uint64(fr.Bytes(in[0])))
			b := int64(binary.LittleEndian.Uint64(fr.Bytes(in[1])))
			v := byte(0)
			if fn(a, b) {
				v = 1
			}
			fr.Bytes(out)[0] = v
		}, nil
	})
	d.ops[key(name, []*qtype.QType{t, t}, qtype.Bool)] = op
}

func (d *arithmeticDirectory) addCompareFloat(name string, t *qtype.QType, fn func(a, b float64) bool) {
	op := backend.NewOperator(name, []*qtype.QType{t, t}, qtype.Bool, func(in []frame.Slot, out frame.Slot) (frame.Op, error) {
		return func(ctx *frame.EvalContext, fr *frame.Frame) {
			a := math.Float64frombits(binary.LittleEndian.Uint64(fr.Bytes(in[0])))
			b := math.Float64frombits(binary.LittleEndian.Uint64(fr.Bytes(in[1])))
			v := byte(0)
			if fn(a, b) {
				v = 1
			}
			fr.Bytes(out)[0] = v
		}, nil
	})
	d.ops[key(name, []*qtype.QType{t, t}, qtype.Bool)] = op
}
