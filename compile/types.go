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

// Package compile implements the evaluation visitor (spec §4.4): it
// walks a prepared expression in post-order, asks the slot allocator
// for each node's output slot, and emits one init or eval operation per
// node into an executable builder. It also owns the three control-flow
// compilers that need more than one emitted op per node: conditional
// short-circuiting (where.go, spec §4.6), bounded loops (while.go,
// spec §4.7), and sequence map (seqmap.go, spec §4.8).
//
// The visitor is grounded on the teacher's vm.compile (vm/exprcompile.go):
// a post-order expr.Node walk maintaining a value cache keyed by node
// identity, dispatching on concrete Go type, and threading a single
// *prog builder throughout. This package generalizes that shape from a
// fixed SIMD bytecode target to the general byte-offset frame model.
package compile

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arolla-go/arolla/backend"
	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/frame"
	"github.com/arolla-go/arolla/internal/logging"
	"github.com/arolla-go/arolla/qtype"
	"github.com/arolla-go/arolla/trace"
)

// Options controls a single compilation (spec §6: "Compile options: a
// bit-mask of enabled preparation stages [owned by package prepare], a
// flag for description-capturing (debug), an optimizer callback [also
// prepare's], a flag for input-slot overwriting, a flag for stack-trace
// detail, and an optional override for the backend-operator directory").
type Options struct {
	// Backends resolves backend-operator nodes to their bound
	// implementation. Required for any expression containing a
	// TagBackend operator.
	Backends backend.Directory
	// Casting is carried in the options but no compile step reads it:
	// visitBackend's fallback for a missing exact (name, input qtypes,
	// output qtype) entry consults Backends only.
	Casting backend.CastingDirectory
	// Extensions is consulted for operators the dispatch table does not
	// otherwise recognize (spec §6: "compile-operator functions").
	Extensions *ExtensionRegistry
	// Debug captures human-readable op descriptions (spec §6
	// "Operation description format").
	Debug bool
	// OverwriteInputs permits the allocator to recycle input slots once
	// their last consumer has run (spec §4.3). The visitor registers no
	// consumer sets with the allocator, so no slot is recycled and this
	// flag does not change the bound program.
	OverwriteInputs bool
	// DetailedTrace is carried in the options but no compile step reads
	// it: whether annotated runtime errors include the full rewrite chain
	// (spec §4.5) follows Log's own Detailed flag.
	DetailedTrace bool
	// Log, if non-nil, is consulted to annotate runtime errors with the
	// rewrite chain that produced the compiled node (spec §4.5).
	Log *trace.Log
}

// CompiledExpr describes a compiled expression's interface, independent
// of any particular frame layout (spec §6: "input qtypes, output
// qtype, named side-output qtypes").
type CompiledExpr struct {
	SessionID      uuid.UUID
	InputQTypes    map[string]*qtype.QType
	OutputQType    *qtype.QType
	SideOutputs    map[string]*qtype.QType
	prepared       expr.Node
	sideOutputKeys []string
	opts           Options
}

// Compile produces a CompiledExpr from a prepared expression (spec §6
// "Outputs. A CompiledExpr descriptor"). prepared must already satisfy
// the prepared-expression invariant (see package prepare); Compile does
// not re-run preparation. leafQTypes supplies the qtype of every Leaf
// referenced by prepared, by key.
func Compile(prepared expr.Node, leafQTypes map[string]*qtype.QType, opts Options) (*CompiledExpr, error) {
	mainOut, sideOutputs, sideKeys, err := splitRoot(prepared)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("compile: generating session id: %w", err)
	}
	logging.Debugf("compile: session %s: starting, %d inputs, %d side outputs", id, len(leafQTypes), len(sideKeys))
	side := make(map[string]*qtype.QType, len(sideKeys))
	for i, k := range sideKeys {
		side[k] = sideOutputs[i].Attributes().QType
	}
	inputs := make(map[string]*qtype.QType, len(leafQTypes))
	for k, v := range leafQTypes {
		inputs[k] = v
	}
	ce := &CompiledExpr{
		SessionID:      id,
		InputQTypes:    inputs,
		OutputQType:    mainOut.Attributes().QType,
		SideOutputs:    side,
		prepared:       prepared,
		sideOutputKeys: sideKeys,
		opts:           opts,
	}
	logging.Debugf("compile: session %s: finished, output qtype %s", id, ce.OutputQType)
	return ce, nil
}

// splitRoot separates a (possibly root-marked) prepared expression into
// its main output and named side outputs (spec §4.4: "Root-marker
// operator... the first child's slot is the program output; each
// remaining child's slot is registered as a named side output").
func splitRoot(prepared expr.Node) (main expr.Node, sideOutputs []expr.Node, sideKeys []string, err error) {
	op, ok := prepared.(*expr.Operator)
	if !ok {
		return prepared, nil, nil, nil
	}
	root, ok := op.Op().(*expr.RootOp)
	if !ok {
		return prepared, nil, nil, nil
	}
	children := op.Children()
	if len(children) != 1+len(root.Names) {
		return nil, nil, nil, fmt.Errorf("compile: internal invariant: core._root child count %d does not match %d names", len(children), len(root.Names))
	}
	return children[0], children[1:], root.Names, nil
}

// BoundExpr is a CompiledExpr bound to a concrete frame layout (spec
// §6: "Binding a CompiledExpr to a layout builder yields a BoundExpr
// with: input-slot map, output slot, named-side-output slot map, init
// and eval operation sequences, and (in debug) human-readable
// descriptions of each op").
type BoundExpr struct {
	Layout          *frame.Layout
	InputSlots      map[string]frame.Slot
	OutputSlot      frame.Slot
	SideOutputSlots map[string]frame.Slot

	InitOps []frame.Op
	EvalOps []frame.Op

	// Descriptions holds one human-readable string per EvalOps entry,
	// populated only when Options.Debug is set (spec §6 "Operation
	// description format").
	Descriptions []string

	trace *trace.Index
}

// Run executes every init op once, then every eval op in order,
// stopping early (and returning the annotated error) if any op sets an
// error on ctx.
func (b *BoundExpr) Run(ctx *frame.EvalContext, fr *frame.Frame) error {
	for _, op := range b.InitOps {
		op(ctx, fr)
		if ctx.Failed() {
			return ctx.Err()
		}
	}
	for i := 0; i < len(b.EvalOps); {
		b.EvalOps[i](ctx, fr)
		if ctx.Failed() {
			if b.trace != nil {
				return b.trace.Annotate(i, ctx.Err())
			}
			return ctx.Err()
		}
		i += 1 + ctx.TakeJump()
	}
	return nil
}
