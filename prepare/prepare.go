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

// Package prepare implements the preparation pipeline (spec §4.2): the
// sequence of rewrites that turns a user-authored expression into one
// package compile can bind, with every leaf qtyped, every operator
// backend or builtin, and no residual placeholders.
package prepare

import (
	"fmt"
	"sort"

	"github.com/arolla-go/arolla/backend"
	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/internal/logging"
	"github.com/arolla-go/arolla/qtype"
	"github.com/arolla-go/arolla/trace"
)

// StageMask selects which of the 8 preparation stages run (spec §4.2:
// "each stage independently maskable").
type StageMask uint

const (
	StagePopulateQTypes StageMask = 1 << iota
	StageLiteralFolding
	StageLowering
	StageStripAnnotations
	StageImplicitCasting
	StageOptimizer
	StageExtensions
	StageWhereGlobalPass

	AllStages = StagePopulateQTypes | StageLiteralFolding | StageLowering |
		StageStripAnnotations | StageImplicitCasting | StageOptimizer |
		StageExtensions | StageWhereGlobalPass
)

// Options configures one Prepare call.
type Options struct {
	// Stages enables a subset of the 8 stages; zero means AllStages.
	Stages StageMask

	// LeafQTypes supplies the external qtype for every leaf by key
	// (stage 1).
	LeafQTypes map[string]*qtype.QType

	// Backends is consulted by literal folding (stage 2) and implicit
	// casting (stage 5). Casting is carried in the options but no stage
	// reads it.
	Backends backend.Directory
	Casting  backend.CastingDirectory

	// Optimizer is applied once per node during stage 6; nil behaves as
	// identity.
	Optimizer func(expr.Node) (expr.Node, error)

	// Extensions runs during stage 7, each in registration order.
	Extensions []func(expr.Node) (expr.Node, error)

	// Budget caps DeepTransform's distinct-node count; 0 means
	// expr.DefaultBudget.
	Budget int

	// Log, if non-nil, records every non-identity rewrite (spec §4.5).
	Log *trace.Log
}

type stageDef struct {
	mask StageMask
	name string
	tag  trace.Tag
	fn   func(expr.Node) (expr.Node, error)
}

// Prepare runs the enabled stages over root in order and returns the
// prepared expression (spec §4.2).
func Prepare(root expr.Node, opts Options) (expr.Node, error) {
	if opts.Stages == 0 {
		opts.Stages = AllStages
	}

	stages := []stageDef{
		{StagePopulateQTypes, "populate_qtypes", trace.TagUntraced, populateQTypesStage(opts.LeafQTypes)},
		{StageLiteralFolding, "literal_folding", trace.TagUntraced, foldLiteralsStage(opts)},
		{StageLowering, "lowering", trace.TagLowering, loweringStage()},
		{StageStripAnnotations, "strip_annotations", trace.TagUntraced, stripAnnotationsStage()},
		{StageImplicitCasting, "implicit_casting", trace.TagUntraced, implicitCastingStage(opts)},
		{StageOptimizer, "optimizer", trace.TagOptimization, identityIfNil(opts.Optimizer)},
		{StageExtensions, "extensions", trace.TagOptimization, composeExtensions(opts.Extensions)},
	}

	logging.Debugf("prepare: starting, stages=%#x", opts.Stages)

	n := root
	for _, st := range stages {
		if opts.Stages&st.mask == 0 {
			continue
		}
		logging.Debugf("prepare: stage %s: entering", st.name)
		next, err := runStage(n, st, opts)
		if err != nil {
			logging.Debugf("prepare: stage %s: failed: %v", st.name, err)
			return nil, fmt.Errorf("prepare: %s: %w", st.name, err)
		}
		n = next
		if st.mask == StagePopulateQTypes {
			if missing := collectMissingLeafQTypes(n); len(missing) > 0 {
				return nil, &MissingInputQTypeError{Keys: missing}
			}
		}
		logging.Debugf("prepare: stage %s: done", st.name)
	}

	if opts.Stages&StageWhereGlobalPass != 0 {
		logging.Debugf("prepare: stage where_global_pass: entering")
		next, err := whereGlobalPass(n, opts.Log)
		if err != nil {
			logging.Debugf("prepare: stage where_global_pass: failed: %v", err)
			return nil, fmt.Errorf("prepare: where_global_pass: %w", err)
		}
		n = next
		logging.Debugf("prepare: stage where_global_pass: done")
	}

	if err := checkDuplicateSideOutputs(n); err != nil {
		return nil, err
	}
	if keys := collectPlaceholders(n); len(keys) > 0 {
		return nil, &UnresolvedPlaceholderError{Keys: keys}
	}
	logging.Debugf("prepare: finished")
	return n, nil
}

// runStage drives one stage's per-node rewrite function to a fixed
// point via expr.DeepTransform, enforcing the no-retract invariant on
// every individual rewrite and forwarding progress to opts.Log.
func runStage(n expr.Node, st stageDef, opts Options) (expr.Node, error) {
	checked := withNoRetractCheck(st.fn)
	return expr.DeepTransform(n, checked, expr.DeepTransformOptions{
		Budget: opts.Budget,
		OnProgress: func(kind string, old, new expr.Node) {
			if opts.Log == nil {
				return
			}
			tag := st.tag
			if kind == "rebuilt" {
				tag = trace.TagCausedByAncestor
			}
			opts.Log.Record(tag, old, new)
		},
	})
}

// withNoRetractCheck wraps a stage's rewrite function with the
// no-retract check applied between (in fact, on every) rewrite (spec
// §3, §8 invariant 2).
func withNoRetractCheck(f func(expr.Node) (expr.Node, error)) func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		next, err := f(n)
		if err != nil {
			return nil, err
		}
		if !n.Attributes().Subset(next.Attributes()) {
			return nil, &AttributeRetractionError{Old: n, New: next}
		}
		return next, nil
	}
}

func identityIfNil(f func(expr.Node) (expr.Node, error)) func(expr.Node) (expr.Node, error) {
	if f == nil {
		return func(n expr.Node) (expr.Node, error) { return n, nil }
	}
	return f
}

// composeExtensions applies every registered extension, in order, to
// each node during stage 7.
func composeExtensions(exts []func(expr.Node) (expr.Node, error)) func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		cur := n
		for _, f := range exts {
			next, err := f(cur)
			if err != nil {
				return nil, err
			}
			cur = next
		}
		return cur, nil
	}
}

func collectMissingLeafQTypes(root expr.Node) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, n := range expr.PostOrder(root) {
		leaf, ok := n.(*expr.Leaf)
		if !ok || leaf.Attributes().QType != nil {
			continue
		}
		if !seen[leaf.Key()] {
			seen[leaf.Key()] = true
			missing = append(missing, leaf.Key())
		}
	}
	sort.Strings(missing)
	return missing
}

func collectPlaceholders(root expr.Node) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, n := range expr.PostOrder(root) {
		ph, ok := n.(*expr.Placeholder)
		if !ok {
			continue
		}
		if !seen[ph.Key()] {
			seen[ph.Key()] = true
			keys = append(keys, ph.Key())
		}
	}
	sort.Strings(keys)
	return keys
}

func checkDuplicateSideOutputs(n expr.Node) error {
	op, ok := n.(*expr.Operator)
	if !ok {
		return nil
	}
	root, ok := op.Op().(*expr.RootOp)
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(root.Names))
	for _, name := range root.Names {
		if seen[name] {
			return &DuplicateSideOutputError{Name: name}
		}
		seen[name] = true
	}
	return nil
}
