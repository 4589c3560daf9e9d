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

// Package trace implements the stack-trace log and runtime error
// annotator (spec §4.5): it maps compiled instructions back to the
// source expression nodes they were emitted for, and rewrites runtime
// errors to include both the original and compiled node's debug
// representation.
package trace

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/internal/fingerprint"
)

// Tag classifies one recorded rewrite (spec §4.2: "Every non-identity
// rewrite... is recorded with a tag").
type Tag int

const (
	TagUntraced Tag = iota
	TagLowering
	TagOptimization
	TagNewChild
	TagCausedByAncestor
)

func (t Tag) String() string {
	switch t {
	case TagLowering:
		return "lowering"
	case TagOptimization:
		return "optimization"
	case TagNewChild:
		return "new_child"
	case TagCausedByAncestor:
		return "caused_by_ancestor"
	default:
		return "untraced"
	}
}

// Entry is one recorded rewrite: old node's fingerprint/repr mapped to
// new node's fingerprint/repr, under the given tag.
type Entry struct {
	Tag     Tag
	OldFP   fingerprint.Fingerprint
	NewFP   fingerprint.Fingerprint
	OldRepr string
	NewRepr string
}

// Log accumulates every rewrite observed across the preparation
// pipeline (spec §4.2 "Stack trace"). Detailed controls whether every
// intermediate fingerprint-to-fingerprint transition is retained
// (detailed granularity) or only the (original, compiled) pair per
// final node (lightweight granularity, spec §4.5).
type Log struct {
	Detailed bool

	entries []Entry
	// parent maps a fingerprint to the entry that produced it, so that
	// Chain can walk backwards from a compiled node to its original
	// ancestor.
	parent map[fingerprint.Fingerprint]Entry
	// originalRepr maps a fingerprint to the earliest repr recorded for
	// any of its ancestors, used to answer "ORIGINAL NODE" even in
	// lightweight mode.
	originalRepr map[fingerprint.Fingerprint]string
}

// NewLog returns an empty Log.
func NewLog(detailed bool) *Log {
	return &Log{
		Detailed:     detailed,
		parent:       make(map[fingerprint.Fingerprint]Entry),
		originalRepr: make(map[fingerprint.Fingerprint]string),
	}
}

// Record appends a rewrite old -> new under tag. It is designed to be
// used directly as an expr.ProgressFunc adapter (see prepare's runStage),
// called once per non-identity transformation DeepTransform observes.
func (l *Log) Record(tag Tag, old, new expr.Node) {
	if l == nil {
		return
	}
	e := Entry{
		Tag:     tag,
		OldFP:   old.Fingerprint(),
		NewFP:   new.Fingerprint(),
		OldRepr: expr.DebugString(old),
		NewRepr: expr.DebugString(new),
	}
	if l.Detailed {
		l.entries = append(l.entries, e)
	}
	l.parent[e.NewFP] = e
	if orig, ok := l.originalRepr[e.OldFP]; ok {
		l.originalRepr[e.NewFP] = orig
	} else {
		l.originalRepr[e.NewFP] = e.OldRepr
	}
}

// Original returns the debug representation of the earliest ancestor
// known for fp, or fallback if fp was never the result of a recorded
// rewrite (i.e. it is its own original).
func (l *Log) Original(fp fingerprint.Fingerprint, fallback string) string {
	if l == nil {
		return fallback
	}
	if s, ok := l.originalRepr[fp]; ok {
		return s
	}
	return fallback
}

// Chain walks backwards from fp through every recorded rewrite down to
// its original ancestor, returning the sequence of entries in
// chronological (original-first) order. It is only populated when
// Detailed is set; otherwise it returns nil.
func (l *Log) Chain(fp fingerprint.Fingerprint) []Entry {
	if l == nil || !l.Detailed {
		return nil
	}
	var rev []Entry
	cur := fp
	for {
		e, ok := l.parent[cur]
		if !ok {
			break
		}
		rev = append(rev, e)
		cur = e.OldFP
	}
	// reverse into chronological order
	out := make([]Entry, len(rev))
	for i, e := range rev {
		out[len(rev)-1-i] = e
	}
	return out
}

// Render produces the human-readable detailed-trace text for fp (spec
// §4.5: "if the detailed trace is enabled, appends the sequence of
// transformations"). Traces beyond 4KiB are compressed with zstd and
// transparently decompressed here, giving the klauspost/compress
// dependency a concrete home for the (rare, but real) case of deeply
// rewritten expressions producing oversized chains.
func (l *Log) Render(fp fingerprint.Fingerprint) string {
	chain := l.Chain(fp)
	if len(chain) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for i, e := range chain {
		fmt.Fprintf(&buf, "  [%d] (%s) %s -> %s\n", i, e.Tag, e.OldRepr, e.NewRepr)
	}
	raw := buf.Bytes()
	if len(raw) <= 4096 {
		return buf.String()
	}
	compressed, err := compress(raw)
	if err != nil {
		return buf.String()
	}
	decompressed, err := decompress(compressed)
	if err != nil {
		return buf.String()
	}
	return string(decompressed)
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
