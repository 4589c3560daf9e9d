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

package trace

import (
	"fmt"

	"github.com/arolla-go/arolla/internal/fingerprint"
)

// NodeTrace associates one emitted instruction with the expression node
// it was compiled from, at whichever granularity the compile options
// requested (spec §4.5: "Two granularities are supported").
type NodeTrace struct {
	OpName       string
	OriginalRepr string
	CompiledRepr string
	Fingerprint  fingerprint.Fingerprint
}

// Index maps an instruction's position in the eval-op stream to its
// NodeTrace, built once by the executable builder and consulted both
// for debug descriptions and runtime error annotation (spec §4.5:
// "the builder finalizes a lookup instruction index -> full trace
// string").
type Index struct {
	log     *Log
	byIndex []NodeTrace
}

// NewIndex returns an empty Index backed by log (which may be nil if no
// node association is being tracked).
func NewIndex(log *Log) *Index {
	return &Index{log: log}
}

// Add records the NodeTrace for the next instruction index, returning
// that index.
func (idx *Index) Add(nt NodeTrace) int {
	idx.byIndex = append(idx.byIndex, nt)
	return len(idx.byIndex) - 1
}

// Len returns the number of recorded instructions.
func (idx *Index) Len() int { return len(idx.byIndex) }

// Full renders the complete trace string for instruction i (spec §4.5:
// `"; during evaluation of operator <name>\nORIGINAL NODE: …\nCOMPILED
// NODE: …"`, plus the detailed chain when enabled).
func (idx *Index) Full(i int) string {
	if i < 0 || i >= len(idx.byIndex) {
		return ""
	}
	nt := idx.byIndex[i]
	s := fmt.Sprintf("; during evaluation of operator %s\nORIGINAL NODE: %s\nCOMPILED NODE: %s",
		nt.OpName, nt.OriginalRepr, nt.CompiledRepr)
	if idx.log != nil && idx.log.Detailed {
		if chain := idx.log.Render(nt.Fingerprint); chain != "" {
			s += "\nTRANSFORMATIONS:\n" + chain
		}
	}
	return s
}

// Annotate wraps a runtime error raised while evaluating instruction i
// with the node trace (spec §4.5: "after any eval op sets an error, the
// program wraps the error message"). It returns err unchanged if i is
// out of range (no association recorded for that instruction).
func (idx *Index) Annotate(i int, err error) error {
	if err == nil {
		return nil
	}
	if i < 0 || i >= len(idx.byIndex) {
		return err
	}
	return fmt.Errorf("%w%s", err, idx.Full(i))
}
