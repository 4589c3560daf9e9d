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

package prepare

import (
	"fmt"
	"strings"

	"github.com/arolla-go/arolla/expr"
)

// MissingInputQTypeError reports every leaf key with no qtype after
// stage 1 (spec §7 "missing input qtype": "reports all missing keys").
type MissingInputQTypeError struct {
	Keys []string
}

func (e *MissingInputQTypeError) Error() string {
	return fmt.Sprintf("missing input qtype for leaves: %s", strings.Join(e.Keys, ", "))
}

// LoweringFailureError reports an operator that is neither backend nor
// builtin and has no to_lower (spec §7 "lowering failure").
type LoweringFailureError struct {
	Node expr.Node
}

func (e *LoweringFailureError) Error() string {
	name := e.Node.String()
	if op, ok := e.Node.(*expr.Operator); ok {
		name = op.Op().DisplayName()
	}
	return fmt.Sprintf("operator %q is neither backend nor builtin and not lowerable: %s", name, expr.DebugString(e.Node))
}

// AttributeRetractionError reports a rewrite that weakened a node's
// attributes, violating the no-retract invariant checked between every
// stage (spec §7 "attribute retraction", §8 invariant 2).
type AttributeRetractionError struct {
	Old, New expr.Node
}

func (e *AttributeRetractionError) Error() string {
	return fmt.Sprintf("attribute retraction: %s -> %s", expr.DebugString(e.Old), expr.DebugString(e.New))
}

// UnresolvedPlaceholderError reports every placeholder key still
// present after every stage has run (spec §7 "unresolved placeholder").
type UnresolvedPlaceholderError struct {
	Keys []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("unresolved placeholders: %s", strings.Join(e.Keys, ", "))
}

// DuplicateSideOutputError reports two side outputs sharing a name
// (spec §7 "duplicate side output").
type DuplicateSideOutputError struct {
	Name string
}

func (e *DuplicateSideOutputError) Error() string {
	return fmt.Sprintf("duplicate side output name %q", e.Name)
}
