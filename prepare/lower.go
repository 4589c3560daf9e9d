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

	"github.com/arolla-go/arolla/expr"
)

// loweringStage returns stage 3 (spec §4.2): repeatedly apply an
// operator's to_lower until the node is backend- or builtin-tagged.
// Annotation-tagged nodes pass through untouched (they are handled by
// stage 4); anything else that is neither backend/builtin and has no
// to_lower is a lowering failure.
func loweringStage() func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		op, ok := n.(*expr.Operator)
		if !ok {
			return n, nil
		}
		switch op.Op().Tag() {
		case expr.TagBackend, expr.TagBuiltin, expr.TagAnnotation:
			return n, nil
		}
		lowerable, ok := op.Op().(expr.Lowerable)
		if !ok {
			return nil, &LoweringFailureError{Node: n}
		}
		lowered, ok, err := lowerable.ToLower(op)
		if err != nil {
			return nil, fmt.Errorf("lowering %s: %w", op.Op().DisplayName(), err)
		}
		if !ok {
			return nil, &LoweringFailureError{Node: n}
		}
		return lowered, nil
	}
}
