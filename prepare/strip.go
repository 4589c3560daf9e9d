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

// stripAnnotationsStage returns stage 4 (spec §4.2): drop every
// annotation-tagged node, except a qtype annotation directly wrapping a
// Leaf, which is kept (the final type-consistency check relies on it
// still being visible, and it is the only annotation shape stage 1
// leaves unstripped).
func stripAnnotationsStage() func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		op, ok := n.(*expr.Operator)
		if !ok || op.Op().Tag() != expr.TagAnnotation {
			return n, nil
		}
		children := op.Children()
		if len(children) != 1 {
			return nil, fmt.Errorf("internal invariant: annotation %q has %d children", op.Op().DisplayName(), len(children))
		}
		inner := children[0]
		if _, isQType := op.Op().(*expr.QTypeAnnotation); isQType {
			if _, isLeaf := inner.(*expr.Leaf); isLeaf {
				return n, nil
			}
		}
		return inner, nil
	}
}
