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
	"github.com/arolla-go/arolla/qtype"
)

// populateQTypesStage returns stage 1 (spec §4.2): every leaf without a
// qtype of its own whose key appears in leafQTypes is wrapped in a qtype
// annotation; a leaf that already carries a qtype is kept unchanged when
// it agrees with the supplied one and rejected when it does not. An
// annotation whose inner node's own attribute-provided qtype already
// agrees with the annotation is redundant and stripped. An inconsistency
// between an annotation and its inner node surfaces as the ordinary
// "inconsistent qtype annotation"
// error raised by expr.NewOperator/QTypeAnnotation.InferAttributes when
// the rebuilt node is constructed.
func populateQTypesStage(leafQTypes map[string]*qtype.QType) func(expr.Node) (expr.Node, error) {
	return func(n expr.Node) (expr.Node, error) {
		switch v := n.(type) {
		case *expr.Leaf:
			want, ok := leafQTypes[v.Key()]
			if !ok {
				return n, nil
			}
			if have := v.Attributes().QType; have != nil {
				if !have.Equal(want) {
					return nil, fmt.Errorf("leaf %q: supplied qtype %s disagrees with its existing qtype %s", v.Key(), want, have)
				}
				return n, nil
			}
			return expr.NewOperator(expr.NewQTypeAnnotation(want), []expr.Node{n})
		case *expr.Operator:
			ann, ok := v.Op().(*expr.QTypeAnnotation)
			if !ok {
				return n, nil
			}
			inner := v.Children()[0]
			if inner.Attributes().QType != nil && inner.Attributes().QType.Equal(ann.QType) {
				return inner, nil
			}
			return n, nil
		default:
			return n, nil
		}
	}
}
