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
	"testing"

	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/qtype"
)

func TestPopulateQTypesStageWrapsUntypedLeaf(t *testing.T) {
	stage := populateQTypesStage(map[string]*qtype.QType{"a": qtype.Int64})
	leaf := expr.NewLeaf("a")
	out, err := stage(leaf)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	op, ok := out.(*expr.Operator)
	if !ok {
		t.Fatalf("got %T, want *expr.Operator wrapping the leaf in a qtype annotation", out)
	}
	ann, ok := op.Op().(*expr.QTypeAnnotation)
	if !ok || !ann.QType.Equal(qtype.Int64) {
		t.Fatalf("wrapped in %v, want a qtype annotation for INT64", op.Op())
	}
}

func TestPopulateQTypesStageLeavesLeafNotInMapUntouched(t *testing.T) {
	stage := populateQTypesStage(map[string]*qtype.QType{"a": qtype.Int64})
	leaf := expr.NewLeaf("b")
	out, err := stage(leaf)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if out != expr.Node(leaf) {
		t.Fatal("a leaf whose key has no supplied qtype must pass through unchanged")
	}
}

func TestPopulateQTypesStageAgreeingExistingQTypeIsNoop(t *testing.T) {
	stage := populateQTypesStage(map[string]*qtype.QType{"a": qtype.Int64})
	leaf := expr.NewLeafWithQType("a", qtype.Int64)
	out, err := stage(leaf)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if out != expr.Node(leaf) {
		t.Fatal("a leaf whose own qtype already agrees with the supplied one must pass through unchanged")
	}
}

func TestPopulateQTypesStageDisagreeingExistingQTypeIsError(t *testing.T) {
	stage := populateQTypesStage(map[string]*qtype.QType{"a": qtype.Int64})
	leaf := expr.NewLeafWithQType("a", qtype.Bool)
	if _, err := stage(leaf); err == nil {
		t.Fatal("a leaf whose own qtype disagrees with the supplied one must be rejected")
	}
}

func TestPopulateQTypesStageStripsRedundantAnnotation(t *testing.T) {
	stage := populateQTypesStage(nil)
	leaf := expr.NewLeafWithQType("a", qtype.Int64)
	ann, err := expr.NewOperator(expr.NewQTypeAnnotation(qtype.Int64), []expr.Node{leaf})
	if err != nil {
		t.Fatalf("building annotation: %v", err)
	}
	out, err := stage(ann)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if out != expr.Node(leaf) {
		t.Fatal("an annotation whose inner node already carries the same qtype must be stripped")
	}
}

func TestPopulateQTypesStageKeepsAnnotationOverUntypedInner(t *testing.T) {
	stage := populateQTypesStage(nil)
	leaf := expr.NewLeaf("a")
	ann, err := expr.NewOperator(expr.NewQTypeAnnotation(qtype.Int64), []expr.Node{leaf})
	if err != nil {
		t.Fatalf("building annotation: %v", err)
	}
	out, err := stage(ann)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if out != expr.Node(ann) {
		t.Fatal("an annotation whose inner node has no qtype of its own must be kept")
	}
}
