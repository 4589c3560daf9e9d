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
	"sort"

	"github.com/arolla-go/arolla/compile"
	"github.com/arolla-go/arolla/expr"
	"github.com/arolla-go/arolla/qtype"
	"github.com/arolla-go/arolla/trace"
)

// whereGlobalPass is preparation stage 8 (spec §4.6): a single
// bottom-up pass over the whole prepared expression that turns every
// _short_circuit_where into either the non-short-circuit core.where
// (neither branch has anything worth skipping) or a packed_where over
// two independently-compiled SubPrograms.
//
// A branch "has a short-circuitable region" when it is itself an
// operator node (spec §4.6's exclusive-ownership region always
// includes at least the branch root unless the branch is trivially a
// leaf or literal, in which case there is nothing to gain by skipping
// it). Each SubProgram's parameters are exactly the branch's own free
// leaves: this sacrifices reusing a value already computed for some
// *other*, unrelated consumer of a node that happens to sit inside the
// branch (a true whole-DAG minimal-cut region extraction would spot
// that), in exchange for a construction that reuses the existing
// bindSubProgram machinery outright and is trivially correct — the
// nested sub-program simply recomputes whatever it needs from its own
// inputs. See DESIGN.md for this trade-off.
func whereGlobalPass(root expr.Node, log *trace.Log) (expr.Node, error) {
	return expr.TransformOnPostOrder(root, func(n expr.Node) (expr.Node, error) {
		op, ok := n.(*expr.Operator)
		if !ok {
			return n, nil
		}
		sc, ok := op.Op().(*expr.ShortCircuitWhereOp)
		if !ok {
			return n, nil
		}
		children := op.Children()
		if len(children) != 3 {
			return nil, fmt.Errorf("internal invariant: %s has %d children", sc.DisplayName(), len(children))
		}
		cond, trueBranch, falseBranch := children[0], children[1], children[2]
		branchType := op.Attributes().QType

		var rewritten expr.Node
		var err error
		if !hasShortCircuitableRegion(trueBranch) && !hasShortCircuitableRegion(falseBranch) {
			rewritten, err = expr.NewOperator(expr.NewCoreWhereOp(branchType), []expr.Node{cond, trueBranch, falseBranch})
			if err != nil {
				return nil, fmt.Errorf("building core.where fallback: %w", err)
			}
		} else {
			rewritten, err = packWhere(cond, trueBranch, falseBranch)
			if err != nil {
				return nil, err
			}
		}

		if !n.Attributes().Subset(rewritten.Attributes()) {
			return nil, &AttributeRetractionError{Old: n, New: rewritten}
		}
		if log != nil {
			log.Record(trace.TagUntraced, n, rewritten)
		}
		return rewritten, nil
	})
}

func hasShortCircuitableRegion(branch expr.Node) bool {
	return branch.Kind() == expr.KindOperator
}

func packWhere(cond, trueBranch, falseBranch expr.Node) (expr.Node, error) {
	trueProg, trueArgs, err := packBranch(trueBranch)
	if err != nil {
		return nil, fmt.Errorf("packing true branch: %w", err)
	}
	falseProg, falseArgs, err := packBranch(falseBranch)
	if err != nil {
		return nil, fmt.Errorf("packing false branch: %w", err)
	}
	packedOp, err := compile.NewPackedWhereOp(trueProg, falseProg)
	if err != nil {
		return nil, err
	}
	newChildren := make([]expr.Node, 0, 1+len(trueArgs)+len(falseArgs))
	newChildren = append(newChildren, cond)
	newChildren = append(newChildren, trueArgs...)
	newChildren = append(newChildren, falseArgs...)
	return expr.NewOperator(packedOp, newChildren)
}

func packBranch(branch expr.Node) (*compile.SubProgram, []expr.Node, error) {
	leaves := collectLeaves(branch)
	names := make([]string, len(leaves))
	types := make([]*qtype.QType, len(leaves))
	args := make([]expr.Node, len(leaves))
	for i, l := range leaves {
		if l.Attributes().QType == nil {
			return nil, nil, fmt.Errorf("leaf %q has no qtype", l.Key())
		}
		names[i] = l.Key()
		types[i] = l.Attributes().QType
		args[i] = l
	}
	prog, err := compile.NewSubProgram(names, types, branch)
	if err != nil {
		return nil, nil, err
	}
	return prog, args, nil
}

func collectLeaves(root expr.Node) []*expr.Leaf {
	seen := make(map[string]bool)
	var out []*expr.Leaf
	for _, n := range expr.PostOrder(root) {
		if leaf, ok := n.(*expr.Leaf); ok && !seen[leaf.Key()] {
			seen[leaf.Key()] = true
			out = append(out, leaf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
