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

package expr

import (
	"fmt"

	"github.com/arolla-go/arolla/internal/fingerprint"
)

// PostOrder yields each unique node reachable from root exactly once,
// children before parents, deduplicated by fingerprint (spec §4.1).
// Unlike the teacher's recursive Walk, traversal is iterative (an
// explicit stack), so a deeply right-leaning expression cannot blow the
// Go call stack.
func PostOrder(root Node) []Node {
	seen := make(map[fingerprint.Fingerprint]bool)
	order := make([]Node, 0)

	type frame struct {
		n           Node
		childIdx    int
	}
	stack := []frame{{n: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := top.n.Children()
		if top.childIdx < len(children) {
			c := children[top.childIdx]
			top.childIdx++
			if !seen[c.Fingerprint()] {
				stack = append(stack, frame{n: c})
			}
			continue
		}
		fp := top.n.Fingerprint()
		if !seen[fp] {
			seen[fp] = true
			order = append(order, top.n)
		}
		stack = stack[:len(stack)-1]
	}
	return order
}

// TransformOnPostOrder performs a single bottom-up rewrite pass: f is
// applied to every unique node (post-order), children are replaced
// before the node they belong to, and a node is rebuilt with
// WithNewChildren whenever any child actually changed (spec §4.1).
// Unlike DeepTransform, f is applied exactly once per original node;
// it does not recurse into whatever f returns.
func TransformOnPostOrder(root Node, f func(Node) (Node, error)) (Node, error) {
	memo := make(map[fingerprint.Fingerprint]Node)

	var walk func(n Node) (Node, error)
	walk = func(n Node) (Node, error) {
		if r, ok := memo[n.Fingerprint()]; ok {
			return r, nil
		}
		children := n.Children()
		newChildren := make([]Node, len(children))
		changed := false
		for i, c := range children {
			nc, err := walk(c)
			if err != nil {
				return nil, err
			}
			newChildren[i] = nc
			if nc.Fingerprint() != c.Fingerprint() {
				changed = true
			}
		}
		rebuilt := n
		if changed {
			r, err := WithNewChildren(n, newChildren)
			if err != nil {
				return nil, err
			}
			rebuilt = r
		}
		result, err := f(rebuilt)
		if err != nil {
			return nil, err
		}
		memo[n.Fingerprint()] = result
		return result, nil
	}
	return walk(root)
}

// Errors returned by DeepTransform (spec §4.1, §7).
type CycleError struct {
	Fingerprint fingerprint.Fingerprint
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("expr: rewrite cycle detected re-entering fingerprint %x%x", e.Fingerprint[0], e.Fingerprint[1])
}

type BudgetExceededError struct {
	Budget int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("expr: rewrite budget of %d distinct nodes exceeded", e.Budget)
}

// DefaultBudget is the default cap on distinct nodes processed by a
// single DeepTransform call (spec §4.1: "default >= 1,000,000").
const DefaultBudget = 1_000_000

// ProgressFunc is invoked by DeepTransform to report rewrite progress.
// kind is either "rebuilt" (a node was rebuilt because one of its
// children changed) or "new_child" (a rewrite introduced a brand-new
// child subtree that itself needs transforming).
type ProgressFunc func(kind string, old, new Node)

// DeepTransformOptions configures DeepTransform.
type DeepTransformOptions struct {
	// Budget caps the number of distinct nodes processed; 0 means
	// DefaultBudget.
	Budget int
	// OnProgress, if non-nil, is called for every observed rewrite.
	OnProgress ProgressFunc
}

type nodeState int

const (
	stateUnvisited nodeState = iota
	stateInProgress
	stateDone
)

// DeepTransform performs the fixed-point bottom-up rewrite required by
// the preparation pipeline (spec §4.1, §4.2): after f(n) returns a
// non-identity n', the algorithm recurses into n' (transforming its new
// children, then re-applying f), memoizing every intermediate
// fingerprint. It terminates when every fingerprint on the active path
// has mapped to a stable rewrite (f returns its argument unchanged),
// fails with *CycleError if a fingerprint is revisited while still
// in-progress, and with *BudgetExceededError if the distinct-node count
// exceeds opts.Budget.
//
// The traversal uses an explicit stack (not Go call-stack recursion) so
// that pathologically deep or wide expressions cannot overflow the
// goroutine stack (spec §4.1: "Implementations must use an explicit
// stack, not recursion, to bound stack depth").
// deepFrame is one activation record of the explicit-stack fixed-point
// traversal below; it plays the role a Go call frame would play in a
// naively-recursive implementation, but lives on the heap in a slice we
// manage ourselves (spec §4.1: "Implementations must use an explicit
// stack, not recursion, to bound stack depth").
type deepFrame struct {
	n        Node
	fp       fingerprint.Fingerprint   // n's current fingerprint (updates on each re-entry)
	origFPs  []fingerprint.Fingerprint // every fingerprint this task has been known by
	children []Node
	resolved []Node
	idx      int
	expanded bool
	// needsEntry is true exactly once per distinct fingerprint this
	// frame takes on: the first time the frame is pushed (structural
	// cross-frame cycle / memo / budget check against the shared state
	// map), but NOT after an in-place rewrite transition, since that
	// transition already performed its own (local, origFPs-based) cycle
	// check below. Conflating the two checks was an earlier bug: without
	// this flag, re-expanding a freshly rewritten node would immediately
	// see its own just-set in-progress marker and report a false cycle
	// on every ordinary multi-step rewrite.
	needsEntry bool
}

func DeepTransform(root Node, f func(Node) (Node, error), opts DeepTransformOptions) (Node, error) {
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	memo := make(map[fingerprint.Fingerprint]Node)
	state := make(map[fingerprint.Fingerprint]nodeState)
	processed := 0

	stack := []*deepFrame{{n: root, needsEntry: true}}
	var final Node

	finish := func(result Node) {
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			final = result
			return
		}
		parent := stack[len(stack)-1]
		parent.resolved[parent.idx] = result
		parent.idx++
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.needsEntry {
			fp := top.n.Fingerprint()
			if r, ok := memo[fp]; ok {
				finish(r)
				continue
			}
			if state[fp] == stateInProgress {
				return nil, &CycleError{Fingerprint: fp}
			}
			state[fp] = stateInProgress
			processed++
			if processed > budget {
				return nil, &BudgetExceededError{Budget: budget}
			}
			top.fp = fp
			top.origFPs = append(top.origFPs, fp)
			top.needsEntry = false
		}

		if !top.expanded {
			top.children = top.n.Children()
			top.resolved = make([]Node, len(top.children))
			top.idx = 0
			top.expanded = true
		}

		if top.idx < len(top.children) {
			c := top.children[top.idx]
			cfp := c.Fingerprint()
			if r, ok := memo[cfp]; ok {
				top.resolved[top.idx] = r
				top.idx++
				continue
			}
			stack = append(stack, &deepFrame{n: c, needsEntry: true})
			continue
		}

		// every child of the current form of top.n is resolved.
		childChanged := false
		for i := range top.children {
			if top.resolved[i].Fingerprint() != top.children[i].Fingerprint() {
				childChanged = true
				break
			}
		}
		rebuilt := top.n
		if childChanged {
			r, err := WithNewChildren(top.n, top.resolved)
			if err != nil {
				return nil, err
			}
			if opts.OnProgress != nil {
				opts.OnProgress("rebuilt", top.n, r)
			}
			rebuilt = r
		}
		next, err := f(rebuilt)
		if err != nil {
			return nil, err
		}
		if next.Fingerprint() == rebuilt.Fingerprint() {
			for _, fp := range top.origFPs {
				memo[fp] = next
				delete(state, fp)
			}
			if rebuilt.Fingerprint() != top.fp {
				memo[rebuilt.Fingerprint()] = next
			}
			finish(next)
			continue
		}
		if opts.OnProgress != nil {
			opts.OnProgress("new_child", rebuilt, next)
		}
		nfp := next.Fingerprint()
		if r, ok := memo[nfp]; ok {
			for _, fp := range top.origFPs {
				memo[fp] = r
				delete(state, fp)
			}
			finish(r)
			continue
		}
		// A true rewrite cycle is this frame's own chain of f-applications
		// revisiting a fingerprint it has already taken on (a -> b -> a),
		// checked against this frame's own history rather than the shared
		// state map: state[nfp] was just claimed by this very frame for
		// its previous identity and would always appear "in progress"
		// here, which is not a cycle.
		for _, seen := range top.origFPs {
			if seen == nfp {
				return nil, &CycleError{Fingerprint: nfp}
			}
		}
		processed++
		if processed > budget {
			return nil, &BudgetExceededError{Budget: budget}
		}
		delete(state, top.fp)
		state[nfp] = stateInProgress
		top.fp = nfp
		top.origFPs = append(top.origFPs, nfp)
		top.n = next
		top.expanded = false // re-expand against the rewritten node's children
	}

	return final, nil
}
