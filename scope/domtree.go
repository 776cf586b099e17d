// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package scope

import "github.com/s48/cir/cps"

// DomNode is one Scope Lambda's place in a DomTree: its immediate
// dominator (itself, for an entry) and the nodes it immediately
// dominates.
type DomNode struct {
	lambda   *cps.Lambda
	idom     *DomNode
	children []*DomNode
}

func (n *DomNode) Lambda() *cps.Lambda    { return n.lambda }
func (n *DomNode) Idom() *DomNode         { return n.idom }
func (n *DomNode) IsEntry() bool          { return n.idom == n }
func (n *DomNode) Children() []*DomNode {
	return append([]*DomNode(nil), n.children...)
}

func (n *DomNode) Depth() int {
	depth := 0
	for cur := n; !cur.IsEntry(); cur = cur.idom {
		depth++
	}
	return depth
}

// DomTree is a forward or reverse dominator tree over a Scope, built
// by the standard iterative fixed-point algorithm: seed every node's
// immediate dominator with its first discovered predecessor, then
// repeatedly meet, via least-common-ancestor, every predecessor's
// current dominator until nothing changes.
type DomTree struct {
	scope    *Scope
	forwards bool
	nodes    map[*cps.Lambda]*DomNode
}

func newDomTree(s *Scope, forwards bool) *DomTree {
	t := &DomTree{scope: s, forwards: forwards, nodes: map[*cps.Lambda]*DomNode{}}
	t.create()
	return t
}

func (t *DomTree) Scope() *Scope         { return t.scope }
func (t *DomTree) IsPostDomTree() bool   { return !t.forwards }

func (t *DomTree) Nodes() []*DomNode {
	order := t.rpo()
	result := make([]*DomNode, len(order))
	for i, l := range order {
		result[i] = t.nodes[l]
	}
	return result
}

func (t *DomTree) Node(l *cps.Lambda) *DomNode {
	n, ok := t.nodes[l]
	if !ok {
		panic("domtree: lambda is not a member of the underlying scope")
	}
	return n
}

func (t *DomTree) Idom(l *cps.Lambda) *cps.Lambda { return t.Node(l).idom.lambda }
func (t *DomTree) Depth(l *cps.Lambda) int        { return t.Node(l).Depth() }

func (t *DomTree) LCA(a, b *cps.Lambda) *cps.Lambda {
	return t.lca(t.Node(a), t.Node(b)).lambda
}

func (t *DomTree) index(l *cps.Lambda) int {
	if t.forwards {
		return t.scope.Sid(l)
	}
	return t.scope.BackwardsSid(l)
}

func (t *DomTree) rpo() []*cps.Lambda {
	if t.forwards {
		return t.scope.RPO()
	}
	return t.scope.BackwardsRPO()
}

func (t *DomTree) entries() []*cps.Lambda {
	if t.forwards {
		return t.scope.Entries()
	}
	return t.scope.Exits()
}

func (t *DomTree) body() []*cps.Lambda {
	if t.forwards {
		return t.scope.Body()
	}
	return t.scope.BackwardsBody()
}

func (t *DomTree) preds(l *cps.Lambda) []*cps.Lambda {
	if t.forwards {
		return t.scope.Preds(l)
	}
	return t.scope.Succs(l)
}

func (t *DomTree) create() {
	for _, l := range t.rpo() {
		t.nodes[l] = &DomNode{lambda: l}
	}
	for _, e := range t.entries() {
		n := t.nodes[e]
		n.idom = n
	}

	for _, l := range t.body() {
		node := t.nodes[l]
		found := false
		for _, pred := range t.preds(l) {
			predNode := t.nodes[pred]
			if t.index(pred) < t.index(l) {
				node.idom = predNode
				found = true
				break
			}
		}
		if !found {
			panic("domtree: body lambda has no predecessor discovered before it in RPO")
		}
	}

	for changed := true; changed; {
		changed = false
		for _, l := range t.body() {
			node := t.nodes[l]
			var newIdom *DomNode
			for _, pred := range t.preds(l) {
				predNode := t.nodes[pred]
				if newIdom == nil {
					newIdom = predNode
				} else {
					newIdom = t.lca(newIdom, predNode)
				}
			}
			if newIdom == nil {
				panic("domtree: body lambda has no predecessors")
			}
			if node.idom != newIdom {
				node.idom = newIdom
				changed = true
			}
		}
	}

	for _, l := range t.body() {
		n := t.nodes[l]
		n.idom.children = append(n.idom.children, n)
	}
}

func (t *DomTree) lca(i, j *DomNode) *DomNode {
	for t.index(i.lambda) != t.index(j.lambda) {
		for t.index(i.lambda) < t.index(j.lambda) {
			j = j.idom
		}
		for t.index(j.lambda) < t.index(i.lambda) {
			i = i.idom
		}
	}
	return i
}
