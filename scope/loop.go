// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Loop-nesting analysis, derived from a Scope's forward dominator
// tree: an edge block->head is a back edge iff head dominates block,
// and everything reachable backwards from block without crossing head
// again is in that loop's body. This can't yet handle irreducible
// control flow, the same limitation the dominator-based loop finder
// this is built from has always had.

package scope

import (
	"sort"

	"github.com/s48/cir/cps"
	"github.com/s48/cir/util"
)

// LoopNode describes one natural loop: its header, every Lambda in
// its body (including nested loops' bodies), the back-edge sources
// that identified it, its nesting depth, and its immediately
// enclosing loop, if any.
type LoopNode struct {
	header    *cps.Lambda
	body      util.SetT[*cps.Lambda]
	backEdges []*cps.Lambda
	depth     int
	parent    *LoopNode
}

func (n *LoopNode) Header() *cps.Lambda        { return n.header }
func (n *LoopNode) BackEdges() []*cps.Lambda   { return append([]*cps.Lambda(nil), n.backEdges...) }
func (n *LoopNode) Depth() int                 { return n.depth }
func (n *LoopNode) Parent() *LoopNode          { return n.parent }
func (n *LoopNode) Contains(l *cps.Lambda) bool { return n.body.Contains(l) }

func (n *LoopNode) Body() []*cps.Lambda {
	return n.body.Members()
}

// LoopInfo is the loop-nesting analysis for one Scope: for every
// Lambda in the scope, its innermost enclosing loop (nil if it is in
// no loop) and nesting depth, plus the set of loop headers themselves.
type LoopInfo struct {
	innermost map[*cps.Lambda]*LoopNode
	depth     map[*cps.Lambda]int
	headers   []*LoopNode
}

func (li *LoopInfo) InnermostLoop(l *cps.Lambda) *LoopNode { return li.innermost[l] }
func (li *LoopInfo) DepthOf(l *cps.Lambda) int             { return li.depth[l] }
func (li *LoopInfo) IsHeader(l *cps.Lambda) bool {
	node, ok := li.innermost[l]
	return ok && node.header == l
}
func (li *LoopInfo) Headers() []*LoopNode {
	return append([]*LoopNode(nil), li.headers...)
}

func buildLoopInfo(s *Scope) *LoopInfo {
	rpo := s.RPO()
	li := &LoopInfo{
		innermost: map[*cps.Lambda]*LoopNode{},
		depth:     map[*cps.Lambda]int{},
	}
	if len(rpo) == 0 {
		return li
	}

	dom := s.DomTree()

	bodies := map[*cps.Lambda]util.SetT[*cps.Lambda]{}
	backEdges := map[*cps.Lambda][]*cps.Lambda{}
	var headers []*cps.Lambda

	for _, block := range rpo {
		for _, succ := range s.Succs(block) {
			// Walk block's dominator chain, block itself included, up to
			// the entry at its top.
			for d := block; ; d = dom.Idom(d) {
				if d == succ {
					header := succ
					if len(backEdges[header]) == 0 {
						headers = append(headers, header)
					}
					edges := backEdges[header]
					util.Push(&edges, block)
					backEdges[header] = edges
					markLoopBody(s, header, block, bodies)
					break
				}
				if dom.Node(d).IsEntry() {
					break
				}
			}
		}
	}

	sort.SliceStable(headers, func(i, j int) bool {
		return len(bodies[headers[i]]) > len(bodies[headers[j]])
	})

	for _, header := range headers {
		node := &LoopNode{
			header:    header,
			body:      bodies[header],
			backEdges: backEdges[header],
			depth:     1,
		}
		if parent, ok := li.innermost[header]; ok {
			node.parent = parent
			node.depth = parent.depth + 1
		}
		li.innermost[header] = node
		li.depth[header] = node.depth
		for member := range node.body {
			li.innermost[member] = node
			li.depth[member] = node.depth
		}
		li.headers = append(li.headers, node)
	}

	return li
}

// markLoopBody walks predecessors upward from block until it reaches
// header, adding everything it passes through to header's body.
func markLoopBody(s *Scope, header, block *cps.Lambda, bodies map[*cps.Lambda]util.SetT[*cps.Lambda]) {
	if block == header {
		return
	}
	set, ok := bodies[header]
	if !ok {
		set = util.NewSet[*cps.Lambda]()
		bodies[header] = set
	}
	if set.Contains(block) {
		return
	}
	set.Add(block)
	for _, pred := range s.Preds(block) {
		markLoopBody(s, header, pred, bodies)
	}
}
