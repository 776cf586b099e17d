// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The graph substrate: the hash-consed value graph shared by every
// other package here. Two node kinds partition the graph -- structural
// (PrimOp, Param), which are value-equal and hash-consed by the World,
// and nominal (Lambda), which are identity-equal continuations.

package cps

import "fmt"

type Kind int

const (
	KindParam Kind = iota
	KindPrimOp
	KindLambda
)

func (k Kind) String() string {
	switch k {
	case KindParam:
		return "param"
	case KindPrimOp:
		return "primop"
	case KindLambda:
		return "lambda"
	default:
		return "?"
	}
}

// Use is a back-reference: node User has Node at operand slot Index.
type Use struct {
	User  Node
	Index int
}

// Node is the common interface to every value in the graph: the i-th
// formal parameter of a Lambda, a pure hash-consed PrimOp, or a
// Lambda (continuation) itself.
type Node interface {
	Gid() int
	Kind() Kind
	Type() Type
	Name() string
	SetName(name string)

	NumOps() int
	Op(i int) Node
	Ops() []Node

	// Uses returns a snapshot of this node's back-references. Callers
	// that mutate the graph (e.g. via Replace) while iterating a use
	// set must take this snapshot first; the live set is not safe to
	// range over across a mutation.
	Uses() []Use

	// IsLambda/AsLambda let callers downcast without a type switch at
	// every call site; every other concrete kind is reachable via a
	// plain Go type assertion since PrimOp and Param carry no further
	// subkinds.
	IsLambda() bool
	AsLambda() *Lambda

	base() *nodeBase
}

// nodeBase is embedded in every concrete node and implements the
// parts of Node that do not vary by kind.
type nodeBase struct {
	gid  int
	kind Kind
	typ  Type
	name string

	ops  []Node
	uses []Use

	representative Node

	// lastVisitPass implements the pass-token "visited" mark: a node
	// stamped with pass token P is considered visited during pass P,
	// without ever needing to clear a visited set between passes. See
	// World.NewPass.
	lastVisitPass int
}

func (b *nodeBase) Gid() int        { return b.gid }
func (b *nodeBase) Kind() Kind      { return b.kind }
func (b *nodeBase) Type() Type      { return b.typ }
func (b *nodeBase) Name() string    { return b.name }
func (b *nodeBase) SetName(n string) { b.name = n }
func (b *nodeBase) NumOps() int     { return len(b.ops) }

func (b *nodeBase) Op(i int) Node {
	if i >= len(b.ops) {
		panic(fmt.Sprintf("operand index %d out of range (size %d)", i, len(b.ops)))
	}
	return b.ops[i]
}

func (b *nodeBase) Ops() []Node {
	result := make([]Node, len(b.ops))
	copy(result, b.ops)
	return result
}

func (b *nodeBase) Uses() []Use {
	result := make([]Use, len(b.uses))
	copy(result, b.uses)
	return result
}

func (b *nodeBase) IsLambda() bool  { return b.kind == KindLambda }
func (b *nodeBase) AsLambda() *Lambda { return nil }
func (b *nodeBase) base() *nodeBase { return b }

// Deref chases the representative chain for whichever concrete node
// embeds this base, compressing the path as it goes. It is defined on
// Node rather than nodeBase because it needs the outer interface value
// to return and to compress into.
func Deref(n Node) Node {
	b := n.base()
	if b.representative == n {
		return n
	}
	root := b.representative
	for root.base().representative != root {
		root = root.base().representative
	}
	// path compression
	for cur := n; cur != root; {
		next := cur.base().representative
		cur.base().representative = root
		cur = next
	}
	return root
}

// setOp installs d at operand slot i of n, recording the use (n, i)
// on d. The slot must not already be occupied; callers reassigning a
// slot must unsetOp first.
func setOp(n Node, i int, d Node) {
	b := n.base()
	if i >= len(b.ops) {
		panic(fmt.Sprintf("set_op: index %d out of range (size %d)", i, len(b.ops)))
	}
	if b.ops[i] != nil {
		panic("set_op: slot already set, unset_op first")
	}
	b.ops[i] = d
	if d != nil {
		db := d.base()
		db.uses = append(db.uses, Use{User: n, Index: i})
	}
}

// unsetOp clears operand slot i of n, removing the (n, i) use from
// whatever it pointed at.
func unsetOp(n Node, i int) {
	b := n.base()
	d := b.ops[i]
	if d == nil {
		return
	}
	db := d.base()
	for j, u := range db.uses {
		if u.User == n && u.Index == i {
			last := len(db.uses) - 1
			db.uses[j] = db.uses[last]
			db.uses = db.uses[:last]
			break
		}
	}
	b.ops[i] = nil
}

func unsetOps(n Node) {
	b := n.base()
	for i := range b.ops {
		unsetOp(n, i)
	}
}

// resizeOps grows or shrinks n's operand slots in place, preserving
// whatever is already set in the overlapping range. It is used by
// Lambda.Jump (full reset) and Lambda.fix (grow in place while other
// slots stay live).
func resizeOps(n Node, size int) {
	b := n.base()
	if size <= len(b.ops) {
		for i := size; i < len(b.ops); i++ {
			unsetOp(n, i)
		}
		b.ops = b.ops[:size]
		return
	}
	grown := make([]Node, size)
	copy(grown, b.ops)
	b.ops = grown
}

// replace redirects n's representative to to and transfers n's use
// set onto to, so that future graph-wide passes that look at to's
// uses see everyone who used to look at n. Existing operand slots
// that still literally hold n are left untouched -- Deref is how
// their owners observe the replacement.
func replace(n Node, to Node) {
	n = Deref(n)
	to = Deref(to)
	if n == to {
		return
	}
	nb := n.base()
	tb := to.base()
	tb.uses = append(tb.uses, nb.uses...)
	nb.uses = nil
	nb.representative = to
}

// Visit stamps n with pass token `pass` if it has not already been
// stamped with it, returning whether it was already visited. This is
// the "visited" half of the amortized-O(1) pass-token scheme: no
// traversal ever clears a visited set between passes.
func Visit(n Node, pass int) bool {
	b := n.base()
	if b.lastVisitPass == pass {
		return true
	}
	b.lastVisitPass = pass
	return false
}

// VisitFirst stamps n with pass token `pass` unconditionally; callers
// use it for entry nodes of a traversal where the caller already knows
// the node has not been visited this pass.
func VisitFirst(n Node, pass int) {
	n.base().lastVisitPass = pass
}

// IsVisited reports whether n already carries pass token `pass`,
// without stamping it.
func IsVisited(n Node, pass int) bool {
	return n.base().lastVisitPass == pass
}
