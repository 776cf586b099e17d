// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// World owns the graph: it assigns gids, interns PrimOps and PiTypes,
// hands out pass tokens, and garbage-collects unreachable structural
// nodes. It is a mutable shared resource and is not safe for concurrent
// mutation from more than one goroutine at a time. Distinct Worlds share
// no state, which is what lets the lowering driver's worker pool
// (transform.LowerAll) lower several Worlds in parallel, one goroutine
// per World.
package cps

import (
	"fmt"
	"strings"
)

type World struct {
	nextGid  int
	nextPass int

	primops map[string]*PrimOp
	pis     map[string]*PiType

	lambdas map[*Lambda]struct{}
}

func NewWorld() *World {
	return &World{
		primops: map[string]*PrimOp{},
		pis:     map[string]*PiType{},
		lambdas: map[*Lambda]struct{}{},
	}
}

func (w *World) nextGID() int {
	gid := w.nextGid
	w.nextGid++
	return gid
}

// NewPass hands out a fresh, monotonically increasing pass token. No
// two nested traversals may share a token; a traversal either
// allocates a fresh one on entry or documents that it reuses the
// caller's.
func (w *World) NewPass() int {
	w.nextPass++
	return w.nextPass
}

func (w *World) Lambdas() []*Lambda {
	result := make([]*Lambda, 0, len(w.lambdas))
	for l := range w.lambdas {
		result = append(result, l)
	}
	return result
}

// NewLambda creates a fresh, initially unsealed Lambda with the given
// signature. Its parameters are created eagerly, one per Pi element,
// the way anydsl2's Lambda constructor reserves and fills params()
// from pi()->size().
func (w *World) NewLambda(pi *PiType, name string) *Lambda {
	l := &Lambda{
		nodeBase: nodeBase{gid: w.nextGID(), kind: KindLambda, typ: pi, name: name},
	}
	l.representative = l
	l.parent = l
	l.world = w
	l.trackedValues = map[int]Node{}
	l.params = make([]*Param, pi.Size())
	for i, t := range pi.Elems {
		l.params[i] = newParam(w.nextGID(), l, i, t, "")
	}
	w.lambdas[l] = struct{}{}
	return l
}

// Pi interns a PiType by its element sequence.
func (w *World) Pi(elems []Type) *PiType {
	key := piKey(elems)
	if pi, ok := w.pis[key]; ok {
		return pi
	}
	pi := &PiType{Elems: append([]Type(nil), elems...)}
	w.pis[key] = pi
	return pi
}

func (w *World) Pi1(t Type) *PiType    { return w.Pi([]Type{t}) }
func (w *World) Pi2(a, b Type) *PiType { return w.Pi([]Type{a, b}) }

func piKey(elems []Type) string {
	var b strings.Builder
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.String())
	}
	return b.String()
}

// Intern returns the unique PrimOp for (op, typ, ops), creating it if
// this is the first time this combination has been seen. Operands are
// keyed by their current (post-deref) identity, matching the
// invariant that two PrimOps are identical iff (kind, type,
// operand-deref sequence) match.
func (w *World) Intern(op string, typ Type, ops []Node) *PrimOp {
	derefed := make([]Node, len(ops))
	for i, o := range ops {
		derefed[i] = Deref(o)
	}
	key := primOpKey(op, typ, derefed, nil)
	if p, ok := w.primops[key]; ok {
		return p
	}
	// An entry interned before one of its operands was replaced is keyed
	// by the old gid; replace moved its use onto derefed[0], so look there.
	if len(derefed) > 0 {
		for _, u := range derefed[0].Uses() {
			q, ok := u.User.(*PrimOp)
			same := ok && q.op == op && q.typ.Equal(typ) && len(q.ops) == len(derefed) &&
				w.primops[primOpKey(q.op, q.typ, q.ops, nil)] == q
			for i := 0; same && i < len(derefed); i++ {
				same = Deref(q.ops[i]) == derefed[i]
			}
			if same {
				w.primops[key] = q
				return q
			}
		}
	}
	p := &PrimOp{
		nodeBase: nodeBase{gid: w.nextGID(), kind: KindPrimOp, typ: typ, name: op},
		op:       op,
	}
	p.representative = p
	p.ops = make([]Node, len(derefed))
	for i, o := range derefed {
		setOp(p, i, o)
	}
	w.primops[key] = p
	return p
}

// Literal interns a zero-operand literal PrimOp of the given value and
// type.
func (w *World) Literal(value any, typ Type) *PrimOp {
	key := primOpKey(primOpLit, typ, nil, value)
	if p, ok := w.primops[key]; ok {
		return p
	}
	p := &PrimOp{
		nodeBase: nodeBase{gid: w.nextGID(), kind: KindPrimOp, typ: typ, name: primOpLit},
		op:       primOpLit,
		literal:  value,
	}
	p.representative = p
	w.primops[key] = p
	return p
}

// Bottom interns the sentinel "no defined value" PrimOp of a type,
// used by Lambda.GetValue when a slot is read before it has ever been
// set anywhere the reader can reach.
func (w *World) Bottom(typ Type) *PrimOp {
	return w.Intern(primOpBottom, typ, nil)
}

// Select interns the three-operand conditional-target PrimOp used by
// Lambda.Branch.
func (w *World) Select(cond, tval, fval Node) *PrimOp {
	if !tval.Type().Equal(fval.Type()) {
		panic("select: branch targets have different types")
	}
	return w.Intern(primOpSelect, tval.Type(), []Node{cond, tval, fval})
}

// Rebuild reconstructs a structural node with altered operands,
// re-interning it. Rebuild(p, p.Ops()) is idempotent: it returns p
// itself, since the intern table already holds p under that exact key.
func (w *World) Rebuild(p *PrimOp, newOps []Node) *PrimOp {
	if p.op == primOpLit {
		return w.Literal(p.literal, p.typ)
	}
	return w.Intern(p.op, p.typ, newOps)
}

func primOpKey(op string, typ Type, ops []Node, literal any) string {
	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('|')
	b.WriteString(typ.String())
	if literal != nil {
		fmt.Fprintf(&b, "|%v", literal)
	}
	for _, o := range ops {
		fmt.Fprintf(&b, "|%d", o.Gid())
	}
	return b.String()
}

// Cleanup garbage-collects PrimOps that are no longer reachable from
// any live Lambda: it walks every Lambda's operand tree, keeps whatever
// it finds, and drops the intern-table entries for everything else.
// Interned PiTypes are not collected. Lambdas themselves are never
// collected here --
// a Lambda becomes unreachable by falling out of every Scope that
// would have discovered it, which this core leaves to the caller to
// notice (there is no Scope-independent notion of "the whole
// program").
func (w *World) Cleanup() {
	pass := w.NewPass()
	live := map[*PrimOp]struct{}{}

	var mark func(n Node)
	mark = func(n Node) {
		if Visit(n, pass) {
			return
		}
		if p, ok := n.(*PrimOp); ok {
			live[p] = struct{}{}
		}
		for _, op := range n.base().ops {
			if op != nil {
				mark(op)
			}
		}
	}

	for l := range w.lambdas {
		for _, op := range l.ops {
			if op != nil {
				mark(op)
			}
		}
	}

	for key, p := range w.primops {
		if _, ok := live[p]; !ok {
			delete(w.primops, key)
		}
	}
}
