// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package cps

import (
	"fmt"

	"github.com/s48/cir/util"
)

// Lambda is a continuation: a nominal, identity-equal node whose body
// is a single jump with arguments. Operand slot 0 is the jump target;
// slots 1..n are the arguments. Two distinct Lambdas with identical
// operand sequences are still different objects -- unlike PrimOp,
// Lambda is never hash-consed.
type Lambda struct {
	nodeBase

	world  *World
	params []*Param

	// parent implements the dominance-based lookup chain used during
	// SSA-like construction (GetValue/SetValue): a Lambda that is not
	// itself a function head delegates unresolved reads to parent.
	// It defaults to itself.
	parent *Lambda

	isSealed bool
	isVisited bool // cycle guard for the multi-predecessor case of GetValue

	trackedValues map[int]Node
	todos         []todoT
}

func (l *Lambda) Pi() *PiType { return l.typ.(*PiType) }

func (l *Lambda) NumParams() int      { return len(l.params) }
func (l *Lambda) Param(i int) *Param  { return l.params[i] }
func (l *Lambda) Params() []*Param {
	result := make([]*Param, len(l.params))
	copy(result, l.params)
	return result
}

func (l *Lambda) World() *World { return l.world }

func (l *Lambda) AsLambda() *Lambda { return l }

func (l *Lambda) Parent() *Lambda        { return l.parent }
func (l *Lambda) SetParent(parent *Lambda) { l.parent = parent }

func (l *Lambda) IsSealed() bool { return l.isSealed }

func (l *Lambda) IsBasicBlock() bool { return l.Pi().IsBasicBlock() }
func (l *Lambda) IsReturning() bool  { return l.Pi().IsReturning() }

// Empty reports whether this Lambda has not yet been given a body
// (Jump/Branch/Call/MemCall has never been called on it).
func (l *Lambda) Empty() bool { return len(l.ops) == 0 }

func (l *Lambda) To() Node { return l.Op(0) }

func (l *Lambda) NumArgs() int { return len(l.ops) - 1 }
func (l *Lambda) Arg(i int) Node { return l.Op(i + 1) }
func (l *Lambda) Args() []Node {
	if l.Empty() {
		return nil
	}
	return l.Ops()[1:]
}

// AppendParam adds a new trailing parameter to this Lambda and widens
// its Pi type to match. It is legal on both sealed and unsealed
// Lambdas -- sealing only prevents further GetValue-driven phi
// resolution, not explicit signature changes made by a caller.
func (l *Lambda) AppendParam(typ Type, name string) *Param {
	pi := l.Pi()
	elems := append(append([]Type(nil), pi.Elems...), typ)
	l.typ = l.world.Pi(elems)
	param := newParam(l.world.nextGID(), l, len(l.params), typ, name)
	l.params = append(l.params, param)
	return param
}

// Jump replaces this Lambda's body with a jump to `to` carrying `args`.
func (l *Lambda) Jump(to Node, args []Node) {
	unsetOps(l)
	resizeOps(l, len(args)+1)
	setOp(l, 0, to)
	for i, arg := range args {
		setOp(l, i+1, arg)
	}
}

// Branch jumps to a Select PrimOp between the two targets, the way
// every conditional in this IR is expressed: there is no separate
// "if" node, only a jump whose target is chosen by a Select.
func (l *Lambda) Branch(cond, tto, fto Node) {
	l.Jump(l.world.Select(cond, tto, fto), nil)
}

// Call creates a fresh single-parameter continuation, jumps `to` with
// `args` followed by that continuation, and returns it so the caller
// can keep building the "rest of the function" as its body. This is
// how a non-tail call is expressed in a graph with no implicit return.
func (l *Lambda) Call(to Node, args []Node, retType Type) *Lambda {
	next := l.world.NewLambda(l.world.Pi1(retType), l.name+"_"+to.Name())
	next.Param(0).SetName(to.Name())

	cargs := make([]Node, len(args)+1)
	copy(cargs, args)
	cargs[len(args)] = next
	l.Jump(to, cargs)

	return next
}

// MemCall is Call's variant for calls that also thread a memory token,
// for callees with side effects. retType may be nil for calls with no
// non-memory result.
func (l *Lambda) MemCall(to Node, args []Node, retType Type) *Lambda {
	var pi *PiType
	if retType != nil {
		pi = l.world.Pi2(Mem, retType)
	} else {
		pi = l.world.Pi1(Mem)
	}
	next := l.world.NewLambda(pi, l.name+"_"+to.Name())
	next.Param(0).SetName("mem")
	if retType != nil {
		next.Param(1).SetName(to.Name())
	}

	cargs := make([]Node, len(args)+1)
	copy(cargs, args)
	cargs[len(args)] = next
	l.Jump(to, cargs)

	return next
}

// Stub creates a fresh Lambda with the same signature as l, specialized
// through genericMap, and with matching parameter names but no body.
// The Mangler uses this to create the shell of a cloned Lambda before
// filling in its rewritten body.
func (l *Lambda) Stub(genericMap map[string]Type, name string) *Lambda {
	elems := l.Pi().specialize(genericMap)
	result := l.world.NewLambda(l.world.Pi(elems), name)
	for i, p := range l.params {
		result.params[i].SetName(p.Name())
	}
	return result
}

// Succs returns every Lambda reachable from this Lambda's operand tree:
// the target of its jump plus every Lambda reachable by walking through
// non-Lambda structural operands (e.g. through a Select, or through an
// argument that is itself a Lambda passed as a value). It keeps its own
// visited set rather than taking a pass token, so it leaves the
// pass-token stamps of an enclosing traversal intact.
func (l *Lambda) Succs() []*Lambda {
	seen := map[Node]bool{}
	result := []*Lambda{}
	queue := &util.QueueT[Node]{}

	enqueue := func(n Node) {
		if n != nil && !seen[n] {
			seen[n] = true
			queue.Enqueue(n)
		}
	}
	for _, op := range l.Ops() {
		enqueue(op)
	}
	for !queue.Empty() {
		def := queue.Dequeue()
		if lam := def.AsLambda(); lam != nil {
			result = append(result, lam)
			continue
		}
		for _, op := range def.Ops() {
			enqueue(op)
		}
	}
	return result
}

// Preds is Succs' mirror image over the uses relation.
func (l *Lambda) Preds() []*Lambda {
	seen := map[Node]bool{}
	result := []*Lambda{}
	queue := &util.QueueT[Node]{}

	enqueue := func(n Node) {
		if n != nil && !seen[n] {
			seen[n] = true
			queue.Enqueue(n)
		}
	}
	for _, u := range l.Uses() {
		enqueue(u.User)
	}
	for !queue.Empty() {
		def := queue.Dequeue()
		if lam := def.AsLambda(); lam != nil {
			result = append(result, lam)
			continue
		}
		for _, u := range def.Uses() {
			enqueue(u.User)
		}
	}
	return result
}

// DirectSuccs returns only the immediate jump target(s): one Lambda
// for a plain jump, two for a jump through a Select (the branch
// targets), none for an empty Lambda.
func (l *Lambda) DirectSuccs() []*Lambda {
	if l.Empty() {
		return nil
	}
	to := Deref(l.To())
	if lam := to.AsLambda(); lam != nil {
		return []*Lambda{lam}
	}
	if p, ok := to.(*PrimOp); ok && p.IsSelect() {
		return []*Lambda{Deref(p.TVal()).AsLambda(), Deref(p.FVal()).AsLambda()}
	}
	return nil
}

// DirectPreds is DirectSuccs' mirror: the Lambdas that directly jump
// to l, following through any Select that l is a branch target of.
func (l *Lambda) DirectPreds() []*Lambda {
	result := []*Lambda{}
	for _, u := range l.Uses() {
		if sel, ok := u.User.(*PrimOp); ok && sel.IsSelect() {
			for _, su := range sel.Uses() {
				if su.Index != 0 {
					panic("select used somewhere other than a jump target")
				}
				if lam := su.User.AsLambda(); lam != nil {
					result = append(result, lam)
				}
			}
		} else if u.Index == 0 {
			if lam := u.User.AsLambda(); lam != nil {
				result = append(result, lam)
			}
		}
	}
	return result
}

func (l *Lambda) String() string {
	return fmt.Sprintf("%s_%d", l.name, l.gid)
}
