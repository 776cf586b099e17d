// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package cps

import "testing"

const (
	valHandle = iota
	retHandle
	iHandle
	nHandle
)

// TestDiamondMergeResolvesConflictingAndTrivialPhis builds a two-way
// merge where branch arm produces distinct values for one tracked
// handle (a genuine conflict, so the phi parameter survives) and the
// same, reused return continuation for another (a trivial phi, which
// Seal's fix-up collapses back to the shared original).
func TestDiamondMergeResolvesConflictingAndTrivialPhis(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	boolT := &PrimType{Name: "bool"}
	retPi := w.Pi1(i32)

	entry := w.NewLambda(w.Pi([]Type{boolT, retPi}), "entry")
	entry.SetValue(retHandle, entry.Param(1))
	entry.Seal()

	left := w.NewLambda(w.Pi(nil), "left")
	right := w.NewLambda(w.Pi(nil), "right")
	merge := w.NewLambda(w.Pi(nil), "merge")

	entry.Branch(entry.Param(0), left, right)
	left.Seal()
	right.Seal()

	lit1 := w.Literal(int64(1), i32)
	left.SetValue(valHandle, lit1)
	left.Jump(merge, nil)

	lit2 := w.Literal(int64(2), i32)
	right.SetValue(valHandle, lit2)
	right.Jump(merge, nil)

	v := merge.GetValue(valHandle, i32, "v")
	retv := merge.GetValue(retHandle, retPi, "ret")
	merge.Jump(retv, []Node{v})
	merge.Seal()

	if merge.NumParams() != 2 {
		t.Fatalf("expected merge to still carry both phi parameter slots, got %d", merge.NumParams())
	}
	if Deref(merge.Param(0)) != Node(merge.Param(0)) {
		t.Errorf("expected the conflicting value phi to survive unresolved, got %v", Deref(merge.Param(0)))
	}
	if Deref(merge.Param(1)) != Node(entry.Param(1)) {
		t.Errorf("expected the trivial return-continuation phi to collapse to entry's own param, got %v", Deref(merge.Param(1)))
	}
	if Deref(merge.To()) != Node(entry.Param(1)) {
		t.Errorf("expected merge's jump target to resolve to entry's return continuation, got %v", Deref(merge.To()))
	}

	if Deref(left.Arg(0)) != Node(lit1) {
		t.Errorf("expected left's contributed value arg to be lit1, got %v", Deref(left.Arg(0)))
	}
	if Deref(left.Arg(1)) != Node(entry.Param(1)) {
		t.Errorf("expected left's contributed continuation arg to resolve to entry's ret param, got %v", Deref(left.Arg(1)))
	}
	if Deref(right.Arg(0)) != Node(lit2) {
		t.Errorf("expected right's contributed value arg to be lit2, got %v", Deref(right.Arg(0)))
	}
	if Deref(right.Arg(1)) != Node(entry.Param(1)) {
		t.Errorf("expected right's contributed continuation arg to resolve to entry's ret param, got %v", Deref(right.Arg(1)))
	}
}

// TestLoopHeaderEliminatesSelfReferentialPhis builds a single-level
// loop: the induction variable genuinely conflicts between the
// preheader and the back edge and so keeps its phi, while the loop
// bound and return continuation, both merely re-read through the back
// edge unchanged, collapse away.
func TestLoopHeaderEliminatesSelfReferentialPhis(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	boolT := &PrimType{Name: "bool"}
	retPi := w.Pi1(i32)

	entryFn := w.NewLambda(w.Pi([]Type{i32, retPi}), "entryFn")
	entryFn.SetValue(nHandle, entryFn.Param(0))
	entryFn.SetValue(retHandle, entryFn.Param(1))
	entryFn.Seal()

	header := w.NewLambda(w.Pi(nil), "header")
	body := w.NewLambda(w.Pi(nil), "body")
	exit := w.NewLambda(w.Pi(nil), "exit")

	zero := w.Literal(int64(0), i32)
	entryFn.SetValue(iHandle, zero)
	entryFn.Jump(header, nil)

	iv := header.GetValue(iHandle, i32, "i")
	nv := header.GetValue(nHandle, i32, "n")
	_ = header.GetValue(retHandle, retPi, "ret")
	cond := w.Intern("lt", boolT, []Node{iv, nv})
	header.Branch(cond, body, exit)

	body.Seal()
	one := w.Literal(int64(1), i32)
	iv2 := w.Intern("add", i32, []Node{body.GetValue(iHandle, i32, "i"), one})
	body.SetValue(iHandle, iv2)
	body.Jump(header, nil)

	exit.Seal()
	rv := exit.GetValue(retHandle, retPi, "ret")
	iFinal := exit.GetValue(iHandle, i32, "i")
	exit.Jump(rv, []Node{iFinal})

	header.Seal()

	if Deref(header.Param(0)) != Node(header.Param(0)) {
		t.Errorf("expected the induction variable phi to survive (its two arms genuinely conflict), got %v", Deref(header.Param(0)))
	}
	if Deref(header.Param(1)) != Node(entryFn.Param(0)) {
		t.Errorf("expected the loop-invariant bound phi to collapse to entryFn's own param, got %v", Deref(header.Param(1)))
	}
	if Deref(header.Param(2)) != Node(entryFn.Param(1)) {
		t.Errorf("expected the return-continuation phi to collapse to entryFn's own param, got %v", Deref(header.Param(2)))
	}

	if Deref(entryFn.Arg(0)) != Node(zero) {
		t.Errorf("expected entryFn's contributed induction-variable arg to be zero, got %v", Deref(entryFn.Arg(0)))
	}
	if Deref(body.Arg(0)) != Node(iv2) {
		t.Errorf("expected body's contributed induction-variable arg to be the incremented value, got %v", Deref(body.Arg(0)))
	}
	if Deref(body.Arg(1)) != Node(entryFn.Param(0)) {
		t.Errorf("expected body's contributed bound arg to resolve to entryFn's own param, got %v", Deref(body.Arg(1)))
	}
	if Deref(body.Arg(2)) != Node(entryFn.Param(1)) {
		t.Errorf("expected body's contributed continuation arg to resolve to entryFn's own param, got %v", Deref(body.Arg(2)))
	}
}

// TestTrivialParamCascadesThroughForwardingCall covers the case
// TryRemoveTrivialParam's own doc comment promises but the diamond and
// loop fixtures above never exercise: collapsing one Lambda's phi can
// only make a later Lambda's phi trivial once the first collapse has
// happened. joiner forwards its own (still unresolved) phi on to next
// as a call argument; next's parameter cannot resolve while direct's
// contribution (src's param) and joiner's contribution (the unresolved
// phi) still look like two different values, and only becomes trivial
// once joiner's own phi collapses to that same src param.
func TestTrivialParamCascadesThroughForwardingCall(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	retPi := w.Pi1(i32)

	src := w.NewLambda(w.Pi([]Type{retPi}), "src")
	src.SetValue(retHandle, src.Param(0))
	src.Seal()

	next := w.NewLambda(w.Pi([]Type{retPi}), "next")

	direct := w.NewLambda(w.Pi(nil), "direct")
	direct.Jump(next, []Node{src.Param(0)})

	joiner := w.NewLambda(w.Pi(nil), "joiner")
	retv := joiner.GetValue(retHandle, retPi, "ret")
	joiner.Jump(next, []Node{retv})
	src.Jump(joiner, nil)
	joiner.Seal()

	if Deref(joiner.Arg(0)) != Node(src.Param(0)) {
		t.Fatalf("expected joiner's own phi to collapse to src's param, got %v", Deref(joiner.Arg(0)))
	}
	if Deref(next.Param(0)) != Node(src.Param(0)) {
		t.Errorf("expected next's parameter to cascade-collapse to src's param once joiner's phi resolved, got %v", Deref(next.Param(0)))
	}
	if next.NumParams() != 1 {
		t.Errorf("expected the cascade to resolve next's param in place rather than changing its arity, got %d", next.NumParams())
	}
}

func TestGetValueOnUnreachableLambdaYieldsBottom(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	orphan := w.NewLambda(w.Pi(nil), "orphan")
	orphan.Seal()

	v := orphan.GetValue(valHandle, i32, "v")
	p, ok := v.(*PrimOp)
	if !ok || p.Opcode() != primOpBottom {
		t.Errorf("expected GetValue on a sealed lambda with no preds to yield Bottom, got %v", v)
	}
}
