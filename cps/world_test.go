// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package cps

import "testing"

func TestLiteralHashConsing(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}

	a := w.Literal(int64(41), i32)
	b := w.Literal(int64(41), i32)
	if a != b {
		t.Errorf("Literal: expected the same object for two equal (value, type) pairs, got distinct %p and %p", a, b)
	}

	c := w.Literal(int64(42), i32)
	if a == c {
		t.Errorf("Literal: distinct values must not collapse to the same object")
	}

	boolT := &PrimType{Name: "bool"}
	d := w.Literal(int64(41), boolT)
	if a == d {
		t.Errorf("Literal: equal values of different types must not collapse to the same object")
	}
}

func TestInternHashConsing(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	a := w.Literal(int64(1), i32)
	b := w.Literal(int64(2), i32)

	c := w.Intern("add", i32, []Node{a, b})
	d := w.Intern("add", i32, []Node{a, b})
	if c != d {
		t.Errorf("Intern: expected the same object for equal (op, type, operands)")
	}

	e := w.Intern("add", i32, []Node{b, a})
	if c == e {
		t.Errorf("Intern: operand order matters and must not collapse to the same object")
	}
}

func TestInternDereferencesOperands(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	a := w.Literal(int64(1), i32)
	b := w.Literal(int64(2), i32)

	before := w.Intern("add", i32, []Node{a, b})
	replace(a, b)

	// A fresh Intern built directly from b, b must collapse onto the
	// already-interned PrimOp built from a, b before the replace.
	after := w.Intern("add", i32, []Node{b, b})
	if before != after {
		t.Errorf("Intern: expected operands to be interned by their current (post-deref) identity")
	}
}

func TestRebuildIdempotentOnUnchangedOperands(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	a := w.Literal(int64(1), i32)
	b := w.Literal(int64(2), i32)
	add := w.Intern("add", i32, []Node{a, b})

	same := w.Rebuild(add, add.Ops())
	if same != add {
		t.Errorf("Rebuild: expected the identical PrimOp when operands are unchanged")
	}
}

func TestPiInterning(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	p1 := w.Pi([]Type{i32, i32})
	p2 := w.Pi([]Type{i32, i32})
	if p1 != p2 {
		t.Errorf("Pi: expected the same object for an equal element sequence")
	}

	p3 := w.Pi([]Type{i32})
	if p1 == p3 {
		t.Errorf("Pi: different element sequences must not collapse to the same object")
	}
}

func TestCleanupDropsUnreachablePrimOps(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	entry := w.NewLambda(w.Pi([]Type{i32}), "entry")
	exit := w.NewLambda(w.Pi([]Type{i32}), "exit")

	orphan := w.Intern("add", i32, []Node{entry.Param(0), w.Literal(int64(1), i32)})
	_ = orphan

	entry.Jump(exit, []Node{entry.Param(0)})
	w.Cleanup()

	again := w.Intern("add", i32, []Node{entry.Param(0), w.Literal(int64(1), i32)})
	if orphan == again {
		t.Errorf("Cleanup: expected the unreachable PrimOp's intern-table slot to have been reclaimed")
	}
}

func TestCleanupKeepsReachablePrimOps(t *testing.T) {
	w := NewWorld()
	i32 := &PrimType{Name: "i32"}
	entry := w.NewLambda(w.Pi([]Type{i32}), "entry")
	exit := w.NewLambda(w.Pi([]Type{i32}), "exit")

	one := w.Literal(int64(1), i32)
	sum := w.Intern("add", i32, []Node{entry.Param(0), one})
	entry.Jump(exit, []Node{sum})
	w.Cleanup()

	again := w.Intern("add", i32, []Node{entry.Param(0), one})
	if sum != again {
		t.Errorf("Cleanup: expected a live PrimOp to keep its intern-table slot")
	}
}
