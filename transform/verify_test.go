// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package transform

import (
	"strings"
	"testing"

	"github.com/s48/cir/cps"
)

func TestVerifyAcceptsWellFormedGraph(t *testing.T) {
	w := cps.NewWorld()
	i32 := &cps.PrimType{Name: "i32"}
	retPi := w.Pi1(i32)

	entry := w.NewLambda(w.Pi([]cps.Type{i32, retPi}), "entry")
	entry.Jump(entry.Param(1), []cps.Node{entry.Param(0)})

	if err := Verify(w); err != nil {
		t.Fatalf("expected a well-formed graph to verify, got %v", err)
	}
}

func TestVerifyIgnoresEmptyLambdas(t *testing.T) {
	w := cps.NewWorld()
	i32 := &cps.PrimType{Name: "i32"}
	w.NewLambda(w.Pi([]cps.Type{i32}), "stub")

	if err := Verify(w); err != nil {
		t.Fatalf("expected a lambda with no body to be skipped, got %v", err)
	}
}

func TestVerifyCatchesArityMismatch(t *testing.T) {
	w := cps.NewWorld()
	i32 := &cps.PrimType{Name: "i32"}

	to := w.NewLambda(w.Pi([]cps.Type{i32, i32}), "to")
	to.Jump(to.Param(0), nil)

	from := w.NewLambda(w.Pi([]cps.Type{i32}), "from")
	from.Jump(to, []cps.Node{from.Param(0)})

	err := Verify(w)
	if err == nil {
		t.Fatalf("expected an arity mismatch to be reported")
	}
	if !strings.Contains(err.Error(), "from") || !strings.Contains(err.Error(), "to") {
		t.Errorf("expected the error to name both lambdas, got %v", err)
	}
}

func TestVerifyCatchesTypeMismatch(t *testing.T) {
	w := cps.NewWorld()
	i32 := &cps.PrimType{Name: "i32"}
	boolT := &cps.PrimType{Name: "bool"}

	to := w.NewLambda(w.Pi([]cps.Type{i32}), "to")
	to.Jump(to.Param(0), nil)

	from := w.NewLambda(w.Pi([]cps.Type{boolT}), "from")
	from.Jump(to, []cps.Node{from.Param(0)})

	err := Verify(w)
	if err == nil {
		t.Fatalf("expected a type mismatch to be reported")
	}
	if !strings.Contains(err.Error(), "bool") || !strings.Contains(err.Error(), "i32") {
		t.Errorf("expected the error to name both types, got %v", err)
	}
}

func TestVerifyAggregatesMultipleMismatches(t *testing.T) {
	w := cps.NewWorld()
	i32 := &cps.PrimType{Name: "i32"}

	to := w.NewLambda(w.Pi([]cps.Type{i32, i32}), "to")
	to.Jump(to.Param(0), nil)

	bad1 := w.NewLambda(w.Pi([]cps.Type{i32}), "bad1")
	bad1.Jump(to, []cps.Node{bad1.Param(0)})

	bad2 := w.NewLambda(w.Pi([]cps.Type{i32}), "bad2")
	bad2.Jump(to, []cps.Node{bad2.Param(0)})

	err := Verify(w)
	if err == nil {
		t.Fatalf("expected mismatches from both call sites to be reported")
	}
	if !strings.Contains(err.Error(), "bad1") || !strings.Contains(err.Error(), "bad2") {
		t.Errorf("expected the error to mention both offending lambdas, got %v", err)
	}
}
