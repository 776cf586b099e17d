// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package scope

import "github.com/s48/cir/cps"

const (
	valHandle = iota
	retHandle
	iHandle
	nHandle
)

// loopFixture builds a single-level loop -- entryFn calls header with
// the induction variable at zero; header tests it against the bound
// and either falls into the body (which increments and jumps back to
// header) or the exit (which calls the return continuation). Every
// cross-block value is threaded through GetValue/SetValue so that the
// entry's own parameters propagate into header, body and exit exactly
// the way a real front end would build them, which is what lets Scope
// discover all four as belonging to one scope.
func loopFixture() (world *cps.World, entryFn, header, body, exit *cps.Lambda) {
	world = cps.NewWorld()
	i32 := &cps.PrimType{Name: "i32"}
	boolT := &cps.PrimType{Name: "bool"}
	retPi := world.Pi1(i32)

	entryFn = world.NewLambda(world.Pi([]cps.Type{i32, retPi}), "entryFn")
	entryFn.SetValue(nHandle, entryFn.Param(0))
	entryFn.SetValue(retHandle, entryFn.Param(1))
	entryFn.Seal()

	header = world.NewLambda(world.Pi(nil), "header")
	body = world.NewLambda(world.Pi(nil), "body")
	exit = world.NewLambda(world.Pi(nil), "exit")

	zero := world.Literal(int64(0), i32)
	entryFn.SetValue(iHandle, zero)
	entryFn.Jump(header, nil)

	iv := header.GetValue(iHandle, i32, "i")
	nv := header.GetValue(nHandle, i32, "n")
	_ = header.GetValue(retHandle, retPi, "ret")
	cond := world.Intern("lt", boolT, []cps.Node{iv, nv})
	header.Branch(cond, body, exit)

	body.Seal()
	one := world.Literal(int64(1), i32)
	iv2 := world.Intern("add", i32, []cps.Node{body.GetValue(iHandle, i32, "i"), one})
	body.SetValue(iHandle, iv2)
	body.Jump(header, nil)

	exit.Seal()
	rv := exit.GetValue(retHandle, retPi, "ret")
	iFinal := exit.GetValue(iHandle, i32, "i")
	exit.Jump(rv, []cps.Node{iFinal})

	header.Seal()
	return world, entryFn, header, body, exit
}
