// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Lowering to continuation-passing first-order form: repeatedly
// specializing call sites whose direct target is a "bad" (higher-order
// or non-local) continuation, until no more specializations apply,
// first scope-locally and then globally.

package transform

import (
	"fmt"
	"strings"

	"tlog.app/go/tlog"

	"github.com/s48/cir/cps"
	"github.com/s48/cir/scope"
)

// Lower2CFF drives the whole world to continuation-passing first-order
// form: no jump target is higher-order except at a scope's returning
// boundary. It runs a local specialization pass to fixed point, then a
// global one, cleans up the graph, and hands it to Verify.
func Lower2CFF(world *cps.World) error {
	cache := map[string]*cps.Lambda{}
	seenTop := map[*cps.Lambda]bool{}

	runPhase := func(global bool) {
		for {
			changed := false
			scope.ForEach(world, func(s *scope.Scope) {
				for _, e := range s.Entries() {
					seenTop[e] = true
				}
				rpo := s.RPO()
				for i := len(rpo) - 1; i >= 0; i-- {
					cur := rpo[i]
					if cur.Empty() {
						continue
					}
					to, ok := cps.Deref(cur.To()).(*cps.Lambda)
					if !ok {
						continue
					}
					if !isBadTarget(global, to, s, seenTop) {
						continue
					}
					specializeCallSite(world, cache, cur, to)
					changed = true
				}
			})
			if !changed {
				break
			}
		}
	}

	tlog.Printw("lower2cff: local phase")
	runPhase(false)
	tlog.Printw("lower2cff: global phase")
	runPhase(true)

	world.Cleanup()
	return Verify(world)
}

func isBadTarget(global bool, to *cps.Lambda, s *scope.Scope, seenTop map[*cps.Lambda]bool) bool {
	if !global {
		return s.Contains(to) && !to.Pi().IsBasicBlock()
	}
	if seenTop[to] {
		return !to.IsReturning() && !s.Contains(to)
	}
	return !to.Pi().IsBasicBlock()
}

// specializeCallSite drops every higher-order argument in the call
// from cur to to, reusing a cached specialization when the same
// (target, higher-order-argument-values) signature has been seen
// before, and retargets cur's jump to it.
func specializeCallSite(world *cps.World, cache map[string]*cps.Lambda, cur, to *cps.Lambda) {
	args := cur.Args()
	toDrop := []int{}
	dropWith := []cps.Node{}
	for i, a := range args {
		if cps.Deref(a).Type().Order() > 0 {
			toDrop = append(toDrop, i)
			dropWith = append(dropWith, cps.Deref(a))
		}
	}

	key := signatureKey(to, args, toDrop)
	specialized, ok := cache[key]
	if !ok {
		toScope := scope.New(to)
		specialized = DropIndices(toScope, toDrop, dropWith, nil)
		cache[key] = specialized
		tlog.Printw("lower2cff: specialized", "target", to.Name(), "dropped", len(toDrop))
	}

	cur.Jump(specialized, cutIndices(args, toDrop))
}

func signatureKey(to *cps.Lambda, args []cps.Node, toDrop []int) string {
	dropped := map[int]bool{}
	for _, i := range toDrop {
		dropped[i] = true
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d", to.Gid())
	for i, a := range args {
		if dropped[i] {
			fmt.Fprintf(&b, "|%d", cps.Deref(a).Gid())
		} else {
			b.WriteString("|_")
		}
	}
	return b.String()
}
