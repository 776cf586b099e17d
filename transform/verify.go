// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Structural verification: the final consumer of a lowered graph. It
// walks every Lambda and checks that a direct call target's parameter
// arity matches the argument count, and that argument and parameter
// types agree.

package transform

import (
	"fmt"
	"strings"

	"tlog.app/go/errors"

	"github.com/s48/cir/cps"
)

// Verify walks every Lambda in the World and reports every call-target
// arity or type mismatch it finds as a single wrapped error, or nil if
// the graph is well formed.
func Verify(world *cps.World) error {
	var mismatches []string

	for _, l := range world.Lambdas() {
		if l.Empty() {
			continue
		}
		to, ok := cps.Deref(l.To()).(*cps.Lambda)
		if !ok {
			continue
		}
		args := l.Args()
		if to.NumParams() != len(args) {
			mismatches = append(mismatches, fmt.Sprintf(
				"%s: call to %s passes %d args, wants %d", l.Name(), to.Name(), len(args), to.NumParams()))
			continue
		}
		for i, arg := range args {
			paramType := to.Param(i).Type()
			argType := cps.Deref(arg).Type()
			if !argType.Equal(paramType) {
				mismatches = append(mismatches, fmt.Sprintf(
					"%s: arg %d to %s has type %s, param wants %s",
					l.Name(), i, to.Name(), argType, paramType))
			}
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	return errors.New("structural verification failed:\n%s", strings.Join(mismatches, "\n"))
}
