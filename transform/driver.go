// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The multi-world lowering driver: World is not safe for concurrent
// mutation, but distinct Worlds are wholly independent of each other,
// so a batch of them can be driven to first-order form in parallel,
// one goroutine per World, bounded the way a directory of independent
// source files would be.

package transform

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/s48/cir/cps"
)

// LowerAll runs Lower2CFF over every World in worlds concurrently,
// at most jobs at a time (GOMAXPROCS when jobs <= 0), returning the
// first error encountered and cancelling the rest via ctx.
func LowerAll(ctx context.Context, worlds []*cps.World, jobs int) error {
	if len(worlds) == 0 {
		return nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(worlds)))

	for _, w := range worlds {
		w := w
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return Lower2CFF(w)
		})
	}
	return g.Wait()
}
