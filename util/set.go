// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// SetT backs loop-body membership tracking (see scope/loop.go's
// markLoopBody): a set of Lambdas discovered while walking backward
// from a loop's back-edge sources up to its header. Trimmed to the
// operations that walk actually needs -- add, membership test, and a
// snapshot of the members for LoopNode.Body -- rather than carrying
// the general-purpose set algebra (union/intersection/difference,
// arbitrary removal) nothing here calls.

package util

type SetT[E comparable] map[E]struct{}

func NewSet[E comparable](members ...E) SetT[E] {
	set := SetT[E]{}
	set.Add(members...)
	return set
}

func (set SetT[E]) Add(members ...E) {
	for _, member := range members {
		set[member] = struct{}{}
	}
}

func (set SetT[E]) Contains(member E) bool {
	_, found := set[member]
	return found
}

// Members returns the set's contents in unspecified order; callers
// that need a stable order (LoopNode.Body's callers, for instance)
// sort it themselves.
func (set SetT[E]) Members() []E {
	result := make([]E, 0, len(set))
	for member := range set {
		result = append(result, member)
	}
	return result
}
