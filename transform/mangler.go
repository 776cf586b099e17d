// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The Mangler: cloning a single-entry Scope while simultaneously
// dropping selected entry parameters (replacing them with supplied
// values) and lifting selected free values into new trailing
// parameters, folding decidable conditional jumps and preserving
// self-tail-calls along the way.

package transform

import (
	"github.com/s48/cir/cps"
	"github.com/s48/cir/scope"
)

// Mangler holds the scratch state for one mangle operation: an
// explicit old-node-id -> new-node map, rather than a pointer stashed
// on the node itself under a pass token, so that concurrent mangles of
// disjoint scopes never share mutable node state.
type Mangler struct {
	scope      *scope.Scope
	toDrop     []int
	dropWith   []cps.Node
	toLift     []cps.Node
	genericMap map[string]cps.Type

	world   *cps.World
	mapping map[int]cps.Node

	oentry *cps.Lambda
	nentry *cps.Lambda
}

// NewMangler builds a Mangler for s. toDrop must be sorted ascending
// and the same length as dropWith; s must have exactly one entry.
func NewMangler(s *scope.Scope, toDrop []int, dropWith []cps.Node, toLift []cps.Node, genericMap map[string]cps.Type) *Mangler {
	return &Mangler{
		scope:      s,
		toDrop:     toDrop,
		dropWith:   dropWith,
		toLift:     toLift,
		genericMap: genericMap,
		world:      s.World(),
		mapping:    map[int]cps.Node{},
	}
}

// Clone produces a copy of s's entry with the same signature.
func Clone(s *scope.Scope, genericMap map[string]cps.Type) *cps.Lambda {
	return NewMangler(s, nil, nil, nil, genericMap).Mangle()
}

// Drop replaces the entry's leading parameters, in order, with the
// supplied values: parameter i gets with[i]. Parameters past len(with)
// are kept.
func Drop(s *scope.Scope, with []cps.Node) *cps.Lambda {
	toDrop := make([]int, len(with))
	for i := range with {
		toDrop[i] = i
	}
	return NewMangler(s, toDrop, with, nil, nil).Mangle()
}

// DropIndices replaces the entry parameters named by toDrop (sorted
// ascending) with dropWith, specializing the rest through genericMap.
func DropIndices(s *scope.Scope, toDrop []int, dropWith []cps.Node, genericMap map[string]cps.Type) *cps.Lambda {
	return NewMangler(s, toDrop, dropWith, nil, genericMap).Mangle()
}

// Lift hoists each value in toLift into a new trailing entry
// parameter.
func Lift(s *scope.Scope, toLift []cps.Node, genericMap map[string]cps.Type) *cps.Lambda {
	return NewMangler(s, nil, nil, toLift, genericMap).Mangle()
}

func (m *Mangler) mapNode(old, to cps.Node) cps.Node {
	m.mapping[old.Gid()] = to
	return to
}

func (m *Mangler) lookup(old cps.Node) (cps.Node, bool) {
	n, ok := m.mapping[old.Gid()]
	return n, ok
}

// Mangle runs the clone/drop/lift operation and returns the new
// entry.
func (m *Mangler) Mangle() *cps.Lambda {
	if m.scope.NumEntries() != 1 {
		panic("mangle: scope must have exactly one entry")
	}
	m.oentry = m.scope.Entries()[0]
	oPi := m.oentry.Pi()

	dropSet := map[int]bool{}
	for _, i := range m.toDrop {
		dropSet[i] = true
	}

	nelems := make([]cps.Type, 0, oPi.Size()-len(m.toDrop)+len(m.toLift))
	for i, e := range oPi.Elems {
		if !dropSet[i] {
			nelems = append(nelems, e)
		}
	}
	offset := len(nelems)
	for _, lifted := range m.toLift {
		nelems = append(nelems, lifted.Type())
	}

	nPi := m.world.Pi((&cps.PiType{Elems: nelems}).Specialize(m.genericMap))
	m.nentry = m.world.NewLambda(nPi, m.oentry.Name())

	dropIdx, newIdx := 0, 0
	for op := 0; op < m.oentry.NumParams(); op++ {
		oparam := m.oentry.Param(op)
		if dropSet[op] {
			m.mapNode(oparam, m.dropWith[dropIdx])
			dropIdx++
		} else {
			nparam := m.nentry.Param(newIdx)
			nparam.SetName(oparam.Name())
			m.mapNode(oparam, nparam)
			newIdx++
		}
	}
	for x, lifted := range m.toLift {
		nparam := m.nentry.Param(offset + x)
		nparam.SetName(lifted.Name())
		m.mapNode(lifted, nparam)
	}

	// The old entry maps to itself so mangleBody can recognize a
	// self-tail-call and redirect it to the new entry.
	m.mapNode(m.oentry, m.oentry)
	m.mangleBody(m.oentry, m.nentry)

	for _, cur := range m.scope.RPO()[1:] {
		if mapped, ok := m.lookup(cur); ok {
			m.mangleBody(cur, mapped.AsLambda())
		}
	}

	return m.nentry
}

func (m *Mangler) mangleHead(olambda *cps.Lambda) cps.Node {
	nlambda := olambda.Stub(m.genericMap, olambda.Name())
	m.mapNode(olambda, nlambda)
	for i := 0; i < olambda.NumParams(); i++ {
		m.mapNode(olambda.Param(i), nlambda.Param(i))
	}
	return nlambda
}

func (m *Mangler) mangleBody(olambda, nlambda *cps.Lambda) {
	oargs := olambda.Args()
	nargs := make([]cps.Node, len(oargs))
	for i, a := range oargs {
		nargs[i] = m.mangle(a)
	}

	var target cps.Node
	if sel, ok := cps.Deref(olambda.To()).(*cps.PrimOp); ok && sel.IsSelect() {
		cond := m.mangle(sel.Cond())
		if lit, ok := cond.(*cps.PrimOp); ok && lit.IsLiteral() {
			if truthy(lit.Literal()) {
				target = m.mangle(sel.TVal())
			} else {
				target = m.mangle(sel.FVal())
			}
		} else {
			target = m.world.Select(cond, m.mangle(sel.TVal()), m.mangle(sel.FVal()))
		}
	} else {
		target = m.mangle(olambda.To())
	}

	if lam, ok := target.(*cps.Lambda); ok && lam == m.oentry {
		substitute := true
		for i, idx := range m.toDrop {
			if idx >= len(nargs) || nargs[idx] != m.dropWith[i] {
				substitute = false
				break
			}
		}
		if substitute {
			cut := cutIndices(nargs, m.toDrop)
			liftedArgs := make([]cps.Node, len(m.toLift))
			for i, lifted := range m.toLift {
				liftedArgs[i] = m.mangle(lifted)
			}
			nlambda.Jump(m.nentry, append(cut, liftedArgs...))
			return
		}
	}

	nlambda.Jump(target, nargs)
}

func (m *Mangler) mangle(odef cps.Node) cps.Node {
	odef = cps.Deref(odef)
	if mapped, ok := m.lookup(odef); ok {
		return mapped
	}

	if lam := odef.AsLambda(); lam != nil {
		if m.scope.Contains(lam) {
			return m.mangleHead(lam)
		}
		return m.mapNode(odef, odef)
	}
	if _, ok := odef.(*cps.Param); ok {
		return m.mapNode(odef, odef)
	}

	oprimop := odef.(*cps.PrimOp)
	nops := make([]cps.Node, oprimop.NumOps())
	changed := false
	for i := 0; i < oprimop.NumOps(); i++ {
		op := oprimop.Op(i)
		nop := m.mangle(op)
		nops[i] = nop
		if nop != op {
			changed = true
		}
	}
	if changed {
		return m.mapNode(odef, m.world.Rebuild(oprimop, nops))
	}
	return m.mapNode(odef, oprimop)
}

func cutIndices(nodes []cps.Node, indices []int) []cps.Node {
	if len(indices) == 0 {
		return nodes
	}
	cut := map[int]bool{}
	for _, i := range indices {
		cut[i] = true
	}
	result := make([]cps.Node, 0, len(nodes)-len(indices))
	for i, n := range nodes {
		if !cut[i] {
			result = append(result, n)
		}
	}
	return result
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}
