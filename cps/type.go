// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The minimal, closed type contract the core needs in order to make
// arity and specialization decisions. The concrete source type system
// is an out-of-scope collaborator; this is only the sliver of type
// machinery the core needs to understand on its own.

package cps

import "strings"

// Type is satisfied by every type the core hands around. Order is 0
// for first-order (data) types and N for a function-like type that
// itself carries an (N-1)-order continuation parameter, mirroring
// anydsl2/thorin's notion of a type's order (see lambda.cpp's use of
// pi()->is_basicblock() and pi()->is_returning(), and lower2cff.cpp's
// use of param->order()).
type Type interface {
	Order() int
	Equal(other Type) bool
	String() string
}

// PrimType is a named scalar type, e.g. "i32" or "bool".
type PrimType struct {
	Name string
}

func (t *PrimType) Order() int { return 0 }
func (t *PrimType) String() string { return t.Name }

func (t *PrimType) Equal(other Type) bool {
	o, ok := other.(*PrimType)
	return ok && o.Name == t.Name
}

// MemType is the singleton type of the memory token threaded through
// side-effecting call chains (Lambda.MemCall).
type MemType struct{}

func (t *MemType) Order() int { return 0 }
func (t *MemType) String() string { return "mem" }

func (t *MemType) Equal(other Type) bool {
	_, ok := other.(*MemType)
	return ok
}

// Mem is the one MemType value; there is never a reason to allocate
// a second one.
var Mem Type = &MemType{}

// PiType is the signature of a Lambda: an ordered product of
// parameter types. The World interns PiTypes so that pointer equality
// implies structural equality, the same way it interns PrimOps.
type PiType struct {
	Elems []Type
}

func (t *PiType) Order() int {
	order := 0
	for _, e := range t.Elems {
		if o := e.Order() + 1; o > order {
			order = o
		}
	}
	return order
}

func (t *PiType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, e := range t.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (t *PiType) Equal(other Type) bool {
	o, ok := other.(*PiType)
	if !ok || len(o.Elems) != len(t.Elems) {
		return false
	}
	for i, e := range t.Elems {
		if !e.Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (t *PiType) Size() int { return len(t.Elems) }

// IsBasicBlock reports whether every parameter is first-order: a
// lambda with this signature can never be handed a continuation
// argument and is reachable only by a direct, intra-procedural jump.
func (t *PiType) IsBasicBlock() bool {
	for _, e := range t.Elems {
		if e.Order() > 0 {
			return false
		}
	}
	return true
}

// IsReturning reports whether exactly one parameter is a first-order
// continuation: the classic "return continuation" shape produced by
// Lambda.Call/Lambda.MemCall.
func (t *PiType) IsReturning() bool {
	count := 0
	for _, e := range t.Elems {
		if e.Order() == 1 {
			count++
		}
	}
	return count == 1
}

// Specialize substitutes generic placeholders in elems according to
// genericMap, returning a new (unintern'd -- the caller interns it)
// element slice. The core's generic map is a simple name->Type
// substitution; a richer generic system is the concrete type system's
// business, not this core's.
func (t *PiType) Specialize(genericMap map[string]Type) []Type {
	return t.specialize(genericMap)
}

func (t *PiType) specialize(genericMap map[string]Type) []Type {
	if len(genericMap) == 0 {
		return append([]Type(nil), t.Elems...)
	}
	elems := make([]Type, len(t.Elems))
	for i, e := range t.Elems {
		if g, ok := e.(*GenericType); ok {
			if sub, found := genericMap[g.Name]; found {
				elems[i] = sub
				continue
			}
		}
		elems[i] = e
	}
	return elems
}

// GenericType is a placeholder type variable resolved by a
// generic-substitution map during mangling. It never appears in a
// finished, fully-specialized graph.
type GenericType struct {
	Name string
}

func (t *GenericType) Order() int { return 0 }
func (t *GenericType) String() string { return "'" + t.Name }

func (t *GenericType) Equal(other Type) bool {
	o, ok := other.(*GenericType)
	return ok && o.Name == t.Name
}
