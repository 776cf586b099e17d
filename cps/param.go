// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package cps

// Param is the i-th formal parameter of a specific Lambda. Its
// identity is (owning Lambda, index): the Lambda that owns it creates
// exactly one Param object per index, so pointer equality already
// implies that identity -- there is no separate interning table for
// Params the way there is for PrimOps.
type Param struct {
	nodeBase
	lambda *Lambda
	index  int
}

func (p *Param) Lambda() *Lambda { return p.lambda }
func (p *Param) Index() int      { return p.index }

func newParam(gid int, lambda *Lambda, index int, typ Type, name string) *Param {
	p := &Param{
		nodeBase: nodeBase{gid: gid, kind: KindParam, typ: typ, name: name},
	}
	p.representative = p
	p.lambda = lambda
	p.index = index
	return p
}
