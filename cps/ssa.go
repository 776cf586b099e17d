// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Incremental, SSA-like construction of continuation bodies: a
// front end fills in a Lambda's uses of arbitrary "slot handles" via
// GetValue/SetValue before the Lambda's predecessors are all known,
// and Seal resolves whatever phi parameters that required.

package cps

import "tlog.app/go/tlog"

// todoT is a pending fix-up: a Param was spliced in speculatively
// (either because the owning Lambda was still unsealed, or because a
// multi-predecessor read hit a genuine conflict) and needs, once every
// predecessor is known, to have the right argument threaded into each
// predecessor's jump.
type todoT struct {
	handle int
	index  int
	typ    Type
	name   string
}

// SetValue records def as the current value of handle in this Lambda,
// returning def unchanged for convenient chaining.
func (l *Lambda) SetValue(handle int, def Node) Node {
	l.trackedValues[handle] = def
	return def
}

// GetValue resolves the current value of handle as seen from this
// Lambda, introducing a Param and a pending fix-up when the value is
// not yet locally known and this Lambda cannot yet say what its
// predecessors will supply.
func (l *Lambda) GetValue(handle int, typ Type, name string) Node {
	if v, ok := l.trackedValues[handle]; ok {
		return v
	}

	if l.parent != l {
		if l.parent != nil {
			return l.SetValue(handle, l.parent.GetValue(handle, typ, name))
		}
		return l.bottomValue(handle, typ, name)
	}

	if !l.isSealed {
		param := l.AppendParam(typ, name)
		l.todos = append(l.todos, todoT{handle: handle, index: param.Index(), typ: typ, name: name})
		return l.SetValue(handle, param)
	}

	preds := l.Preds()
	switch len(preds) {
	case 0:
		return l.bottomValue(handle, typ, name)
	case 1:
		return l.SetValue(handle, preds[0].GetValue(handle, typ, name))
	default:
		if l.isVisited {
			return l.SetValue(handle, l.AppendParam(typ, name))
		}
		l.isVisited = true
		var same Node
		conflict := false
		for _, pred := range preds {
			def := pred.GetValue(handle, typ, name)
			if same != nil && same != def {
				conflict = true
				break
			}
			same = def
		}
		l.isVisited = false

		if !conflict {
			return l.SetValue(handle, same)
		}

		param := l.AppendParam(typ, name)
		l.todos = append(l.todos, todoT{handle: handle, index: param.Index(), typ: typ, name: name})
		return l.SetValue(handle, param)
	}
}

func (l *Lambda) bottomValue(handle int, typ Type, name string) Node {
	tlog.Printw("undefined value", "lambda", l.name, "handle", handle, "name", name)
	return l.SetValue(handle, l.world.Bottom(typ))
}

// Seal freezes this Lambda's parameter list and resolves every pending
// fix-up recorded while it was open. Re-sealing is a programmer error.
func (l *Lambda) Seal() {
	if l.isSealed {
		panic("seal: lambda already sealed")
	}
	l.isSealed = true
	todos := l.todos
	l.todos = nil
	for _, todo := range todos {
		l.fix(todo)
	}
}

// Clear drops this Lambda's recorded value bindings, e.g. before
// reusing it as the target of a fresh incremental construction.
func (l *Lambda) Clear() {
	l.trackedValues = map[int]Node{}
}

// fix threads the value each predecessor supplies for todo.handle into
// the corresponding argument slot, growing the predecessor's argument
// list if this parameter was appended after the predecessor's jump was
// already built, and then attempts to eliminate the parameter if every
// predecessor turned out to agree.
func (l *Lambda) fix(todo todoT) Node {
	param := l.Param(todo.index)
	for _, pred := range l.Preds() {
		if pred.Empty() {
			panic("fix: predecessor has no jump")
		}
		if len(pred.Succs()) != 1 {
			panic("fix: critical edge into a lambda with a pending phi fix-up")
		}
		if todo.index >= pred.NumArgs() {
			resizeOps(pred, todo.index+2)
		}
		if pred.Arg(todo.index) != nil {
			panic("fix: predecessor argument slot already occupied")
		}
		value := pred.GetValue(todo.handle, todo.typ, todo.name)
		setOp(pred, todo.index+1, value)
	}
	return l.TryRemoveTrivialParam(param)
}

// TryRemoveTrivialParam replaces param with the single value flowing
// into it from every predecessor, if there is one, then cascades the
// same check onto any Lambda that used to receive param as an operand
// and passes the replacement value onward as a continuation argument
// -- this is how chains of redundant phis collapse after a merge
// simplifies. It is a no-op, returning param itself, when no single
// value covers every predecessor.
func (l *Lambda) TryRemoveTrivialParam(param *Param) Node {
	return l.tryRemoveTrivialParam(param, l.world.NewPass())
}

func (l *Lambda) tryRemoveTrivialParam(param *Param, pass int) Node {
	if Visit(param, pass) {
		return Deref(param)
	}

	preds := param.Lambda().Preds()
	var same Node
	for _, pred := range preds {
		def := Deref(pred.Arg(param.Index()))
		if def == nil || def == param || def == same {
			continue
		}
		if same != nil {
			return param
		}
		same = def
	}
	if same == nil {
		same = param
	}

	uses := param.Uses()
	replace(param, same)

	for _, u := range uses {
		lam, ok := u.User.(*Lambda)
		if !ok || u.Index == 0 {
			continue
		}
		to, ok := Deref(lam.To()).(*Lambda)
		if !ok {
			continue
		}
		argIndex := u.Index - 1
		if argIndex >= to.NumParams() {
			continue
		}
		if p := to.Param(argIndex); p != param {
			to.tryRemoveTrivialParam(p, pass)
		}
	}
	return same
}
