// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Scope extracts, for a set of entry continuations, the induced
// subgraph of continuations reachable via parameter-use chains, and
// numbers it in reverse postorder both forwards and backwards.

package scope

import (
	"sort"

	"github.com/s48/cir/cps"
)

type Scope struct {
	world   *cps.World
	entries []*cps.Lambda
	entrySet map[*cps.Lambda]struct{}

	rpo      []*cps.Lambda
	sid      map[*cps.Lambda]int
	contains map[*cps.Lambda]struct{}

	exits        []*cps.Lambda
	exitSet      map[*cps.Lambda]struct{}
	backwardsRPO []*cps.Lambda
	backwardsSid map[*cps.Lambda]int

	succsCache map[*cps.Lambda][]*cps.Lambda
	predsCache map[*cps.Lambda][]*cps.Lambda

	domTree     *DomTree
	postDomTree *DomTree
	loopInfo    *LoopInfo
}

// New computes the Scope induced by a single entry continuation.
func New(entry *cps.Lambda) *Scope {
	return build(entry.World(), []*cps.Lambda{entry})
}

// NewEntries computes the Scope induced by several entry continuations
// at once: the union of what each would induce alone, numbered as one
// contiguous RPO with the entries occupying its front.
func NewEntries(world *cps.World, entries []*cps.Lambda) *Scope {
	return build(world, entries)
}

// NewWorldScope computes a single Scope spanning every continuation in
// the World, with entries being every continuation that is never
// itself passed as the value of some other continuation's parameter
// (i.e. every lambda that is not, directly or indirectly, called
// through a param-use chain from elsewhere).
func NewWorldScope(world *cps.World) *Scope {
	return build(world, findRoots(world))
}

// ForEach visits every top-level scope in the World: one Scope per
// root continuation found by the same reachability analysis
// NewWorldScope uses to pick its entries.
func ForEach(world *cps.World, fn func(*Scope)) {
	for _, root := range findRoots(world) {
		fn(New(root))
	}
}

func build(world *cps.World, entries []*cps.Lambda) *Scope {
	contains := analyze(world, entries)
	rpo, sid := numberForward(world, entries, contains)

	finalContains := make(map[*cps.Lambda]struct{}, len(rpo))
	for _, l := range rpo {
		finalContains[l] = struct{}{}
	}
	entrySet := make(map[*cps.Lambda]struct{}, len(entries))
	for _, e := range entries {
		entrySet[e] = struct{}{}
	}

	return &Scope{
		world:      world,
		entries:    append([]*cps.Lambda(nil), entries...),
		entrySet:   entrySet,
		rpo:        rpo,
		sid:        sid,
		contains:   finalContains,
		succsCache: map[*cps.Lambda][]*cps.Lambda{},
		predsCache: map[*cps.Lambda][]*cps.Lambda{},
	}
}

// analyze marks every continuation reachable, backwards and forwards,
// from the entries via parameter-use chains: starting at each entry,
// it walks forward through the uses of its params, and every time that
// walk lands on some other continuation, climbs back up that
// continuation's predecessors before continuing forward again.
func analyze(world *cps.World, entries []*cps.Lambda) map[*cps.Lambda]struct{} {
	pass := world.NewPass()
	contains := map[*cps.Lambda]struct{}{}

	insert := func(lam *cps.Lambda) {
		cps.VisitFirst(lam, pass)
		contains[lam] = struct{}{}
	}

	var jumpToParamUsers func(lam *cps.Lambda)
	var findUser func(def cps.Node)
	var up func(lam *cps.Lambda)

	jumpToParamUsers = func(lam *cps.Lambda) {
		for _, p := range lam.Params() {
			findUser(p)
		}
	}
	findUser = func(def cps.Node) {
		if lam := def.AsLambda(); lam != nil {
			up(lam)
			return
		}
		if cps.Visit(def, pass) {
			return
		}
		for _, u := range def.Uses() {
			findUser(u.User)
		}
	}
	up = func(lam *cps.Lambda) {
		if cps.IsVisited(lam, pass) {
			return
		}
		insert(lam)
		jumpToParamUsers(lam)
		for _, pred := range lam.Preds() {
			up(pred)
		}
	}

	for _, entry := range entries {
		insert(entry)
		jumpToParamUsers(entry)
	}
	return contains
}

// findRoots identifies every continuation that never appears as the
// value flowing into another continuation's parameter, using a
// self-limited version of the same forward walk analyze uses: a
// continuation may call itself (directly recursive) without that
// self-reference disqualifying it as a root.
func findRoots(world *cps.World) []*cps.Lambda {
	pass := world.NewPass()
	lambdas := world.Lambdas()

	var jumpToParamUsers func(lam, limit *cps.Lambda)
	var findUser func(def cps.Node, limit *cps.Lambda)
	var up func(lam, limit *cps.Lambda)

	jumpToParamUsers = func(lam, limit *cps.Lambda) {
		for _, p := range lam.Params() {
			findUser(p, limit)
		}
	}
	findUser = func(def cps.Node, limit *cps.Lambda) {
		if lam := def.AsLambda(); lam != nil {
			up(lam, limit)
			return
		}
		if cps.Visit(def, pass) {
			return
		}
		for _, u := range def.Uses() {
			findUser(u.User, limit)
		}
	}
	up = func(lam, limit *cps.Lambda) {
		if cps.IsVisited(lam, pass) || lam == limit {
			return
		}
		cps.VisitFirst(lam, pass)
		jumpToParamUsers(lam, limit)
		for _, pred := range lam.Preds() {
			up(pred, limit)
		}
	}

	for _, lam := range lambdas {
		if !cps.IsVisited(lam, pass) {
			jumpToParamUsers(lam, lam)
		}
	}

	roots := []*cps.Lambda{}
	for _, lam := range lambdas {
		if !cps.IsVisited(lam, pass) {
			roots = append(roots, lam)
		}
	}
	return roots
}

// numberForward assigns forward reverse-postorder numbers: a postorder
// DFS from the entries' successors, entries taking the highest
// postorder numbers (in reverse entry order), followed by flipping
// every number to num-1-n. Anything analyze() found that this walk
// never reaches is not actually forward-reachable from the entries and
// is dropped.
func numberForward(world *cps.World, entries []*cps.Lambda, contains map[*cps.Lambda]struct{}) ([]*cps.Lambda, map[*cps.Lambda]int) {
	pass := world.NewPass()
	for _, e := range entries {
		cps.VisitFirst(e, pass)
	}

	sid := map[*cps.Lambda]int{}
	num := 0

	var number func(cur *cps.Lambda)
	number = func(cur *cps.Lambda) {
		cps.VisitFirst(cur, pass)
		for _, succ := range cur.Succs() {
			if _, ok := contains[succ]; ok && !cps.IsVisited(succ, pass) {
				number(succ)
			}
		}
		sid[cur] = num
		num++
	}

	for _, entry := range entries {
		for _, succ := range entry.Succs() {
			if _, ok := contains[succ]; ok && !cps.IsVisited(succ, pass) {
				number(succ)
			}
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		sid[entries[i]] = num
		num++
	}

	all := make([]*cps.Lambda, 0, len(contains))
	for lam := range contains {
		all = append(all, lam)
	}

	rpo := make([]*cps.Lambda, 0, num)
	for _, lam := range all {
		if cps.IsVisited(lam, pass) {
			sid[lam] = num - 1 - sid[lam]
			rpo = append(rpo, lam)
		} else {
			delete(sid, lam)
		}
	}
	sort.Slice(rpo, func(i, j int) bool { return sid[rpo[i]] < sid[rpo[j]] })
	return rpo, sid
}

func (s *Scope) World() *cps.World { return s.world }
func (s *Scope) Size() int         { return len(s.rpo) }
func (s *Scope) NumEntries() int   { return len(s.entries) }

func (s *Scope) Entries() []*cps.Lambda {
	return append([]*cps.Lambda(nil), s.entries...)
}

func (s *Scope) IsEntry(l *cps.Lambda) bool {
	_, ok := s.entrySet[l]
	return ok
}

func (s *Scope) RPO() []*cps.Lambda {
	return append([]*cps.Lambda(nil), s.rpo...)
}

// Body is the RPO with the entries stripped off the front.
func (s *Scope) Body() []*cps.Lambda {
	return append([]*cps.Lambda(nil), s.rpo[len(s.entries):]...)
}

func (s *Scope) Contains(l *cps.Lambda) bool {
	_, ok := s.contains[l]
	return ok
}

func (s *Scope) Sid(l *cps.Lambda) int {
	sid, ok := s.sid[l]
	if !ok {
		panic("scope: lambda is not a member of this scope")
	}
	return sid
}

func (s *Scope) Succs(l *cps.Lambda) []*cps.Lambda {
	if cached, ok := s.succsCache[l]; ok {
		return cached
	}
	s.fillSuccPredCaches()
	return s.succsCache[l]
}

func (s *Scope) Preds(l *cps.Lambda) []*cps.Lambda {
	if cached, ok := s.predsCache[l]; ok {
		return cached
	}
	s.fillSuccPredCaches()
	return s.predsCache[l]
}

func (s *Scope) fillSuccPredCaches() {
	if len(s.succsCache) == len(s.rpo) {
		return
	}
	for _, l := range s.rpo {
		succs := []*cps.Lambda{}
		for _, succ := range l.Succs() {
			if s.Contains(succ) {
				succs = append(succs, succ)
			}
		}
		s.succsCache[l] = succs

		preds := []*cps.Lambda{}
		for _, pred := range l.Preds() {
			if s.Contains(pred) {
				preds = append(preds, pred)
			}
		}
		s.predsCache[l] = preds
	}
}

// Exits are the Lambdas in this scope with no in-scope successors.
func (s *Scope) Exits() []*cps.Lambda {
	s.ensureBackwards()
	return append([]*cps.Lambda(nil), s.exits...)
}

func (s *Scope) BackwardsRPO() []*cps.Lambda {
	s.ensureBackwards()
	return append([]*cps.Lambda(nil), s.backwardsRPO...)
}

func (s *Scope) BackwardsBody() []*cps.Lambda {
	s.ensureBackwards()
	return append([]*cps.Lambda(nil), s.backwardsRPO[len(s.exits):]...)
}

func (s *Scope) BackwardsSid(l *cps.Lambda) int {
	s.ensureBackwards()
	sid, ok := s.backwardsSid[l]
	if !ok {
		panic("scope: lambda is not a member of this scope")
	}
	return sid
}

func (s *Scope) IsExit(l *cps.Lambda) bool {
	s.ensureBackwards()
	_, ok := s.exitSet[l]
	return ok
}

// ensureBackwards computes the backward mirror of the forward RPO: it
// finds the exits (successor-less lambdas) and runs the same
// postorder-then-flip numbering used forwards, but walking predecessors
// instead of successors.
func (s *Scope) ensureBackwards() {
	if s.backwardsRPO != nil {
		return
	}
	s.fillSuccPredCaches()

	exits := []*cps.Lambda{}
	for _, l := range s.rpo {
		if len(s.Succs(l)) == 0 {
			exits = append(exits, l)
		}
	}
	s.exits = exits
	s.exitSet = make(map[*cps.Lambda]struct{}, len(exits))
	for _, e := range exits {
		s.exitSet[e] = struct{}{}
	}

	pass := s.world.NewPass()
	for _, e := range exits {
		cps.VisitFirst(e, pass)
	}

	backwardsSid := map[*cps.Lambda]int{}
	num := 0

	var number func(cur *cps.Lambda)
	number = func(cur *cps.Lambda) {
		cps.VisitFirst(cur, pass)
		for _, pred := range s.Preds(cur) {
			if !cps.IsVisited(pred, pass) {
				number(pred)
			}
		}
		backwardsSid[cur] = num
		num++
	}

	for _, exit := range exits {
		for _, pred := range s.Preds(exit) {
			if !cps.IsVisited(pred, pass) {
				number(pred)
			}
		}
	}
	for i := len(exits) - 1; i >= 0; i-- {
		backwardsSid[exits[i]] = num
		num++
	}

	numbered := num
	backwardsRPO := make([]*cps.Lambda, 0, len(s.rpo))
	for _, l := range s.rpo {
		if cps.IsVisited(l, pass) {
			backwardsSid[l] = numbered - 1 - backwardsSid[l]
			backwardsRPO = append(backwardsRPO, l)
		} else {
			// Unreachable backwards, e.g. an infinite loop with no
			// exit: give it the lowest possible standing so it still
			// sorts deterministically, after the genuinely-numbered
			// lambdas.
			backwardsSid[l] = num
			num++
			backwardsRPO = append(backwardsRPO, l)
		}
	}
	sort.Slice(backwardsRPO, func(i, j int) bool {
		return backwardsSid[backwardsRPO[i]] < backwardsSid[backwardsRPO[j]]
	})

	s.backwardsSid = backwardsSid
	s.backwardsRPO = backwardsRPO
}

func (s *Scope) DomTree() *DomTree {
	if s.domTree == nil {
		s.domTree = newDomTree(s, true)
	}
	return s.domTree
}

func (s *Scope) PostDomTree() *DomTree {
	if s.postDomTree == nil {
		s.postDomTree = newDomTree(s, false)
	}
	return s.postDomTree
}

func (s *Scope) LoopInfo() *LoopInfo {
	if s.loopInfo == nil {
		s.loopInfo = buildLoopInfo(s)
	}
	return s.loopInfo
}
