package server

import "sync"

// group holds a duplicate-free, insertion-ordered membership list,
// generalizing the teacher's group.go (a map[string]*peer with
// join/leave/send) with an explicit order slice: §3 G2/G3 and the
// list_members/list_groups "insertion order" requirement need ordering
// a bare map can't give.
type group struct {
	members []string
	index   map[string]int
}

func newGroup() *group {
	return &group{index: make(map[string]int)}
}

// add joins peer to the group. Re-joining is a no-op (§4.3 join_group
// idempotence).
func (g *group) add(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.members)
	g.members = append(g.members, name)
}

// remove leaves the group. Removing an absent member is a no-op.
func (g *group) remove(name string) {
	idx, ok := g.index[name]
	if !ok {
		return
	}
	g.members = append(g.members[:idx], g.members[idx+1:]...)
	delete(g.index, name)
	for n, i := range g.index {
		if i > idx {
			g.index[n] = i - 1
		}
	}
}

func (g *group) list() []string {
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

// Groups is the server's group registry: group_name -> ordered member
// set (§3 Group registry).
type Groups struct {
	mu     sync.Mutex
	names  []string
	byName map[string]*group
}

// NewGroups creates an empty group registry.
func NewGroups() *Groups {
	return &Groups{byName: make(map[string]*group)}
}

// Create makes an empty group. Returns false if the name is already
// taken (G1, and the create_group "already exists" handler case).
func (gs *Groups) Create(name string) bool {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if _, exists := gs.byName[name]; exists {
		return false
	}
	gs.byName[name] = newGroup()
	gs.names = append(gs.names, name)
	return true
}

// Join adds member to name. exists reports whether the group is
// present at all; once it exists, joining always succeeds and
// re-joining is a no-op.
func (gs *Groups) Join(name, member string) (exists bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	g, exists := gs.byName[name]
	if !exists {
		return false
	}
	g.add(member)
	return true
}

// Leave removes member from name. A group or member that doesn't exist
// is silently ignored, matching the idempotence requirement for
// duplicate-delivered requests.
func (gs *Groups) Leave(name, member string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if g, ok := gs.byName[name]; ok {
		g.remove(member)
	}
}

// Members returns name's roster in insertion order.
func (gs *Groups) Members(name string) ([]string, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	g, ok := gs.byName[name]
	if !ok {
		return nil, false
	}
	return g.list(), true
}

// Names returns every group name in creation order.
func (gs *Groups) Names() []string {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	out := make([]string, len(gs.names))
	copy(out, gs.names)
	return out
}

// RemoveEverywhere removes member from every group (G3: removing a
// member from the registration table also removes it from every
// group).
func (gs *Groups) RemoveEverywhere(member string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	for _, g := range gs.byName {
		g.remove(member)
	}
}
