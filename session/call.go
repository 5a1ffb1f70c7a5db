package session

import "sort"

// CallMember is one connection in a room's mesh call.
type CallMember struct {
	ConnID   string
	Username string
	seq      uint64
}

// Call is a room's active mesh call. It exists only while it has members
// and its creator is always one of them.
type Call struct {
	creator string
	members map[string]*CallMember
}

func (c *Call) Creator() string { return c.creator }

func (c *Call) Len() int { return len(c.members) }

func (c *Call) Has(connID string) bool {
	_, ok := c.members[connID]
	return ok
}

// Members lists the call in join order.
func (c *Call) Members() []CallMember {
	out := make([]CallMember, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ExitAction is what a CallPolicy decides for a departing member.
type ExitAction int

const (
	// RemoveMember drops only the leaver; the call continues.
	RemoveMember ExitAction = iota
	// EndCall tears the whole call down.
	EndCall
)

// CallPolicy decides what a departure does to a call. The call passed in
// still contains the leaver.
type CallPolicy interface {
	Name() string
	OnExit(c *Call, connID string) ExitAction
}

// CreatorOwnsCall ends the call for everyone when its creator leaves.
type CreatorOwnsCall struct{}

func (CreatorOwnsCall) Name() string { return "creator" }

func (CreatorOwnsCall) OnExit(c *Call, connID string) ExitAction {
	if connID == c.creator {
		return EndCall
	}
	return RemoveMember
}

// MigrateToNext keeps the call alive and hands the creator role to the
// longest-standing remaining member.
type MigrateToNext struct{}

func (MigrateToNext) Name() string { return "migrate" }

func (MigrateToNext) OnExit(*Call, string) ExitAction { return RemoveMember }

// PolicyByName maps a config value to a policy; unknown names get the
// default.
func PolicyByName(name string) CallPolicy {
	if name == (MigrateToNext{}).Name() {
		return MigrateToNext{}
	}
	return CreatorOwnsCall{}
}

// JoinResult describes a mesh:join.
type JoinResult struct {
	// Existing is the membership before the join, without the joiner.
	Existing []CallMember
	// New is false for a repeat join from a connection already in the call.
	New     bool
	Creator bool
}

// JoinCall adds a connection to the room's call, creating the call with
// this connection as creator when there is none.
func (r *Registry) JoinCall(roomID, connID, username string) JoinResult {
	call, ok := r.calls[roomID]
	if !ok {
		call = &Call{members: make(map[string]*CallMember)}
		r.calls[roomID] = call
	}

	var res JoinResult
	for _, m := range call.Members() {
		if m.ConnID != connID {
			res.Existing = append(res.Existing, m)
		}
	}

	if m, ok := call.members[connID]; ok {
		m.Username = username
	} else {
		call.members[connID] = &CallMember{ConnID: connID, Username: username, seq: r.next()}
		res.New = true
	}

	if call.creator == "" {
		call.creator = connID
	}
	res.Creator = call.creator == connID
	return res
}

// Call returns the room's active call, nil when there is none.
func (r *Registry) Call(roomID string) *Call {
	return r.calls[roomID]
}

// CallName is the display name a connection joined the call with.
func (r *Registry) CallName(roomID, connID string) string {
	if c, ok := r.calls[roomID]; ok {
		if m, ok := c.members[connID]; ok {
			return m.Username
		}
	}
	return ""
}

func (r *Registry) CallCount() int { return len(r.calls) }

// CallExit describes what a departure did to a call.
type CallExit struct {
	Ended      bool   // the whole call was torn down
	Emptied    bool   // the leaver was the last member
	NewCreator string // set when the creator role moved
}

// ExitCall applies the registry's policy to a departing connection. ok is
// false when the connection was not in the room's call.
func (r *Registry) ExitCall(roomID, connID string) (CallExit, bool) {
	call, found := r.calls[roomID]
	if !found || !call.Has(connID) {
		return CallExit{}, false
	}

	if r.policy.OnExit(call, connID) == EndCall {
		delete(r.calls, roomID)
		return CallExit{Ended: true}, true
	}

	delete(call.members, connID)
	if len(call.members) == 0 {
		delete(r.calls, roomID)
		return CallExit{Emptied: true}, true
	}

	var exit CallExit
	if call.creator == connID {
		call.creator = call.Members()[0].ConnID
		exit.NewCreator = call.creator
	}
	return exit, true
}
