// Package session is the in-process registry of live room state:
// connections, presence, typing and mesh calls.
//
// A Registry is owned by a single goroutine (the router loop) and is not
// safe for concurrent use. It is also the reason the server is a single
// process: nothing here is shared across instances.
package session

import (
	"fmt"
	"sort"
	"time"
)

// Conn is one network session. Room is empty until join-room and is only
// changed by Join and Leave.
type Conn struct {
	ID       string
	UserID   string
	UserName string
	Room     string

	// Verified is set when the identity came from the handshake token and
	// must not be overridden by join-room payloads.
	Verified bool
}

type Presence struct {
	ConnID   string
	UserID   string
	UserName string
	seq      uint64
}

type Registry struct {
	conns    map[string]*Conn
	presence map[string]map[string]*Presence // room -> conn -> entry
	typing   map[string]map[string]time.Time // room -> conn -> deadline
	calls    map[string]*Call

	policy CallPolicy
	seq    uint64
}

func NewRegistry(policy CallPolicy) *Registry {
	if policy == nil {
		policy = CreatorOwnsCall{}
	}
	return &Registry{
		conns:    make(map[string]*Conn),
		presence: make(map[string]map[string]*Presence),
		typing:   make(map[string]map[string]time.Time),
		calls:    make(map[string]*Call),
		policy:   policy,
	}
}

func (r *Registry) Policy() CallPolicy { return r.policy }

func (r *Registry) next() uint64 {
	r.seq++
	return r.seq
}

/* --------------------------------------------------
   connections
   -------------------------------------------------- */

func (r *Registry) Connect(id, userID, userName string) *Conn {
	c := &Conn{ID: id, UserID: userID, UserName: userName, Verified: userID != ""}
	r.conns[id] = c
	return c
}

func (r *Registry) Conn(id string) (*Conn, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Forget drops a connection. Callers leave its room first.
func (r *Registry) Forget(id string) {
	delete(r.conns, id)
}

func (r *Registry) ConnCount() int { return len(r.conns) }

/* --------------------------------------------------
   presence
   -------------------------------------------------- */

// Join puts the connection in roomID's presence set. The connection must
// not be in a different room; the router leaves that room first.
func (r *Registry) Join(connID, roomID, userID, userName string) error {
	c, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("join %s: unknown connection %s", roomID, connID)
	}
	if c.Room != "" && c.Room != roomID {
		return fmt.Errorf("join %s: connection %s still in %s", roomID, connID, c.Room)
	}

	if !c.Verified {
		c.UserID = userID
	}
	if userName != "" {
		c.UserName = userName
	}
	c.Room = roomID

	set, ok := r.presence[roomID]
	if !ok {
		set = make(map[string]*Presence)
		r.presence[roomID] = set
	}

	if p, ok := set[connID]; ok {
		p.UserID, p.UserName = c.UserID, c.UserName
	} else {
		set[connID] = &Presence{ConnID: connID, UserID: c.UserID, UserName: c.UserName, seq: r.next()}
	}
	return nil
}

// Leave removes the connection from its current room's presence set and
// returns that room and entry. ok is false when it was in no room.
func (r *Registry) Leave(connID string) (room string, p Presence, ok bool) {
	c, found := r.conns[connID]
	if !found || c.Room == "" {
		return "", Presence{}, false
	}
	room = c.Room
	c.Room = ""

	set := r.presence[room]
	if e, found := set[connID]; found {
		p = *e
		delete(set, connID)
	} else {
		p = Presence{ConnID: connID, UserID: c.UserID, UserName: c.UserName}
	}
	if len(set) == 0 {
		delete(r.presence, room)
	}
	return room, p, true
}

func (r *Registry) InRoom(connID, roomID string) bool {
	_, ok := r.presence[roomID][connID]
	return ok
}

// Members lists a room in join order.
func (r *Registry) Members(roomID string) []Presence {
	set := r.presence[roomID]
	out := make([]Presence, 0, len(set))
	for _, p := range set {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Recipients returns the connection ids present in a room, except one.
func (r *Registry) Recipients(roomID, except string) []string {
	set := r.presence[roomID]
	out := make([]string, 0, len(set))
	for id := range set {
		if id != except {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) RoomCount() int { return len(r.presence) }

/* --------------------------------------------------
   typing
   -------------------------------------------------- */

func (r *Registry) StartTyping(roomID, connID string, deadline time.Time) {
	set, ok := r.typing[roomID]
	if !ok {
		set = make(map[string]time.Time)
		r.typing[roomID] = set
	}
	set[connID] = deadline
}

// StopTyping reports whether the connection was typing.
func (r *Registry) StopTyping(roomID, connID string) bool {
	set, ok := r.typing[roomID]
	if !ok {
		return false
	}
	_, was := set[connID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.typing, roomID)
	}
	return was
}

func (r *Registry) IsTyping(roomID, connID string) bool {
	_, ok := r.typing[roomID][connID]
	return ok
}

type TypingEntry struct {
	Room   string
	ConnID string
}

// ExpireTyping removes and returns every entry whose deadline has passed.
func (r *Registry) ExpireTyping(now time.Time) []TypingEntry {
	var out []TypingEntry
	for room, set := range r.typing {
		for conn, deadline := range set {
			if !now.Before(deadline) {
				out = append(out, TypingEntry{Room: room, ConnID: conn})
			}
		}
	}
	for _, e := range out {
		r.StopTyping(e.Room, e.ConnID)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Room != out[j].Room {
			return out[i].Room < out[j].Room
		}
		return out[i].ConnID < out[j].ConnID
	})
	return out
}

/* --------------------------------------------------
   invariants
   -------------------------------------------------- */

// Check verifies the registry invariants. Tests call it after every step.
func (r *Registry) Check() error {
	seen := make(map[string]string)
	for room, set := range r.presence {
		if len(set) == 0 {
			return fmt.Errorf("room %s: empty presence set kept", room)
		}
		for id := range set {
			c, ok := r.conns[id]
			if !ok {
				return fmt.Errorf("room %s: presence holds disconnected %s", room, id)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("connection %s present in %s and %s", id, prev, room)
			}
			seen[id] = room
			if c.Room != room {
				return fmt.Errorf("connection %s: Room=%q but present in %s", id, c.Room, room)
			}
		}
	}
	for id, c := range r.conns {
		if c.Room != "" && seen[id] != c.Room {
			return fmt.Errorf("connection %s: Room=%q but not present there", id, c.Room)
		}
	}
	for room, set := range r.typing {
		if len(set) == 0 {
			return fmt.Errorf("room %s: empty typing set kept", room)
		}
	}
	for room, call := range r.calls {
		if len(call.members) == 0 {
			return fmt.Errorf("room %s: empty call kept", room)
		}
		if _, ok := call.members[call.creator]; !ok {
			return fmt.Errorf("room %s: creator %s not in call", room, call.creator)
		}
		for id := range call.members {
			if !r.InRoom(id, room) {
				return fmt.Errorf("room %s: call member %s not present", room, id)
			}
		}
	}
	return nil
}
