package session

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"
)

func mustCheck(t *testing.T, r *Registry) {
	t.Helper()
	if err := r.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestPresence(t *testing.T) {
	t.Run("join and leave keep sets tidy", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Connect("a", "u1", "Ann")
		r.Connect("b", "u2", "Bob")

		if err := r.Join("a", "R1", "u1", "Ann"); err != nil {
			t.Fatal(err)
		}
		if err := r.Join("b", "R1", "u2", "Bob"); err != nil {
			t.Fatal(err)
		}
		mustCheck(t, r)

		got := r.Members("R1")
		if len(got) != 2 || got[0].ConnID != "a" || got[1].ConnID != "b" {
			t.Fatalf("members = %+v, want a then b", got)
		}

		room, p, ok := r.Leave("a")
		if !ok || room != "R1" || p.UserName != "Ann" {
			t.Fatalf("leave = %q %+v %v", room, p, ok)
		}
		r.Leave("b")
		mustCheck(t, r)
		if r.RoomCount() != 0 {
			t.Fatalf("empty room kept")
		}
	})

	t.Run("join while in another room is refused", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Connect("a", "u1", "Ann")
		_ = r.Join("a", "R1", "u1", "Ann")
		if err := r.Join("a", "R2", "u1", "Ann"); err == nil {
			t.Fatal("expected error")
		}
		mustCheck(t, r)
	})

	t.Run("rejoin same room refreshes entry", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Connect("a", "u1", "Ann")
		_ = r.Join("a", "R1", "u1", "Ann")
		_ = r.Join("a", "R1", "u1", "Annie")
		m := r.Members("R1")
		if len(m) != 1 || m[0].UserName != "Annie" {
			t.Fatalf("members = %+v", m)
		}
	})

	t.Run("leave with no room", func(t *testing.T) {
		r := NewRegistry(nil)
		r.Connect("a", "", "")
		if _, _, ok := r.Leave("a"); ok {
			t.Fatal("leave reported a room")
		}
	})

	t.Run("recipients exclude sender", func(t *testing.T) {
		r := NewRegistry(nil)
		for _, id := range []string{"c", "a", "b"} {
			r.Connect(id, id, id)
			_ = r.Join(id, "R1", id, id)
		}
		got := fmt.Sprint(r.Recipients("R1", "b"))
		if got != "[a c]" {
			t.Fatalf("recipients = %s", got)
		}
	})
}

// Random join/leave/disconnect sequences never break the registry
// invariants.
func TestPresenceRandomWalk(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	rooms := []string{"R1", "R2", "R3"}

	for run := 0; run < 50; run++ {
		r := NewRegistry(nil)
		next := 0

		for step := 0; step < 200; step++ {
			switch rng.IntN(5) {
			case 0:
				next++
				r.Connect(fmt.Sprintf("c%d", next), "", "")
			case 1, 2:
				if next == 0 {
					continue
				}
				id := fmt.Sprintf("c%d", rng.IntN(next)+1)
				c, ok := r.Conn(id)
				if !ok {
					continue
				}
				room := rooms[rng.IntN(len(rooms))]
				if c.Room != "" && c.Room != room {
					r.ExitCall(c.Room, id)
					r.Leave(id)
				}
				if err := r.Join(id, room, "", ""); err != nil {
					t.Fatal(err)
				}
				if rng.IntN(2) == 0 {
					r.JoinCall(room, id, id)
				}
			case 3:
				if next == 0 {
					continue
				}
				id := fmt.Sprintf("c%d", rng.IntN(next)+1)
				if c, ok := r.Conn(id); ok && c.Room != "" {
					r.ExitCall(c.Room, id)
					r.Leave(id)
				}
			case 4:
				if next == 0 {
					continue
				}
				id := fmt.Sprintf("c%d", rng.IntN(next)+1)
				if c, ok := r.Conn(id); ok {
					if c.Room != "" {
						r.ExitCall(c.Room, id)
						r.StopTyping(c.Room, id)
						r.Leave(id)
					}
					r.Forget(id)
				}
			}
			if err := r.Check(); err != nil {
				t.Fatalf("run %d step %d: %v", run, step, err)
			}
		}
	}
}

func TestTyping(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Unix(1000, 0)

	r.StartTyping("R1", "a", now.Add(time.Second))
	r.StartTyping("R1", "b", now.Add(5*time.Second))
	r.StartTyping("R2", "c", now.Add(2*time.Second))

	got := r.ExpireTyping(now.Add(2 * time.Second))
	if len(got) != 2 || got[0] != (TypingEntry{"R1", "a"}) || got[1] != (TypingEntry{"R2", "c"}) {
		t.Fatalf("expired = %+v", got)
	}
	if !r.IsTyping("R1", "b") {
		t.Fatal("b expired early")
	}
	if !r.StopTyping("R1", "b") {
		t.Fatal("stop reported not typing")
	}
	if r.StopTyping("R1", "b") {
		t.Fatal("second stop reported typing")
	}
	mustCheck(t, r)
}
