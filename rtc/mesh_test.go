package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/Roygautam8852/SyncSpace/config"
)

func joined(t *testing.T, self string) *testMesh {
	t.Helper()
	tm := newTestMesh(t, self)
	if err := tm.Join(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tm.sig.named(config.EvMeshJoin)) != 1 {
		t.Fatal("mesh:join not sent")
	}
	tm.sig.take()
	return tm
}

func peerState(t *testing.T, tm *testMesh, id string) PeerState {
	t.Helper()
	p, ok := tm.Peer(id)
	if !ok {
		t.Fatalf("%s has no peer %s", tm.Self(), id)
	}
	return p.State
}

func candidate(c string) map[string]any {
	return map[string]any{"candidate": c, "sdpMid": "0"}
}

func TestPeerStateString(t *testing.T) {
	tests := []struct {
		s    PeerState
		want string
	}{
		{StateNew, "new"},
		{StateHaveLocalOffer, "have-local-offer"},
		{StateHaveRemoteOffer, "have-remote-offer"},
		{StateStable, "stable"},
		{StateConnected, "connected"},
		{StateClosed, "closed"},
		{PeerState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d: got %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestJoinWithoutMedia(t *testing.T) {
	sig := &sigRecorder{}
	m := NewMesh(Options{
		RoomID:    "R1",
		Signaler:  sig,
		Transport: newFakeFactory("a").New,
		OpenMedia: func(context.Context) (Media, error) { return nil, errors.New("permission denied") },
	})
	m.SetSelf("a")

	err := m.Join(context.Background())
	if !errors.Is(err, ErrMediaUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if m.InCall() || len(sig.take()) != 0 {
		t.Fatal("joined without media")
	}
	if err := m.SetMic(false); !errors.Is(err, ErrNotInCall) {
		t.Fatalf("toggle outside call: %v", err)
	}
}

func TestJoinNeedsSocketID(t *testing.T) {
	sig := &sigRecorder{}
	opened := false
	m := NewMesh(Options{
		RoomID:    "R1",
		Signaler:  sig,
		Transport: newFakeFactory("a").New,
		OpenMedia: func(context.Context) (Media, error) {
			opened = true
			return NewStaticMedia("s")
		},
	})

	if err := m.Join(context.Background()); !errors.Is(err, ErrNoSocketID) {
		t.Fatalf("err = %v", err)
	}
	if opened || m.InCall() || len(sig.take()) != 0 {
		t.Fatal("joined without a socket id")
	}

	raw, _ := json.Marshal(config.ConnectedOut{SocketID: "a"})
	if err := m.Handle(config.EvConnected, raw); err != nil {
		t.Fatal(err)
	}
	if err := m.Join(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !opened || !m.InCall() {
		t.Fatal("join after connected failed")
	}
}

func TestConnectedSetsSelf(t *testing.T) {
	m := NewMesh(Options{})
	raw, _ := json.Marshal(config.ConnectedOut{SocketID: "sock-1"})
	if err := m.Handle(config.EvConnected, raw); err != nil {
		t.Fatal(err)
	}
	if m.Self() != "sock-1" {
		t.Fatalf("self = %q", m.Self())
	}
}

func TestInitiatorAndResponder(t *testing.T) {
	a := joined(t, "a")

	a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{
		{SocketID: "b", Username: "Bob"},
		{SocketID: "a", Username: "me"},
		{SocketID: "c", Username: "Cat"},
	}})

	offers := a.sig.named(config.EvMeshOffer)
	if len(offers) != 2 {
		t.Fatalf("offers = %d", len(offers))
	}
	var to []string
	for _, o := range offers {
		var in config.SignalIn
		if err := json.Unmarshal(o.data, &in); err != nil {
			t.Fatal(err)
		}
		var d webrtc.SessionDescription
		if err := json.Unmarshal(in.Offer, &d); err != nil {
			t.Fatal(err)
		}
		if in.RoomID != "R1" || d.Type != webrtc.SDPTypeOffer || d.SDP != "offer:a" {
			t.Fatalf("offer = %+v %+v", in, d)
		}
		to = append(to, in.To)
	}
	slices.Sort(to)
	if !slices.Equal(to, []string{"b", "c"}) {
		t.Fatalf("offered to %v", to)
	}

	for _, id := range []string{"b", "c"} {
		p, _ := a.Peer(id)
		if !p.Initiator || p.State != StateHaveLocalOffer || p.Tracks != 0 {
			t.Fatalf("peer %s = %+v", id, p)
		}
		if n := len(a.fac.last(t, id).tracks); n != 2 {
			t.Fatalf("local tracks on %s = %d", id, n)
		}
	}

	a.sig.take()
	a.handle(t, config.EvMeshNewPeer, config.Participant{SocketID: "d", Username: "Dan"})
	if len(a.sig.take()) != 0 {
		t.Fatal("responder sent an offer")
	}
	if p, _ := a.Peer("d"); p.Initiator || p.State != StateNew || p.Name != "Dan" {
		t.Fatalf("new peer = %+v", p)
	}
	if n := len(a.fac.last(t, "d").tracks); n != 2 {
		t.Fatalf("pre-created connection has %d tracks", n)
	}

	// the same list again must not renegotiate
	a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "b"}}})
	if len(a.sig.take()) != 0 || a.fac.count("b") != 1 {
		t.Fatal("duplicate existing-peers renegotiated")
	}
}

func TestGlareResolvesByID(t *testing.T) {
	orders := []struct {
		name        string
		aFirst      bool
		staleAnswer bool
	}{
		{"a's offer lands first", true, false},
		{"b's offer lands first", false, false},
		{"stale answer in between", true, true},
	}
	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			a, b := joined(t, "a"), joined(t, "b")

			// both think the other is already in the call
			a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "b"}}})
			b.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "a"}}})
			fromA, fromB := a.sig.take(), b.sig.take()

			if tt.aFirst {
				relay(t, a, fromA, b)
				relay(t, b, fromB, a)
			} else {
				relay(t, b, fromB, a)
				relay(t, a, fromA, b)
			}

			// b kept its offer and sent nothing; a yielded and answered
			fromA, fromB = a.sig.take(), b.sig.take()
			if len(fromB) != 0 {
				t.Fatalf("higher id answered: %+v", fromB)
			}
			if len(fromA) != 1 || fromA[0].event != config.EvMeshAnswer {
				t.Fatalf("lower id sent %+v", fromA)
			}
			if tt.staleAnswer {
				// a stale answer from b to a is ignored
				a.handle(t, config.EvMeshAnswer, config.SignalOut{From: "b", Answer: json.RawMessage(`{"type":"answer","sdp":"stale"}`)})
			}
			relay(t, a, fromA, b)

			// a answered on a fresh connection and closed the one holding its offer
			if a.fac.count("b") != 2 || b.fac.count("a") != 1 {
				t.Fatalf("connections a=%d b=%d", a.fac.count("b"), b.fac.count("a"))
			}
			if !a.fac.nth(t, "b", 0).isClosed() {
				t.Fatal("abandoned offer left open")
			}
			ta, tb := a.fac.last(t, "b"), b.fac.last(t, "a")
			if n := len(ta.tracks); n != 2 {
				t.Fatalf("replacement has %d tracks", n)
			}
			if ta.remoteSDP() != "offer:b" || tb.remoteSDP() != "answer:a" {
				t.Fatalf("remote a=%q b=%q", ta.remoteSDP(), tb.remoteSDP())
			}
			if peerState(t, a, "b") != StateStable || peerState(t, b, "a") != StateStable {
				t.Fatal("not stable")
			}
			if p, _ := a.Peer("b"); p.Name != "name-b" {
				t.Fatalf("offer username not applied: %+v", p)
			}
		})
	}
}

func TestCandidatesWaitForRemoteDescription(t *testing.T) {
	t.Run("responder", func(t *testing.T) {
		b := joined(t, "b")
		b.handle(t, config.EvMeshNewPeer, config.Participant{SocketID: "a"})

		for _, c := range []string{"c1", "c2"} {
			b.handle(t, config.EvMeshCandidate, map[string]any{"from": "a", "candidate": candidate(c)})
		}
		if p, _ := b.Peer("a"); p.Queued != 2 {
			t.Fatalf("queued = %d", p.Queued)
		}
		ta := b.fac.last(t, "a")
		if len(ta.candidateList()) != 0 {
			t.Fatal("candidate applied before remote description")
		}

		b.handle(t, config.EvMeshOffer, config.SignalOut{From: "a", Offer: json.RawMessage(`{"type":"offer","sdp":"offer:a"}`)})
		if got := ta.candidateList(); !slices.Equal(got, []string{"c1", "c2"}) {
			t.Fatalf("flushed = %v", got)
		}
		if len(b.sig.named(config.EvMeshAnswer)) != 1 {
			t.Fatal("no answer")
		}

		b.handle(t, config.EvMeshCandidate, map[string]any{"from": "a", "candidate": candidate("c3")})
		if got := ta.candidateList(); !slices.Equal(got, []string{"c1", "c2", "c3"}) {
			t.Fatalf("after ready = %v", got)
		}
		if p, _ := b.Peer("a"); p.Queued != 0 || p.State != StateStable {
			t.Fatalf("peer = %+v", p)
		}
	})

	t.Run("initiator", func(t *testing.T) {
		a := joined(t, "a")
		a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "b"}}})
		a.handle(t, config.EvMeshCandidate, map[string]any{"from": "b", "candidate": candidate("x1")})

		tb := a.fac.last(t, "b")
		if len(tb.candidateList()) != 0 {
			t.Fatal("applied before answer")
		}
		a.handle(t, config.EvMeshAnswer, config.SignalOut{From: "b", Answer: json.RawMessage(`{"type":"answer","sdp":"answer:b"}`)})
		if got := tb.candidateList(); !slices.Equal(got, []string{"x1"}) {
			t.Fatalf("flushed = %v", got)
		}
	})

	t.Run("yielding in glare", func(t *testing.T) {
		a := joined(t, "a")
		a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "b"}}})
		a.handle(t, config.EvMeshCandidate, map[string]any{"from": "b", "candidate": candidate("y1")})
		old := a.fac.last(t, "b")
		a.sig.take()

		a.handle(t, config.EvMeshOffer, config.SignalOut{From: "b", Offer: json.RawMessage(`{"type":"offer","sdp":"offer:b"}`)})
		fresh := a.fac.last(t, "b")
		if fresh == old {
			t.Fatal("offer answered on the old connection")
		}
		if got := fresh.candidateList(); !slices.Equal(got, []string{"y1"}) {
			t.Fatalf("carried over = %v", got)
		}

		// the abandoned connection may still gather, none of it goes out
		old.ev.Candidate(webrtc.ICECandidateInit{Candidate: "stale"})
		fresh.ev.Candidate(webrtc.ICECandidateInit{Candidate: "live"})
		sent := a.sig.named(config.EvMeshCandidate)
		if len(sent) != 1 {
			t.Fatalf("candidates sent = %d", len(sent))
		}
		var in config.SignalIn
		if err := json.Unmarshal(sent[0].data, &in); err != nil {
			t.Fatal(err)
		}
		if in.To != "b" || !strings.Contains(string(in.Candidate), "live") {
			t.Fatalf("sent %+v", in)
		}
	})

	t.Run("unknown sender is ignored", func(t *testing.T) {
		a := joined(t, "a")
		a.handle(t, config.EvMeshCandidate, map[string]any{"from": "ghost", "candidate": candidate("g")})
		if len(a.Peers()) != 0 {
			t.Fatal("candidate created a peer")
		}
	})
}

func TestAnswerOnlyWithLocalOffer(t *testing.T) {
	a := joined(t, "a")
	a.handle(t, config.EvMeshNewPeer, config.Participant{SocketID: "b"})

	answer := config.SignalOut{From: "b", Answer: json.RawMessage(`{"type":"answer","sdp":"answer:b"}`)}
	a.handle(t, config.EvMeshAnswer, answer)
	if tb := a.fac.last(t, "b"); tb.remotes != 0 || peerState(t, a, "b") != StateNew {
		t.Fatal("answer applied without an offer")
	}

	a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "c"}}})
	a.handle(t, config.EvMeshAnswer, config.SignalOut{From: "c", Answer: answer.Answer})
	a.handle(t, config.EvMeshAnswer, config.SignalOut{From: "c", Answer: answer.Answer})
	if tc := a.fac.last(t, "c"); tc.remotes != 1 {
		t.Fatalf("remote descriptions set %d times", tc.remotes)
	}
}

func TestTeardown(t *testing.T) {
	a := joined(t, "a")
	a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "b"}, {SocketID: "c"}}})
	tb, tc := a.fac.last(t, "b"), a.fac.last(t, "c")

	t.Run("peer left closes one peer", func(t *testing.T) {
		a.handle(t, config.EvMeshPeerLeft, config.PeerLeftOut{SocketID: "b"})
		if !tb.closed || tc.closed {
			t.Fatalf("closed b=%v c=%v", tb.closed, tc.closed)
		}
		if _, ok := a.Peer("b"); ok {
			t.Fatal("b kept")
		}
	})

	t.Run("failed transport removes the peer", func(t *testing.T) {
		a.handle(t, config.EvMeshNewPeer, config.Participant{SocketID: "d"})
		td := a.fac.last(t, "d")
		td.ev.State(webrtc.PeerConnectionStateConnected)
		if peerState(t, a, "d") != StateConnected {
			t.Fatal("connected not tracked")
		}
		td.ev.State(webrtc.PeerConnectionStateFailed)
		if _, ok := a.Peer("d"); ok || !td.closed {
			t.Fatal("failed peer kept")
		}

		// a late callback from the dead connection must not touch its successor
		a.handle(t, config.EvMeshOffer, config.SignalOut{From: "d", Offer: json.RawMessage(`{"type":"offer","sdp":"offer:d"}`)})
		if a.fac.count("d") != 2 {
			t.Fatal("offer did not rebuild the peer")
		}
		td.ev.State(webrtc.PeerConnectionStateClosed)
		if peerState(t, a, "d") != StateStable {
			t.Fatal("stale callback removed the new peer")
		}
	})

	t.Run("call ended is a hard reset", func(t *testing.T) {
		a.handle(t, config.EvMeshCallEnded, config.CallEndedOut{Reason: config.ReasonCreatorDisconnected})
		if !tc.closed || !a.fac.last(t, "d").closed {
			t.Fatal("connections left open")
		}
		if a.InCall() || len(a.Peers()) != 0 {
			t.Fatal("state kept after call end")
		}
		if !a.media.Released() {
			t.Fatal("local media not released")
		}
		if a.endedBy != config.ReasonCreatorDisconnected {
			t.Fatalf("ended by %q", a.endedBy)
		}

		err := a.Handle(config.EvMeshOffer, json.RawMessage(`{"from":"b","offer":{"type":"offer","sdp":"x"}}`))
		if !errors.Is(err, ErrNotInCall) {
			t.Fatalf("signal after end: %v", err)
		}
	})
}

func TestLeaveSendsAndResets(t *testing.T) {
	a := joined(t, "a")
	a.handle(t, config.EvMeshNewPeer, config.Participant{SocketID: "b"})

	if err := a.Leave(); err != nil {
		t.Fatal(err)
	}
	if len(a.sig.named(config.EvMeshLeave)) != 1 {
		t.Fatal("mesh:leave not sent")
	}
	if !a.fac.last(t, "b").closed || a.InCall() {
		t.Fatal("not torn down")
	}
	if err := a.Leave(); err != nil || len(a.sig.named(config.EvMeshLeave)) != 1 {
		t.Fatal("second leave sent again")
	}
}

func TestMediaToggles(t *testing.T) {
	a := joined(t, "a")
	a.handle(t, config.EvMeshExistingPeers, config.ExistingPeersOut{Peers: []config.Participant{{SocketID: "b"}, {SocketID: "c"}}})
	a.sig.take()

	if err := a.SetMic(false); err != nil {
		t.Fatal(err)
	}
	if a.media.Enabled(webrtc.RTPCodecTypeAudio) || !a.media.Enabled(webrtc.RTPCodecTypeVideo) {
		t.Fatal("local track flags wrong")
	}
	for _, id := range []string{"b", "c"} {
		if tr := a.fac.last(t, id); tr.enabled[webrtc.RTPCodecTypeAudio] || !tr.enabled[webrtc.RTPCodecTypeVideo] {
			t.Fatalf("sender flags on %s = %v", id, tr.enabled)
		}
	}

	ms := a.sig.named(config.EvMeshMediaState)
	if len(ms) != 1 {
		t.Fatalf("media-state frames = %d", len(ms))
	}
	var st config.MediaStateIn
	if err := json.Unmarshal(ms[0].data, &st); err != nil {
		t.Fatal(err)
	}
	if st != (config.MediaStateIn{RoomID: "R1", Mic: false, Cam: true}) {
		t.Fatalf("media-state = %+v", st)
	}

	t.Run("late peers start muted", func(t *testing.T) {
		a.handle(t, config.EvMeshNewPeer, config.Participant{SocketID: "d"})
		if a.fac.last(t, "d").enabled[webrtc.RTPCodecTypeAudio] {
			t.Fatal("new sender unmuted")
		}
	})

	t.Run("remote state is tracked", func(t *testing.T) {
		a.handle(t, config.EvMeshMediaState, config.MediaStateOut{From: "b", Mic: true, Cam: false})
		if p, _ := a.Peer("b"); !p.Mic || p.Cam {
			t.Fatalf("peer b = %+v", p)
		}
	})

	if err := a.SetCam(false); err != nil {
		t.Fatal(err)
	}
	if a.fac.last(t, "c").enabled[webrtc.RTPCodecTypeVideo] {
		t.Fatal("camera still sending")
	}
}
