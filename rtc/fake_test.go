package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/Roygautam8852/SyncSpace/config"
)

// fakeTransport follows the offer/answer rules a real peer connection
// enforces, without any network.
type fakeTransport struct {
	owner, peer string
	ev          Events

	mu         sync.Mutex
	state      webrtc.SignalingState
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	tracks     []webrtc.TrackLocal
	enabled    map[webrtc.RTPCodecType]bool
	remotes    int
	closed     bool
}

func (f *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer:" + f.owner}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != webrtc.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, errors.New("answer without remote offer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer:" + f.owner}, nil
}

func (f *fakeTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch d.Type {
	case webrtc.SDPTypeOffer:
		if f.state != webrtc.SignalingStateStable {
			return errors.New("local offer in " + f.state.String())
		}
		f.state = webrtc.SignalingStateHaveLocalOffer
	case webrtc.SDPTypeAnswer:
		if f.state != webrtc.SignalingStateHaveRemoteOffer {
			return errors.New("local answer in " + f.state.String())
		}
		f.state = webrtc.SignalingStateStable
	}
	f.local = &d
	return nil
}

func (f *fakeTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch d.Type {
	case webrtc.SDPTypeOffer:
		if f.state != webrtc.SignalingStateStable {
			return errors.New("remote offer in " + f.state.String())
		}
		f.state = webrtc.SignalingStateHaveRemoteOffer
	case webrtc.SDPTypeAnswer:
		if f.state != webrtc.SignalingStateHaveLocalOffer {
			return errors.New("remote answer in " + f.state.String())
		}
		f.state = webrtc.SignalingStateStable
	}
	f.remote = &d
	f.remotes++
	return nil
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return errors.New("candidate before remote description")
	}
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakeTransport) AddTrack(t webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, t)
	f.enabled[t.Kind()] = true
	return nil
}

func (f *fakeTransport) SetTrackEnabled(kind webrtc.RTPCodecType, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[kind] = on
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) remoteSDP() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return ""
	}
	return f.remote.SDP
}

func (f *fakeTransport) candidateList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.candidates {
		out = append(out, c.Candidate)
	}
	return out
}

// fakeFactory remembers every transport it built, latest per peer.
type fakeFactory struct {
	owner string

	mu    sync.Mutex
	built map[string][]*fakeTransport
}

func newFakeFactory(owner string) *fakeFactory {
	return &fakeFactory{owner: owner, built: make(map[string][]*fakeTransport)}
}

func (ff *fakeFactory) New(peerID string, ev Events) (Transport, error) {
	t := &fakeTransport{
		owner:   ff.owner,
		peer:    peerID,
		ev:      ev,
		state:   webrtc.SignalingStateStable,
		enabled: make(map[webrtc.RTPCodecType]bool),
	}
	ff.mu.Lock()
	ff.built[peerID] = append(ff.built[peerID], t)
	ff.mu.Unlock()
	return t, nil
}

func (ff *fakeFactory) last(t *testing.T, peerID string) *fakeTransport {
	t.Helper()
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ts := ff.built[peerID]
	if len(ts) == 0 {
		t.Fatalf("no transport for %s", peerID)
	}
	return ts[len(ts)-1]
}

func (ff *fakeFactory) nth(t *testing.T, peerID string, i int) *fakeTransport {
	t.Helper()
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ts := ff.built[peerID]
	if i >= len(ts) {
		t.Fatalf("only %d transports for %s", len(ts), peerID)
	}
	return ts[i]
}

func (ff *fakeFactory) count(peerID string) int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.built[peerID])
}

type emitted struct {
	event string
	data  json.RawMessage
}

type sigRecorder struct {
	mu     sync.Mutex
	frames []emitted
}

func (r *sigRecorder) Emit(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.frames = append(r.frames, emitted{event, raw})
	r.mu.Unlock()
	return nil
}

// take returns and forgets everything emitted so far.
func (r *sigRecorder) take() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.frames
	r.frames = nil
	return out
}

func (r *sigRecorder) named(event string) []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []emitted
	for _, f := range r.frames {
		if f.event == event {
			out = append(out, f)
		}
	}
	return out
}

type testMesh struct {
	*Mesh
	sig     *sigRecorder
	fac     *fakeFactory
	media   *StaticMedia
	endedBy string
}

func newTestMesh(t *testing.T, self string) *testMesh {
	t.Helper()
	media, err := NewStaticMedia("stream-" + self)
	if err != nil {
		t.Fatal(err)
	}
	tm := &testMesh{sig: &sigRecorder{}, fac: newFakeFactory(self), media: media}
	tm.Mesh = NewMesh(Options{
		RoomID:      "R1",
		Username:    "name-" + self,
		Signaler:    tm.sig,
		Transport:   tm.fac.New,
		OpenMedia:   func(context.Context) (Media, error) { return media, nil },
		OnCallEnded: func(reason string) { tm.endedBy = reason },
	})
	tm.SetSelf(self)
	return tm
}

func (tm *testMesh) handle(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := tm.Handle(event, raw); err != nil {
		t.Fatalf("%s: %v", event, err)
	}
}

// relay plays the server: it turns what from emitted towards to into the
// frames to would receive.
func relay(t *testing.T, from *testMesh, frames []emitted, to *testMesh) {
	t.Helper()
	for _, f := range frames {
		var in config.SignalIn
		if err := json.Unmarshal(f.data, &in); err != nil {
			t.Fatal(err)
		}
		if in.To != to.Self() {
			continue
		}
		out := config.SignalOut{From: from.Self(), Offer: in.Offer, Answer: in.Answer, Candidate: in.Candidate}
		if f.event == config.EvMeshOffer {
			out.Username = "name-" + from.Self()
		}
		to.handle(t, f.event, out)
	}
}
