package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/Roygautam8852/SyncSpace/config"
	"github.com/Roygautam8852/SyncSpace/internal/logx"
)

var (
	ErrNotInCall  = errors.New("not in a call")
	// ErrNoSocketID means Join ran before the connected event was handled.
	ErrNoSocketID = errors.New("socket id not known yet")
)

type Options struct {
	RoomID    string
	Username  string
	Signaler  Signaler
	Transport TransportFactory
	OpenMedia MediaOpener

	// optional UI hooks, called without the mesh lock held
	OnRemoteTrack func(peerID string, t *webrtc.TrackRemote)
	OnCallEnded   func(reason string)
}

// Mesh keeps one peer connection per remote call member and applies the
// server's mesh:* events to them.
type Mesh struct {
	opts Options
	log  *zap.Logger

	mu     sync.Mutex
	self   string
	media  Media
	inCall bool
	mic    bool
	cam    bool
	peers  map[string]*Peer
}

func NewMesh(opts Options) *Mesh {
	return &Mesh{
		opts:  opts,
		log:   logx.L.With(zap.String("room", opts.RoomID)),
		peers: make(map[string]*Peer),
	}
}

// SetSelf records our socket id, normally from the connected event.
func (m *Mesh) SetSelf(id string) {
	m.mu.Lock()
	m.self = id
	m.mu.Unlock()
}

func (m *Mesh) Self() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.self
}

func (m *Mesh) InCall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inCall
}

// Peers lists the live peers by id.
func (m *Mesh) Peers() []PeerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PeerInfo, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mesh) Peer(id string) (PeerInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[id]
	if !ok {
		return PeerInfo{}, false
	}
	return p.info(), true
}

// Join opens local media and asks the server into the call. Without media
// nothing is sent. Our socket id must be known first, it decides glare.
func (m *Mesh) Join(ctx context.Context) error {
	m.mu.Lock()
	if m.inCall {
		m.mu.Unlock()
		return nil
	}
	if m.self == "" {
		m.mu.Unlock()
		return ErrNoSocketID
	}
	m.mu.Unlock()

	media, err := m.opts.OpenMedia(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	m.mu.Lock()
	m.media = media
	m.inCall = true
	m.mic, m.cam = true, true
	m.mu.Unlock()

	return m.opts.Signaler.Emit(config.EvMeshJoin, config.MeshJoinIn{
		RoomID:   m.opts.RoomID,
		Username: m.opts.Username,
	})
}

// Leave tells the server and tears everything down locally.
func (m *Mesh) Leave() error {
	if !m.InCall() {
		return nil
	}
	err := m.opts.Signaler.Emit(config.EvMeshLeave, config.RoomMsg{RoomID: m.opts.RoomID})
	m.reset()
	return err
}

// Handle applies one inbound server event. Events the mesh does not care
// about are ignored.
func (m *Mesh) Handle(event string, data json.RawMessage) error {
	switch event {
	case config.EvConnected:
		var v config.ConnectedOut
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		m.SetSelf(v.SocketID)

	case config.EvMeshExistingPeers:
		var v config.ExistingPeersOut
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		m.existingPeers(v.Peers)

	case config.EvMeshNewPeer:
		var v config.Participant
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		return m.newPeer(v)

	case config.EvMeshOffer, config.EvMeshAnswer, config.EvMeshCandidate:
		var v config.SignalOut
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		return m.signal(event, v)

	case config.EvMeshMediaState:
		var v config.MediaStateOut
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		m.mu.Lock()
		if p, ok := m.peers[v.From]; ok {
			p.Mic, p.Cam = v.Mic, v.Cam
		}
		m.mu.Unlock()

	case config.EvMeshPeerLeft:
		var v config.PeerLeftOut
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		m.removePeer(v.SocketID, nil)

	case config.EvMeshCallEnded:
		var v config.CallEndedOut
		_ = json.Unmarshal(data, &v)
		m.log.Info("call ended", zap.String("reason", v.Reason))
		m.reset()
		if m.opts.OnCallEnded != nil {
			m.opts.OnCallEnded(v.Reason)
		}
	}
	return nil
}

// existingPeers makes us the initiator towards everyone already in the
// call. A failure with one peer does not stop the others.
func (m *Mesh) existingPeers(peers []config.Participant) {
	for _, p := range peers {
		if err := m.offerTo(p); err != nil {
			m.log.Warn("offer failed", zap.String("peer", p.SocketID), zap.Error(err))
		}
	}
}

func (m *Mesh) offerTo(pp config.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inCall || pp.SocketID == m.self {
		return nil
	}
	p, err := m.ensurePeer(pp.SocketID, pp.Username, true)
	if err != nil {
		return err
	}
	if p.state != StateNew {
		return nil
	}

	offer, err := p.t.CreateOffer()
	if err != nil {
		return err
	}
	if err := p.t.SetLocalDescription(offer); err != nil {
		return err
	}
	p.state = StateHaveLocalOffer
	return m.emitSignal(config.EvMeshOffer, p.ID, offer)
}

// newPeer pre-creates the connection for a late joiner and waits for its
// offer.
func (m *Mesh) newPeer(pp config.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inCall || pp.SocketID == m.self {
		return nil
	}
	_, err := m.ensurePeer(pp.SocketID, pp.Username, false)
	return err
}

func (m *Mesh) signal(event string, v config.SignalOut) error {
	var stale Transport
	defer func() {
		if stale != nil {
			_ = stale.Close()
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inCall {
		return ErrNotInCall
	}
	log := m.log.With(zap.String("peer", v.From), zap.String("event", event))

	switch event {
	case config.EvMeshOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(v.Offer, &offer); err != nil {
			return fmt.Errorf("offer from %s: %w", v.From, err)
		}
		p, err := m.ensurePeer(v.From, v.Username, false)
		if err != nil {
			return err
		}
		if v.Username != "" {
			p.Name = v.Username
		}

		if p.state == StateHaveLocalOffer {
			if m.self >= v.From {
				log.Debug("glare, keeping our offer")
				return nil
			}
			// pion cannot roll back a local offer, so the yielding side
			// starts over on a fresh connection
			log.Debug("glare, yielding")
			stale = p.t
			if p, err = m.replacePeer(p); err != nil {
				return err
			}
		}

		if err := p.t.SetRemoteDescription(offer); err != nil {
			return err
		}
		p.state = StateHaveRemoteOffer
		m.flush(p, log)

		answer, err := p.t.CreateAnswer()
		if err != nil {
			return err
		}
		if err := p.t.SetLocalDescription(answer); err != nil {
			return err
		}
		p.state = StateStable
		return m.emitSignal(config.EvMeshAnswer, p.ID, answer)

	case config.EvMeshAnswer:
		p, ok := m.peers[v.From]
		if !ok || p.state != StateHaveLocalOffer {
			log.Debug("answer ignored")
			return nil
		}
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(v.Answer, &answer); err != nil {
			return fmt.Errorf("answer from %s: %w", v.From, err)
		}
		if err := p.t.SetRemoteDescription(answer); err != nil {
			return err
		}
		p.state = StateStable
		m.flush(p, log)

	case config.EvMeshCandidate:
		p, ok := m.peers[v.From]
		if !ok {
			log.Debug("candidate for unknown peer")
			return nil
		}
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal(v.Candidate, &c); err != nil {
			return fmt.Errorf("candidate from %s: %w", v.From, err)
		}
		return p.cands.add(p.t, c)
	}
	return nil
}

func (m *Mesh) flush(p *Peer, log *zap.Logger) {
	n, errs := p.cands.flush(p.t)
	for _, err := range errs {
		log.Debug("queued candidate rejected", zap.Error(err))
	}
	if n > 0 {
		log.Debug("queued candidates applied", zap.Int("count", n))
	}
}

// replacePeer swaps old for a fresh responder connection. Remote candidates
// still waiting on old carry over. The caller closes old's transport once
// the lock is released.
func (m *Mesh) replacePeer(old *Peer) (*Peer, error) {
	delete(m.peers, old.ID)
	old.state = StateClosed

	p, err := m.ensurePeer(old.ID, old.Name, false)
	if err != nil {
		return nil, err
	}
	p.Mic, p.Cam = old.Mic, old.Cam
	for old.cands.Len() > 0 {
		p.cands.pending.PushBack(old.cands.pending.PopFront())
	}
	return p, nil
}

// ensurePeer returns the live peer for id, creating it with local tracks
// attached. Called with the lock held.
func (m *Mesh) ensurePeer(id, name string, initiator bool) (*Peer, error) {
	if p, ok := m.peers[id]; ok {
		return p, nil
	}

	p := &Peer{ID: id, Name: name, Initiator: initiator, Mic: true, Cam: true}
	t, err := m.opts.Transport(id, Events{
		Candidate: func(c webrtc.ICECandidateInit) { m.localCandidate(p, c) },
		State:     func(s webrtc.PeerConnectionState) { m.transportState(p, s) },
		Track:     func(tr *webrtc.TrackRemote) { m.remoteTrack(p, tr) },
	})
	if err != nil {
		return nil, fmt.Errorf("transport for %s: %w", id, err)
	}
	p.t = t

	if m.media != nil {
		for _, track := range m.media.Tracks() {
			if err := t.AddTrack(track); err != nil {
				// Close may report state synchronously and we hold the lock
				go t.Close()
				return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
			}
		}
		if !m.mic {
			_ = t.SetTrackEnabled(webrtc.RTPCodecTypeAudio, false)
		}
		if !m.cam {
			_ = t.SetTrackEnabled(webrtc.RTPCodecTypeVideo, false)
		}
	}

	m.peers[id] = p
	return p, nil
}

func (m *Mesh) emitSignal(event, to string, d webrtc.SessionDescription) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	msg := config.SignalIn{RoomID: m.opts.RoomID, To: to}
	if d.Type == webrtc.SDPTypeOffer {
		msg.Offer = raw
	} else {
		msg.Answer = raw
	}
	return m.opts.Signaler.Emit(event, msg)
}

// localCandidate forwards a candidate gathered by p's connection. A
// connection that was replaced or removed no longer speaks for the peer.
func (m *Mesh) localCandidate(p *Peer, c webrtc.ICECandidateInit) {
	m.mu.Lock()
	live := m.peers[p.ID] == p
	m.mu.Unlock()
	if !live {
		return
	}

	to := p.ID
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	err = m.opts.Signaler.Emit(config.EvMeshCandidate, config.SignalIn{
		RoomID:    m.opts.RoomID,
		To:        to,
		Candidate: raw,
	})
	if err != nil {
		m.log.Debug("candidate not sent", zap.String("peer", to), zap.Error(err))
	}
}

func (m *Mesh) transportState(p *Peer, s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		m.mu.Lock()
		if m.peers[p.ID] == p {
			p.state = StateConnected
		}
		m.mu.Unlock()
	case webrtc.PeerConnectionStateFailed:
		m.log.Warn("peer connection failed", zap.String("peer", p.ID))
		m.removePeer(p.ID, p)
	case webrtc.PeerConnectionStateClosed:
		m.removePeer(p.ID, p)
	}
}

func (m *Mesh) remoteTrack(p *Peer, tr *webrtc.TrackRemote) {
	m.mu.Lock()
	live := m.peers[p.ID] == p
	if live {
		p.tracks = append(p.tracks, tr)
	}
	m.mu.Unlock()

	if live && m.opts.OnRemoteTrack != nil {
		m.opts.OnRemoteTrack(p.ID, tr)
	}
}

// removePeer drops one peer. With want set, only that exact instance is
// removed, so a late callback from a replaced connection is harmless.
func (m *Mesh) removePeer(id string, want *Peer) {
	m.mu.Lock()
	p, ok := m.peers[id]
	if !ok || (want != nil && p != want) {
		m.mu.Unlock()
		return
	}
	delete(m.peers, id)
	p.state = StateClosed
	m.mu.Unlock()

	_ = p.t.Close()
}

// reset is the hard teardown: every peer closed, local media released.
func (m *Mesh) reset() {
	m.mu.Lock()
	peers := m.peers
	media := m.media
	m.peers = make(map[string]*Peer)
	m.media = nil
	m.inCall = false
	m.mu.Unlock()

	for _, p := range peers {
		p.state = StateClosed
		_ = p.t.Close()
	}
	if media != nil {
		media.Release()
	}
}

// SetMic toggles the microphone on the local track, on every sender, and
// tells the room.
func (m *Mesh) SetMic(on bool) error {
	return m.setMedia(webrtc.RTPCodecTypeAudio, on)
}

func (m *Mesh) SetCam(on bool) error {
	return m.setMedia(webrtc.RTPCodecTypeVideo, on)
}

func (m *Mesh) setMedia(kind webrtc.RTPCodecType, on bool) error {
	m.mu.Lock()
	if !m.inCall {
		m.mu.Unlock()
		return ErrNotInCall
	}
	if kind == webrtc.RTPCodecTypeAudio {
		m.mic = on
	} else {
		m.cam = on
	}
	m.media.SetEnabled(kind, on)
	for _, p := range m.peers {
		if err := p.t.SetTrackEnabled(kind, on); err != nil {
			m.log.Debug("sender toggle failed", zap.String("peer", p.ID), zap.Error(err))
		}
	}
	state := config.MediaStateIn{RoomID: m.opts.RoomID, Mic: m.mic, Cam: m.cam}
	m.mu.Unlock()

	return m.opts.Signaler.Emit(config.EvMeshMediaState, state)
}
