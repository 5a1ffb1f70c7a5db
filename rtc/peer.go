// Package rtc is the client side of a mesh call: one peer connection per
// remote participant, negotiated over the room's websocket.
package rtc

import (
	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v4"
)

type PeerState int

const (
	StateNew PeerState = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
	StateConnected
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// candidateQueue holds remote candidates until the remote description is
// set. It moves from awaiting-remote-description to ready exactly once.
type candidateQueue struct {
	ready   bool
	pending deque.Deque[webrtc.ICECandidateInit]
}

// add applies c right away when ready, else queues it.
func (q *candidateQueue) add(t Transport, c webrtc.ICECandidateInit) error {
	if !q.ready {
		q.pending.PushBack(c)
		return nil
	}
	return t.AddICECandidate(c)
}

// flush marks the queue ready and replays what was held, in arrival order.
// A candidate the transport rejects is skipped; the rest still apply.
func (q *candidateQueue) flush(t Transport) (applied int, errs []error) {
	q.ready = true
	for q.pending.Len() > 0 {
		if err := t.AddICECandidate(q.pending.PopFront()); err != nil {
			errs = append(errs, err)
			continue
		}
		applied++
	}
	return applied, errs
}

func (q *candidateQueue) Len() int { return q.pending.Len() }

// Peer is the local view of one remote participant.
type Peer struct {
	ID        string
	Name      string
	Initiator bool

	// last mesh:media-state heard from the peer
	Mic, Cam bool

	state  PeerState
	t      Transport
	tracks []*webrtc.TrackRemote
	cands  candidateQueue
}

func (p *Peer) State() PeerState { return p.state }

// PeerInfo is a copy of a peer's state for callers outside the mesh lock.
type PeerInfo struct {
	ID        string
	Name      string
	Initiator bool
	State     PeerState
	Mic, Cam  bool
	Tracks    int
	Queued    int
}

func (p *Peer) info() PeerInfo {
	return PeerInfo{
		ID:        p.ID,
		Name:      p.Name,
		Initiator: p.Initiator,
		State:     p.state,
		Mic:       p.Mic,
		Cam:       p.Cam,
		Tracks:    len(p.tracks),
		Queued:    p.cands.Len(),
	}
}
