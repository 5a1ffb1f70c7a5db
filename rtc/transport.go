package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Transport is the part of a peer connection the mesh drives. The pion
// adapter below is the real one; tests substitute their own.
type Transport interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	AddTrack(webrtc.TrackLocal) error
	// SetTrackEnabled switches what every sender of the given kind carries.
	SetTrackEnabled(kind webrtc.RTPCodecType, on bool) error
	Close() error
}

// Events are the transport callbacks. They may fire on any goroutine.
type Events struct {
	Candidate func(webrtc.ICECandidateInit)
	State     func(webrtc.PeerConnectionState)
	Track     func(*webrtc.TrackRemote)
}

// TransportFactory builds a transport for one remote peer.
type TransportFactory func(peerID string, ev Events) (Transport, error)

// PionFactory creates pion peer connections from one API and configuration.
// A nil api uses pion's defaults.
func PionFactory(api *webrtc.API, cfg webrtc.Configuration) TransportFactory {
	return func(_ string, ev Events) (Transport, error) {
		var (
			pc  *webrtc.PeerConnection
			err error
		)
		if api != nil {
			pc, err = api.NewPeerConnection(cfg)
		} else {
			pc, err = webrtc.NewPeerConnection(cfg)
		}
		if err != nil {
			return nil, err
		}

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			// nil marks the end of gathering
			if c != nil && ev.Candidate != nil {
				ev.Candidate(c.ToJSON())
			}
		})
		if ev.State != nil {
			pc.OnConnectionStateChange(ev.State)
		}
		pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			if ev.Track != nil {
				ev.Track(tr)
			}
		})
		return &pionTransport{pc: pc}, nil
	}
}

type sendTrack struct {
	track  webrtc.TrackLocal
	sender *webrtc.RTPSender
}

type pionTransport struct {
	pc *webrtc.PeerConnection

	mu    sync.Mutex
	sends []sendTrack
}

func (p *pionTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionTransport) SetLocalDescription(d webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(d)
}

func (p *pionTransport) SetRemoteDescription(d webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(d)
}

func (p *pionTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *pionTransport) AddTrack(t webrtc.TrackLocal) error {
	s, err := p.pc.AddTrack(t)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.sends = append(p.sends, sendTrack{track: t, sender: s})
	p.mu.Unlock()
	return nil
}

// pion tracks have no enabled flag; a muted sender carries no track.
func (p *pionTransport) SetTrackEnabled(kind webrtc.RTPCodecType, on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, s := range p.sends {
		if s.track.Kind() != kind {
			continue
		}
		var t webrtc.TrackLocal
		if on {
			t = s.track
		}
		if err := s.sender.ReplaceTrack(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *pionTransport) Close() error {
	return p.pc.Close()
}
