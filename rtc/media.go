package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// ErrMediaUnavailable is returned when local capture cannot be opened. The
// call is not joined.
var ErrMediaUnavailable = errors.New("local media unavailable")

// Media is the local capture shared by every peer connection.
type Media interface {
	Tracks() []webrtc.TrackLocal
	SetEnabled(kind webrtc.RTPCodecType, on bool)
	Release()
}

type MediaOpener func(ctx context.Context) (Media, error)

// StaticMedia is an opus + vp8 pair fed by WriteSample. Disabled or
// released tracks swallow samples.
type StaticMedia struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	mu       sync.Mutex
	enabled  map[webrtc.RTPCodecType]bool
	released bool
}

func NewStaticMedia(streamID string) (*StaticMedia, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, err
	}
	return &StaticMedia{
		audio: audio,
		video: video,
		enabled: map[webrtc.RTPCodecType]bool{
			webrtc.RTPCodecTypeAudio: true,
			webrtc.RTPCodecTypeVideo: true,
		},
	}, nil
}

// StaticOpener opens a fresh StaticMedia per call.
func StaticOpener(streamID string) MediaOpener {
	return func(context.Context) (Media, error) {
		return NewStaticMedia(streamID)
	}
}

func (m *StaticMedia) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.audio, m.video}
}

func (m *StaticMedia) SetEnabled(kind webrtc.RTPCodecType, on bool) {
	m.mu.Lock()
	m.enabled[kind] = on
	m.mu.Unlock()
}

func (m *StaticMedia) Enabled(kind webrtc.RTPCodecType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[kind] && !m.released
}

func (m *StaticMedia) Release() {
	m.mu.Lock()
	m.released = true
	m.mu.Unlock()
}

func (m *StaticMedia) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

func (m *StaticMedia) WriteSample(kind webrtc.RTPCodecType, s media.Sample) error {
	if !m.Enabled(kind) {
		return nil
	}
	if kind == webrtc.RTPCodecTypeAudio {
		return m.audio.WriteSample(s)
	}
	return m.video.WriteSample(s)
}
