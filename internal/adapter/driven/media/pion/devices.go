package pion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const audioFrame = 20 * time.Millisecond

// opusSilence is a single opus frame carrying 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// SampleDevices stands in for capture hardware on headless devices. Audio
// is a stream of silent opus frames; the video track is negotiated but
// carries no frames.
type SampleDevices struct {
	newLocal localTrackFunc
}

type localTrackFunc func(c webrtc.RTPCodecCapability, id, streamID string) (*webrtc.TrackLocalStaticSample, error)

func NewSampleDevices() *SampleDevices {
	return &SampleDevices{newLocal: func(c webrtc.RTPCodecCapability, id, streamID string) (*webrtc.TrackLocalStaticSample, error) {
		return webrtc.NewTrackLocalStaticSample(c, id, streamID)
	}}
}

func (d *SampleDevices) GetUserMedia(ctx context.Context, c port.MediaConstraints) (port.LocalStream, error) {
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no media requested", domain.ErrMediaAccess)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaAccess, err)
	}

	s := &sampleStream{
		id:       uuid.NewString(),
		stop:     make(chan struct{}),
		newLocal: d.newLocal,
	}
	var audio *sampleTrack
	if c.Audio {
		t, err := s.newTrack(port.KindAudio, webrtc.MimeTypeOpus)
		if err != nil {
			s.Stop()
			return nil, err
		}
		audio = t
	}
	if c.Video {
		if _, err := s.newTrack(port.KindVideo, webrtc.MimeTypeVP8); err != nil {
			s.Stop()
			return nil, err
		}
	}
	// the pump only starts once every track exists
	if audio != nil {
		go s.pumpAudio(audio)
	}
	return s, nil
}

type sampleStream struct {
	id       string
	tracks   []*sampleTrack
	newLocal localTrackFunc

	stopOnce sync.Once
	stop     chan struct{}
}

func (s *sampleStream) newTrack(kind port.MediaKind, mime string) (*sampleTrack, error) {
	local, err := s.newLocal(
		webrtc.RTPCodecCapability{MimeType: mime},
		string(kind)+"-"+s.id,
		s.id,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaAccess, err)
	}
	t := &sampleTrack{kind: kind, local: local}
	t.enabled.Store(true)
	s.tracks = append(s.tracks, t)
	return t, nil
}

func (s *sampleStream) pumpAudio(t *sampleTrack) {
	ticker := time.NewTicker(audioFrame)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !t.Enabled() {
				continue
			}
			// errors only mean nobody is bound yet
			_ = t.local.WriteSample(media.Sample{Data: opusSilence, Duration: audioFrame})
		}
	}
}

func (s *sampleStream) ID() string { return s.id }

func (s *sampleStream) Tracks() []port.LocalTrack {
	out := make([]port.LocalTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *sampleStream) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *sampleStream) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

type sampleTrack struct {
	kind    port.MediaKind
	local   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool
}

func (t *sampleTrack) ID() string              { return t.local.ID() }
func (t *sampleTrack) Kind() port.MediaKind    { return t.kind }
func (t *sampleTrack) Enabled() bool           { return t.enabled.Load() }
func (t *sampleTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }
