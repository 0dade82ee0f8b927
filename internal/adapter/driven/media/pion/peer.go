package pion

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const keyframeInterval = 3 * time.Second

var errForeignStream = errors.New("stream was not opened by this media adapter")

// PeerFactory builds peer connections sharing one media engine.
type PeerFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
}

// NewPeerFactory takes STUN/TURN urls. An empty list means host candidates
// only, which is enough on a LAN.
func NewPeerFactory(iceServers []string) (*PeerFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	var servers []webrtc.ICEServer
	for _, u := range iceServers {
		if u = strings.TrimSpace(u); u != "" {
			servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
		}
	}

	return &PeerFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		config: webrtc.Configuration{ICEServers: servers},
	}, nil
}

func (f *PeerFactory) NewPeerConnection() (port.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignaling, err)
	}
	return &peerConnection{pc: pc, done: make(chan struct{})}, nil
}

type peerConnection struct {
	pc *webrtc.PeerConnection

	closeOnce sync.Once
	done      chan struct{}
}

func (p *peerConnection) AddStream(s port.LocalStream) error {
	stream, ok := s.(*sampleStream)
	if !ok {
		return errForeignStream
	}
	for _, t := range stream.tracks {
		sender, err := p.pc.AddTrack(t.local)
		if err != nil {
			return fmt.Errorf("add %s track: %w", t.kind, err)
		}
		go drainRTCP(sender)
	}
	return nil
}

// drainRTCP keeps interceptors running; pion needs inbound RTCP to be read.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (p *peerConnection) CreateOffer() (domain.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromSDP(offer), nil
}

func (p *peerConnection) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, err
	}
	return fromSDP(answer), nil
}

func (p *peerConnection) SetLocalDescription(d domain.SessionDescription) error {
	return p.pc.SetLocalDescription(toSDP(d))
}

func (p *peerConnection) SetRemoteDescription(d domain.SessionDescription) error {
	return p.pc.SetRemoteDescription(toSDP(d))
}

func (p *peerConnection) AddICECandidate(c domain.ICECandidate) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func (p *peerConnection) OnICECandidate(fn func(domain.ICECandidate)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if c == nil {
			return
		}
		init := c.ToJSON()
		fn(domain.ICECandidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (p *peerConnection) OnTrack(fn func(port.RemoteTrack)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Debug().Str("kind", track.Kind().String()).Str("stream_id", track.StreamID()).Msg("Received remote track")

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go p.requestKeyframes(track)
		}
		go discard(track)

		fn(remoteTrack{track: track})
	})
}

// requestKeyframes sends a PLI right away and then periodically so the
// picture recovers quickly after loss.
func (p *peerConnection) requestKeyframes(track *webrtc.TrackRemote) {
	send := func() error {
		return p.pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
		})
	}
	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}

// discard reads inbound RTP. Rendering is left to the embedding UI.
func discard(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func (p *peerConnection) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.pc.Close()
	})
	return err
}

type remoteTrack struct {
	track *webrtc.TrackRemote
}

func (t remoteTrack) ID() string       { return t.track.ID() }
func (t remoteTrack) StreamID() string { return t.track.StreamID() }

func (t remoteTrack) Kind() port.MediaKind {
	if t.track.Kind() == webrtc.RTPCodecTypeVideo {
		return port.KindVideo
	}
	return port.KindAudio
}

func toSDP(d domain.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(string(d.Type)),
		SDP:  d.SDP,
	}
}

func fromSDP(d webrtc.SessionDescription) domain.SessionDescription {
	return domain.NewSessionDescription(domain.SDPType(d.Type.String()), d.SDP)
}
