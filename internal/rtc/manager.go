// Package rtc establishes and owns the realtime peer connection: microphone
// track out, remote audio track in, and the signaling data channel.
package rtc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"crosstalk/internal/domain"
	"crosstalk/internal/logging"
	"crosstalk/internal/ports"
)

const (
	signalChannelLabel = "oai-events"
	opusPayloadType    = 111
)

// Config carries the connection parameters shared by every session the
// manager opens.
type Config struct {
	// SignalURL is the answer endpoint the local offer is posted to.
	SignalURL string
	// Model is appended to the signaling request so the far side knows which
	// realtime model answers the call.
	Model string
	Audio ports.AudioConfig
	// GatherTimeout bounds how long an offer waits for ICE gathering before
	// being sent with whatever candidates arrived.
	GatherTimeout time.Duration
	HTTPTimeout   time.Duration
}

// Manager opens peer sessions against the speech endpoint. It implements
// ports.PeerConnector.
type Manager struct {
	cfg      Config
	capture  ports.AudioCapture
	playback ports.AudioPlayback
	client   *http.Client
	log      zerolog.Logger
}

func NewManager(cfg Config, capture ports.AudioCapture, playback ports.AudioPlayback) *Manager {
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = 5 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		capture:  capture,
		playback: playback,
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		log:      logging.WithComponent("rtc"),
	}
}

// Connect acquires the microphone, negotiates a peer connection with the
// credential in desc, and returns the live session. Any failure along the way
// releases everything acquired so far before returning.
func (m *Manager) Connect(ctx context.Context, desc domain.SessionDescriptor, callbacks ports.PeerCallbacks) (ports.PeerSession, error) {
	mic, err := m.capture.Start(ctx, m.cfg.Audio)
	if err != nil {
		return nil, err
	}

	s := newSession(m.playback, mic, callbacks, m.log)

	pc, err := m.newPeerConnection()
	if err != nil {
		s.Teardown()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	s.pc = pc

	localTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: uint16(m.cfg.Audio.Channels)},
		"audio", "crosstalk-mic",
	)
	if err != nil {
		s.Teardown()
		return nil, fmt.Errorf("create local track: %w", err)
	}
	if _, err := pc.AddTrack(localTrack); err != nil {
		s.Teardown()
		return nil, fmt.Errorf("add local track: %w", err)
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.handleRemoteTrack(track)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.handleConnectionState(state)
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		s.log.Debug().Str("ice_state", state.String()).Msg("ice connection state")
	})

	// The channel must exist before the offer so it rides the initial
	// negotiation instead of requiring a second one.
	dc, err := pc.CreateDataChannel(signalChannelLabel, nil)
	if err != nil {
		s.Teardown()
		return nil, fmt.Errorf("create signaling channel: %w", err)
	}
	s.attachChannel(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		s.Teardown()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		s.Teardown()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	if err := waitForGathering(ctx, gathered, m.cfg.GatherTimeout); err != nil {
		s.Teardown()
		return nil, err
	}

	answer, err := exchangeSDP(ctx, m.client, m.cfg.SignalURL, m.cfg.Model, desc.ClientSecret, pc.LocalDescription().SDP)
	if err != nil {
		s.Teardown()
		return nil, err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		s.Teardown()
		return nil, fmt.Errorf("set remote description: %w", err)
	}

	s.startSending(localTrack)
	return s, nil
}

func (m *Manager) newPeerConnection() (*webrtc.PeerConnection, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: opusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, registry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(media), webrtc.WithInterceptorRegistry(registry))
	return api.NewPeerConnection(webrtc.Configuration{})
}

// waitForGathering blocks until ICE gathering completes or the bound expires.
// A timeout is not an error; the offer is usable with partial candidates.
func waitForGathering(ctx context.Context, gathered <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-gathered:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
