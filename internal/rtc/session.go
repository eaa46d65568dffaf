package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"

	"crosstalk/internal/domain"
	"crosstalk/internal/ports"
)

// sampleWriter is the slice of the local track the send pump needs.
type sampleWriter interface {
	WriteSample(media.Sample) error
}

// session is one live peer connection. It owns the capture stream, the
// playback sink, and the signaling channel, and releases all of them exactly
// once on Teardown.
type session struct {
	pc *webrtc.PeerConnection

	dcMu     sync.Mutex
	dc       *webrtc.DataChannel
	dcOpen   bool
	pending  [][]byte
	sendText func(text string) error

	mic      ports.AudioSession
	playback ports.AudioPlayback

	playMu   sync.Mutex
	playSink ports.PlaybackSession

	callbacks ports.PeerCallbacks
	log       zerolog.Logger

	muted       atomic.Bool
	needsResume atomic.Bool
	ending      atomic.Bool
	closeOnce   sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(playback ports.AudioPlayback, mic ports.AudioSession, callbacks ports.PeerCallbacks, log zerolog.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		mic:       mic,
		playback:  playback,
		callbacks: callbacks,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SendEvent marshals v and sends it on the signaling channel. An event sent
// before the channel finishes opening is queued and flushed on open; the data
// channel rides the initial negotiation but is not usable until DTLS and SCTP
// establishment complete.
func (s *session) SendEvent(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.dcMu.Lock()
	defer s.dcMu.Unlock()
	if s.sendText == nil || s.ending.Load() {
		return domain.ErrChannelClosed
	}
	if !s.dcOpen {
		s.pending = append(s.pending, payload)
		return nil
	}
	if err := s.sendText(string(payload)); err != nil {
		return domain.ErrChannelClosed
	}
	return nil
}

// channelOpened flushes events queued while the channel was still
// establishing.
func (s *session) channelOpened() {
	s.dcMu.Lock()
	s.dcOpen = true
	pending := s.pending
	s.pending = nil
	send := s.sendText
	s.dcMu.Unlock()

	if send == nil || s.ending.Load() {
		return
	}
	for _, payload := range pending {
		if err := send(string(payload)); err != nil {
			if !s.ending.Load() {
				s.log.Warn().Err(err).Msg("queued signaling event not delivered")
			}
			return
		}
	}
}

// SetMuted flips the outbound gate. The connection and track stay up; the
// send pump simply stops forwarding samples.
func (s *session) SetMuted(muted bool) {
	s.muted.Store(muted)
}

func (s *session) Muted() bool {
	return s.muted.Load()
}

func (s *session) NeedsResume() bool {
	return s.needsResume.Load()
}

// ResumePlayback retries opening the playback sink after an earlier failure.
func (s *session) ResumePlayback(ctx context.Context) error {
	if s.ending.Load() {
		return domain.ErrChannelClosed
	}
	s.playMu.Lock()
	defer s.playMu.Unlock()
	if s.playSink != nil {
		s.needsResume.Store(false)
		return nil
	}
	sink, err := s.playback.Start(ctx)
	if err != nil {
		s.needsResume.Store(true)
		return err
	}
	s.playSink = sink
	s.needsResume.Store(false)
	return nil
}

// Teardown releases the microphone, playback sink, signaling channel, and
// peer connection. Safe to call repeatedly and from any goroutine.
func (s *session) Teardown() {
	s.closeOnce.Do(func() {
		s.ending.Store(true)
		s.cancel()

		if s.mic != nil {
			if err := s.mic.Stop(); err != nil {
				s.log.Debug().Err(err).Msg("microphone stop")
			}
			_ = s.mic.Close()
		}

		s.playMu.Lock()
		if s.playSink != nil {
			_ = s.playSink.Close()
			s.playSink = nil
		}
		s.playMu.Unlock()

		s.dcMu.Lock()
		dc := s.dc
		s.dc = nil
		s.sendText = nil
		s.pending = nil
		s.dcMu.Unlock()
		if dc != nil {
			_ = dc.Close()
		}

		if s.pc != nil {
			_ = s.pc.Close()
		}
	})
}

func (s *session) attachChannel(dc *webrtc.DataChannel) {
	s.dcMu.Lock()
	s.dc = dc
	s.sendText = dc.SendText
	s.dcMu.Unlock()

	dc.OnOpen(func() {
		s.channelOpened()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if s.ending.Load() {
			return
		}
		if s.callbacks.OnMessage != nil {
			s.callbacks.OnMessage(msg.Data)
		}
	})
	dc.OnClose(func() {
		if s.ending.Load() {
			return
		}
		s.log.Warn().Msg("signaling channel closed by remote")
		if s.callbacks.OnDisconnected != nil {
			s.callbacks.OnDisconnected(domain.ErrChannelClosed)
		}
	})
}

func (s *session) handleConnectionState(state webrtc.PeerConnectionState) {
	if s.ending.Load() {
		return
	}
	s.log.Debug().Str("state", state.String()).Msg("peer connection state")
	switch state {
	case webrtc.PeerConnectionStateConnected:
		if s.callbacks.OnConnected != nil {
			s.callbacks.OnConnected()
		}
	case webrtc.PeerConnectionStateDisconnected:
		// Transient; ICE may still recover. The caller decides what to show.
		if s.callbacks.OnDisconnected != nil {
			s.callbacks.OnDisconnected(nil)
		}
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		if s.callbacks.OnDisconnected != nil {
			s.callbacks.OnDisconnected(domain.ErrTransportFailed)
		}
	}
}

// handleRemoteTrack opens the playback sink and pumps remote RTP into it as
// an ogg/opus stream. A sink that cannot open marks the session as needing a
// resume instead of failing the call.
func (s *session) handleRemoteTrack(track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	s.ensurePlayback()
	go s.receiveLoop(track)
}

func (s *session) ensurePlayback() {
	blocked := false
	s.playMu.Lock()
	if s.playSink == nil {
		sink, err := s.playback.Start(s.ctx)
		if err != nil {
			s.needsResume.Store(true)
			blocked = true
			s.log.Warn().Err(err).Msg("playback unavailable; audio held until resume")
		} else {
			s.playSink = sink
		}
	}
	s.playMu.Unlock()

	if blocked && !s.ending.Load() && s.callbacks.OnPlaybackBlocked != nil {
		s.callbacks.OnPlaybackBlocked()
	}
}

func (s *session) receiveLoop(track *webrtc.TrackRemote) {
	var ogg *oggwriter.OggWriter
	for {
		if s.ending.Load() {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !s.ending.Load() && !errors.Is(err, io.EOF) {
				s.log.Debug().Err(err).Msg("remote track read ended")
			}
			return
		}

		s.playMu.Lock()
		sink := s.playSink
		s.playMu.Unlock()
		if sink == nil {
			// Dropped until playback resumes; live translation has no value
			// in buffering stale audio.
			continue
		}
		if ogg == nil {
			w, err := oggwriter.NewWith(sink, 48000, 2)
			if err != nil {
				s.log.Error().Err(err).Msg("open playback container")
				return
			}
			ogg = w
		}
		if err := ogg.WriteRTP(pkt); err != nil {
			if !s.ending.Load() {
				s.log.Debug().Err(err).Msg("playback write failed")
			}
			return
		}
	}
}

func (s *session) startSending(track sampleWriter) {
	go func() {
		if err := s.sendLoop(track); err != nil && !s.ending.Load() {
			s.log.Warn().Err(err).Msg("microphone stream ended")
			if s.callbacks.OnDisconnected != nil {
				s.callbacks.OnDisconnected(err)
			}
		}
	}()
}

// sendLoop paces ogg pages from the capture stream onto the local track.
// While muted, pages are read and discarded so the stream keeps draining
// without anything leaving the machine.
func (s *session) sendLoop(track sampleWriter) error {
	ogg, _, err := oggreader.NewWith(s.mic)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		pageData, pageHeader, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		sampleCount := pageHeader.GranulePosition - lastGranule
		lastGranule = pageHeader.GranulePosition
		duration := time.Duration(sampleCount*1000/48000) * time.Millisecond

		if !s.muted.Load() {
			if err := track.WriteSample(media.Sample{Data: pageData, Duration: duration}); err != nil {
				return err
			}
		}

		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return nil
		}
	}
}
