// Package usecase orchestrates the call lifecycle: credential issuance, peer
// connection setup, transcript persistence, and teardown.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crosstalk/internal/domain"
	"crosstalk/internal/logging"
	"crosstalk/internal/negotiate"
	"crosstalk/internal/ports"
	"crosstalk/internal/realtime"
)

var (
	ErrCallActive   = errors.New("a call is already active")
	ErrNoActiveCall = errors.New("no active call")
	ErrCallEnded    = errors.New("call ended during setup")
)

// Config carries per-call session parameters.
type Config struct {
	Voice string
	// SummaryTimeout bounds the background summary request issued at call
	// end; the call flow never waits on it.
	SummaryTimeout time.Duration
}

// CallController drives a translation call from start to teardown. One call
// at a time; all public methods are safe for concurrent use.
type CallController struct {
	negotiator ports.Negotiator
	peers      ports.PeerConnector
	store      ports.CallStore
	events     ports.EventSink
	cfg        Config
	log        zerolog.Logger

	mu      sync.Mutex
	current *activeCall

	now func() time.Time
}

func NewCallController(
	negotiator ports.Negotiator,
	peers ports.PeerConnector,
	store ports.CallStore,
	events ports.EventSink,
	cfg Config,
) *CallController {
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = 30 * time.Second
	}
	return &CallController{
		negotiator: negotiator,
		peers:      peers,
		store:      store,
		events:     events,
		cfg:        cfg,
		log:        logging.WithComponent("controller"),
		now:        time.Now,
	}
}

// StartCall establishes a new translation call for the given language pair.
// A second call while one is active is rejected rather than queued.
func (c *CallController) StartCall(ctx context.Context, primaryLanguage, secondaryLanguage string) (string, error) {
	active := &activeCall{state: domain.CallStateConnecting}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return "", ErrCallActive
	}
	c.current = active
	c.mu.Unlock()

	c.events.CallStateChanged(domain.CallStateConnecting, domain.CallReasonStarting)

	callID, err := c.store.StartCall(ctx, primaryLanguage, secondaryLanguage)
	if err != nil {
		c.failStart(active, domain.ErrorCodePersistence, fmt.Sprintf("could not register call: %v", err))
		return "", err
	}
	active.setID(callID)
	log := logging.WithCall("controller", callID)

	desc, err := c.negotiator.Mint(ctx, primaryLanguage, secondaryLanguage, c.cfg.Voice)
	if err != nil {
		log.Error().Err(err).Msg("credential issuance failed")
		c.failStart(active, domain.ErrorCodeCredential, fmt.Sprintf("could not obtain session credential: %v", err))
		return "", err
	}

	active.classifier = realtime.NewClassifier(callID,
		c.events.PartialTranscript,
		func(entry domain.TranscriptEntry) {
			c.events.TranscriptFinalized(entry)
			go c.persistTranscript(entry)
		},
	)

	callbacks := ports.PeerCallbacks{
		OnConnected:       func() { c.handleConnected(active) },
		OnDisconnected:    func(err error) { c.handleDisconnected(active, err) },
		OnPlaybackBlocked: func() { c.handlePlaybackBlocked(active) },
		OnMessage:         active.classifier.HandleMessage,
	}

	session, err := c.peers.Connect(ctx, desc, callbacks)
	if err != nil {
		log.Error().Err(err).Msg("peer connection failed")
		c.failStart(active, connectErrorCode(err), connectErrorDetail(err))
		return "", err
	}
	if !active.adoptSession(session) {
		// The call ended while the connection attempt was in flight; the
		// session never became reachable, so release it here.
		session.Teardown()
		log.Info().Msg("call ended before connection completed")
		return "", ErrCallEnded
	}

	// Re-assert the session configuration over the signaling channel so the
	// model applies the interpreter role even if the minted defaults drift.
	update := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions": negotiate.InterpreterInstructions(primaryLanguage, secondaryLanguage),
			"audio": map[string]any{
				"output": map[string]any{"voice": c.cfg.Voice},
			},
		},
	}
	if err := session.SendEvent(update); err != nil {
		log.Warn().Err(err).Msg("session update not delivered")
	}

	return callID, nil
}

// EndCall tears down the active call. Teardown always runs first so media and
// network resources are released even when persistence fails afterward; a
// duration-persistence failure is surfaced but the call still ends.
func (c *CallController) EndCall(ctx context.Context) error {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()
	if active == nil {
		return ErrNoActiveCall
	}
	if !active.markEnding() {
		return nil
	}

	now := c.now()
	active.timerPause(now)
	duration := active.elapsedSeconds(now)

	if session := active.getSession(); session != nil {
		session.Teardown()
	}

	var persistErr error
	if callID := active.getID(); callID != "" {
		if err := c.store.EndCall(ctx, callID, duration); err != nil {
			persistErr = err
			c.log.Error().Err(err).Str("call_id", callID).Msg("duration persistence failed")
			c.events.CallError(domain.ErrorCodePersistence, fmt.Sprintf("call saved incompletely: %v", err))
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SummaryTimeout)
			defer cancel()
			log := logging.WithCall("controller", callID)
			if err := c.store.GenerateSummary(ctx, callID); err != nil {
				log.Warn().Err(err).Msg("summary generation failed")
			}
		}()
	}

	c.finishCall(active, domain.CallStateEnded, domain.CallReasonEnded)
	return persistErr
}

// SetMuted gates the outbound microphone without touching the connection.
func (c *CallController) SetMuted(muted bool) error {
	active := c.getCurrent()
	if active == nil {
		return ErrNoActiveCall
	}
	session := active.getSession()
	if session == nil {
		return ErrNoActiveCall
	}
	session.SetMuted(muted)
	reason := domain.CallReasonUnmuted
	if muted {
		reason = domain.CallReasonMuted
	}
	c.events.CallStateChanged(active.getState(), reason)
	return nil
}

// ResumePlayback retries remote-audio rendering after a blocked start.
func (c *CallController) ResumePlayback(ctx context.Context) error {
	active := c.getCurrent()
	if active == nil {
		return ErrNoActiveCall
	}
	session := active.getSession()
	if session == nil {
		return ErrNoActiveCall
	}
	if err := session.ResumePlayback(ctx); err != nil {
		c.events.CallError(domain.ErrorCodePlayback, fmt.Sprintf("audio output still unavailable: %v", err))
		return err
	}
	c.events.CallStateChanged(active.getState(), domain.CallReasonPlaybackResumed)
	return nil
}

// Status reports the current call state for the UI.
func (c *CallController) Status() domain.Status {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()

	if active == nil {
		return domain.Status{State: domain.CallStateIdle}
	}
	status := domain.Status{
		State:  active.getState(),
		Active: true,
		CallID: active.getID(),
	}
	if session := active.getSession(); session != nil {
		status.Muted = session.Muted()
		status.NeedsResume = session.NeedsResume()
	}
	return status
}

func (c *CallController) handleConnected(active *activeCall) {
	if !c.isCurrent(active) {
		return
	}
	active.timerStart(c.now())
	active.setState(domain.CallStateConnected)
	c.events.CallStateChanged(domain.CallStateConnected, domain.CallReasonConnected)
}

func (c *CallController) handlePlaybackBlocked(active *activeCall) {
	if !c.isCurrent(active) {
		return
	}
	c.events.CallStateChanged(active.getState(), domain.CallReasonPlaybackBlocked)
}

func (c *CallController) handleDisconnected(active *activeCall, err error) {
	if !c.isCurrent(active) {
		return
	}
	active.timerPause(c.now())

	if err == nil {
		// Transient loss; ICE may recover and re-fire connected.
		active.setState(domain.CallStateConnecting)
		c.events.CallStateChanged(domain.CallStateConnecting, domain.CallReasonConnectionLost)
		return
	}

	// Terminal failure. The call stays current so the user can end it; no
	// automatic retry.
	active.setState(domain.CallStateError)
	code := domain.ErrorCodeTransport
	if errors.Is(err, domain.ErrChannelClosed) {
		code = domain.ErrorCodeChannel
	}
	c.events.CallError(code, err.Error())
	c.events.CallStateChanged(domain.CallStateError, domain.CallReasonConnectionLost)
}

func (c *CallController) persistTranscript(entry domain.TranscriptEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log := logging.WithCall("controller", entry.CallID)
	if err := c.store.AddTranscript(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("transcript write failed")
	}
}

func (c *CallController) getCurrent() *activeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *CallController) isCurrent(active *activeCall) bool {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	return current == active && !active.isEnding()
}

// failStart reports a start-up failure and returns the controller to idle. A
// call record already registered with the data service is marked failed so it
// does not linger as active.
func (c *CallController) failStart(active *activeCall, code domain.ErrorCode, detail string) {
	if callID := active.getID(); callID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log := logging.WithCall("controller", callID)
			if err := c.store.FailCall(ctx, callID); err != nil {
				log.Warn().Err(err).Msg("failed-call status write failed")
			}
		}()
	}
	c.events.CallError(code, detail)
	c.finishCall(active, domain.CallStateError, domain.CallReasonConnectionFailed)
}

func (c *CallController) finishCall(active *activeCall, state domain.CallState, reason domain.CallStateReason) {
	active.setState(state)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.events.CallStateChanged(state, reason)
}

func connectErrorCode(err error) domain.ErrorCode {
	var acq *domain.MediaAcquisitionError
	var sig *domain.SignalingError
	switch {
	case errors.As(err, &acq):
		return domain.ErrorCodeMedia
	case errors.As(err, &sig):
		return domain.ErrorCodeSignaling
	default:
		return domain.ErrorCodeTransport
	}
}

func connectErrorDetail(err error) string {
	var acq *domain.MediaAcquisitionError
	if errors.As(err, &acq) {
		switch acq.Reason {
		case domain.MediaFailurePermissionDenied:
			return "microphone access was denied"
		case domain.MediaFailureNoDevice:
			return "no microphone was found"
		}
	}
	return fmt.Sprintf("could not establish the call: %v", err)
}
