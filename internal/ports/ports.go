package ports

import (
	"context"
	"io"

	"crosstalk/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session yielding an ogg/opus stream.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PlaybackSession receives the remote ogg/opus stream for rendering.
type PlaybackSession interface {
	io.WriteCloser
}

// AudioPlayback opens playback sessions for remote call audio. Start may fail
// when no output path is available; callers treat that as a resumable
// condition, not a fatal one.
type AudioPlayback interface {
	Start(ctx context.Context) (PlaybackSession, error)
}

// Negotiator mints an ephemeral realtime session descriptor for one
// connection attempt.
type Negotiator interface {
	Mint(ctx context.Context, primaryLanguage, secondaryLanguage, voice string) (domain.SessionDescriptor, error)
}

// PeerCallbacks receive asynchronous session events. Callbacks are invoked
// serially per session; a torn-down session stops invoking them.
type PeerCallbacks struct {
	// OnConnected fires each time the transport reaches the connected state.
	OnConnected func()
	// OnDisconnected fires once when the transport or signaling channel fails
	// outside an intentional teardown.
	OnDisconnected func(err error)
	// OnPlaybackBlocked fires when remote audio arrived but the playback sink
	// could not open; an explicit ResumePlayback call clears the condition.
	OnPlaybackBlocked func()
	// OnMessage receives each raw signaling-channel payload in arrival order.
	OnMessage func(data []byte)
}

// PeerSession is an established realtime media and signaling session.
type PeerSession interface {
	// SendEvent marshals v as JSON onto the signaling channel.
	SendEvent(v any) error
	SetMuted(muted bool)
	Muted() bool
	NeedsResume() bool
	ResumePlayback(ctx context.Context) error
	// Teardown releases all media and network resources. Idempotent and safe
	// to call from any state.
	Teardown()
}

// PeerConnector establishes realtime sessions against the speech endpoint.
type PeerConnector interface {
	Connect(ctx context.Context, desc domain.SessionDescriptor, callbacks PeerCallbacks) (PeerSession, error)
}

// CallStore persists calls and transcripts to the external data service.
type CallStore interface {
	StartCall(ctx context.Context, primaryLanguage, secondaryLanguage string) (string, error)
	EndCall(ctx context.Context, callID string, durationSeconds int) error
	FailCall(ctx context.Context, callID string) error
	AddTranscript(ctx context.Context, entry domain.TranscriptEntry) error
	GenerateSummary(ctx context.Context, callID string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	CallStateChanged(state domain.CallState, reason domain.CallStateReason)
	PartialTranscript(role domain.Role, text string)
	TranscriptFinalized(entry domain.TranscriptEntry)
	CallError(code domain.ErrorCode, detail string)
}
