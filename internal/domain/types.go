package domain

import "time"

// CallState models the live translation call lifecycle.
type CallState string

const (
	CallStateIdle       CallState = "idle"
	CallStateConnecting CallState = "connecting"
	CallStateConnected  CallState = "connected"
	CallStateEnded      CallState = "ended"
	CallStateError      CallState = "error"
)

// CallStateReason provides a structured reason for state transitions.
type CallStateReason string

const (
	CallReasonReady            CallStateReason = "ready"
	CallReasonStarting         CallStateReason = "call_starting"
	CallReasonConnected        CallStateReason = "call_connected"
	CallReasonConnectionFailed CallStateReason = "connection_failed"
	CallReasonConnectionLost   CallStateReason = "connection_lost"
	CallReasonEnded            CallStateReason = "call_ended"
	CallReasonMuted            CallStateReason = "muted"
	CallReasonUnmuted          CallStateReason = "unmuted"
	CallReasonPlaybackBlocked  CallStateReason = "playback_blocked"
	CallReasonPlaybackResumed  CallStateReason = "playback_resumed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeMedia       ErrorCode = "media"
	ErrorCodeCredential  ErrorCode = "credential"
	ErrorCodeSignaling   ErrorCode = "signaling"
	ErrorCodeTransport   ErrorCode = "transport"
	ErrorCodeChannel     ErrorCode = "channel"
	ErrorCodePersistence ErrorCode = "persistence"
	ErrorCodePlayback    ErrorCode = "playback"
)

// Role identifies which side of the conversation produced an utterance.
// Unknown is a real variant, not a silent default.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleUnknown   Role = "unknown"
)

// CallStatus is the persisted lifecycle status of a call record.
type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
)

// Call is one translation session as persisted by the data service.
// DurationSeconds is only set on the transition to completed; EndedAt is set
// exactly once.
type Call struct {
	ID                string     `json:"id"`
	PrimaryLanguage   string     `json:"primaryLanguage"`
	SecondaryLanguage string     `json:"secondaryLanguage"`
	Status            CallStatus `json:"status"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           *time.Time `json:"endedAt,omitempty"`
	DurationSeconds   int        `json:"durationSeconds,omitempty"`
	Title             string     `json:"title,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	KeyPoints         []string   `json:"keyPoints,omitempty"`
}

// TranscriptEntry is one finalized utterance. Immutable once created.
type TranscriptEntry struct {
	ID         string    `json:"id"`
	CallID     string    `json:"callId"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Confidence *float64  `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SessionDescriptor is the ephemeral credential and session configuration for
// one connection attempt. Never reused across attempts; each reconnect mints a
// fresh one.
type SessionDescriptor struct {
	ClientSecret string
	ExpiresAt    *time.Time
	Model        string
	Voice        string
	Instructions string
}

// Status summarizes the current runtime status for the UI.
type Status struct {
	State       CallState `json:"state"`
	Active      bool      `json:"active"`
	CallID      string    `json:"callId,omitempty"`
	Muted       bool      `json:"muted"`
	NeedsResume bool      `json:"needsResume"`
	Message     string    `json:"message,omitempty"`
}
