package domain

import (
	"errors"
	"fmt"
)

// MediaFailureReason classifies why microphone acquisition failed.
type MediaFailureReason string

const (
	MediaFailurePermissionDenied MediaFailureReason = "permission-denied"
	MediaFailureNoDevice         MediaFailureReason = "no-device"
	MediaFailureOther            MediaFailureReason = "other"
)

// MediaAcquisitionError is fatal to a connection attempt: the microphone could
// not be captured.
type MediaAcquisitionError struct {
	Reason MediaFailureReason
	Err    error
}

func (e *MediaAcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("media acquisition failed (%s)", e.Reason)
	}
	return fmt.Sprintf("media acquisition failed (%s): %v", e.Reason, e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// CredentialRequestError is returned when the credential-issuance endpoint
// responds with a non-success status.
type CredentialRequestError struct {
	Status int
	Body   string
}

func (e *CredentialRequestError) Error() string {
	return fmt.Sprintf("credential request failed: status %d: %s", e.Status, e.Body)
}

// ErrMalformedCredentialResponse indicates a 2xx credential response that
// carried no recognizable client secret under any known shape.
var ErrMalformedCredentialResponse = errors.New("credential response missing client secret")

// SignalingError is returned when the SDP offer POST is rejected.
type SignalingError struct {
	Status int
	Body   string
}

func (e *SignalingError) Error() string {
	return fmt.Sprintf("signaling exchange failed: status %d: %s", e.Status, e.Body)
}

// ErrTransportFailed indicates the peer connection or ICE transport failed
// after setup. No automatic reconnect is attempted.
var ErrTransportFailed = errors.New("realtime transport failed")

// ErrChannelClosed indicates the signaling data channel closed outside an
// intentional teardown.
var ErrChannelClosed = errors.New("signaling channel closed unexpectedly")
