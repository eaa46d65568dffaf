package usecase

import (
	"sync"
	"time"

	"crosstalk/internal/domain"
	"crosstalk/internal/ports"
	"crosstalk/internal/realtime"
)

// activeCall is the controller-side state of one live translation call. The
// connected timer accumulates only while the transport is connected; a
// transient regression pauses it without resetting what was counted.
type activeCall struct {
	classifier *realtime.Classifier

	stateMu     sync.Mutex
	id          string
	session     ports.PeerSession
	state       domain.CallState
	connectedAt time.Time
	accumulated time.Duration
	ending      bool
}

func (a *activeCall) setID(id string) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.id = id
}

func (a *activeCall) getID() string {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.id
}

// adoptSession hands the established session to the call. It refuses when the
// call ended while the connection attempt was still in flight, in which case
// the caller must tear the session down itself.
func (a *activeCall) adoptSession(s ports.PeerSession) bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.ending {
		return false
	}
	a.session = s
	return true
}

func (a *activeCall) getSession() ports.PeerSession {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.session
}

func (a *activeCall) setState(state domain.CallState) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.state = state
}

func (a *activeCall) getState() domain.CallState {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

// markEnding flips the single-shot ending flag; only the first caller wins.
func (a *activeCall) markEnding() bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.ending {
		return false
	}
	a.ending = true
	return true
}

func (a *activeCall) isEnding() bool {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.ending
}

func (a *activeCall) timerStart(now time.Time) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.connectedAt.IsZero() {
		a.connectedAt = now
	}
}

func (a *activeCall) timerPause(now time.Time) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if !a.connectedAt.IsZero() {
		a.accumulated += now.Sub(a.connectedAt)
		a.connectedAt = time.Time{}
	}
}

// elapsedSeconds reports the total connected time so far, counting a still
// running segment up to now.
func (a *activeCall) elapsedSeconds(now time.Time) int {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	total := a.accumulated
	if !a.connectedAt.IsZero() {
		total += now.Sub(a.connectedAt)
	}
	return int(total / time.Second)
}
