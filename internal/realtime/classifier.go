// Package realtime classifies the signaling-channel event stream into partial
// and finalized transcript updates.
package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crosstalk/internal/domain"
	"crosstalk/internal/logging"
)

// partial is a single not-yet-finalized utterance buffer.
type partial struct {
	role    domain.Role
	text    string
	started time.Time
}

// Classifier coalesces streamed transcript fragments into whole utterances.
// One classifier serves one call; messages are handled strictly in arrival
// order and finalized entries are emitted in the order their done events
// arrive.
type Classifier struct {
	callID    string
	onPartial func(role domain.Role, text string)
	onFinal   func(entry domain.TranscriptEntry)

	mu       sync.Mutex
	partials map[string]*partial

	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

func NewClassifier(
	callID string,
	onPartial func(role domain.Role, text string),
	onFinal func(entry domain.TranscriptEntry),
) *Classifier {
	return &Classifier{
		callID:    callID,
		onPartial: onPartial,
		onFinal:   onFinal,
		partials:  make(map[string]*partial),
		log:       logging.WithCall("realtime", callID),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// HandleMessage classifies one inbound signaling-channel payload. A parse or
// classification failure for one message never aborts the channel.
func (c *Classifier) HandleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("event classification panicked; message skipped")
		}
	}()

	env, ok := decodeEnvelope(data)
	if !ok {
		c.log.Debug().Msg("discarding unparseable channel message")
		return
	}

	switch env.Type {
	case typeOutputTranscriptDelta, typeOutputTextDelta:
		c.appendDelta(responseKey(env.ResponseID), domain.RoleAssistant, env.Delta)
	case typeInputTranscriptDelta:
		c.appendDelta(itemKey(env.ItemID), domain.RoleUser, env.Delta)
	case typeItemAdded:
		c.seedFromItem(env.Item)
	case typeOutputTranscriptDone:
		c.finalize(responseKey(env.ResponseID), domain.RoleAssistant, env.Transcript, env.CreatedAt, nil)
	case typeInputTranscriptDone:
		c.finalize(itemKey(env.ItemID), domain.RoleUser, env.Transcript, env.CreatedAt, env.Confidence)
	case typeItemDone:
		c.finalizeItem(env.Item)
	case typeOutputAudioDelta:
		// Audio bytes travel on the media track, not the signaling channel.
	default:
		// Protocol evolves independently of this client.
	}
}

// appendDelta grows the buffer for key. A key unseen so far starts a new
// buffer even if another one is still accumulating; the older buffer stays
// live until its own done event.
func (c *Classifier) appendDelta(key string, role domain.Role, delta string) {
	if key == "" || delta == "" {
		return
	}

	c.mu.Lock()
	p, ok := c.partials[key]
	if !ok {
		p = &partial{role: role, started: c.now()}
		c.partials[key] = p
	}
	p.text += delta
	text := p.text
	c.mu.Unlock()

	if c.onPartial != nil {
		c.onPartial(role, text)
	}
}

// seedFromItem starts a buffer from an item-added event, but only when no
// delta-based transcript is already accumulating for that role.
func (c *Classifier) seedFromItem(it *item) {
	if it == nil || it.ID == "" {
		return
	}
	role := roleOf(it.Role)
	text := it.inlineText()
	if text == "" {
		return
	}

	c.mu.Lock()
	for _, p := range c.partials {
		if p.role == role {
			c.mu.Unlock()
			return
		}
	}
	c.partials[itemKey(it.ID)] = &partial{role: role, text: text, started: c.now()}
	c.mu.Unlock()

	if c.onPartial != nil {
		c.onPartial(role, text)
	}
}

func (c *Classifier) finalizeItem(it *item) {
	if it == nil || it.ID == "" {
		return
	}
	c.finalize(itemKey(it.ID), roleOf(it.Role), it.inlineText(), it.CreatedAt, nil)
}

// finalize replaces the buffer for key with one emitted transcript entry. A
// done event with no in-flight partial and no inline text is a no-op.
func (c *Classifier) finalize(key string, role domain.Role, inlineText string, createdAt float64, confidence *float64) {
	c.mu.Lock()
	var text string
	started := time.Time{}
	if p, ok := c.partials[key]; ok {
		text = p.text
		role = p.role
		started = p.started
		delete(c.partials, key)
	}
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		text = inlineText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	timestamp := eventTime(createdAt)
	if timestamp.IsZero() {
		timestamp = started
	}
	if timestamp.IsZero() {
		timestamp = c.now()
	}

	entry := domain.TranscriptEntry{
		ID:         c.newID(),
		CallID:     c.callID,
		Role:       role,
		Text:       text,
		Confidence: confidence,
		Timestamp:  timestamp,
	}
	if c.onFinal != nil {
		c.onFinal(entry)
	}
}

// PendingCount reports how many utterance buffers are still accumulating.
// Buffers left at call end are silently dropped with the classifier.
func (c *Classifier) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.partials)
}

func responseKey(id string) string {
	if id == "" {
		return ""
	}
	return "resp:" + id
}

func itemKey(id string) string {
	if id == "" {
		return ""
	}
	return "item:" + id
}

func roleOf(raw string) domain.Role {
	switch raw {
	case "user":
		return domain.RoleUser
	case "assistant":
		return domain.RoleAssistant
	default:
		return domain.RoleUnknown
	}
}

func eventTime(createdAt float64) time.Time {
	if createdAt <= 0 {
		return time.Time{}
	}
	seconds := int64(createdAt)
	nanos := int64((createdAt - float64(seconds)) * float64(time.Second))
	return time.Unix(seconds, nanos).UTC()
}
