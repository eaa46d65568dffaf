package realtime

import "encoding/json"

// Recognized signaling-channel event types. The protocol is externally
// versioned; anything else is ignored rather than rejected.
const (
	typeOutputTranscriptDelta = "response.output_audio_transcript.delta"
	typeOutputTranscriptDone  = "response.output_audio_transcript.done"
	typeOutputTextDelta       = "response.output_text.delta"
	typeOutputAudioDelta      = "response.output_audio.delta"
	typeInputTranscriptDelta  = "conversation.item.input_audio_transcription.delta"
	typeInputTranscriptDone   = "conversation.item.input_audio_transcription.completed"
	typeItemAdded             = "conversation.item.added"
	typeItemDone              = "conversation.item.done"
)

// envelope is a tolerant superset of the fields the classifier reads. Every
// field is optional on the wire.
type envelope struct {
	Type       string   `json:"type"`
	Delta      string   `json:"delta"`
	Transcript string   `json:"transcript"`
	Text       string   `json:"text"`
	ResponseID string   `json:"response_id"`
	ItemID     string   `json:"item_id"`
	CreatedAt  float64  `json:"created_at"`
	Confidence *float64 `json:"confidence"`
	Item       *item    `json:"item"`
}

type item struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	CreatedAt float64       `json:"created_at"`
	Content   []itemContent `json:"content"`
}

type itemContent struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
}

// decodeEnvelope parses a raw channel payload. A payload that is not a JSON
// object with a string type field yields ok=false.
func decodeEnvelope(data []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, false
	}
	if env.Type == "" {
		return envelope{}, false
	}
	return env, true
}

// inlineText collapses whatever text fragments an item currently carries.
func (it *item) inlineText() string {
	if it == nil {
		return ""
	}
	var out string
	for _, c := range it.Content {
		fragment := c.Text
		if fragment == "" {
			fragment = c.Transcript
		}
		if fragment == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fragment
	}
	return out
}
