// Package negotiate mints ephemeral realtime session credentials from the
// completion service.
package negotiate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crosstalk/internal/domain"
	"crosstalk/internal/logging"
)

// Config controls credential issuance settings.
type Config struct {
	APIKey  string
	APIBase string
	Model   string
}

// Negotiator implements ports.Negotiator against the realtime credential
// endpoint. Every Mint call requests a fresh credential; retrying is safe.
type Negotiator struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func New(cfg Config) *Negotiator {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-realtime"
	}
	return &Negotiator{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    logging.WithComponent("negotiate"),
	}
}

type sessionConfig struct {
	Type         string        `json:"type"`
	Model        string        `json:"model"`
	Instructions string        `json:"instructions"`
	Audio        *sessionAudio `json:"audio,omitempty"`
}

type sessionAudio struct {
	Output sessionAudioOutput `json:"output"`
}

type sessionAudioOutput struct {
	Voice string `json:"voice"`
}

// Mint requests an ephemeral credential and session configuration for one
// connection attempt.
func (n *Negotiator) Mint(ctx context.Context, primaryLanguage, secondaryLanguage, voice string) (domain.SessionDescriptor, error) {
	if strings.TrimSpace(n.cfg.APIKey) == "" {
		return domain.SessionDescriptor{}, errors.New("OPENAI_API_KEY is not configured")
	}
	primaryLanguage = strings.TrimSpace(primaryLanguage)
	secondaryLanguage = strings.TrimSpace(secondaryLanguage)
	if primaryLanguage == "" || secondaryLanguage == "" {
		return domain.SessionDescriptor{}, errors.New("both languages are required")
	}

	instructions := InterpreterInstructions(primaryLanguage, secondaryLanguage)
	session := sessionConfig{
		Type:         "realtime",
		Model:        n.cfg.Model,
		Instructions: instructions,
	}
	if voice = strings.TrimSpace(voice); voice != "" {
		session.Audio = &sessionAudio{Output: sessionAudioOutput{Voice: voice}}
	}

	payload, err := json.Marshal(map[string]any{"session": session})
	if err != nil {
		return domain.SessionDescriptor{}, fmt.Errorf("encode credential request: %w", err)
	}

	url := strings.TrimRight(n.cfg.APIBase, "/") + "/realtime/client_secrets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.SessionDescriptor{}, fmt.Errorf("build credential request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return domain.SessionDescriptor{}, fmt.Errorf("credential request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SessionDescriptor{}, fmt.Errorf("read credential response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.SessionDescriptor{}, &domain.CredentialRequestError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.SessionDescriptor{}, domain.ErrMalformedCredentialResponse
	}

	secret, expiresAt, ok := extractClientSecret(decoded)
	if !ok {
		n.log.Warn().
			Int("status", resp.StatusCode).
			Msg("credential response carried no recognizable secret")
		return domain.SessionDescriptor{}, domain.ErrMalformedCredentialResponse
	}

	return domain.SessionDescriptor{
		ClientSecret: secret,
		ExpiresAt:    expiresAt,
		Model:        n.cfg.Model,
		Voice:        voice,
		Instructions: instructions,
	}, nil
}

// InterpreterInstructions builds the instruction text that directs the remote
// model to interpret between the two named languages.
func InterpreterInstructions(primaryLanguage, secondaryLanguage string) string {
	return fmt.Sprintf(
		"You are a professional live interpreter between %[1]s and %[2]s. "+
			"When a speaker finishes an utterance in %[1]s, speak its translation in %[2]s; "+
			"when a speaker finishes an utterance in %[2]s, speak its translation in %[1]s. "+
			"Translate complete utterances, preserving sentence order and boundaries. "+
			"If you are interrupted mid-translation, resume the interrupted translation rather than restarting it. "+
			"Speak only the translation. Do not add commentary, explanations, or answers of your own.",
		primaryLanguage, secondaryLanguage,
	)
}

// extractClientSecret probes the known response shapes for the ephemeral
// secret. The upstream shape has varied across versions and is never assumed
// from a single canonical field path.
func extractClientSecret(decoded map[string]any) (string, *time.Time, bool) {
	if secret, ok := nonEmptyString(decoded["value"]); ok {
		return secret, expiryAt(decoded["expires_at"]), true
	}

	switch cs := decoded["client_secret"].(type) {
	case string:
		if secret, ok := nonEmptyString(cs); ok {
			return secret, expiryAt(decoded["expires_at"]), true
		}
	case map[string]any:
		if secret, ok := nonEmptyString(cs["value"]); ok {
			return secret, expiryAt(cs["expires_at"]), true
		}
		if secret, ok := nonEmptyString(cs["secret"]); ok {
			return secret, expiryAt(cs["expires_at"]), true
		}
	}

	return "", nil, false
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func expiryAt(v any) *time.Time {
	seconds, ok := v.(float64)
	if !ok || seconds <= 0 {
		return nil
	}
	t := time.Unix(int64(seconds), 0).UTC()
	return &t
}
