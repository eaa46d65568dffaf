// Package store is the HTTP client for the external data service that owns
// calls, transcripts, and summaries.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crosstalk/internal/domain"
	"crosstalk/internal/logging"
)

type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// Client implements ports.CallStore against the data service's JSON API.
type Client struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logging.WithComponent("store"),
	}
}

// StartCall registers a new active call and returns its id.
func (c *Client) StartCall(ctx context.Context, primaryLanguage, secondaryLanguage string) (string, error) {
	payload := map[string]string{
		"primary_language":   primaryLanguage,
		"secondary_language": secondaryLanguage,
	}
	var created domain.Call
	if err := c.post(ctx, "/calls", payload, &created); err != nil {
		return "", fmt.Errorf("start call: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("start call: response carried no call id")
	}
	if created.Status != "" && created.Status != domain.CallStatusActive {
		c.log.Warn().Str("call_id", created.ID).Str("status", string(created.Status)).
			Msg("new call record not active")
	}
	return created.ID, nil
}

// EndCall marks the call completed with its final duration.
func (c *Client) EndCall(ctx context.Context, callID string, durationSeconds int) error {
	payload := map[string]any{
		"duration_seconds": durationSeconds,
	}
	var updated domain.Call
	if err := c.post(ctx, "/calls/"+callID+"/end", payload, &updated); err != nil {
		return fmt.Errorf("end call %s: %w", callID, err)
	}
	if updated.Status != "" && updated.Status != domain.CallStatusCompleted {
		c.log.Warn().Str("call_id", callID).Str("status", string(updated.Status)).
			Msg("ended call record not marked completed")
	}
	return nil
}

// FailCall marks a call record failed after its connection attempt died.
func (c *Client) FailCall(ctx context.Context, callID string) error {
	payload := map[string]domain.CallStatus{
		"status": domain.CallStatusFailed,
	}
	if err := c.post(ctx, "/calls/"+callID+"/status", payload, nil); err != nil {
		return fmt.Errorf("fail call %s: %w", callID, err)
	}
	return nil
}

// AddTranscript appends one finalized utterance to the call.
func (c *Client) AddTranscript(ctx context.Context, entry domain.TranscriptEntry) error {
	if err := c.post(ctx, "/calls/"+entry.CallID+"/transcripts", entry, nil); err != nil {
		return fmt.Errorf("add transcript: %w", err)
	}
	return nil
}

// GenerateSummary asks the data service to produce a summary, title, and key
// points for a completed call. The result lands on the call record whenever
// the service finishes; nothing is returned here.
func (c *Client) GenerateSummary(ctx context.Context, callID string) error {
	if err := c.post(ctx, "/calls/"+callID+"/summary", struct{}{}, nil); err != nil {
		return fmt.Errorf("generate summary for %s: %w", callID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
