package rtc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"crosstalk/internal/domain"
)

// exchangeSDP posts the local offer to the answer endpoint and returns the
// remote answer SDP. The ephemeral secret authorizes exactly this exchange.
func exchangeSDP(ctx context.Context, client *http.Client, endpoint, model, secret, offerSDP string) (string, error) {
	target := endpoint
	if model != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		target = endpoint + sep + "model=" + url.QueryEscape(model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(offerSDP))
	if err != nil {
		return "", fmt.Errorf("build signaling request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secret)
	req.Header.Set("Content-Type", "application/sdp")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.SignalingError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	answer := strings.TrimSpace(string(body))
	if answer == "" {
		return "", &domain.SignalingError{Status: resp.StatusCode, Body: "empty answer"}
	}
	return answer, nil
}
