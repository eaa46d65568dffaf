package negotiate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crosstalk/internal/domain"
)

func TestMintParsesKnownResponseShapes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"top_level_value":      `{"value":"ek_top"}`,
		"client_secret_string": `{"client_secret":"ek_string"}`,
		"nested_value":         `{"client_secret":{"value":"ek_nested","expires_at":1767225600}}`,
		"nested_secret":        `{"client_secret":{"secret":"ek_alt"}}`,
	}
	wantSecrets := map[string]string{
		"top_level_value":      "ek_top",
		"client_secret_string": "ek_string",
		"nested_value":         "ek_nested",
		"nested_secret":        "ek_alt",
	}

	for name, body := range cases {
		name := name
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
			}))
			defer server.Close()

			n := New(Config{APIKey: "sk-test", APIBase: server.URL, Model: "gpt-realtime"})
			desc, err := n.Mint(context.Background(), "English", "Spanish", "marin")
			if err != nil {
				t.Fatalf("mint failed: %v", err)
			}
			if desc.ClientSecret != wantSecrets[name] {
				t.Fatalf("unexpected secret: %q", desc.ClientSecret)
			}
			if name == "nested_value" && desc.ExpiresAt == nil {
				t.Fatalf("expected expiry to be parsed")
			}
		})
	}
}

func TestMintRequestCarriesSessionConfig(t *testing.T) {
	t.Parallel()

	var got struct {
		Session struct {
			Type         string `json:"type"`
			Model        string `json:"model"`
			Instructions string `json:"instructions"`
			Audio        struct {
				Output struct {
					Voice string `json:"voice"`
				} `json:"output"`
			} `json:"audio"`
		} `json:"session"`
	}
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"value":"ek_x"}`)
	}))
	defer server.Close()

	n := New(Config{APIKey: "sk-test", APIBase: server.URL, Model: "gpt-realtime"})
	if _, err := n.Mint(context.Background(), "English", "Japanese", "cedar"); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header: %q", auth)
	}
	if got.Session.Type != "realtime" || got.Session.Model != "gpt-realtime" {
		t.Fatalf("unexpected session config: %+v", got.Session)
	}
	if got.Session.Audio.Output.Voice != "cedar" {
		t.Fatalf("unexpected voice: %q", got.Session.Audio.Output.Voice)
	}
	if !strings.Contains(got.Session.Instructions, "English") || !strings.Contains(got.Session.Instructions, "Japanese") {
		t.Fatalf("instructions missing language pair: %q", got.Session.Instructions)
	}
}

func TestMintNonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer server.Close()

	n := New(Config{APIKey: "sk-bad", APIBase: server.URL})
	_, err := n.Mint(context.Background(), "English", "Spanish", "")

	var credErr *domain.CredentialRequestError
	if !errors.As(err, &credErr) {
		t.Fatalf("expected CredentialRequestError, got %v", err)
	}
	if credErr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", credErr.Status)
	}
	if !strings.Contains(credErr.Body, "bad key") {
		t.Fatalf("expected body to carry response text, got %q", credErr.Body)
	}
}

func TestMintMissingSecretIsMalformed(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{}`, `{"client_secret":{}}`, `{"value":42}`, `not json`} {
		body := body
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		}))

		n := New(Config{APIKey: "sk-test", APIBase: server.URL})
		_, err := n.Mint(context.Background(), "English", "Spanish", "")
		server.Close()

		if !errors.Is(err, domain.ErrMalformedCredentialResponse) {
			t.Fatalf("body %q: expected ErrMalformedCredentialResponse, got %v", body, err)
		}
	}
}

func TestMintRejectsEmptyLanguages(t *testing.T) {
	t.Parallel()

	n := New(Config{APIKey: "sk-test"})
	if _, err := n.Mint(context.Background(), "  ", "Spanish", ""); err == nil {
		t.Fatalf("expected error for empty primary language")
	}
	if _, err := n.Mint(context.Background(), "English", "", ""); err == nil {
		t.Fatalf("expected error for empty secondary language")
	}
}

func TestMintRequestsFreshCredentialPerCall(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"value":"ek_fresh"}`)
	}))
	defer server.Close()

	n := New(Config{APIKey: "sk-test", APIBase: server.URL})
	for i := 0; i < 2; i++ {
		if _, err := n.Mint(context.Background(), "English", "Spanish", ""); err != nil {
			t.Fatalf("mint %d failed: %v", i, err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 issuance calls, got %d", calls)
	}
}
