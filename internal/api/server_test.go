package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/LyricScope/internal/store"
)

const testAPIKey = "0123456789abcdef0123"

// newTestServer starts a server over a fresh store with its hub running.
func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sheets.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s, err := New(cfg, st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return s, ts
}

// envelope is APIResponse with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func doRequest(t *testing.T, method, url, contentType string, body []byte, headers ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if data != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return b
}

func TestRootAndNotFound(t *testing.T) {
	_, ts := newTestServer(t, Config{Version: "1.2.3"})

	resp := doRequest(t, http.MethodGet, ts.URL+"/", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var info map[string]any
	env := decodeEnvelope(t, resp, &info)
	if !env.Success || info["version"] != "1.2.3" {
		t.Errorf("root = %+v %v", env, info)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}
	env = decodeEnvelope(t, resp, nil)
	if env.Success || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown path envelope = %+v", env)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/health", "", nil)
	var h HealthInfo
	decodeEnvelope(t, resp, &h)
	if h.Status != "healthy" || h.Version != "dev" || h.Sheets != 0 {
		t.Errorf("health = %+v", h)
	}
	if h.SQLite.DriverName == "" || h.SQLite.Package == "" {
		t.Errorf("sqlite info = %+v", h.SQLite)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d", resp.StatusCode)
	}
}

func TestPalette(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/palette", "", nil)
	var swatches []struct {
		ID  string `json:"id"`
		Hex string `json:"hex"`
	}
	env := decodeEnvelope(t, resp, &swatches)
	if len(swatches) != 30 || env.Meta.Total != 30 {
		t.Errorf("palette size = %d total = %d", len(swatches), env.Meta.Total)
	}
	if swatches[0].ID != "color-00" {
		t.Errorf("first swatch = %+v", swatches[0])
	}
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad port", Config{Port: 70000}},
		{"auth without key", Config{Auth: AuthConfig{Enabled: true}}},
		{"short key", Config{Auth: AuthConfig{Enabled: true, APIKey: "short"}}},
		{"tls without files", Config{TLS: TLSConfig{Enabled: true}}},
		{"tls missing files", Config{TLS: TLSConfig{Enabled: true, CertFile: "/nope/cert.pem", KeyFile: "/nope/key.pem"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{MaxBodyBytes: 100}.withDefaults()
	if cfg.Port != DefaultPort || cfg.CacheSize != DefaultCacheSize || cfg.MaxLines != DefaultMaxLines {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.WebSocket.MaxMessageSize != 100+4096 || cfg.WebSocket.MaxMessageRate != DefaultMaxMessageRate {
		t.Errorf("websocket defaults = %+v", cfg.WebSocket)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, ts := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, APIKey: testAPIKey}})

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"root is public", "/", "", http.StatusOK},
		{"missing key", "/sheets", "", http.StatusUnauthorized},
		{"wrong key", "/sheets", "wrong-key-wrong-key", http.StatusUnauthorized},
		{"valid key", "/sheets", testAPIKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.key != "" {
				headers = []string{"X-API-Key", tt.key}
			}
			resp := doRequest(t, http.MethodGet, ts.URL+tt.path, "", nil, headers...)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestValidateAuthConfig(t *testing.T) {
	if err := ValidateAuthConfig(AuthConfig{}); err != nil {
		t.Errorf("disabled auth: %v", err)
	}
	if err := ValidateAuthConfig(AuthConfig{Enabled: true, APIKey: testAPIKey}); err != nil {
		t.Errorf("valid auth: %v", err)
	}
	if err := ValidateAuthConfig(AuthConfig{Enabled: true, APIKey: "123"}); err == nil {
		t.Error("expected short key error")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, Config{AllowedOrigins: []string{"https://lyrics.example"}})

	resp := doRequest(t, http.MethodOptions, ts.URL+"/analyze", "", nil, "Origin", "https://lyrics.example")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://lyrics.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	resp = doRequest(t, http.MethodOptions, ts.URL+"/analyze", "", nil, "Origin", "https://other.example")
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign preflight status = %d", resp.StatusCode)
	}
}
