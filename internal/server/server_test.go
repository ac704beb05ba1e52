package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSMiddlewareWithConfig(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantStatus int
		wantOrigin string
		wantCreds  bool
	}{
		{"allow all", nil, "https://a.example", http.MethodGet, http.StatusOK, "*", false},
		{"wildcard entry", []string{"*"}, "https://a.example", http.MethodGet, http.StatusOK, "*", false},
		{"listed origin", []string{"https://a.example"}, "https://a.example", http.MethodGet, http.StatusOK, "https://a.example", true},
		{"unlisted origin", []string{"https://a.example"}, "https://evil.example", http.MethodGet, http.StatusOK, "", false},
		{"unlisted preflight", []string{"https://a.example"}, "https://evil.example", http.MethodOptions, http.StatusForbidden, "", false},
		{"preflight", nil, "https://a.example", http.MethodOptions, http.StatusNoContent, "*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORSMiddlewareWithConfig(CORSConfig{AllowedOrigins: tt.allowed}, okHandler)
			req := httptest.NewRequest(tt.method, "/sheets", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
		})
	}
}

func TestCORSConfigAllows(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://a.example"}}
	if !cfg.Allows("") || !cfg.Allows("https://a.example") || cfg.Allows("https://b.example") {
		t.Error("restricted config gave wrong answers")
	}
	if !(CORSConfig{}).Allows("https://anything.example") {
		t.Error("empty config should allow every origin")
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	h := SecurityHeadersWithCSP(EditorCSPConfig(), okHandler)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	csp := w.Header().Get("Content-Security-Policy")
	for _, d := range []string{"default-src 'self'", "script-src 'self'", "style-src 'self' 'unsafe-inline'", "frame-ancestors 'none'"} {
		if !strings.Contains(csp, d) {
			t.Errorf("CSP %q missing %q", csp, d)
		}
	}
}

func TestBuildCSPHeader(t *testing.T) {
	cfg := CSPConfig{DefaultSrc: []string{"'none'"}, UpgradeInsecureRequests: true}
	if got, want := cfg.BuildCSPHeader(), "default-src 'none'; upgrade-insecure-requests"; got != want {
		t.Errorf("BuildCSPHeader = %q, want %q", got, want)
	}
	if got := (CSPConfig{}).BuildCSPHeader(); got != "" {
		t.Errorf("empty config = %q", got)
	}
}

func TestValidateContentType(t *testing.T) {
	allowed := []string{"text/plain", "application/json"}
	tests := []struct {
		ct   string
		want bool
	}{
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"Application/JSON", true},
		{"text/html", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateContentType(tt.ct, allowed); got != tt.want {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestAbsPath(t *testing.T) {
	if got := AbsPath("sheets.db"); !strings.HasSuffix(got, "sheets.db") || !strings.HasPrefix(got, "/") {
		t.Errorf("AbsPath = %q", got)
	}
}
