package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/go-chi/chi/v5"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.SecurityConfig
		key        string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "auth disabled",
			cfg:        config.SecurityConfig{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_MISSING_KEY",
		},
		{
			name:       "invalid key",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}},
			key:        "k2",
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTH_INVALID_KEY",
		},
		{
			name:       "second configured key",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}},
			key:        "k2",
			wantStatus: http.StatusOK,
		},
		{
			name:       "required without keys rejects",
			cfg:        config.SecurityConfig{RequireAPIKey: true},
			key:        "anything",
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTH_INVALID_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			h := APIKeyAuth(&cfg)(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/tenants/1/imports", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				if !strings.Contains(rec.Body.String(), tt.wantCode) {
					t.Errorf("body = %q, want code %s", rec.Body.String(), tt.wantCode)
				}
			}
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "no trusted proxies ignores headers",
			remoteAddr: "203.0.113.5:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "203.0.113.5:4000",
		},
		{
			name:       "trusted proxy X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "trusted single IP uses first forwarded address",
			trusted:    []string{"10.1.2.3"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.9.9.9"},
			want:       "198.51.100.7",
		},
		{
			name:       "invalid header value ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.1.2.3:4000",
		},
		{
			name:       "untrusted source",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.5:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:       "203.0.113.5:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // ignored
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/tenants/1/imports", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := buf.String()
	for _, want := range []string{"level=WARN", "status=418", "method=POST", "path=/api/tenants/1/imports"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestLogger_RoutePattern(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	r := chi.NewRouter()
	r.Use(Logger)
	r.Get("/api/tenants/{tenantID}/imports", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tenants/7/imports", nil))

	out := buf.String()
	for _, want := range []string{"level=INFO", "status=200", "bytes=5", "route=/api/tenants/{tenantID}/imports"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got := parseTrustedProxies([]string{" 10.0.0.0/8 ", "", "192.0.2.10", "::1", "bogus", "10.1.2.3/16"})

	want := []string{"10.0.0.0/8", "192.0.2.10/32", "::1/128", "10.1.0.0/16"}
	if len(got) != len(want) {
		t.Fatalf("got %d prefixes (%v), want %d", len(got), got, len(want))
	}
	for i, p := range got {
		if p.String() != want[i] {
			t.Errorf("prefix[%d] = %s, want %s", i, p, want[i])
		}
	}
}
