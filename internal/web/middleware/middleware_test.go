package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/sheetrest/internal/config"
	"github.com/JonMunkholm/sheetrest/internal/logging"
	"github.com/JonMunkholm/sheetrest/internal/metrics"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

func TestCORS_Wildcard(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"Content-Type", "X-API-KEY"},
		AllowedMethods: []string{"GET", "POST"},
	})(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-API-KEY" {
		t.Errorf("Allow-Headers = %q", got)
	}
	if got := rec.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("Allow = %q", got)
	}
}

func TestCORS_ListedOrigin(t *testing.T) {
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q, want echoed origin", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("Vary: Origin not set")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for unlisted origin, want empty", got)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("incoming id not reused: %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if len(seen) > maxRequestIDLen {
		t.Errorf("oversized incoming id accepted")
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name     string
		trusted  []string
		remote   string
		realIP   string
		xff      string
		expected string
	}{
		{"untrusted proxy ignored", []string{"10.0.0.0/8"}, "203.0.113.5:1234", "1.2.3.4", "", "203.0.113.5:1234"},
		{"trusted uses X-Real-IP", []string{"10.0.0.0/8"}, "10.1.2.3:1234", "1.2.3.4", "", "1.2.3.4"},
		{"trusted uses first XFF", []string{"10.0.0.0/8"}, "10.1.2.3:1234", "", "5.6.7.8, 10.1.2.3", "5.6.7.8"},
		{"single address", []string{"127.0.0.1"}, "127.0.0.1:9", "9.9.9.9", "", "9.9.9.9"},
		{"invalid header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:1234", "not-an-ip", "", "10.1.2.3:1234"},
		{"no proxies", nil, "10.1.2.3:1234", "1.2.3.4", "", "10.1.2.3:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.expected {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}})(okHandler)

	tests := []struct {
		name   string
		method string
		header string
		value  string
		want   int
		code   string
	}{
		{"missing", http.MethodGet, "", "", http.StatusUnauthorized, "AUTH001"},
		{"wrong", http.MethodGet, "X-API-KEY", "nope", http.StatusForbidden, "AUTH002"},
		{"header", http.MethodGet, "X-API-KEY", "secret", http.StatusOK, ""},
		{"bearer", http.MethodGet, "Authorization", "Bearer secret", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.code == "" {
				return
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	h := APIKeyAuth(config.SecurityConfig{})(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	hits := 0
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2}, func() { hits++ })
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	h := rl.Middleware(okHandler)
	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("1.1.1.1:1"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, code)
		}
	}
	if code := do("1.1.1.1:2"); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := do("2.2.2.2:1"); code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", code)
	}
	if hits != 1 {
		t.Errorf("onLimit calls = %d, want 1", hits)
	}

	now = now.Add(time.Second)
	if code := do("1.1.1.1:3"); code != http.StatusOK {
		t.Errorf("after refill status = %d, want 200", code)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, nil)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(30 * time.Second)
	rl.Allow("b")
	now = now.Add(45 * time.Second)

	if left := rl.Sweep(); left != 1 {
		t.Errorf("Sweep() left %d clients, want 1", left)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New("mw")
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/", nil))

	n, err := testutil.GatherAndCount(m.Registry(), "mw_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount error = %v", err)
	}
	if n != 1 {
		t.Errorf("mw_requests_total series = %d, want 1", n)
	}
}

func TestLogger_StoresRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/rows/1", nil))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, "method=PATCH") || !strings.Contains(line, "path=/rows/1") {
			t.Errorf("log line missing request fields: %s", line)
		}
	}
	if !strings.Contains(buf.String(), "inside handler") || !strings.Contains(buf.String(), "status=200") {
		t.Errorf("log output = %s", buf.String())
	}
}

func TestLogger_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Logger(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
}
