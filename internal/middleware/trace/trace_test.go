package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	applog "fintrack/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.7" })

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		applog.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x?y=1", nil))

	if _, err := uuid.Parse(seenID); err != nil {
		t.Fatalf("request id %q is not a uuid", seenID)
	}
	if rr.Header().Get(RequestIDHeader) != seenID {
		t.Fatalf("response header %q, want %q", rr.Header().Get(RequestIDHeader), seenID)
	}
	out := buf.String()
	for _, want := range []string{"inside handler", "request_id=" + seenID, "status_code=418", "client_ip=203.0.113.7", "level=WARN"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d", got)
	}
}

func TestIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"uuid kept", "6f1c1d2e-8a4b-4c3d-9e5f-0a1b2c3d4e5f", true},
		{"junk replaced", "<script>", false},
		{"empty generated", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			got := rr.Header().Get(RequestIDHeader)
			if (got == tt.header) != tt.keep || got == "" {
				t.Fatalf("request id %q for header %q", got, tt.header)
			}
		})
	}
}
