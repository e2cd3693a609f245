package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerWindow: 3})

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	now = now.Add(20 * time.Second)
	ok, retry := rl.Allow("1.2.3.4")
	if ok {
		t.Fatal("fourth request in the window should be limited")
	}
	if retry != 40*time.Second {
		t.Fatalf("retry = %v, want 40s", retry)
	}
	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatal("other clients have their own window")
	}

	// Steady traffic does not extend the window.
	now = now.Add(41 * time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatal("new window should allow again")
	}

	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Fatalf("metrics %+v", m)
	}

	now = now.Add(11 * time.Minute)
	if n := rl.CleanExpired(); n != 2 || rl.ActiveClients() != 0 {
		t.Fatalf("cleanup removed %d, %d left", n, rl.ActiveClients())
	}
}

func TestMaxClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerWindow: 1, MaxClients: 2})
	for _, ip := range []string{"a", "b", "c"} {
		rl.Allow(ip)
	}
	if rl.ActiveClients() != 2 {
		t.Fatalf("tracked %d clients, want 2", rl.ActiveClients())
	}
	// The oldest client was dropped, so it starts a fresh window.
	if ok, _ := rl.Allow("a"); !ok {
		t.Fatal("evicted client should be allowed")
	}
}

func TestMiddlewareOnlyLimitsPost(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerWindow: 1})

	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var last *httptest.ResponseRecorder
	codes := []int{}
	for _, m := range []string{http.MethodPost, http.MethodGet, http.MethodGet, http.MethodPost} {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(m, "/transactions", nil))
		codes = append(codes, last.Code)
	}
	want := []int{200, 200, 200, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
	if ra := last.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Fatalf("Retry-After = %q", ra)
	}
}
