package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/coordinator"
	"fintrack/internal/core"
	"fintrack/internal/ports"
)

// fakeBackend is a minimal cookie-session backend.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	authed := func(r *http.Request) bool {
		c, err := r.Cookie("sid")
		return err == nil && c.Value == "ok"
	}
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "ok", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "ok", Path: "/"})
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"name": body["name"], "email": body["email"]}})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"name":"Ada Lovelace","email":"ada@example.com"}`)
	})
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodPost {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["category"] == "" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				io.WriteString(w, `{"error":"category required","field":"category"}`)
				return
			}
			io.WriteString(w, `{"id": 42}`)
			return
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("page_size") != "2" || q.Get("q") != "food" || q.Has("type") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"items":[
			{"id":1,"type":"expense","amount":12.5,"category":"Food","date":"2025-01-02"},
			{"id":2,"type":"transfer","amount":1,"category":"x","date":"2025-01-02"}
		],"total":4,"pages":2,"page":2,
		"kpis":{"income":100,"expense":12.5,"net":87.5,"mom_income_pct":-12.5,"mom_expense_pct":3},
		"totals":{"income":0,"expense":12.5}}`)
	})
	mux.HandleFunc("/api/imports/parse", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if n := len(r.MultipartForm.File["files"]); n != 2 {
			t.Errorf("expected 2 files, got %d", n)
		}
		io.WriteString(w, `{"items":[{"amount":"10","type":"income"}]}`)
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "", Path: "/", MaxAge: -1})
	})
	mux.HandleFunc("/api/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientSessionFlow(t *testing.T) {
	srv := fakeBackend(t)
	ctx := context.Background()
	c, err := New(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Me(ctx); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := c.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated login, got %v", err)
	}
	u, err := c.Login(ctx, "ada@example.com", "secret")
	if err != nil || u.Initials() != "AL" {
		t.Fatalf("login: %+v %v", u, err)
	}

	res, err := c.QueryTransactions(ctx, ports.Query{Page: 2, PageSize: 2, Q: "food", Type: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != "1" || !res.Items[0].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("items: %+v", res.Items)
	}
	if res.Total != 4 || res.Pages != 2 || res.Page != 2 || res.KPIs.MoMIncomePct != -12.5 {
		t.Fatalf("page: %+v kpis %+v", res, res.KPIs)
	}

	d := core.DraftItem{Type: core.Expense, Amount: decimal.NewFromInt(5), Category: "Food", Date: core.NewDate(2025, 1, 3)}
	tx, err := c.CreateTransaction(ctx, d)
	if err != nil || tx.ID != "42" || tx.Category != "Food" {
		t.Fatalf("create: %+v %v", tx, err)
	}
	d.Category = ""
	_, err = c.CreateTransaction(ctx, d)
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "category" || !strings.Contains(err.Error(), "category required") {
		t.Fatalf("expected validation error, got %v", err)
	}

	items, err := c.ParseImport(ctx, []ports.Upload{{Name: "a.csv", Data: []byte("x")}, {Name: "b.pdf", Data: []byte("y")}})
	if err != nil || len(items) != 1 || string(items[0].Type) != `"income"` {
		t.Fatalf("parse import: %+v %v", items, err)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Me(ctx); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected logout to drop the session, got %v", err)
	}
}

func TestSignupNormalizesEmail(t *testing.T) {
	srv := fakeBackend(t)
	c, _ := New(srv.URL)
	u, err := c.Signup(context.Background(), " Ada ", "  ADA@Example.com ", "secret")
	if err != nil || u.Email != "ada@example.com" || u.Name != "Ada" {
		t.Fatalf("signup: %+v %v", u, err)
	}
}

func TestStatusError(t *testing.T) {
	srv := fakeBackend(t)
	c, _ := New(srv.URL)
	err := c.do(context.Background(), http.MethodGet, "/api/broken", nil, "", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !errors.Is(err, core.ErrNetwork) {
		t.Fatal("status errors should be network errors")
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c, _ := New(url)
	if _, err := c.Me(context.Background()); !errors.Is(err, core.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestOpenerSessionsAreIsolated(t *testing.T) {
	srv := fakeBackend(t)
	o, err := NewOpener(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	a, b := o.OpenSession(), o.OpenSession()
	if _, err := a.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Me(context.Background()); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("cookie leaked across sessions: %v", err)
	}

	if _, err := NewOpener("ftp://example.com"); err == nil {
		t.Fatal("expected scheme error")
	}
}

// pagesBackend serves twelve transactions without a page field, the way the
// finance API answers.
func pagesBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page_size") != "5" {
			io.WriteString(w, `{"items":[],"total":12,"pages":1}`)
			return
		}
		switch q.Get("page") {
		case "3":
			io.WriteString(w, `{"items":[
				{"id":11,"type":"expense","amount":1,"category":"Food","date":"2025-03-11"},
				{"id":12,"type":"expense","amount":1,"category":"Food","date":"2025-03-12"}
			],"total":12,"pages":3}`)
		default:
			io.WriteString(w, `{"items":[],"total":12,"pages":3}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQueryKeepsRequestedPageWhenAbsent(t *testing.T) {
	srv := pagesBackend(t)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		requested int
		want      int
	}{
		{3, 3},
		{7, 3},
		{0, 1},
	}
	for _, tt := range tests {
		res, err := c.QueryTransactions(context.Background(), ports.Query{Page: tt.requested, PageSize: 5})
		if err != nil {
			t.Fatal(err)
		}
		if res.Page != tt.want {
			t.Errorf("requested %d: page = %d, want %d", tt.requested, res.Page, tt.want)
		}
	}
}

func TestCoordinatorPagesThroughRemote(t *testing.T) {
	srv := pagesBackend(t)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	coord := coordinator.New(c, coordinator.WithPageSize(5))
	coord.SetPage(3)

	v, err := coord.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Rows) != 2 || v.Pagination.Page != 3 || coord.State().Page != 3 {
		t.Fatalf("rows %d pager %+v state page %d", len(v.Rows), v.Pagination, coord.State().Page)
	}
	if v.Pagination.HasNext || !v.Pagination.HasPrev || v.Pagination.Prev != 2 {
		t.Fatalf("pager %+v", v.Pagination)
	}
}
