// Package remote is the HTTP client for the finance backend API. Each
// Client carries its own cookie jar, so one Client is one backend session.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/view"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// StatusError is a non-success HTTP response from the backend.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func (e *StatusError) Unwrap() error { return core.ErrNetwork }

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client. Its Jar is replaced by a
// fresh one unless already set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		cp := *hc
		if cp.Jar == nil {
			cp.Jar = c.http.Jar
		}
		c.http = &cp
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base must be http or https, got %q", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: DefaultTimeout, Jar: jar},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type pageResponse struct {
	Items  []json.RawMessage `json:"items"`
	Total  int               `json:"total"`
	Pages  int               `json:"pages"`
	Page   int               `json:"page"`
	KPIs   *core.KPIs        `json:"kpis"`
	Totals *core.Summary     `json:"totals"`
}

// QueryTransactions fetches one page. Items that fail strict decoding are
// skipped with a warning; a page that disagrees with the pagination rules
// is logged and rendered as sent.
func (c *Client) QueryTransactions(ctx context.Context, q ports.Query) (ports.PageResult, error) {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(1, q.Page)))
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	setIf(v, "q", q.Q)
	setIf(v, "start", q.Start)
	setIf(v, "end", q.End)
	setIf(v, "category", q.Category)
	if q.Type != "" && q.Type != view.TypeAll {
		v.Set("type", q.Type)
	}

	var resp pageResponse
	if err := c.do(ctx, http.MethodGet, "/api/transactions?"+v.Encode(), nil, "", &resp); err != nil {
		return ports.PageResult{}, err
	}

	items := make([]core.Transaction, 0, len(resp.Items))
	for _, raw := range resp.Items {
		var t core.Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed transaction", "error", err)
			continue
		}
		t.Amount = t.Amount.Round(2)
		items = append(items, t)
	}
	if resp.Pages < 1 {
		resp.Pages = 1
	}
	// The page field is optional on the wire; without it the requested
	// page stands, clamped to the page count.
	if resp.Page < 1 {
		resp.Page = view.ClampPage(q.Page, resp.Pages)
	}
	if q.PageSize > 0 {
		if err := view.CheckPage(resp.Total, resp.Pages, len(resp.Items), q.PageSize); err != nil {
			c.logger.WarnContext(ctx, "Backend page disagrees with pagination rules", "error", err)
		}
	}

	return ports.PageResult{
		Items:  items,
		Total:  resp.Total,
		Pages:  resp.Pages,
		Page:   resp.Page,
		KPIs:   resp.KPIs,
		Totals: resp.Totals,
	}, nil
}

func (c *Client) CreateTransaction(ctx context.Context, d core.DraftItem) (core.Transaction, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode transaction: %w", err)
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/transactions", bytes.NewReader(body), "application/json", &raw); err != nil {
		return core.Transaction{}, err
	}
	var t core.Transaction
	if len(raw) == 0 || json.Unmarshal(raw, &t) != nil || !t.Type.Valid() {
		// The backend may answer with just an id or nothing at all.
		var ref struct {
			ID core.ID `json:"id"`
		}
		_ = json.Unmarshal(raw, &ref)
		t = d.Transaction(ref.ID)
	}
	return t, nil
}

// ParseImport uploads files as the multipart field "files".
func (c *Client) ParseImport(ctx context.Context, files []ports.Upload) ([]ports.ParsedItem, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/imports/parse", &buf, mw.FormDataContentType(), &raw); err != nil {
		return nil, err
	}
	items, err := ports.DecodeParsedItems(raw)
	if err != nil {
		return nil, fmt.Errorf("decode parsed items: %w", err)
	}
	return items, nil
}

func (c *Client) Me(ctx context.Context) (core.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, "", &raw); err != nil {
		return core.User{}, err
	}
	return decodeUser(raw)
}

func (c *Client) Login(ctx context.Context, email, password string) (core.User, error) {
	return c.authPost(ctx, "/api/auth/login", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
}

// Signup lower-cases and trims the email before sending.
func (c *Client) Signup(ctx context.Context, name, email, password string) (core.User, error) {
	return c.authPost(ctx, "/api/auth/signup", map[string]string{
		"name":     strings.TrimSpace(name),
		"email":    strings.ToLower(strings.TrimSpace(email)),
		"password": password,
	})
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, "", nil)
}

func (c *Client) authPost(ctx context.Context, path string, form map[string]string) (core.User, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return core.User{}, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body), "application/json", &raw); err != nil {
		return core.User{}, err
	}
	u, err := decodeUser(raw)
	if err != nil || (u.Name == "" && u.Email == "") {
		// Some backends answer login with an empty body; ask who we are.
		return c.Me(ctx)
	}
	return u, nil
}

// decodeUser accepts {"user": {...}} or a bare user object.
func decodeUser(raw json.RawMessage) (core.User, error) {
	var wrapped struct {
		User  *core.User `json:"user"`
		Name  string     `json:"name"`
		Email string     `json:"email"`
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return core.User{}, nil
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return core.User{}, fmt.Errorf("decode user: %w", err)
	}
	if wrapped.User != nil {
		return *wrapped.User, nil
	}
	return core.User{Name: wrapped.Name, Email: wrapped.Email}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, stripQuery(path), core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Backend request",
		"method", method,
		"path", stripQuery(path),
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode >= 300 {
		return c.statusError(method, stripQuery(path), resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: read body: %w: %v", method, stripQuery(path), core.ErrNetwork, err)
		}
		*raw = b
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, stripQuery(path), err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var detail struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Field   string `json:"field"`
	}
	_ = json.Unmarshal(b, &detail)
	msg := firstNonEmpty(detail.Error, detail.Message, detail.Detail)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, core.ErrUnauthenticated)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		field := detail.Field
		if field == "" {
			field = "request"
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &core.ValidationError{Field: field, Err: errors.New(msg)}
	}
	return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Message: msg}
}

func setIf(v url.Values, key, val string) {
	if val = strings.TrimSpace(val); val != "" {
		v.Set(key, val)
	}
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Opener creates one Client per browser session.
type Opener struct {
	baseURL string
	opts    []Option
}

// NewOpener validates baseURL once so OpenSession cannot fail later.
func NewOpener(baseURL string, opts ...Option) (*Opener, error) {
	if _, err := New(baseURL, opts...); err != nil {
		return nil, err
	}
	return &Opener{baseURL: baseURL, opts: opts}, nil
}

// OpenSession implements ports.SessionOpener.
func (o *Opener) OpenSession() ports.Backend {
	c, err := New(o.baseURL, o.opts...)
	if err != nil {
		panic(fmt.Sprintf("remote: base URL validated at construction: %v", err))
	}
	return c
}
