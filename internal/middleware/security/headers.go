package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HeadersConfig lists the response headers sent with every response.
type HeadersConfig struct {
	// CSP directives, joined with "; ".
	CSP []string

	// HSTS is sent over TLS only. Zero disables it.
	HSTSMaxAge            time.Duration
	HSTSIncludeSubdomains bool

	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string
}

// DefaultHeadersConfig suits the dashboard: no scripts, charts and styles
// from the same origin, and forms that only post back to it.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: []string{
			"default-src 'self'",
			"script-src 'self'",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data:",
			"object-src 'none'",
			"frame-ancestors 'none'",
			"base-uri 'self'",
			"form-action 'self'",
		},
		HSTSMaxAge:            365 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,
		FrameOptions:          "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "geolocation=(), microphone=(), camera=(), payment=()",
	}
}

// HeadersMiddleware sets a fixed header set computed once from its config.
type HeadersMiddleware struct {
	static [][2]string
	hsts   string
}

func NewHeadersMiddleware(cfg HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{}
	add := func(name, value string) {
		if value != "" {
			h.static = append(h.static, [2]string{name, value})
		}
	}
	add("X-Content-Type-Options", "nosniff")
	add("X-Frame-Options", cfg.FrameOptions)
	add("Content-Security-Policy", strings.Join(cfg.CSP, "; "))
	add("Referrer-Policy", cfg.ReferrerPolicy)
	add("Permissions-Policy", cfg.PermissionsPolicy)
	add("Cross-Origin-Opener-Policy", "same-origin")
	add("Cross-Origin-Resource-Policy", "same-origin")

	if cfg.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", int64(cfg.HSTSMaxAge.Seconds()))
		if cfg.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for _, kv := range h.static {
			headers.Set(kv[0], kv[1])
		}
		if r.TLS != nil && h.hsts != "" {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// NoStore keeps per-user pages and charts out of shared caches.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// CacheFor marks responses as publicly cacheable for d.
func CacheFor(d time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int64(d.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
