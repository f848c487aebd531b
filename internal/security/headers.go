package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// The API serves JSON and invoice downloads only, so framing, sniffing and
// caching are denied outright.
var staticHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cache-Control", "no-store"},
}

// Headers sets response hardening headers. HSTS is sent on HTTPS requests,
// including those terminated by a proxy that sets X-Forwarded-Proto.
type Headers struct {
	Enable bool
	// HSTS is the Strict-Transport-Security max-age; zero disables it.
	HSTS              time.Duration
	IncludeSubdomains bool
}

func (h Headers) hstsValue() string {
	if h.HSTS <= 0 {
		return ""
	}
	v := "max-age=" + strconv.FormatInt(int64(h.HSTS/time.Second), 10)
	if h.IncludeSubdomains {
		v += "; includeSubDomains"
	}
	return v
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Middleware attaches the headers to each response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	hsts := h.hstsValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for _, kv := range staticHeaders {
			out.Set(kv[0], kv[1])
		}
		if hsts != "" && isHTTPS(r) {
			out.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
