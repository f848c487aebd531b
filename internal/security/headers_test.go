package security_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/security"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestHeadersMiddleware(t *testing.T) {
	handler := security.Headers{Enable: true, HSTS: 365 * 24 * time.Hour, IncludeSubdomains: true}.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "https://atelier.example/api/v1/quotes/1/invoice.pdf", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://atelier.example/", nil))
	require.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestHeadersHSTSBehindProxy(t *testing.T) {
	handler := security.Headers{Enable: true, HSTS: time.Hour}.Middleware(okHandler)

	req := httptest.NewRequest(http.MethodGet, "http://atelier.example/", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, "max-age=3600", rr.Header().Get("Strict-Transport-Security"))
}

func TestHeadersMiddlewareDisabled(t *testing.T) {
	rr := httptest.NewRecorder()
	security.Headers{}.Middleware(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://atelier.example/", nil))
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}
