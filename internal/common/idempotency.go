package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// IdempotencyHeader is the client-chosen key for retried writes.
const IdempotencyHeader = "Idempotency-Key"

const idemPending = "pending"

// Idem guards writes with an Idempotency-Key held in Redis. Keys are scoped
// per business, method and path, so two shops may reuse the same client key.
// While the first request runs the key reads "pending"; afterwards it holds
// the response status. Replays get 409. A 5xx answer releases the key so the
// client can retry.
type Idem struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

func (i Idem) key(r *http.Request, clientKey string) string {
	business, _ := BusinessID(r.Context())
	prefix := i.Prefix
	if prefix == "" {
		prefix = "atelier"
	}
	sum := sha256.Sum256([]byte(business + "|" + r.Method + "|" + r.URL.Path + "|" + clientKey))
	return prefix + ":idem:" + hex.EncodeToString(sum[:])
}

// Middleware implements chi middleware.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := r.Header.Get(IdempotencyHeader)
		if clientKey == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		key := i.key(r, clientKey)
		ok, err := i.R.SetNX(r.Context(), key, idemPending, ttl).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !ok {
			i.replay(w, r, key)
			return
		}

		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// the request context may already be cancelled once the handler returns
		ctx := context.WithoutCancel(r.Context())
		if rec.status >= http.StatusInternalServerError {
			_ = i.R.Del(ctx, key).Err()
			return
		}
		_ = i.R.Set(ctx, key, strconv.Itoa(rec.status), ttl).Err()
	})
}

func (i Idem) replay(w http.ResponseWriter, r *http.Request, key string) {
	state, err := i.R.Get(r.Context(), key).Result()
	if err != nil || state == idemPending {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "request with this key is in progress", nil)
		return
	}
	JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", map[string]string{"originalStatus": state})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusWriter) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(p)
}
