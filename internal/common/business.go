package common

import (
	"context"
	"net/http"
	"strings"
)

// BusinessHeader carries the tenant identifier for quote and invoice routes.
const BusinessHeader = "X-Business-ID"

type ctxKey string

const businessIDKey ctxKey = "atelier/business-id"

// WithBusinessID stores the business identifier on the provided context.
func WithBusinessID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, businessIDKey, id)
}

// BusinessID extracts the business identifier from the context if present.
func BusinessID(ctx context.Context) (string, bool) {
	v := ctx.Value(businessIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// BusinessMiddleware copies the business header onto the request context.
func BusinessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(BusinessHeader)); id != "" {
			r = r.WithContext(WithBusinessID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
