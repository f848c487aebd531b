// Package relay delivers submitted quotes to the external persistence
// endpoint. It is the queue handler run by cmd/worker.
package relay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-atelier/internal/queue"
)

// Header names set on every delivery.
const (
	HeaderTimestamp   = "X-Atelier-Timestamp"
	HeaderSignature   = "X-Atelier-Signature"
	HeaderIdempotency = "Idempotency-Key"
	HeaderKind        = "X-Atelier-Kind"
)

// ErrRejected marks a non-2xx answer from the endpoint.
var ErrRejected = errors.New("relay: delivery rejected")

// Relay posts queue payloads to a persistence endpoint.
type Relay struct {
	URL     string
	Secret  string
	Client  *http.Client
	Breaker *Breaker
	Logger  zerolog.Logger
	Now     func() time.Time
}

// New validates endpoint and returns a relay using an instrumented client.
func New(endpoint, secret string, timeout time.Duration, breaker *Breaker, logger zerolog.Logger) (*Relay, error) {
	if err := ValidateURL(endpoint); err != nil {
		return nil, err
	}
	return &Relay{
		URL:     endpoint,
		Secret:  secret,
		Client:  NewHTTPClient(timeout),
		Breaker: breaker,
		Logger:  logger,
	}, nil
}

// Handle delivers one task. Errors make the queue retry it.
func (r *Relay) Handle(ctx context.Context, task queue.Task) error {
	ctx, span := otel.Tracer("atelier.relay").Start(ctx, "Relay.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("queue.kind", task.Kind),
		attribute.String("queue.key", task.IdempotencyKey),
		attribute.Int("queue.attempt", task.Attempt),
	)

	if r.Breaker != nil && !r.Breaker.Allow(ctx) {
		DeliveriesTotal.WithLabelValues("circuit_open").Inc()
		span.SetStatus(codes.Error, ErrOpenCircuit.Error())
		return ErrOpenCircuit
	}
	status, err := r.post(ctx, task)
	if r.Breaker != nil {
		// 4xx means the endpoint is up; only transport errors and 5xx trip the breaker
		r.Breaker.Report(ctx, err == nil || (status >= 400 && status < 500))
	}
	log := r.Logger.With().Str("key", task.IdempotencyKey).Int("attempt", task.Attempt).Int("status", status).Logger()
	if err != nil {
		DeliveriesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Msg("relay_delivery_failed")
		return err
	}
	DeliveriesTotal.WithLabelValues("ok").Inc()
	log.Info().Msg("relay_delivered")
	return nil
}

func (r *Relay) post(ctx context.Context, task queue.Task) (int, error) {
	client := r.Client
	if client == nil {
		client = NewHTTPClient(0)
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ts := now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(task.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "atelier-relay/1.0")
	req.Header.Set(HeaderKind, task.Kind)
	req.Header.Set(HeaderIdempotency, task.IdempotencyKey)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	if r.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(r.Secret, ts, task.IdempotencyKey, task.Payload))
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: %s", ErrRejected, resp.Status)
	}
	return resp.StatusCode, nil
}

// Sign computes HMAC-SHA256 over "<ts>.<key>.<body>" and hex encodes it.
func Sign(secret string, ts int64, key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(key))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the payload. Receivers use it.
func Verify(secret string, ts int64, key string, body []byte, signature string) bool {
	expected := Sign(secret, ts, key, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// NewHTTPClient returns a client whose transport emits client spans.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ValidateURL accepts https endpoints, and plain http only for loopback hosts.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("relay: invalid endpoint url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("relay: endpoint url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return nil
		}
		return errors.New("relay: http endpoint only allowed for localhost")
	default:
		return errors.New("relay: endpoint url must be http or https")
	}
}
