package relay_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-atelier/internal/queue"
	"github.com/noah-isme/backend-atelier/internal/relay"
)

func TestHandleSignsAndDelivers(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts, _ := strconv.ParseInt(r.Header.Get(relay.HeaderTimestamp), 10, 64)
		ok := relay.Verify("s3cret", ts, r.Header.Get(relay.HeaderIdempotency), body, r.Header.Get(relay.HeaderSignature))
		got.Store(ok && r.Header.Get(relay.HeaderKind) == "quote_submitted")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	r, err := relay.New(srv.URL, "s3cret", time.Second, nil, zerolog.Nop())
	require.NoError(t, err)

	err = r.Handle(context.Background(), queue.Task{Kind: "quote_submitted", IdempotencyKey: "q-1", Payload: []byte(`{"overallCost":"10"}`), Attempt: 1})
	require.NoError(t, err)
	require.Equal(t, true, got.Load())
}

func TestHandleRejectedStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := relay.NewBreaker("test-reject", 2, 0.5, time.Minute)
	r, err := relay.New(srv.URL, "", time.Second, breaker, zerolog.Nop())
	require.NoError(t, err)

	task := queue.Task{Kind: "quote_submitted", IdempotencyKey: "q-2", Payload: []byte(`{}`)}
	require.ErrorIs(t, r.Handle(context.Background(), task), relay.ErrRejected)
	require.ErrorIs(t, r.Handle(context.Background(), task), relay.ErrRejected)
	require.Equal(t, relay.Open, breaker.State())
	require.ErrorIs(t, r.Handle(context.Background(), task), relay.ErrOpenCircuit)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := relay.NewBreaker("test-probe", 1, 0.5, 20*time.Millisecond)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.False(t, b.Allow(ctx))

	time.Sleep(30 * time.Millisecond)
	require.True(t, b.Allow(ctx))
	require.Equal(t, relay.HalfOpen, b.State())
	require.False(t, b.Allow(ctx), "only one probe at a time")
	b.Report(ctx, true)
	require.Equal(t, relay.Closed, b.State())
	require.True(t, b.Allow(ctx))
}

func TestValidateURL(t *testing.T) {
	require.NoError(t, relay.ValidateURL("https://ledger.example.com/orders"))
	require.NoError(t, relay.ValidateURL("http://localhost:9000/hook"))
	require.Error(t, relay.ValidateURL("http://ledger.example.com/orders"))
	require.Error(t, relay.ValidateURL("ftp://ledger.example.com"))
	require.Error(t, relay.ValidateURL("https://"))
}

func TestSignIsStable(t *testing.T) {
	a := relay.Sign("k", 1700000000, "q-1", []byte("body"))
	require.Equal(t, a, relay.Sign("k", 1700000000, "q-1", []byte("body")))
	require.NotEqual(t, a, relay.Sign("k", 1700000001, "q-1", []byte("body")))
	require.False(t, relay.Verify("other", 1700000000, "q-1", []byte("body"), a))
}
