package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/carepro/verification-service/internal/domain"
	"github.com/carepro/verification-service/internal/store"
	"github.com/carepro/verification-service/pkg/backendclient"
)

type backendStub struct {
	mu       sync.Mutex
	err      error
	response []byte
	calls    int
	tokens   []string
	payloads []domain.NormalizedVerification
}

func (b *backendStub) UpdateVerification(ctx context.Context, authToken, userID string, payload any) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.tokens = append(b.tokens, authToken)
	if rec, ok := payload.(domain.NormalizedVerification); ok {
		b.payloads = append(b.payloads, rec)
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.response, nil
}

func (b *backendStub) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *backendStub) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type publisherStub struct {
	mu     sync.Mutex
	keys   []string
	bodies []any
	err    error
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, body)
	return p.err
}

func (p *publisherStub) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type forwarderFixture struct {
	store     *store.MemoryStore
	backend   *backendStub
	publisher *publisherStub
	forwarder *Forwarder
	clock     *testClock
}

func newForwarderFixture(deleteOnSuccess bool) *forwarderFixture {
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := store.NewMemoryStore(store.WithClock(clock.Now))
	backend := &backendStub{response: []byte(`{"success":true}`)}
	pub := &publisherStub{}
	f := NewForwarder(st, NewNormalizer(""), backend, pub, discardLogger(), deleteOnSuccess)
	f.now = clock.Now
	return &forwarderFixture{store: st, backend: backend, publisher: pub, forwarder: f, clock: clock}
}

func TestForward_Success(t *testing.T) {
	fx := newForwarderFixture(false)
	fx.store.Put("DJ-ABC123", json.RawMessage(bvnPayload))

	res, err := fx.forwarder.Forward(context.Background(), "DJ-ABC123", "tok-1")
	if err != nil {
		t.Fatalf("Forward returned error: %v", err)
	}

	want := domain.NormalizedVerification{
		UserID:             "DJ-ABC123",
		VerifiedFirstName:  "Jane",
		VerifiedLastName:   "Doe",
		VerificationMethod: domain.MethodBVN,
		VerificationNo:     "123",
		VerificationStatus: domain.StatusVerified,
	}
	if res.Record != want {
		t.Fatalf("unexpected normalized record %+v", res.Record)
	}
	if string(res.BackendResponse) != `{"success":true}` {
		t.Fatalf("unexpected backend response %s", res.BackendResponse)
	}
	if res.Deleted {
		t.Fatal("record should be kept by default")
	}
	if fx.backend.tokens[0] != "tok-1" {
		t.Fatalf("expected caller token to be forwarded, got %q", fx.backend.tokens[0])
	}

	rec, status := fx.store.Lookup("DJ-ABC123")
	if status != store.LookupFound {
		t.Fatalf("expected record to remain staged, got %s", status)
	}
	if rec.Forward.Status != domain.ForwardSucceeded || rec.Forward.Attempts != 1 {
		t.Fatalf("unexpected forward state %+v", rec.Forward)
	}
	if keys := fx.publisher.routingKeys(); len(keys) != 1 || keys[0] != domain.RoutingKeyForwarded {
		t.Fatalf("expected forwarded event, got %v", keys)
	}
}

func TestForward_DeleteOnSuccess(t *testing.T) {
	fx := newForwarderFixture(true)
	fx.store.Put("DJ-1", json.RawMessage(bvnPayload))

	res, err := fx.forwarder.Forward(context.Background(), "DJ-1", "tok")
	if err != nil {
		t.Fatalf("Forward returned error: %v", err)
	}
	if !res.Deleted {
		t.Fatal("expected result to report deletion")
	}
	if fx.store.Len() != 0 {
		t.Fatalf("expected record to be deleted, store has %d", fx.store.Len())
	}
}

func TestForward_RetryAfterUpstreamFailure(t *testing.T) {
	fx := newForwarderFixture(false)
	fx.store.Put("DJ-ABC123", json.RawMessage(bvnPayload))
	before, _ := fx.store.Lookup("DJ-ABC123")

	fx.backend.setErr(&backendclient.APIError{StatusCode: 503, Message: "Service Unavailable"})
	_, err := fx.forwarder.Forward(context.Background(), "DJ-ABC123", "tok")

	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != 503 || upstream.Kind != domain.UpstreamKindStatus {
		t.Fatalf("unexpected upstream error %+v", upstream)
	}

	between, status := fx.store.Lookup("DJ-ABC123")
	if status != store.LookupFound {
		t.Fatalf("expected record to survive a failed forward, got %s", status)
	}
	if string(between.RawPayload) != string(before.RawPayload) || !between.ExpiresAt.Equal(before.ExpiresAt) {
		t.Fatal("staged record changed after failed forward")
	}
	if between.Forward.Status != domain.ForwardFailed {
		t.Fatalf("expected failed forward state, got %+v", between.Forward)
	}

	fx.backend.setErr(nil)
	if _, err := fx.forwarder.Forward(context.Background(), "DJ-ABC123", "tok"); err != nil {
		t.Fatalf("retry should succeed, got %v", err)
	}
	if fx.backend.callCount() != 2 {
		t.Fatalf("expected two backend calls, got %d", fx.backend.callCount())
	}
	if fx.backend.payloads[0] != fx.backend.payloads[1] {
		t.Fatal("retry forwarded a different record")
	}

	keys := fx.publisher.routingKeys()
	if len(keys) != 2 || keys[0] != domain.RoutingKeyForwardFailed || keys[1] != domain.RoutingKeyForwarded {
		t.Fatalf("unexpected event sequence %v", keys)
	}
}

func TestForward_TransportError(t *testing.T) {
	fx := newForwarderFixture(false)
	fx.store.Put("DJ-1", json.RawMessage(`{}`))
	fx.backend.setErr(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	_, err := fx.forwarder.Forward(context.Background(), "DJ-1", "tok")
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Kind != domain.UpstreamKindTransport || upstream.StatusCode != 0 {
		t.Fatalf("expected transport error, got %+v", upstream)
	}
}

func TestForward_TimeoutIsTransportError(t *testing.T) {
	fx := newForwarderFixture(false)
	fx.store.Put("DJ-1", json.RawMessage(`{}`))
	fx.backend.setErr(context.DeadlineExceeded)

	_, err := fx.forwarder.Forward(context.Background(), "DJ-1", "tok")
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Kind != domain.UpstreamKindTransport || upstream.Message != "backend request timed out" {
		t.Fatalf("unexpected upstream error %+v", upstream)
	}
}

func TestForward_NotFoundAndExpired(t *testing.T) {
	fx := newForwarderFixture(false)

	if _, err := fx.forwarder.Forward(context.Background(), "unknown-id", "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	fx.store.Put("DJ-old", json.RawMessage(bvnPayload))
	fx.clock.Advance(12*time.Hour + time.Minute)

	_, err := fx.forwarder.Forward(context.Background(), "DJ-old", "tok")
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("expired should also satisfy ErrNotFound")
	}
	if fx.store.Len() != 0 {
		t.Fatal("expected expired record to be deleted")
	}
	if fx.backend.callCount() != 0 {
		t.Fatal("backend must not be called for missing records")
	}
}

func TestForward_RequiresToken(t *testing.T) {
	fx := newForwarderFixture(false)
	fx.store.Put("DJ-1", json.RawMessage(bvnPayload))

	if _, err := fx.forwarder.Forward(context.Background(), "DJ-1", "  "); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if fx.backend.callCount() != 0 {
		t.Fatal("backend must not be called without a token")
	}
}

func TestForward_PublisherFailureDoesNotFailForward(t *testing.T) {
	fx := newForwarderFixture(false)
	fx.publisher.err = errors.New("channel closed")
	fx.store.Put("DJ-1", json.RawMessage(bvnPayload))

	if _, err := fx.forwarder.Forward(context.Background(), "DJ-1", "tok"); err != nil {
		t.Fatalf("publish failure should not fail the forward, got %v", err)
	}
}
