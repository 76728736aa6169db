package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carepro/verification-service/internal/domain"
	"github.com/carepro/verification-service/internal/store"
	"github.com/carepro/verification-service/pkg/backendclient"
	"github.com/google/uuid"
)

// BackendClient submits verification records to the CarePro backend.
type BackendClient interface {
	UpdateVerification(ctx context.Context, authToken, userID string, payload any) ([]byte, error)
}

// EventPublisher publishes internal events. A nil publisher disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
}

// ForwardResult describes a successful forward.
type ForwardResult struct {
	CorrelationID   string                        `json:"correlation_id"`
	Record          domain.NormalizedVerification `json:"record"`
	BackendResponse []byte                        `json:"-"`
	Deleted         bool                          `json:"deleted"`
}

// Forwarder reconciles staged callbacks with the backend. It never retries on its
// own: a failed forward leaves the record in place for the caller to retry.
type Forwarder struct {
	store           store.CorrelationStore
	normalizer      *Normalizer
	backend         BackendClient
	publisher       EventPublisher
	logger          *slog.Logger
	deleteOnSuccess bool
	now             func() time.Time
}

// NewForwarder creates a forwarder. deleteOnSuccess removes a record once the
// backend has accepted it; otherwise TTL expiry is the only cleanup.
func NewForwarder(st store.CorrelationStore, normalizer *Normalizer, backend BackendClient, publisher EventPublisher, logger *slog.Logger, deleteOnSuccess bool) *Forwarder {
	return &Forwarder{
		store:           st,
		normalizer:      normalizer,
		backend:         backend,
		publisher:       publisher,
		logger:          logger,
		deleteOnSuccess: deleteOnSuccess,
		now:             time.Now,
	}
}

// Forward normalizes the staged record for correlationID and submits it to the
// backend with the caller's token.
func (f *Forwarder) Forward(ctx context.Context, correlationID, authToken string) (*ForwardResult, error) {
	if strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("%w: bearer token required to forward verification", domain.ErrUnauthorized)
	}

	rec, status := f.store.Lookup(correlationID)
	switch status {
	case store.LookupNotFound:
		return nil, domain.ErrNotFound
	case store.LookupExpired:
		return nil, domain.ErrExpired
	}

	normalized := f.normalizer.Normalize(rec.RawPayload, rec.CorrelationID)
	logger := f.logger.With("correlation_id", correlationID, "user_id", normalized.UserID)

	body, err := f.backend.UpdateVerification(ctx, authToken, normalized.UserID, normalized)
	if err != nil {
		upstream := toUpstreamError(err)
		f.store.RecordForward(correlationID, false, upstream.Error(), f.now())
		logger.Error("failed to forward verification to backend",
			"error", upstream, "upstream_status", upstream.StatusCode, "kind", upstream.Kind)
		f.publishOutcome(ctx, correlationID, normalized, upstream)
		return nil, upstream
	}

	f.store.RecordForward(correlationID, true, "", f.now())
	result := &ForwardResult{
		CorrelationID:   correlationID,
		Record:          normalized,
		BackendResponse: body,
	}
	if f.deleteOnSuccess {
		f.store.Delete(correlationID)
		result.Deleted = true
	}

	logger.Info("verification forwarded to backend",
		"method", normalized.VerificationMethod, "verification_status", normalized.VerificationStatus)
	f.publishOutcome(ctx, correlationID, normalized, nil)
	return result, nil
}

func (f *Forwarder) publishOutcome(ctx context.Context, correlationID string, rec domain.NormalizedVerification, upstream *domain.UpstreamError) {
	if f.publisher == nil {
		return
	}

	event := domain.VerificationForwardedEvent{
		EventID:            uuid.NewString(),
		CorrelationID:      correlationID,
		UserID:             rec.UserID,
		Outcome:            domain.ForwardSucceeded,
		VerificationMethod: rec.VerificationMethod,
		VerificationStatus: rec.VerificationStatus,
		OccurredAt:         f.now().UTC(),
	}
	routingKey := domain.RoutingKeyForwarded
	if upstream != nil {
		event.Outcome = domain.ForwardFailed
		event.UpstreamStatus = upstream.StatusCode
		event.Reason = upstream.Message
		routingKey = domain.RoutingKeyForwardFailed
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := f.publisher.Publish(pubCtx, routingKey, event); err != nil {
		f.logger.Warn("failed to publish forward outcome", "correlation_id", correlationID, "routing_key", routingKey, "error", err)
	}
}

// toUpstreamError classifies a backend client failure.
func toUpstreamError(err error) *domain.UpstreamError {
	var apiErr *backendclient.APIError
	if errors.As(err, &apiErr) {
		return &domain.UpstreamError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Kind:       domain.UpstreamKindStatus,
			Err:        err,
		}
	}

	msg := "backend unreachable"
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		msg = "backend request timed out"
	}
	return &domain.UpstreamError{
		Message: msg,
		Kind:    domain.UpstreamKindTransport,
		Err:     err,
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
