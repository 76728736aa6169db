/**
 * @description
 * This file contains the verification service: the application layer that sits
 * between the HTTP handlers and the correlation store. It stages Dojah callbacks,
 * kicks off best-effort forwards, and derives the admin views of the store.
 *
 * Key features:
 * - Staging with last-write-wins semantics for re-delivered callbacks.
 * - Fire-and-forget forwarding on tracked goroutines, drained on shutdown.
 * - Listing, statistics and health derived by scanning the store.
 */
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carepro/verification-service/internal/domain"
	"github.com/carepro/verification-service/internal/store"
	"github.com/google/uuid"
)

// DefaultForwardTimeout bounds a background forward.
const DefaultForwardTimeout = 30 * time.Second

// Options controls the service's forwarding policy.
type Options struct {
	// ServiceToken authenticates background forwards triggered by webhooks.
	ServiceToken string
	// AutoForward enables the forward attempt right after staging.
	AutoForward bool
	// ForwardTimeout bounds each background forward.
	ForwardTimeout time.Duration
}

// Service is the verification application service.
type Service struct {
	store     store.CorrelationStore
	forwarder *Forwarder
	sweeper   *Sweeper
	publisher EventPublisher
	logger    *slog.Logger
	opts      Options
	now       func() time.Time

	inflight      sync.WaitGroup
	inflightCount atomic.Int64
}

// StagedRecordView is a staged record annotated with its remaining lifetime.
type StagedRecordView struct {
	domain.StagedWebhookRecord
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
	ExpiresIn        string `json:"expires_in"`
}

// NewService wires the application service.
func NewService(st store.CorrelationStore, forwarder *Forwarder, sweeper *Sweeper, publisher EventPublisher, logger *slog.Logger, opts Options) *Service {
	if opts.ForwardTimeout <= 0 {
		opts.ForwardTimeout = DefaultForwardTimeout
	}
	return &Service{
		store:     st,
		forwarder: forwarder,
		sweeper:   sweeper,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Stage writes a completed callback into the store, replacing any earlier
// delivery with the same reference id.
func (s *Service) Stage(ctx context.Context, event domain.DojahWebhookEvent, raw json.RawMessage) domain.StagedWebhookRecord {
	rec := s.store.Put(event.ReferenceID, raw)

	if s.publisher != nil {
		staged := domain.VerificationStagedEvent{
			EventID:       uuid.NewString(),
			CorrelationID: rec.CorrelationID,
			Verified:      event.Status != nil && *event.Status,
			OccurredAt:    rec.ReceivedAt.UTC(),
		}
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, domain.RoutingKeyStaged, staged); err != nil {
			s.logger.Warn("failed to publish staged event", "correlation_id", rec.CorrelationID, "error", err)
		}
	}

	return rec
}

// ForwardAsync starts a background forward for a freshly staged record. It
// returns false when auto-forwarding is disabled or has no credentials. The
// outcome is only visible in logs, the record's forward state, and events.
func (s *Service) ForwardAsync(correlationID string) bool {
	if !s.opts.AutoForward {
		return false
	}
	if s.opts.ServiceToken == "" {
		s.logger.Warn("auto-forward skipped: no backend service token configured", "correlation_id", correlationID)
		return false
	}

	s.inflight.Add(1)
	s.inflightCount.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.inflightCount.Add(-1)

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.ForwardTimeout)
		defer cancel()

		if _, err := s.forwarder.Forward(ctx, correlationID, s.opts.ServiceToken); err != nil {
			s.logger.Warn("background forward failed; record kept for manual retry", "correlation_id", correlationID, "error", err)
		}
	}()
	return true
}

// Forward reconciles a staged record with the backend using the caller's token.
func (s *Service) Forward(ctx context.Context, correlationID, authToken string) (*ForwardResult, error) {
	return s.forwarder.Forward(ctx, correlationID, authToken)
}

// Lookup fetches a staged record and flags it as retrieved.
func (s *Service) Lookup(correlationID string) (domain.StagedWebhookRecord, store.LookupStatus) {
	rec, status := s.store.Lookup(correlationID)
	if status == store.LookupFound {
		s.store.MarkRetrieved(correlationID)
		rec.Retrieved = true
	}
	return rec, status
}

// Remove deletes a staged record.
func (s *Service) Remove(correlationID string) {
	s.store.Delete(correlationID)
}

// ListStaged returns every live record, newest first.
func (s *Service) ListStaged() []StagedRecordView {
	now := s.now()
	records := s.store.ListAll()
	sort.Slice(records, func(i, j int) bool {
		return records[i].ReceivedAt.After(records[j].ReceivedAt)
	})

	views := make([]StagedRecordView, 0, len(records))
	for _, rec := range records {
		remaining := rec.ExpiresIn(now)
		views = append(views, StagedRecordView{
			StagedWebhookRecord: rec,
			ExpiresInSeconds:    int64(remaining / time.Second),
			ExpiresIn:           remaining.Truncate(time.Second).String(),
		})
	}
	return views
}

// Statistics computes aggregate counts in a single pass over the store.
// successful and failed classify active records by the vendor's status flag;
// records without a boolean flag are undetermined.
func (s *Service) Statistics() domain.WebhookStatistics {
	now := s.now()
	dayAgo := now.Add(-24 * time.Hour)
	stats := domain.WebhookStatistics{GeneratedAt: now.UTC()}

	for _, rec := range s.store.Snapshot() {
		stats.Total++
		if rec.Expired(now) {
			stats.Expired++
			continue
		}
		stats.Active++
		if rec.ReceivedAt.After(dayAgo) {
			stats.ReceivedLast24h++
		}

		switch verified, known := vendorOutcome(rec.RawPayload); {
		case !known:
			stats.Undetermined++
		case verified:
			stats.Successful++
		default:
			stats.Failed++
		}

		switch rec.Forward.Status {
		case domain.ForwardSucceeded:
			stats.ForwardSucceeded++
		case domain.ForwardFailed:
			stats.ForwardFailed++
		default:
			stats.ForwardPending++
		}
	}

	if decided := stats.Successful + stats.Failed; decided > 0 {
		rate := float64(stats.Successful) / float64(decided) * 100
		stats.SuccessRate = math.Round(rate*100) / 100
	}
	return stats
}

// Health reports store and sweeper state.
func (s *Service) Health() domain.StoreHealth {
	h := domain.StoreHealth{
		StoreSize:        s.store.Len(),
		TTLSeconds:       int64(s.store.TTL() / time.Second),
		InFlightForwards: s.inflightCount.Load(),
	}
	if s.sweeper != nil {
		h.SweeperAlive = s.sweeper.Alive()
		if at, removed := s.sweeper.LastRun(); !at.IsZero() {
			h.LastSweepAt = &at
			h.LastSweepRemoved = removed
		}
	}
	return h
}

// Wait blocks until in-flight background forwards finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func vendorOutcome(raw json.RawMessage) (verified bool, known bool) {
	var envelope struct {
		Status *bool `json:"status"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Status == nil {
		return false, false
	}
	return *envelope.Status, true
}
