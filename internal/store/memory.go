package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/carepro/verification-service/internal/domain"
)

// DefaultTTL is how long a staged callback stays retrievable.
const DefaultTTL = 12 * time.Hour

var _ CorrelationStore = (*MemoryStore)(nil)

// MemoryStore is a process-lifetime CorrelationStore. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.StagedWebhookRecord
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithTTL overrides the record lifetime.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*domain.StagedWebhookRecord),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}

func (s *MemoryStore) Put(correlationID string, raw json.RawMessage) domain.StagedWebhookRecord {
	now := s.now()
	payload := make(json.RawMessage, len(raw))
	copy(payload, raw)

	rec := &domain.StagedWebhookRecord{
		CorrelationID: correlationID,
		ReceivedAt:    now,
		ExpiresAt:     now.Add(s.ttl),
		RawPayload:    payload,
		Forward:       domain.ForwardState{Status: domain.ForwardPending},
	}

	s.mu.Lock()
	s.records[correlationID] = rec
	s.mu.Unlock()

	return cloneRecord(rec)
}

func (s *MemoryStore) Lookup(correlationID string) (domain.StagedWebhookRecord, LookupStatus) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[correlationID]
	status := LookupNotFound
	var out domain.StagedWebhookRecord
	switch {
	case !ok:
	case rec.Expired(now):
		delete(s.records, correlationID)
		status = LookupExpired
	default:
		out = cloneRecord(rec)
		status = LookupFound
	}

	s.sweepLocked(now)
	return out, status
}

func (s *MemoryStore) Delete(correlationID string) {
	s.mu.Lock()
	delete(s.records, correlationID)
	s.mu.Unlock()
}

func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

func (s *MemoryStore) sweepLocked(now time.Time) int {
	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) ListAll() []domain.StagedWebhookRecord {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)
	out := make([]domain.StagedWebhookRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func (s *MemoryStore) Snapshot() []domain.StagedWebhookRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StagedWebhookRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) MarkRetrieved(correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[correlationID]
	if !ok {
		return false
	}
	rec.Retrieved = true
	return true
}

func (s *MemoryStore) RecordForward(correlationID string, succeeded bool, reason string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[correlationID]
	if !ok {
		return false
	}
	rec.Forward.Attempts++
	rec.Forward.LastAttemptAt = &at
	if succeeded {
		rec.Forward.Status = domain.ForwardSucceeded
		rec.Forward.LastError = ""
	} else {
		rec.Forward.Status = domain.ForwardFailed
		rec.Forward.LastError = reason
	}
	return true
}

// cloneRecord copies a record so callers never share the stored payload slice.
func cloneRecord(rec *domain.StagedWebhookRecord) domain.StagedWebhookRecord {
	out := *rec
	out.RawPayload = append(json.RawMessage(nil), rec.RawPayload...)
	if rec.Forward.LastAttemptAt != nil {
		at := *rec.Forward.LastAttemptAt
		out.Forward.LastAttemptAt = &at
	}
	return out
}
