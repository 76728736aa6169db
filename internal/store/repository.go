/**
 * @description
 * This file defines the contract for the correlation store: the staging area where
 * inbound Dojah callbacks wait, keyed by their reference id, until they are
 * forwarded to the backend or expire.
 *
 * @notes
 * - A missing key is a normal steady state ("user has not verified yet"), so
 *   lookups report it through LookupStatus instead of an error.
 * - The only implementation today is process memory. A durable queue can sit
 *   behind the same interface later.
 */
package store

import (
	"encoding/json"
	"time"

	"github.com/carepro/verification-service/internal/domain"
)

// LookupStatus is the outcome of a correlation store lookup.
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupExpired
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupExpired:
		return "expired"
	default:
		return "not_found"
	}
}

// CorrelationStore stages webhook payloads keyed by correlation id.
type CorrelationStore interface {
	// Put stages a payload, replacing any record with the same id.
	Put(correlationID string, raw json.RawMessage) domain.StagedWebhookRecord
	// Lookup returns a copy of the staged record. An expired record is removed
	// and reported as LookupExpired.
	Lookup(correlationID string) (domain.StagedWebhookRecord, LookupStatus)
	// Delete removes the record; absent ids are a no-op.
	Delete(correlationID string)
	// Sweep removes every expired record and returns how many were removed.
	Sweep() int
	// ListAll sweeps, then returns every remaining record.
	ListAll() []domain.StagedWebhookRecord
	// Snapshot returns every record currently held, expired ones included.
	Snapshot() []domain.StagedWebhookRecord
	// Len is the number of records currently held.
	Len() int
	// MarkRetrieved flags a record as read. It returns false when absent.
	MarkRetrieved(correlationID string) bool
	// RecordForward stores the outcome of a forward attempt on the record.
	RecordForward(correlationID string, succeeded bool, reason string, at time.Time) bool
	// TTL is the lifetime applied to newly staged records.
	TTL() time.Duration
}
