package domain

import (
	"encoding/json"
	"time"
)

// VerificationMethod identifies which identity document backed a verification.
type VerificationMethod string

const (
	MethodBVN     VerificationMethod = "BVN"
	MethodNIN     VerificationMethod = "NIN"
	MethodID      VerificationMethod = "ID"
	MethodUnknown VerificationMethod = "UNKNOWN"
)

// Verification outcomes understood by the backend.
const (
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Forward outcomes tracked on a staged record.
const (
	ForwardPending   = "pending"
	ForwardSucceeded = "succeeded"
	ForwardFailed    = "failed"
)

// ForwardState is bookkeeping about reconciliation attempts. It never affects
// what gets forwarded, only what the admin endpoints report.
type ForwardState struct {
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// StagedWebhookRecord is one inbound vendor callback held for reconciliation.
type StagedWebhookRecord struct {
	CorrelationID string          `json:"correlation_id"`
	ReceivedAt    time.Time       `json:"received_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	RawPayload    json.RawMessage `json:"raw_payload"`
	Retrieved     bool            `json:"retrieved"`
	Forward       ForwardState    `json:"forward"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (r StagedWebhookRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime, floored at zero.
func (r StagedWebhookRecord) ExpiresIn(now time.Time) time.Duration {
	if d := r.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// NormalizedVerification is the body the internal backend's verification
// endpoint accepts.
type NormalizedVerification struct {
	UserID             string             `json:"userId"`
	VerifiedFirstName  string             `json:"verifiedFirstName"`
	VerifiedLastName   string             `json:"verifiedLastName"`
	VerificationMethod VerificationMethod `json:"verificationMethod"`
	VerificationNo     string             `json:"verificationNo"`
	VerificationStatus string             `json:"verificationStatus"`
}

// WebhookStatistics is derived on demand from the correlation store.
type WebhookStatistics struct {
	Total            int       `json:"total"`
	Active           int       `json:"active"`
	Expired          int       `json:"expired"`
	Successful       int       `json:"successful"`
	Failed           int       `json:"failed"`
	Undetermined     int       `json:"undetermined"`
	SuccessRate      float64   `json:"success_rate"`
	ReceivedLast24h  int       `json:"received_last_24h"`
	ForwardSucceeded int       `json:"forward_succeeded"`
	ForwardFailed    int       `json:"forward_failed"`
	ForwardPending   int       `json:"forward_pending"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// StoreHealth reports the state of the correlation store and its sweeper.
type StoreHealth struct {
	StoreSize        int        `json:"store_size"`
	SweeperAlive     bool       `json:"sweeper_alive"`
	LastSweepAt      *time.Time `json:"last_sweep_at,omitempty"`
	LastSweepRemoved int        `json:"last_sweep_removed"`
	TTLSeconds       int64      `json:"ttl_seconds"`
	InFlightForwards int64      `json:"in_flight_forwards"`
}
