/**
 * @description
 * Internal events published to RabbitMQ so other services (notifications,
 * analytics) can react to verification progress without polling this service.
 */
package domain

import "time"

// Routing keys on the verification events exchange.
const (
	RoutingKeyStaged        = "verification.staged"
	RoutingKeyForwarded     = "verification.forwarded"
	RoutingKeyForwardFailed = "verification.forward_failed"
)

// VerificationStagedEvent is emitted when a completed Dojah callback is staged.
type VerificationStagedEvent struct {
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id"`
	Verified      bool      `json:"verified"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// VerificationForwardedEvent is emitted after every forward attempt.
type VerificationForwardedEvent struct {
	EventID            string             `json:"event_id"`
	CorrelationID      string             `json:"correlation_id"`
	UserID             string             `json:"user_id"`
	Outcome            string             `json:"outcome"`
	VerificationMethod VerificationMethod `json:"verification_method"`
	VerificationStatus string             `json:"verification_status"`
	UpstreamStatus     int                `json:"upstream_status,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	OccurredAt         time.Time          `json:"occurred_at"`
}
