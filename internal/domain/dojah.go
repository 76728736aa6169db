/**
 * @description
 * This file models the parts of the Dojah KYC widget webhook that the service
 * inspects directly. The full vendor body is kept verbatim as json.RawMessage on
 * the staged record; only the envelope fields needed to validate and route a
 * callback are decoded into typed fields here.
 *
 * @notes
 * - `status` is decoded as *bool so that a missing flag can be told apart from
 *   an explicit `false`.
 * - The nested `data` object (government_data, user_data, id, selfie, ...) is
 *   deliberately left untyped; the normalizer walks it rule by rule.
 */
package domain

import "strings"

// DojahVerificationCompleted is the verification_status value Dojah sends once a
// widget session has finished and a result is available.
const DojahVerificationCompleted = "Completed"

// DojahWebhookEvent is the typed envelope of an inbound Dojah callback.
type DojahWebhookEvent struct {
	Status             *bool  `json:"status"`
	VerificationStatus string `json:"verification_status"`
	ReferenceID        string `json:"reference_id"`
	IDType             string `json:"id_type,omitempty"`
	VerificationType   string `json:"verification_type,omitempty"`
	Value              string `json:"value,omitempty"`
}

// Validate reports whether the envelope carries the status pair and reference id
// required to stage it.
func (e DojahWebhookEvent) Validate() error {
	if e.Status == nil {
		return NewValidationError("missing boolean status flag")
	}
	if strings.TrimSpace(e.VerificationStatus) == "" {
		return NewValidationError("missing verification_status")
	}
	if strings.TrimSpace(e.ReferenceID) == "" {
		return NewValidationError("missing reference_id")
	}
	return nil
}

// IsCompleted reports whether the callback describes a finished verification.
func (e DojahWebhookEvent) IsCompleted() bool {
	return strings.EqualFold(strings.TrimSpace(e.VerificationStatus), DojahVerificationCompleted)
}
