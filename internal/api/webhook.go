/**
 * @description
 * This file contains the HTTP handler for Dojah KYC webhooks. It is the entry
 * point for asynchronous verification results.
 *
 * Key features:
 * - Security: validates the HMAC signature over the raw body before any parsing.
 * - Validation: requires the status pair and reference id; malformed bodies get 400.
 * - Staging: completed verifications are written to the correlation store.
 * - Forwarding: a best-effort forward runs in the background; the vendor always
 *   gets a fast 200 once the payload is staged, whatever the backend does.
 */
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carepro/verification-service/internal/app"
	"github.com/carepro/verification-service/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookHandler processes incoming webhooks from Dojah.
type WebhookHandler struct {
	service  *app.Service
	verifier *SignatureVerifier
	logger   *slog.Logger
}

// NewWebhookHandler creates a new handler for the webhook endpoint.
func NewWebhookHandler(service *app.Service, verifier *SignatureVerifier, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		verifier: verifier,
		logger:   logger,
	}
}

// ServeHTTP implements the http.Handler interface.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = middleware.GetReqID(r.Context())
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := h.logger.With("request_id", requestID, "remote_addr", r.RemoteAddr)

	// 1. Read the raw body once; the signature is computed over these exact bytes.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", "limit", tooLarge.Limit)
		} else {
			logger.Warn("error reading webhook body", "error", err)
		}
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	// 2. Validate the signature before touching the untrusted content.
	if !h.verifier.Verify(r.Header.Get(SignatureHeader), body) {
		logger.Warn("invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	// 3. Decode and validate the envelope.
	var event domain.DojahWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Warn("error decoding webhook JSON", "error", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := event.Validate(); err != nil {
		logger.Warn("rejected malformed webhook", "error", err)
		http.Error(w, "Invalid webhook payload", http.StatusBadRequest)
		return
	}

	logger = logger.With("correlation_id", event.ReferenceID)

	// 4. Acknowledge lifecycle events that carry no verification result.
	if !event.IsCompleted() {
		logger.Info("ignoring non-completed webhook", "verification_status", event.VerificationStatus)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Webhook received"))
		return
	}

	// 5. Stage, then forward without making the vendor wait on the backend.
	rec := h.service.Stage(r.Context(), event, body)
	forwarding := h.service.ForwardAsync(rec.CorrelationID)

	logger.Info("webhook staged",
		"status", *event.Status,
		"id_type", event.IDType,
		"expires_at", rec.ExpiresAt,
		"auto_forward", forwarding,
		"duration", time.Since(startTime))

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}
