package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/carepro/verification-service/internal/app"
	"github.com/carepro/verification-service/internal/domain"
	"github.com/carepro/verification-service/internal/store"
	"github.com/go-chi/chi/v5"
)

// VerificationHandler serves staged verification data to authenticated callers.
type VerificationHandler struct {
	service *app.Service
	logger  *slog.Logger
}

// NewVerificationHandler creates the verification API handlers.
func NewVerificationHandler(service *app.Service, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{service: service, logger: logger}
}

type stagedRecordResponse struct {
	CorrelationID    string              `json:"correlation_id"`
	ReceivedAt       time.Time           `json:"received_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
	ExpiresInSeconds int64               `json:"expires_in_seconds"`
	Retrieved        bool                `json:"retrieved"`
	Forward          domain.ForwardState `json:"forward"`
	RawPayload       json.RawMessage     `json:"raw_payload"`
}

type forwardResponse struct {
	CorrelationID   string                        `json:"correlation_id"`
	Record          domain.NormalizedVerification `json:"record"`
	Deleted         bool                          `json:"deleted"`
	BackendResponse any                           `json:"backend_response,omitempty"`
}

type upstreamErrorData struct {
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	Kind           string `json:"kind"`
}

// GetVerification returns the raw staged record for a correlation id.
// "Not verified yet" is routine, so the status field carries the outcome.
func (h *VerificationHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationId")

	rec, status := h.service.Lookup(correlationID)
	switch status {
	case store.LookupFound:
		writeEnvelope(w, http.StatusOK, statusFound, "Verification data retrieved", stagedRecordResponse{
			CorrelationID:    rec.CorrelationID,
			ReceivedAt:       rec.ReceivedAt,
			ExpiresAt:        rec.ExpiresAt,
			ExpiresInSeconds: int64(rec.ExpiresIn(time.Now()) / time.Second),
			Retrieved:        rec.Retrieved,
			Forward:          rec.Forward,
			RawPayload:       rec.RawPayload,
		})
	case store.LookupExpired:
		writeEnvelope(w, http.StatusGone, statusExpired, "Verification data has expired; please verify again", nil)
	default:
		writeEnvelope(w, http.StatusNotFound, statusNotFound, "No verification data found for this id", nil)
	}
}

// ForwardVerification normalizes the staged record and submits it to the backend
// with the caller's bearer token.
func (h *VerificationHandler) ForwardVerification(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationId")

	result, err := h.service.Forward(r.Context(), correlationID, GetAuthToken(r.Context()))
	if err != nil {
		h.writeForwardError(w, correlationID, err)
		return
	}

	writeEnvelope(w, http.StatusOK, statusSuccess, "Verification forwarded", forwardResponse{
		CorrelationID:   result.CorrelationID,
		Record:          result.Record,
		Deleted:         result.Deleted,
		BackendResponse: backendBody(result.BackendResponse),
	})
}

func (h *VerificationHandler) writeForwardError(w http.ResponseWriter, correlationID string, err error) {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeEnvelope(w, http.StatusUnauthorized, statusUnauthorized, "Bearer token required", nil)
	case errors.Is(err, domain.ErrExpired):
		writeEnvelope(w, http.StatusGone, statusExpired, "Verification data has expired; please verify again", nil)
	case errors.Is(err, domain.ErrNotFound):
		writeEnvelope(w, http.StatusNotFound, statusNotFound, "No verification data found for this id", nil)
	case errors.As(err, &upstream):
		writeEnvelope(w, http.StatusBadGateway, statusUpstreamError, upstream.Message, upstreamErrorData{
			UpstreamStatus: upstream.StatusCode,
			Kind:           upstream.Kind,
		})
	default:
		h.logger.Error("unexpected forward error", "correlation_id", correlationID, "error", err)
		writeEnvelope(w, http.StatusInternalServerError, statusError, "Failed to forward verification", nil)
	}
}

// backendBody embeds JSON responses as-is and anything else as a string.
func backendBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
