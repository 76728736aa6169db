package api

import (
	"log/slog"
	"net/http"

	"github.com/carepro/verification-service/internal/app"
	"github.com/go-chi/chi/v5"
)

// AdminHandler exposes read-only inspection of the correlation store, plus an
// explicit cleanup route.
type AdminHandler struct {
	service *app.Service
	logger  *slog.Logger
}

// NewAdminHandler creates the admin handlers.
func NewAdminHandler(service *app.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

type webhookListResponse struct {
	Count    int                    `json:"count"`
	Webhooks []app.StagedRecordView `json:"webhooks"`
}

func (h *AdminHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	records := h.service.ListStaged()
	writeEnvelope(w, http.StatusOK, statusSuccess, "Staged webhooks retrieved", webhookListResponse{
		Count:    len(records),
		Webhooks: records,
	})
}

func (h *AdminHandler) WebhookStatistics(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, statusSuccess, "Webhook statistics computed", h.service.Statistics())
}

func (h *AdminHandler) WebhookHealth(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, statusSuccess, "Webhook store health", h.service.Health())
}

// DeleteWebhook removes a staged record. Deleting an absent id succeeds.
func (h *AdminHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	correlationID := chi.URLParam(r, "correlationId")
	h.service.Remove(correlationID)

	adminID, _ := GetUserID(r.Context())
	h.logger.Info("staged webhook removed by admin", "correlation_id", correlationID, "admin_id", adminID)
	writeEnvelope(w, http.StatusOK, statusSuccess, "Staged webhook removed", nil)
}
