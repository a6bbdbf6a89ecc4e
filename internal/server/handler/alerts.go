package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// AlertStatusService reports the value-alert status.
type AlertStatusService interface {
	Status(ctx context.Context) (service.AlertStatus, error)
}

// AlertHandler serves the alert status report.
type AlertHandler struct {
	alerts AlertStatusService
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts AlertStatusService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// GetStatus returns the mode, alerts sent in the status window and UTC time.
// GET /api/alerts/status
func (h *AlertHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.alerts.Status(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "alert status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read alert status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
