package handler

import (
	"log/slog"
	"net/http"
	"time"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/event"
)

type IngestionHandler struct {
	publisher event.EventPublisher
	logger    *slog.Logger
}

func NewIngestionHandler(p event.EventPublisher, l *slog.Logger) *IngestionHandler {
	return &IngestionHandler{
		publisher: p,
		logger:    l.With("component", "IngestionHandler"),
	}
}

// TriggerIngestion asks the background worker to run the bulk data load.
//
// @Summary Trigger bulk data ingestion
// @Description Publishes an ingestion task for the background worker. The load is idempotent, so repeated triggers are safe.
// @Tags Ingestion
// @Produce json
// @Success 202 {object} dto.IngestionAck "Ingestion task accepted"
// @Failure 500 {object} dto.ErrorResponse "Failed to enqueue the task"
// @Failure 503 {object} dto.ErrorResponse "Task queue unavailable"
// @Router /ingest-data [post]
func (h *IngestionHandler) TriggerIngestion(w http.ResponseWriter, r *http.Request) {
	// The publisher is nil when the broker was unreachable at startup.
	if h.publisher == nil {
		h.logger.WarnContext(r.Context(), "Ingestion trigger rejected: task queue unavailable")
		respondJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{
			Error: dto.ErrorDetail{Message: "Task queue unavailable."},
		})
		return
	}

	evt := event.IngestionRequestedEvent{
		Timestamp:   time.Now().UTC(),
		RequestedBy: r.RemoteAddr,
	}
	if err := h.publisher.PublishIngestionRequested(r.Context(), evt); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to publish ingestion task", "error", err)
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Ingestion task enqueued", "requestedBy", evt.RequestedBy)
	respondJSON(w, http.StatusAccepted, dto.IngestionAck{Message: "Ingestion scheduled"})
}
