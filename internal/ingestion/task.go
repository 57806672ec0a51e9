package ingestion

import (
	"context"
	"encoding/json"
	"log/slog"

	"credit-engine/internal/event"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TaskHandler consumes ingestion.requested messages and runs the pipeline.
// The pipeline is rebuilt per delivery so every run re-reads the source files.
type TaskHandler struct {
	newPipeline func() *Pipeline
	logger      *slog.Logger
}

func NewTaskHandler(newPipeline func() *Pipeline, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		newPipeline: newPipeline,
		logger:      logger.With("component", "IngestionTaskHandler"),
	}
}

func (h *TaskHandler) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	logCtx := h.logger.With(slog.Uint64("deliveryTag", d.DeliveryTag), slog.String("routingKey", d.RoutingKey))

	if d.RoutingKey != event.RoutingKeyIngestionRequested {
		logCtx.WarnContext(ctx, "Received message with unknown routing key. Discarding.")
		_ = d.Reject(false)
		return
	}

	var evt event.IngestionRequestedEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		logCtx.ErrorContext(ctx, "Failed to unmarshal IngestionRequestedEvent", "error", err, "body", string(d.Body))
		_ = d.Nack(false, false)
		return
	}

	logCtx.InfoContext(ctx, "Ingestion task received", "requestedBy", evt.RequestedBy, "requestedAt", evt.Timestamp)

	result, err := h.newPipeline().Run(ctx)
	if err != nil {
		// The pipeline is idempotent, so redelivery is safe.
		logCtx.ErrorContext(ctx, "Ingestion task failed", slog.Any("error", err))
		_ = d.Nack(false, true)
		return
	}

	logCtx.InfoContext(ctx, "Ingestion task finished",
		"customers_created", result.CustomersCreated,
		"customers_skipped", result.CustomersSkipped,
		"loans_created", result.LoansCreated,
		"loans_skipped", result.LoansSkipped,
	)
	_ = d.Ack(false)
}
