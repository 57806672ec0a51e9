package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"credit-engine/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCustomerRegistered(ctx context.Context, evt event.CustomerRegisteredEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishIngestionRequested(ctx context.Context, evt event.IngestionRequestedEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func TestTriggerIngestion(t *testing.T) {
	t.Run("publishes the task and returns 202", func(t *testing.T) {
		publisher := new(MockEventPublisher)
		handler := NewIngestionHandler(publisher, discardLogger())

		publisher.On("PublishIngestionRequested", mock.Anything, mock.MatchedBy(func(evt event.IngestionRequestedEvent) bool {
			return !evt.Timestamp.IsZero()
		})).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/ingest-data", nil)
		rec := httptest.NewRecorder()

		handler.TriggerIngestion(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), "Ingestion scheduled")
		publisher.AssertExpectations(t)
	})

	t.Run("returns 503 when no publisher was wired at startup", func(t *testing.T) {
		handler := NewIngestionHandler(nil, discardLogger())

		req := httptest.NewRequest(http.MethodPost, "/ingest-data", nil)
		rec := httptest.NewRecorder()

		handler.TriggerIngestion(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "Task queue unavailable")
	})

	t.Run("returns 500 when the broker publish fails", func(t *testing.T) {
		publisher := new(MockEventPublisher)
		handler := NewIngestionHandler(publisher, discardLogger())

		publisher.On("PublishIngestionRequested", mock.Anything, mock.Anything).
			Return(errors.New("broker unavailable"))

		req := httptest.NewRequest(http.MethodPost, "/ingest-data", nil)
		rec := httptest.NewRecorder()

		handler.TriggerIngestion(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
