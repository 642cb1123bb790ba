package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesTrackerMetrics(t *testing.T) {
	RecordEnqueue(2)
	RecordDelivered(1, 1)
	RecordFailedAttempts(1)
	RecordDropped("retries_exhausted", 1)
	RecordRecovered(3)
	RecordSend(15*time.Millisecond, true)
	RecordBackoff(time.Second)
	SetTrackingEnabled(true)
	SetTrackerState("initialized", []string{"uninitialized", "initialized", "destroyed"})

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"tapakasih_queue_depth",
		"tapakasih_events_enqueued_total",
		"tapakasih_events_delivered_total",
		"tapakasih_events_dropped_total",
		"tapakasih_batch_send_total",
		"tapakasih_tracker_state",
	} {
		assert.Contains(t, string(body), name)
	}
}

func TestEnsureRegisteredIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}
