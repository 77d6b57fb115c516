package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRejection(t *testing.T) {
	before := testutil.ToFloat64(admissionRejections.WithLabelValues("test_limiter"))

	RecordRejection("test_limiter")
	RecordRejection("test_limiter")

	assert.Equal(t, before+2, testutil.ToFloat64(admissionRejections.WithLabelValues("test_limiter")))
}

func TestGateInFlight(t *testing.T) {
	GateAcquired("test_gate")
	GateAcquired("test_gate")
	GateReleased("test_gate")

	assert.Equal(t, float64(1), testutil.ToFloat64(gateInFlight.WithLabelValues("test_gate")))
	GateReleased("test_gate")
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/api/admin/appointments/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/appointments/abc-123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/admin/appointments/{id}", "204"))
	assert.GreaterOrEqual(t, got, float64(1))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	RecordBookingConflict("precheck")

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "stylebook_booking_slot_conflicts_total"))
}
