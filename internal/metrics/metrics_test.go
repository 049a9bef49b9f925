package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	handler := Handler()
	Handler() // second registration must not panic

	Evaluations.WithLabelValues(OutcomeSuccess).Inc()
	Applications.WithLabelValues("upload").Inc()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hiretrack_evaluations_total")
	assert.Contains(t, string(body), "hiretrack_applications_total")
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Transitions.WithLabelValues("Admin"))
	Transitions.WithLabelValues("Admin").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Transitions.WithLabelValues("Admin")))
}
