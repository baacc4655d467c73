package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveEvaluation("cel", false, 10*time.Millisecond)
	m.ObserveEvaluation("cel", true, time.Millisecond)
	m.ObserveEvaluation("vap", false, time.Millisecond)
	m.ObserveShare(ShareDecode, OutcomeInvalid)

	body := scrape(t, m)
	assert.Contains(t, body, `celplay_evaluations_total{mode="cel",outcome="ok"} 1`)
	assert.Contains(t, body, `celplay_evaluations_total{mode="cel",outcome="error"} 1`)
	assert.Contains(t, body, `celplay_evaluation_duration_seconds_count{mode="cel"} 2`)
	assert.Contains(t, body, `celplay_share_links_total{operation="decode",outcome="invalid"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvaluation("cel", false, time.Second)
		m.ObserveShare(ShareEncode, OutcomeOK)
	})
}
