package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	c := New()
	c.RecordGeneration("success")
	c.RecordGeneration("success")
	c.RecordGeneration("insufficient_credits")
	c.RecordPurchase("requested")

	require.Equal(t, 2.0, testutil.ToFloat64(c.Generations.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.Generations.WithLabelValues("insufficient_credits")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.PurchaseRequests.WithLabelValues("requested")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordGeneration("success")
	c.RecordPurchase("approved")
	c.ObserveGenerator("1K", time.Second)
}

func TestHandlerExposesRegistry(t *testing.T) {
	c := New()
	c.RecordPurchase("approved")
	c.ObserveGenerator("2K", 3*time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(body), `productgenius_purchase_requests_total{event="approved"} 1`)
	require.Contains(t, string(body), `productgenius_generation_duration_seconds_count{quality="2K"} 1`)
}
