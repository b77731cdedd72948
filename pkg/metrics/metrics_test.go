package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	TradesTotal.WithLabelValues("BTCUSDT", "COMPLETED").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(TradesTotal.WithLabelValues("BTCUSDT", "COMPLETED")))

	srv := Server(":0")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "metamorph_trades_total"))
}
