package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordWalletMovement(t *testing.T) {
	before := testutil.ToFloat64(walletMovements.WithLabelValues("refund"))
	RecordWalletMovement("refund", 150)
	if got := testutil.ToFloat64(walletMovements.WithLabelValues("refund")); got != before+1 {
		t.Fatalf("refund movements = %v, want %v", got, before+1)
	}
}

func TestRecordProviderCall(t *testing.T) {
	before := testutil.ToFloat64(providerCalls.WithLabelValues("check_exam", "ok"))
	RecordProviderCall("check_exam", "ok", 0)
	if got := testutil.ToFloat64(providerCalls.WithLabelValues("check_exam", "ok")); got != before+1 {
		t.Fatalf("provider calls = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordHTTPRequest("get", "/api/health", http.StatusOK, 2*time.Millisecond)
	RecordLLRTransition("submitted", "completed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"servicehub_http_requests_total",
		"servicehub_llr_status_transitions_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
