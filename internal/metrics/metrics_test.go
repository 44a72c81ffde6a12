package metrics_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/acpwrap/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.SetChildUp(true)
	metrics.AddStreamBytes(metrics.StreamStdout, 2048)
	metrics.AddStreamBytes(metrics.StreamStdin, 0)
	metrics.IncStdinTruncated()
	metrics.ObserveProbe(5*time.Millisecond, nil)
	metrics.ObserveProbe(5*time.Millisecond, errors.New("gone"))
	metrics.IncShutdown("signal")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, line := range []string{
		"acpwrap_child_up 1",
		`acpwrap_stream_bytes_total{stream="stdout"} 2048`,
		"acpwrap_stdin_truncated_total 1",
		`acpwrap_probe_total{result="ok"} 1`,
		`acpwrap_probe_total{result="failed"} 1`,
		`acpwrap_shutdown_total{trigger="signal"} 1`,
		"acpwrap_probe_latency_seconds_count 2",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected metric line %q in body:\n%s", line, body)
		}
	}
	if strings.Contains(body, `stream="stdin"`) {
		t.Fatalf("expected zero-byte adds to be ignored:\n%s", body)
	}
	if !strings.Contains(body, "acpwrap_build_info{") || !strings.Contains(body, "go_version=") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
}
