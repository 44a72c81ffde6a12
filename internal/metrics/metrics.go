package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stream labels used by the byte counters.
const (
	StreamStdin  = "stdin"
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

var (
	registry = prometheus.NewRegistry()

	childUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "acpwrap",
		Name:      "child_up",
		Help:      "Whether the supervised child is running (1=running, 0=not running).",
	})

	streamBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acpwrap",
		Name:      "stream_bytes_total",
		Help:      "Bytes relayed between the parent and the child, per stream.",
	}, []string{"stream"})

	stdinTruncated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "acpwrap",
		Name:      "stdin_truncated_total",
		Help:      "Stdin chunks whose log mirror was truncated.",
	})

	probeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acpwrap",
		Name:      "probe_total",
		Help:      "Liveness probe executions by result.",
	}, []string{"result"})

	probeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "acpwrap",
		Name:      "probe_latency_seconds",
		Help:      "Latency of liveness probe executions in seconds.",
	})

	shutdownTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "acpwrap",
		Name:      "shutdown_total",
		Help:      "Shutdowns initiated, by trigger.",
	}, []string{"trigger"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "acpwrap",
		Name:      "build_info",
		Help:      "Build metadata for the running acpwrap binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(childUp, streamBytes, stdinTruncated, probeTotal, probeLatency, shutdownTotal, buildInfo)
}

// Registry returns the Prometheus registry containing all acpwrap metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetChildUp records whether the child is running.
func SetChildUp(up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	childUp.Set(value)
}

// AddStreamBytes adds n relayed bytes to the counter for stream.
func AddStreamBytes(stream string, n int) {
	if stream == "" || n <= 0 {
		return
	}
	streamBytes.WithLabelValues(stream).Add(float64(n))
}

// IncStdinTruncated counts a stdin chunk whose mirror hit the cap.
func IncStdinTruncated() {
	stdinTruncated.Inc()
}

// ObserveProbe records a liveness probe result and its latency.
func ObserveProbe(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	probeTotal.WithLabelValues(result).Inc()
	probeLatency.Observe(d.Seconds())
}

// IncShutdown counts a shutdown started by trigger.
func IncShutdown(trigger string) {
	label := trigger
	if label == "" {
		label = "unknown"
	}
	shutdownTotal.WithLabelValues(label).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
