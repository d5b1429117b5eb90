package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	processRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "devdock",
		Name:      "process_running",
		Help:      "Whether a managed process currently owns a live child (1=running, 0=not running).",
	}, []string{"process"})

	processStarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devdock",
		Name:      "process_starts_total",
		Help:      "Total number of successful launches for each managed process.",
	}, []string{"process"})

	processExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devdock",
		Name:      "process_exits_total",
		Help:      "Total number of finished runs by terminal status.",
	}, []string{"process", "status"})

	stopEscalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devdock",
		Name:      "stop_escalations_total",
		Help:      "Total number of stops that required a forced kill.",
	}, []string{"process"})

	portConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devdock",
		Name:      "port_conflicts_total",
		Help:      "Total number of starts refused because the expected port was busy.",
	}, []string{"process"})

	stopDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "devdock",
		Name:      "stop_duration_seconds",
		Help:      "Time taken by stop requests in seconds.",
	}, []string{"process"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "devdock",
		Name:      "build_info",
		Help:      "Build metadata for the running devdock binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(processRunning, processStarts, processExits, stopEscalations, portConflicts, stopDuration, buildInfo)
}

// Registry returns the Prometheus registry containing all devdock metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetProcessRunning records whether the process owns a live child.
func SetProcessRunning(process string, running bool) {
	if process == "" {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	processRunning.WithLabelValues(process).Set(value)
}

// IncrementStarts counts a successful launch.
func IncrementStarts(process string) {
	if process == "" {
		return
	}
	processStarts.WithLabelValues(process).Inc()
}

// IncrementExits counts a finished run under its terminal status.
func IncrementExits(process, status string) {
	if process == "" || status == "" {
		return
	}
	processExits.WithLabelValues(process, status).Inc()
}

// IncrementStopEscalations counts a stop that fell back to a forced kill.
func IncrementStopEscalations(process string) {
	if process == "" {
		return
	}
	stopEscalations.WithLabelValues(process).Inc()
}

// IncrementPortConflicts counts a start refused by the port precheck.
func IncrementPortConflicts(process string) {
	if process == "" {
		return
	}
	portConflicts.WithLabelValues(process).Inc()
}

// ObserveStopDuration records how long a stop request took.
func ObserveStopDuration(process string, d time.Duration) {
	label := process
	if label == "" {
		label = "unknown"
	}
	stopDuration.WithLabelValues(label).Observe(d.Seconds())
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

// RenameProcess moves the running gauge to a new label after a rename.
// Counters keep their history under the old name.
func RenameProcess(oldName, newName string) {
	if oldName == "" || newName == "" || oldName == newName {
		return
	}
	if processRunning.DeleteLabelValues(oldName) {
		processRunning.WithLabelValues(newName).Set(1)
	}
}

// ResetProcess clears all series for a removed process.
func ResetProcess(process string) {
	if process == "" {
		return
	}
	processRunning.DeleteLabelValues(process)
	processStarts.DeleteLabelValues(process)
	processExits.DeletePartialMatch(prometheus.Labels{"process": process})
	stopEscalations.DeleteLabelValues(process)
	portConflicts.DeleteLabelValues(process)
	stopDuration.DeleteLabelValues(process)
}
