package obs

// Exporter selects where spans and metrics are emitted.
type Exporter string

const (
	// ExporterNone drops telemetry. Default for local runs.
	ExporterNone Exporter = "none"
	// ExporterStdout pretty-prints spans and metrics to stdout.
	ExporterStdout Exporter = "stdout"
)

// Options controls telemetry setup.
type Options struct {
	ServiceName    string
	Environment    string
	Version        string
	Exporter       Exporter
	SampleRatio    float64
	DisableMetrics bool
}
