package metrics

import "github.com/prometheus/client_golang/prometheus"

type Observer interface {
	Observe(val float64, labels ...string)

	// for now we will tightly couple to the prometheus collector type
	// the go otel metrics sdk also has a prometheus adapter that implements this interface.
	prometheus.Collector
}

type Metrics struct {
	// MessagesCount counts messages handled, labeled by platform.
	MessagesCount Observer
	// CommandCount counts command invocations, labeled by group and trigger.
	CommandCount Observer
	// FailureCount counts failed evaluations, labeled by kind.
	FailureCount Observer
	// EvalLatency observes seconds spent evaluating messages, labeled by platform.
	EvalLatency Observer
	// RegistrySize is the number of registered commands.
	RegistrySize Observer
	// ReloadCount counts addon reloads.
	ReloadCount Observer
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesCount,
		m.CommandCount,
		m.FailureCount,
		m.EvalLatency,
		m.RegistrySize,
		m.ReloadCount,
	}
}

// Nop returns metrics that observe nothing.
func Nop() *Metrics {
	return &Metrics{
		MessagesCount: nop{},
		CommandCount:  nop{},
		FailureCount:  nop{},
		EvalLatency:   nop{},
		RegistrySize:  nop{},
		ReloadCount:   nop{},
	}
}

type nop struct{}

func (nop) Observe(float64, ...string)       {}
func (nop) Describe(chan<- *prometheus.Desc) {}
func (nop) Collect(chan<- prometheus.Metric) {}
