package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	registered bool
	collectors []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	collectors = append(collectors, cs...)
}

// MustRegister publishes every collector on the default registry. Calling it
// again is a no-op.
func MustRegister() {
	mu.Lock()
	defer mu.Unlock()
	if registered {
		return
	}
	prometheus.MustRegister(collectors...)
	registered = true
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
