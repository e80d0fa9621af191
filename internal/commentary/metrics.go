package commentary

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fallback reasons.
const (
	reasonError   = "error"
	reasonEmpty   = "empty"
	reasonTimeout = "timeout"
)

var (
	fallbacksOnce  sync.Once
	fallbacksTotal *prometheus.CounterVec
	generatedTotal *prometheus.CounterVec
)

func initMetrics() {
	fallbacksOnce.Do(func() {
		fallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growth_commentary_fallbacks_total",
				Help: "Commentary requests answered by the template fallback",
			},
			[]string{"provider", "reason"},
		)
		generatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "growth_commentary_generated_total",
				Help: "Commentary requests answered by a provider",
			},
			[]string{"provider"},
		)
	})
}
