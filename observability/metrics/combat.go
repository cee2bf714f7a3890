package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// CombatMetrics tracks the wagered combat subsystem: session lifecycle,
// escrow volume, and the treasury burn taken from each settled pot.
type CombatMetrics struct {
	sessionsStarted  prometheus.Counter
	sessionsResolved *prometheus.CounterVec
	wagerEscrowed    prometheus.Counter
	potSettled       prometheus.Counter
}

var (
	combatOnce     sync.Once
	combatRegistry *CombatMetrics
)

func Combat() *CombatMetrics {
	combatOnce.Do(func() {
		combatRegistry = &CombatMetrics{
			sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "combat",
				Name:      "sessions_started_total",
				Help:      "Count of combat sessions opened with an escrowed wager.",
			}),
			sessionsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "combat",
				Name:      "sessions_resolved_total",
				Help:      "Count of settled combat sessions by outcome.",
			}, []string{"outcome"}),
			wagerEscrowed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "combat",
				Name:      "wager_escrowed_total",
				Help:      "Cumulative tokens moved into combat escrow.",
			}),
			potSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "zenbeasts",
				Subsystem: "combat",
				Name:      "pot_settled_total",
				Help:      "Cumulative escrowed tokens paid out or burned at resolution.",
			}),
		}
		prometheus.MustRegister(
			combatRegistry.sessionsStarted,
			combatRegistry.sessionsResolved,
			combatRegistry.wagerEscrowed,
			combatRegistry.potSettled,
		)
	})
	return combatRegistry
}

func (m *CombatMetrics) ObserveSessionStarted(wager uint64) {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.wagerEscrowed.Add(float64(wager))
}

func (m *CombatMetrics) ObserveSessionResolved(outcome string, pot uint64) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.sessionsResolved.WithLabelValues(outcome).Inc()
	m.potSettled.Add(float64(pot))
}
