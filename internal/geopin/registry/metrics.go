package registry

import (
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geopin_registry_operations_total",
		Help: "Registry operations by operation and result.",
	}, []string{"operation", "result"})

	collisionProbesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geopin_registry_collision_probes_total",
		Help: "Key collisions resolved while deriving pin keys.",
	})

	livePins = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geopin_registry_live_pins",
		Help: "Number of live pins after the last committed operation.",
	})
)

func observe(op string, err error) {
	operationsTotal.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrPinNotFound):
		return "not_found"
	case errors.Is(err, ErrPinLocked):
		return "locked"
	case errors.Is(err, ErrPinNotLocked):
		return "not_locked"
	case errors.Is(err, ErrKeySpaceExhausted):
		return "exhausted"
	case errors.Is(err, ErrInvalidFileHash):
		return "invalid_hash"
	default:
		return "error"
	}
}
