// internal/numbers/metrics.go

package numbers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	allocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "numbers_allocations_total",
			Help: "Total number allocation attempts",
		},
		[]string{"vendor", "outcome"},
	)

	pollCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "numbers_poll_cycles_total",
			Help: "Total vendor poll cycles executed",
		},
	)

	otpsExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "numbers_otps_extracted_total",
			Help: "Total OTP codes extracted from vendor messages",
		},
	)

	numbersExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "numbers_expired_total",
			Help: "Total numbers auto-released with no OTP",
		},
	)

	numbersCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "numbers_cancelled_total",
			Help: "Total numbers cancelled explicitly",
		},
	)

	activeNumbers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "numbers_active",
			Help: "Numbers currently in the active or received state",
		},
	)
)
