package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orderslot",
			Name:      "slots_generated_total",
			Help:      "Count of time slots generated.",
		},
	)

	generationDays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderslot",
			Name:      "generation_days_total",
			Help:      "Count of per-date generation outcomes.",
		},
		[]string{"status"},
	)

	ordersAssigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderslot",
			Name:      "orders_assigned_total",
			Help:      "Count of order-to-slot assignment attempts by result.",
		},
		[]string{"result"},
	)

	ordersRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orderslot",
			Name:      "orders_removed_total",
			Help:      "Count of orders removed from slots.",
		},
	)

	nextSlotScanDays = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "orderslot",
			Name:      "next_slot_scan_days",
			Help:      "Days generated on demand before a free slot was found.",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 14, 30, 60, 90},
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderslot",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			slotsGenerated, generationDays, ordersAssigned,
			ordersRemoved, nextSlotScanDays, httpRequests,
		)
	})
}

func AddSlotsGenerated(n int) {
	slotsGenerated.Add(float64(n))
}

func IncGenerationDay(status string) {
	generationDays.WithLabelValues(status).Inc()
}

func IncOrderAssigned(result string) {
	ordersAssigned.WithLabelValues(result).Inc()
}

func IncOrderRemoved() {
	ordersRemoved.Inc()
}

func ObserveNextSlotScanDays(days int) {
	nextSlotScanDays.Observe(float64(days))
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
