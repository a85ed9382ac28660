package observability

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters and histograms for the booking flow.
type BookingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	cancelsTotal   *prometheus.CounterVec
	slotsListed    *prometheus.HistogramVec
	commitDuration prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancelsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		slotsListed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "available_slots",
			Help:      "Number of free slots returned per listing",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 40},
		}, []string{"treatment"}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "booking",
			Name:      "commit_duration_seconds",
			Help:      "Time spent committing a booking, lock wait included",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancelsTotal, m.slotsListed, m.commitDuration)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.commitDuration.Observe(seconds)
}

func (m *BookingMetrics) ObserveCancel(outcome string) {
	if m == nil {
		return
	}
	m.cancelsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlots(treatment string, count int) {
	if m == nil {
		return
	}
	m.slotsListed.WithLabelValues(treatment).Observe(float64(count))
}
