package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics of the budget tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	storeOpDuration *prometheus.HistogramVec
	storeOpens      *prometheus.CounterVec
	postings        *prometheus.CounterVec
	billsSkipped    *prometheus.CounterVec
	loanPayments    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		storeOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budget_store_op_duration_seconds",
				Help:    "Duration of record store operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "collection"},
		),
		storeOpens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_store_opens_total",
				Help: "Store open attempts by result.",
			},
			[]string{"result"},
		),
		postings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_postings_total",
				Help: "Transactions posted by the services, by source.",
			},
			[]string{"source"},
		),
		billsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_bills_skipped_total",
				Help: "Due bills the auto-pay job left unpaid, by reason.",
			},
			[]string{"reason"},
		),
		loanPayments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "budget_loan_payment_amount_total",
				Help: "Loan payment amounts processed, split into principal and interest.",
			},
			[]string{"part"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "budget_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordStoreOp records the duration of a store operation.
func (m *Metrics) RecordStoreOp(op, collection string, d time.Duration) {
	m.storeOpDuration.WithLabelValues(op, collection).Observe(d.Seconds())
}

// IncrStoreOpen counts an open attempt ("ok", "blocked", "failed").
func (m *Metrics) IncrStoreOpen(result string) {
	m.storeOpens.WithLabelValues(result).Inc()
}

// IncrPosting counts a posted transaction ("recurring", "bill", "bill_manual",
// "loan", "maintenance").
func (m *Metrics) IncrPosting(source string) {
	m.postings.WithLabelValues(source).Inc()
}

// IncrBillSkipped counts a bill left unpaid by the auto-pay job.
func (m *Metrics) IncrBillSkipped(reason string) {
	m.billsSkipped.WithLabelValues(reason).Inc()
}

// RecordLoanPayment adds the principal/interest split of one payment.
func (m *Metrics) RecordLoanPayment(principal, interest float64) {
	m.loanPayments.WithLabelValues("principal").Add(nonNegative(principal))
	m.loanPayments.WithLabelValues("interest").Add(nonNegative(interest))
}

// RecordRequestDuration records the duration of a service operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Postings returns how many transactions a source has posted so far.
func (m *Metrics) Postings(source string) float64 {
	return getCounterValue(m.postings, source)
}

// BillsSkipped returns how many bills were skipped for a reason.
func (m *Metrics) BillsSkipped(reason string) float64 {
	return getCounterValue(m.billsSkipped, reason)
}

// StoreOpens returns the number of open attempts with a result.
func (m *Metrics) StoreOpens(result string) float64 {
	return getCounterValue(m.storeOpens, result)
}

// StoreOps returns how many store operations were observed for op on a
// collection. Transactions are observed with an empty collection.
func (m *Metrics) StoreOps(op, collection string) uint64 {
	h := m.storeOpDuration.WithLabelValues(op, collection)
	out := &dto.Metric{}
	if err := h.(prometheus.Metric).Write(out); err != nil {
		return 0
	}
	return out.GetHistogram().GetSampleCount()
}

// WriteTextfile dumps the registry in the node exporter textfile format, for
// one-shot CLI job runs that no scraper can reach.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// counters cannot go down; a negative principal is still a valid payment.
func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
