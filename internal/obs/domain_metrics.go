package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BreakdownsTotal counts engine invocations by flow, display currency and outcome.
	BreakdownsTotal *prometheus.CounterVec
	// QuoteMutationsTotal counts quote draft edits by operation and outcome.
	QuoteMutationsTotal *prometheus.CounterVec
	// QuoteSubmissionsTotal counts quote hand-offs to the persistence queue.
	QuoteSubmissionsTotal *prometheus.CounterVec
	// InvoiceExportsTotal counts rendered invoice documents by format.
	InvoiceExportsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakdownsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_breakdowns_total",
			Help:      "Count of price breakdown computations by outcome.",
		}, []string{"flow", "currency", "result"}))
		QuoteMutationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_mutations_total",
			Help:      "Count of quote draft edits by operation and outcome.",
		}, []string{"op", "result"}))
		QuoteSubmissionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_submissions_total",
			Help:      "Count of quote submissions handed to the persistence queue.",
		}, []string{"result"}))
		InvoiceExportsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_exports_total",
			Help:      "Count of rendered invoice documents by format and outcome.",
		}, []string{"format", "result"}))
	})
}

// ObserveBreakdown records one engine invocation. It is a no-op until metrics are registered.
func ObserveBreakdown(flow, currency, result string) {
	if BreakdownsTotal == nil {
		return
	}
	BreakdownsTotal.WithLabelValues(flow, currency, result).Inc()
}

// ObserveQuoteMutation records one draft edit.
func ObserveQuoteMutation(op string, err error) {
	if QuoteMutationsTotal == nil {
		return
	}
	QuoteMutationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

// ObserveSubmission records one quote submission.
func ObserveSubmission(err error) {
	if QuoteSubmissionsTotal == nil {
		return
	}
	QuoteSubmissionsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveExport records one rendered invoice document.
func ObserveExport(format string, err error) {
	if InvoiceExportsTotal == nil {
		return
	}
	InvoiceExportsTotal.WithLabelValues(format, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
