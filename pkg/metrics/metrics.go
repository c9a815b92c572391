// Package metrics exposes Prometheus instruments for transaction submission
// and confirmation. Recorder implements blockchain.Observer.
package metrics

import (
	"net/http"

	"github.com/fap-edu/fap-ledger-go/pkg/blockchain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "ledger"

// Recorder counts submissions and times confirmations.
type Recorder struct {
	submitted     *prometheus.CounterVec
	failed        *prometheus.CounterVec
	confirmations *prometheus.HistogramVec
	gatherer      prometheus.Gatherer
}

var _ blockchain.Observer = (*Recorder)(nil)

// NewRecorder registers the instruments on reg. A nil reg uses a fresh
// private registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		submitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_submitted_total",
				Help:      "Transactions accepted by the node, by function and fee mode",
			},
			[]string{"function", "fee_mode"},
		),
		failed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_failed_total",
				Help:      "Transactions that could not be built, signed or broadcast",
			},
			[]string{"function"},
		),
		confirmations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "confirmation_seconds",
				Help:      "Time from the first receipt poll until a terminal state",
				Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120},
			},
			[]string{"state"},
		),
		gatherer: reg,
	}
}

func (r *Recorder) TransactionSubmitted(function string, mode blockchain.FeeMode) {
	r.submitted.With(prometheus.Labels{
		"function": function,
		"fee_mode": mode.String(),
	}).Inc()
}

func (r *Recorder) SubmissionFailed(function string) {
	r.failed.With(prometheus.Labels{"function": function}).Inc()
}

func (r *Recorder) ConfirmationFinished(state blockchain.ConfirmationState, seconds float64) {
	r.confirmations.With(prometheus.Labels{"state": state.String()}).Observe(seconds)
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Register mounts Handler on mux at /metrics.
func (r *Recorder) Register(mux *http.ServeMux) {
	zap.L().Info("Registering prometheus metrics")
	mux.Handle("/metrics", r.Handler())
}
