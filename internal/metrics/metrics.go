package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eventpass/backend/internal/engine"
	"github.com/eventpass/backend/internal/models"
)

// Metrics holds all Prometheus metrics for the ticket engine. It implements
// engine.Observer.
type Metrics struct {
	CommittedOps   *prometheus.CounterVec
	RejectedOps    *prometheus.CounterVec
	TicketsIssued  *prometheus.CounterVec
	Revenue        prometheus.Counter
	TreasuryAmount prometheus.Gauge
}

// New creates and registers all Prometheus metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommittedOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_operations_committed_total",
			Help: "Total number of committed engine operations",
		}, []string{"operation"}),
		RejectedOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_operations_rejected_total",
			Help: "Total number of rejected engine operations by error kind",
		}, []string{"operation", "kind"}),
		TicketsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_tickets_issued_total",
			Help: "Total number of tickets issued by tier",
		}, []string{"tier"}),
		Revenue: f.NewCounter(prometheus.CounterOpts{
			Name: "eventpass_revenue_base_units_total",
			Help: "Total amount retained by the treasury, in base units",
		}),
		TreasuryAmount: f.NewGauge(prometheus.GaugeOpts{
			Name: "eventpass_treasury_balance_base_units",
			Help: "Current treasury balance available for withdrawal, in base units",
		}),
	}
}

var _ engine.Observer = (*Metrics)(nil)

func (m *Metrics) Committed(op engine.Operation, ev models.Event) {
	m.CommittedOps.WithLabelValues(string(op)).Inc()
	switch ev.Kind {
	case models.EventTicketPurchased:
		m.TicketsIssued.WithLabelValues(ev.Tier.String()).Inc()
		m.Revenue.Add(float64(ev.Amount))
	case models.EventTicketResold:
		m.Revenue.Add(float64(ev.Amount))
	}
}

func (m *Metrics) Rejected(op engine.Operation, err error) {
	kind := engine.Kind(err)
	if kind == "" {
		kind = "internal"
	}
	m.RejectedOps.WithLabelValues(string(op), kind).Inc()
}

func (m *Metrics) TreasuryChanged(balance models.Amount) {
	m.TreasuryAmount.Set(float64(balance))
}
