package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the core.
type Metrics struct {
	// Account metrics
	AccountsCreated prometheus.Counter
	ActiveAccounts  prometheus.Gauge
	Replays         prometheus.Counter
	Passivations    prometheus.Counter

	// Transfer saga metrics
	TransfersStarted  prometheus.Counter
	TransfersAccepted prometheus.Counter
	TransfersRejected prometheus.Counter

	// Delivery metrics
	Redeliveries          prometheus.Counter
	UnconfirmedDeliveries prometheus.Counter

	// Watchdog metrics
	ActiveWatches       prometheus.Gauge
	ReconciliationPings prometheus.Counter
}

// New creates and registers all metrics against the given registerer. Tests
// pass a private registry; main passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AccountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		ActiveAccounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "corebank_accounts_active",
			Help: "Number of account ledgers currently loaded in memory",
		}),
		Replays: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_account_replays_total",
			Help: "Total number of account reconstructions from the journal",
		}),
		Passivations: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_account_passivations_total",
			Help: "Total number of idle accounts unloaded",
		}),
		TransfersStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_transfers_started_total",
			Help: "Total number of transfers debited on the source account",
		}),
		TransfersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_transfers_accepted_total",
			Help: "Total number of transfers acknowledged as accepted",
		}),
		TransfersRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_transfers_rejected_total",
			Help: "Total number of transfers refused by the target and compensated",
		}),
		Redeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_deliveries_resent_total",
			Help: "Total number of redelivered transfer messages",
		}),
		UnconfirmedDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_deliveries_unconfirmed_total",
			Help: "Total number of deliveries unconfirmed past the warning threshold",
		}),
		ActiveWatches: factory.NewGauge(prometheus.GaugeOpts{
			Name: "corebank_watchdog_watches",
			Help: "Number of in-flight transfers currently under watch",
		}),
		ReconciliationPings: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_watchdog_pings_total",
			Help: "Total number of reconciliation pings sent to source accounts",
		}),
	}
}
