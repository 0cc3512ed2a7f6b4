package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks the settlement and auction transitions executed by
// the node.
type EngineMetrics struct {
	agreementsOpened    prometheus.Counter
	agreementsSettled   prometheus.Counter
	agreementsCancelled prometheus.Counter
	bidsAccepted        prometheus.Counter
	auctionsClosed      prometheus.Counter
	bidsRetracted       prometheus.Counter
	callsRejected       *prometheus.CounterVec
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

// Engine returns the process-wide engine metrics, registering them on first
// use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			agreementsOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "otcvault_agreements_opened_total",
				Help: "Count of agreements opened with an escrowed offer.",
			}),
			agreementsSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "otcvault_agreements_settled_total",
				Help: "Count of agreements settled by a buyer.",
			}),
			agreementsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "otcvault_agreements_cancelled_total",
				Help: "Count of agreements cancelled by their receiver.",
			}),
			bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "otcvault_bids_accepted_total",
				Help: "Count of auction bids accepted into the ledger.",
			}),
			auctionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "otcvault_auctions_closed_total",
				Help: "Count of auctions closed by their owner.",
			}),
			bidsRetracted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "otcvault_bids_retracted_total",
				Help: "Count of losing-bid retractions paid out.",
			}),
			callsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "otcvault_calls_rejected_total",
				Help: "Count of mutating calls rejected before execution, by operation.",
			}, []string{"op"}),
		}
		prometheus.MustRegister(
			engineRegistry.agreementsOpened,
			engineRegistry.agreementsSettled,
			engineRegistry.agreementsCancelled,
			engineRegistry.bidsAccepted,
			engineRegistry.auctionsClosed,
			engineRegistry.bidsRetracted,
			engineRegistry.callsRejected,
		)
	})
	return engineRegistry
}

func (m *EngineMetrics) MarkAgreementOpened()    { m.agreementsOpened.Inc() }
func (m *EngineMetrics) MarkAgreementSettled()   { m.agreementsSettled.Inc() }
func (m *EngineMetrics) MarkAgreementCancelled() { m.agreementsCancelled.Inc() }
func (m *EngineMetrics) MarkBidAccepted()        { m.bidsAccepted.Inc() }
func (m *EngineMetrics) MarkAuctionClosed()      { m.auctionsClosed.Inc() }
func (m *EngineMetrics) MarkBidRetracted()       { m.bidsRetracted.Inc() }
func (m *EngineMetrics) MarkCallRejected(op string) {
	m.callsRejected.WithLabelValues(op).Inc()
}
