package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OffersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swap_offers_total", Help: "Offer open and close requests"},
		[]string{"action", "result"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swap_trades_total", Help: "Trades attempted"},
		[]string{"result"},
	)
	NotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swap_notifications_total", Help: "User notifications sent"},
	)
	AccountUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "swap_account_updates_total", Help: "Account change notifications received"},
	)
	RefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "swap_refreshes_total", Help: "Offer watch refreshes by outcome"},
		[]string{"result"},
	)
)

const (
	ResultOk        = "ok"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
	ResultDiscarded = "discarded"
)

func init() {
	prometheus.MustRegister(OffersTotal, TradesTotal, NotificationsTotal, AccountUpdatesTotal, RefreshesTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
