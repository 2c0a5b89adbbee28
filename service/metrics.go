package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kasa_fetch_cycles_total",
		Help: "Fetch cycles by result",
	}, []string{"result"})

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kasa_last_success_timestamp_seconds",
		Help: "Unix time of the last cycle that stored fresh prices",
	})

	// 1 when the last row written for the asset is stale.
	staleAssets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kasa_price_stale",
		Help: "Whether the last stored price of an asset is stale",
	}, []string{"asset"})
)
