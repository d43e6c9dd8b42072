package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	exitClean = "clean"
	exitFault = "fault"
)

var (
	running = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ibots_bots_running",
		Help: "Number of bot workers currently running",
	})

	exits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ibots_bot_exits_total",
		Help: "Bot worker exits by reason",
	}, []string{"reason"})
)
