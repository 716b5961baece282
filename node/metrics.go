package node

import (
	"time"

	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	cfg "github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/executor"
	"github.com/Mukzid/anoma/libs/log"
	"github.com/Mukzid/anoma/mempool"
	"github.com/Mukzid/anoma/types"
)

var (
	PushGateWayURL = ""
	PushMetrics    = false
	PushInterval   = 5 * time.Second
)

// MetricsProvider returns the metrics collectors of the coordinator and the
// execution engine.
type MetricsProvider func(nodeID types.NodeID) (*mempool.Metrics, *executor.Metrics)

// DefaultMetricsProvider returns Metrics built using the Prometheus client
// library if Prometheus is enabled. Otherwise, it returns no-op Metrics.
func DefaultMetricsProvider(config *cfg.InstrumentationConfig) MetricsProvider {
	return func(nodeID types.NodeID) (*mempool.Metrics, *executor.Metrics) {
		if config.Prometheus {
			return mempool.PrometheusMetrics(config.Namespace, "node_id", string(nodeID)),
				executor.PrometheusMetrics(config.Namespace, "node_id", string(nodeID))
		}
		return mempool.NopMetrics(), executor.NopMetrics()
	}
}

type Pusher struct {
	*push.Pusher
	done chan struct{}
}

// MetricsPusher returns a pusher feeding a Prometheus push gateway, or nil
// when pushing is not configured. Prometheus-backed metrics register with the
// default registerer, so the default gatherer covers every collector of the
// node.
func MetricsPusher(config *cfg.InstrumentationConfig) *Pusher {
	if PushGateWayURL == "" || !config.Prometheus || !PushMetrics {
		return nil
	}

	p := push.New(PushGateWayURL, config.Namespace).
		Gatherer(stdprometheus.DefaultGatherer)

	return &Pusher{Pusher: p, done: make(chan struct{}, 1)}
}

func (p *Pusher) Start(logger log.Logger) {
	if p == nil {
		return
	}
	for {
		err := p.Add()
		if err != nil {
			logger.Error("failed to push metrics", "err", err)
		}
		select {
		case <-p.done:
			return
		case <-time.After(PushInterval):
		}
	}
}

func (p *Pusher) Stop() {
	if p == nil {
		return
	}
	p.done <- struct{}{}
}
