package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	cfg "github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/executor"
	"github.com/Mukzid/anoma/libs/log"
	"github.com/Mukzid/anoma/libs/service"
	"github.com/Mukzid/anoma/mempool"
	"github.com/Mukzid/anoma/store"
	"github.com/Mukzid/anoma/types"
)

// Option sets an optional parameter on the Node. Options are applied before
// the components are wired.
type Option func(*Node)

// WithMempoolOptions passes extra options through to the coordinator
// constructor, e.g. replay seeds recovered from an external log. They are
// applied after the node's own defaults, so an explicit round seed overrides
// the round resumed from the commit store.
func WithMempoolOptions(opts ...mempool.MempoolOption) Option {
	return func(n *Node) { n.mempoolOptions = opts }
}

// Node is the highest level interface to the system. It wires the event bus,
// the execution engine, the commit store and the coordinator together and
// manages their lifecycle.
type Node struct {
	service.BaseService

	config *cfg.Config
	nodeID types.NodeID

	commitDB dbm.DB
	stateDB  dbm.DB

	eventBus    *types.EventBus
	commitStore *store.CommitStore
	engine      *executor.LocalEngine
	mempool     *mempool.Mempool

	mempoolOptions []mempool.MempoolOption

	pusher            *Pusher
	prometheusSrv     *http.Server
	pyroscopeProfiler *pyroscope.Profiler
	pyroscopeTracer   *sdktrace.TracerProvider
}

// Provider takes a config and a logger and returns a ready to go Node.
type Provider func(*cfg.Config, log.Logger) (*Node, error)

// DefaultNewNode returns a node with the default DB and metrics providers.
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	return NewNode(config,
		cfg.DefaultDBProvider,
		DefaultMetricsProvider(config.Instrumentation),
		logger,
	)
}

// NewNode returns a new, ready to go, node.
func NewNode(config *cfg.Config,
	dbProvider cfg.DBProvider,
	metricsProvider MetricsProvider,
	logger log.Logger,
	options ...Option,
) (*Node, error) {
	if config.NodeID == "" {
		return nil, errors.New("node_id is not set in the config")
	}
	nodeID := types.NodeID(config.NodeID)

	node := &Node{
		config: config,
		nodeID: nodeID,
	}
	for _, option := range options {
		option(node)
	}

	commitDB, stateDB, err := initDBs(config, dbProvider)
	if err != nil {
		return nil, err
	}
	node.commitDB = commitDB
	node.stateDB = stateDB
	node.commitStore = store.NewCommitStore(commitDB)

	node.eventBus = types.NewEventBus()
	node.eventBus.SetLogger(logger.With("module", "events"))

	memMetrics, execMetrics := metricsProvider(nodeID)

	node.engine = executor.NewLocalEngine(config.Executor, stateDB, node.eventBus,
		executor.WithMetrics(execMetrics))
	node.engine.SetLogger(logger.With("module", "executor"))

	// resume the round counter from the commit store; a fresh store starts
	// at the configured initial round
	round := config.InitialRound
	if last, ok := node.commitStore.LastRound(nodeID); ok {
		round = last + 1
	}

	memOptions := append([]mempool.MempoolOption{
		mempool.WithRound(round),
		mempool.WithMetrics(memMetrics),
	}, node.mempoolOptions...)
	node.mempool, err = mempool.NewMempool(config.Mempool, nodeID, node.engine, node.commitStore,
		node.eventBus, memOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mempool: %w", err)
	}
	node.mempool.SetLogger(logger.With("module", "mempool"))

	node.pusher = MetricsPusher(config.Instrumentation)

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	return node, nil
}

// initDBs opens the commit log and the executor scratch state through the
// configured provider.
func initDBs(config *cfg.Config, dbProvider cfg.DBProvider) (commitDB, stateDB dbm.DB, err error) {
	commitDB, err = dbProvider(&cfg.DBContext{ID: "commitstore", Config: config})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open commit store db: %w", err)
	}
	stateDB, err = dbProvider(&cfg.DBContext{ID: "executor_state", Config: config})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open executor state db: %w", err)
	}
	return commitDB, stateDB, nil
}

// OnStart starts the event bus, the execution engine and the coordinator, in
// that order, plus the configured instrumentation.
func (n *Node) OnStart() error {
	if err := n.eventBus.Start(); err != nil {
		return err
	}
	if err := n.engine.Start(); err != nil {
		return err
	}
	if err := n.mempool.Start(); err != nil {
		return err
	}

	if n.config.Instrumentation.IsPrometheusEnabled() {
		n.prometheusSrv = n.startPrometheusServer(n.config.Instrumentation.PrometheusListenAddr)
	}
	if n.pusher != nil {
		go n.pusher.Start(n.Logger.With("module", "pusher"))
	}
	if n.config.Instrumentation.IsPyroscopeEnabled() {
		var err error
		n.pyroscopeProfiler, n.pyroscopeTracer, err = setupPyroscope(
			n.config.Instrumentation, string(n.nodeID),
		)
		if err != nil {
			return err
		}
	}

	n.Logger.Info("started node", "node_id", n.nodeID)
	return nil
}

// OnStop stops the services in reverse start order, then the databases.
func (n *Node) OnStop() {
	if err := n.mempool.Stop(); err != nil {
		n.Logger.Error("error stopping mempool", "err", err)
	}
	if err := n.engine.Stop(); err != nil {
		n.Logger.Error("error stopping executor", "err", err)
	}
	if err := n.eventBus.Stop(); err != nil {
		n.Logger.Error("error stopping event bus", "err", err)
	}

	if n.prometheusSrv != nil {
		if err := n.prometheusSrv.Shutdown(context.Background()); err != nil {
			n.Logger.Error("prometheus http server shutdown", "err", err)
		}
	}
	n.pusher.Stop()
	if n.pyroscopeProfiler != nil {
		if err := n.pyroscopeProfiler.Stop(); err != nil {
			n.Logger.Error("error stopping pyroscope profiler", "err", err)
		}
	}
	if n.pyroscopeTracer != nil {
		if err := n.pyroscopeTracer.Shutdown(context.Background()); err != nil {
			n.Logger.Error("error shutting down pyroscope tracer", "err", err)
		}
	}

	if err := n.stateDB.Close(); err != nil {
		n.Logger.Error("error closing executor state db", "err", err)
	}
	if err := n.commitDB.Close(); err != nil {
		n.Logger.Error("error closing commit store db", "err", err)
	}
}

func (n *Node) startPrometheusServer(addr string) *http.Server {
	srv := &http.Server{
		Addr: addr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: n.config.Instrumentation.MaxOpenConnections},
			),
		),
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			n.Logger.Error("prometheus http server listen", "err", err)
		}
	}()
	return srv
}

// NodeID returns the scope identifier of this node.
func (n *Node) NodeID() types.NodeID { return n.nodeID }

// EventBus returns the node's event bus.
func (n *Node) EventBus() *types.EventBus { return n.eventBus }

// Mempool returns the node's transaction coordinator.
func (n *Node) Mempool() *mempool.Mempool { return n.mempool }

// Engine returns the node's execution engine.
func (n *Node) Engine() *executor.LocalEngine { return n.engine }

// CommitStore returns the node's commit log.
func (n *Node) CommitStore() *store.CommitStore { return n.commitStore }

// Config returns the node's configuration.
func (n *Node) Config() *cfg.Config { return n.config }
