package executor

import (
	"bytes"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/creachadair/taskgroup"
	"github.com/pkg/errors"

	"github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/libs/service"
	cmtsync "github.com/Mukzid/anoma/libs/sync"
	"github.com/Mukzid/anoma/types"
)

// ErrNotRunning is returned by Launch and ExecuteBatch when the engine was
// not started or was stopped.
var ErrNotRunning = errors.New("executor is not running")

// task is one speculative execution in flight. done is closed after the
// result was set and its result event was published, so a batch completion
// can never overtake the result event of a task it lists.
type task struct {
	backend types.Backend
	code    []byte

	done   chan struct{}
	result types.TxResult
}

// LocalEngine runs transaction code fully in process, standing in for a real
// virtual machine. Launched transactions execute on a bounded worker group.
// Batches wait for the launched results in order and report one completion
// event.
type LocalEngine struct {
	service.BaseService

	config   *config.ExecutorConfig
	eventBus *types.EventBus
	state    dbm.DB

	mtx   cmtsync.Mutex
	tasks map[types.TxID]*task

	g     *taskgroup.Group
	start func(taskgroup.Task) *taskgroup.Group

	metrics *Metrics
}

// NewLocalEngine returns an engine executing against stateDB and reporting
// on eventBus.
func NewLocalEngine(
	cfg *config.ExecutorConfig,
	stateDB dbm.DB,
	eventBus *types.EventBus,
	options ...LocalEngineOption,
) *LocalEngine {
	e := &LocalEngine{
		config:   cfg,
		eventBus: eventBus,
		state:    stateDB,
		tasks:    make(map[types.TxID]*task),
		metrics:  NopMetrics(),
	}
	e.BaseService = *service.NewBaseService(nil, "LocalEngine", e)
	for _, option := range options {
		option(e)
	}
	return e
}

// LocalEngineOption sets an optional parameter on the LocalEngine.
type LocalEngineOption func(*LocalEngine)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) LocalEngineOption {
	return func(e *LocalEngine) { e.metrics = metrics }
}

// OnStart implements service.Service by creating the worker group.
func (e *LocalEngine) OnStart() error {
	e.g, e.start = taskgroup.New(nil).Limit(e.config.Workers)
	return nil
}

// OnStop implements service.Service by waiting for in flight tasks, so every
// accepted launch still gets its result event published.
func (e *LocalEngine) OnStop() {
	if err := e.g.Wait(); err != nil {
		e.Logger.Error("worker group reported an error during shutdown", "err", err)
	}
}

// Launch schedules the speculative execution of a transaction. It may block
// briefly while all workers are busy. Exactly one result event for id is
// published once the code ran.
func (e *LocalEngine) Launch(nodeID types.NodeID, backend types.Backend, code []byte, id types.TxID) error {
	if !e.IsRunning() {
		return ErrNotRunning
	}

	t := &task{
		backend: backend,
		code:    append([]byte(nil), code...),
		done:    make(chan struct{}),
	}

	e.mtx.Lock()
	// Relaunching a live id supersedes the previous task. The superseded
	// task still publishes its result event, but batches collect the new
	// one.
	e.tasks[id] = t
	e.mtx.Unlock()

	e.metrics.LaunchedTxs.Add(1)
	e.Logger.Debug("launched", "id", id, "backend", backend)

	e.start(func() error {
		defer addTimeSample(e.metrics.ExecTimeSeconds.With("backend", string(t.backend)))()

		t.result = e.run(t.backend, t.code)

		if err := e.eventBus.PublishEventTxResult(types.EventDataTxResult{
			NodeID: nodeID,
			ID:     id,
			Result: t.result,
		}); err != nil {
			e.Logger.Error("failed to publish tx result", "id", id, "err", err)
		}
		close(t.done)
		return nil
	})
	return nil
}

// ExecuteBatch collects the outcomes of the listed transactions in order and
// publishes one batch completion event. An id that was never launched yields
// an error outcome. The call returns immediately; collection happens in the
// background since launched tasks may still be executing.
func (e *LocalEngine) ExecuteBatch(nodeID types.NodeID, order []types.TxID) error {
	if !e.IsRunning() {
		return ErrNotRunning
	}

	ids := append([]types.TxID(nil), order...)

	// Snapshot the batch tasks and forget them, so a later relaunch of an id
	// starts clean.
	batch := make([]*task, len(ids))
	e.mtx.Lock()
	for i, id := range ids {
		batch[i] = e.tasks[id]
		delete(e.tasks, id)
	}
	e.mtx.Unlock()

	go func() {
		outcomes := make([]types.TxOutcome, 0, len(ids))
		for i, t := range batch {
			if t == nil {
				e.Logger.Error("batch lists transaction that was never launched", "id", ids[i])
				outcomes = append(outcomes, types.TxOutcome{Result: types.ResultError(), ID: ids[i]})
				continue
			}
			<-t.done
			outcomes = append(outcomes, types.TxOutcome{Result: t.result, ID: ids[i]})
		}

		e.metrics.ExecutedBatches.Add(1)
		e.Logger.Debug("batch executed", "txs", len(outcomes))

		if err := e.eventBus.PublishEventBatchCompleted(types.EventDataBatchCompleted{
			NodeID:   nodeID,
			Outcomes: outcomes,
		}); err != nil {
			e.Logger.Error("failed to publish batch completion", "err", err)
		}
	}()
	return nil
}

// run interprets code under the requested backend against the engine state.
func (e *LocalEngine) run(backend types.Backend, code []byte) types.TxResult {
	switch backend {
	case types.BackendKV:
		key, value, ok := bytes.Cut(code, []byte("="))
		if !ok || len(key) == 0 {
			return types.ResultError()
		}
		if err := e.state.Set(key, value); err != nil {
			e.Logger.Error("kv backend failed to write state", "err", err)
			return types.ResultError()
		}
		return types.ResultOK(value)

	case types.BackendReadOnly:
		if len(code) == 0 {
			return types.ResultError()
		}
		value, err := e.state.Get(code)
		if err != nil {
			e.Logger.Error("readonly backend failed to read state", "err", err)
			return types.ResultError()
		}
		if value == nil {
			return types.ResultError()
		}
		return types.ResultOK(value)

	case types.BackendDebug:
		return types.ResultOK(code)

	default:
		e.Logger.Error("unknown backend", "backend", backend)
		return types.ResultError()
	}
}
