package mempool

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/libs/service"
	"github.com/Mukzid/anoma/types"
)

// ErrNotRunning is returned by the public operations when the mempool was not
// started or was stopped.
var ErrNotRunning = errors.New("mempool is not running")

// Engine dispatches execution work. Dispatches are fire-and-forget: the
// engine reports back through transaction result and batch completion events
// on the bus, never through return values.
type Engine interface {
	Launch(nodeID types.NodeID, backend types.Backend, code []byte, id types.TxID) error
	ExecuteBatch(nodeID types.NodeID, order []types.TxID) error
}

// Store persists one write set per committed round.
type Store interface {
	Commit(nodeID types.NodeID, round uint64, writes []types.CommittedTx) error
}

// RecoveredTx is one admission replayed from an external record on startup.
type RecoveredTx struct {
	ID      types.TxID
	Backend types.Backend
	Code    []byte
}

type operation int

const (
	submitOp operation = iota
	finalizeOp
	dumpOp
	resultOp
	batchOp
)

// msg is one unit of mailbox work. Which fields are set depends on op.
type msg struct {
	op operation

	// submit, result
	id types.TxID

	// submit
	backend types.Backend
	code    []byte

	// finalize
	order []types.TxID

	// result
	result types.TxResult

	// batch completion
	outcomes []types.TxOutcome

	// dump
	reply chan []types.TxID
}

// MempoolOption sets an optional parameter on the Mempool.
type MempoolOption func(*Mempool)

// Mempool coordinates the transaction lifecycle of one node: it admits
// submitted transactions, records consensus-finalized orderings, dispatches
// ordered batches to the execution engine and commits the executed write sets
// as one block per round.
//
// All inbound work, public calls and bus deliveries alike, funnels through a
// single mailbox consumed by one loop goroutine. That goroutine exclusively
// owns the transaction table and the round counter; serialization through the
// mailbox is the only synchronization mechanism, there are no locks to take.
type Mempool struct {
	service.BaseService

	config   *config.MempoolConfig
	nodeID   types.NodeID
	engine   Engine
	store    Store
	eventBus *types.EventBus
	newTxID  types.TxIDSource
	metrics  *Metrics

	mailbox chan msg

	// Owned exclusively by the loop goroutine.
	transactions map[types.TxID]*types.TxRecord
	round        uint64

	// Recently finalized ids, consulted only to attribute a fault when an
	// event references an id missing from the table.
	finalized *lru.Cache[types.TxID, struct{}]

	// Replay seeds, fed through the regular submit/finalize paths by OnStart.
	seedTxs    []RecoveredTx
	seedOrders [][]types.TxID
}

// NewMempool constructs an empty mempool for the given node. The engine and
// store are the collaborators batches are dispatched to and committed into;
// events flow over eventBus, scoped to nodeID.
func NewMempool(
	cfg *config.MempoolConfig,
	nodeID types.NodeID,
	engine Engine,
	store Store,
	eventBus *types.EventBus,
	options ...MempoolOption,
) (*Mempool, error) {
	finalized, err := lru.New[types.TxID, struct{}](cfg.FinalizedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create finalized tx cache: %w", err)
	}

	mem := &Mempool{
		config:       cfg,
		nodeID:       nodeID,
		engine:       engine,
		store:        store,
		eventBus:     eventBus,
		newTxID:      types.RandomTxID,
		metrics:      NopMetrics(),
		mailbox:      make(chan msg, cfg.MailboxCapacity),
		transactions: make(map[types.TxID]*types.TxRecord),
		finalized:    finalized,
	}
	mem.BaseService = *service.NewBaseService(nil, "Mempool", mem)

	for _, opt := range options {
		opt(mem)
	}

	return mem, nil
}

// WithRound sets the round the first committed batch is recorded under.
// Without it rounds start at zero.
func WithRound(round uint64) MempoolOption {
	return func(mem *Mempool) { mem.round = round }
}

// WithRecoveredTxs seeds admissions replayed on startup. They run through the
// same code path as live submissions, producing the same events and engine
// dispatches.
func WithRecoveredTxs(txs []RecoveredTx) MempoolOption {
	return func(mem *Mempool) { mem.seedTxs = txs }
}

// WithRecoveredOrders seeds finalized orderings replayed on startup, applied
// after the recovered admissions.
func WithRecoveredOrders(orders [][]types.TxID) MempoolOption {
	return func(mem *Mempool) { mem.seedOrders = orders }
}

// WithTxIDSource replaces the generator behind SubmitTx, e.g. with a
// deterministic sequence in tests.
func WithTxIDSource(src types.TxIDSource) MempoolOption {
	return func(mem *Mempool) { mem.newTxID = src }
}

// WithMetrics sets the mempool's metrics collector.
func WithMetrics(metrics *Metrics) MempoolOption {
	return func(mem *Mempool) { mem.metrics = metrics }
}

// NodeID returns the scope this mempool coordinates.
func (mem *Mempool) NodeID() types.NodeID { return mem.nodeID }

// OnStart implements service.Service. It subscribes to execution events,
// starts the loop and pump goroutines and replays any recovery seeds through
// the public operations.
func (mem *Mempool) OnStart() error {
	sub, err := mem.eventBus.SubscribeUnbuffered(context.Background(), mem.subscriber(),
		types.QueryFor(mem.nodeID, types.EventSourceBackend, types.EventSourceExecutor))
	if err != nil {
		return fmt.Errorf("failed to subscribe to execution events: %w", err)
	}

	mem.metrics.Round.Set(float64(mem.round))

	go mem.loop()
	go mem.pump(sub)

	for _, tx := range mem.seedTxs {
		if err := mem.SubmitTxWithID(tx.ID, tx.Backend, tx.Code); err != nil {
			return fmt.Errorf("failed to replay recovered tx %v: %w", tx.ID, err)
		}
	}
	for _, order := range mem.seedOrders {
		if err := mem.FinalizeOrder(order); err != nil {
			return fmt.Errorf("failed to replay recovered order: %w", err)
		}
	}
	return nil
}

// OnStop implements service.Service.
func (mem *Mempool) OnStop() {
	if err := mem.eventBus.UnsubscribeAll(context.Background(), mem.subscriber()); err != nil {
		mem.Logger.Error("failed to unsubscribe from the event bus", "err", err)
	}
}

// subscriber carries the node id so that coordinators sharing one bus do not
// tear down each other's subscriptions on stop.
func (mem *Mempool) subscriber() string {
	return "mempool/" + string(mem.nodeID)
}

// SubmitTx admits a transaction under a generated id. See SubmitTxWithID.
func (mem *Mempool) SubmitTx(backend types.Backend, code []byte) error {
	return mem.SubmitTxWithID(mem.newTxID(), backend, code)
}

// SubmitTxWithID admits a transaction for asynchronous execution: the id is
// inserted into the table (silently replacing any pending transaction under
// the same id), an admission event is published and execution is dispatched.
// The call returns once the work is enqueued; it does not wait for any
// outcome.
func (mem *Mempool) SubmitTxWithID(id types.TxID, backend types.Backend, code []byte) error {
	if !mem.IsRunning() {
		return ErrNotRunning
	}
	return mem.enqueue(msg{op: submitOp, id: id, backend: backend, code: code})
}

// FinalizeOrder records a consensus-finalized ordering and dispatches it as a
// batch to the execution engine. The ids are not checked against the table
// here; an id that never was admitted surfaces as a fault when the batch
// completion comes back.
func (mem *Mempool) FinalizeOrder(order []types.TxID) error {
	if !mem.IsRunning() {
		return ErrNotRunning
	}
	// detach from the caller's slice
	order = append([]types.TxID(nil), order...)
	return mem.enqueue(msg{op: finalizeOp, order: order})
}

// Dump returns the ids of all admitted, not yet finalized transactions. The
// snapshot is taken by the loop goroutine, so it is consistent and ordered
// after every operation enqueued before the call.
func (mem *Mempool) Dump(ctx context.Context) ([]types.TxID, error) {
	if !mem.IsRunning() {
		return nil, ErrNotRunning
	}

	reply := make(chan []types.TxID, 1)
	if err := mem.enqueueCtx(ctx, msg{op: dumpOp, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ids := <-reply:
		return ids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-mem.Quit():
		return nil, ErrNotRunning
	}
}

func (mem *Mempool) enqueue(m msg) error {
	select {
	case mem.mailbox <- m:
		return nil
	case <-mem.Quit():
		return ErrNotRunning
	}
}

func (mem *Mempool) enqueueCtx(ctx context.Context, m msg) error {
	select {
	case mem.mailbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-mem.Quit():
		return ErrNotRunning
	}
}

// loop is the single consumer of the mailbox and the only goroutine touching
// the table and the round counter.
func (mem *Mempool) loop() {
	for {
		select {
		case m := <-mem.mailbox:
			switch m.op {
			case submitOp:
				mem.handleSubmit(m.id, m.backend, m.code)
			case finalizeOp:
				mem.handleFinalize(m.order)
			case resultOp:
				mem.handleTxResult(m.id, m.result)
			case batchOp:
				mem.handleBatchCompleted(m.outcomes)
			case dumpOp:
				m.reply <- mem.snapshot()
			}
		case <-mem.Quit():
			return
		}
	}
}

// pump forwards bus deliveries into the mailbox through an unbounded backlog.
// A full mailbox therefore backs up into the backlog, never into the event
// bus, whose delivery the loop goroutine itself depends on when publishing.
func (mem *Mempool) pump(sub types.Subscription) {
	var backlog []msg
	for {
		var (
			out  chan<- msg
			next msg
		)
		if len(backlog) > 0 {
			out = mem.mailbox
			next = backlog[0]
		}

		select {
		case busMsg := <-sub.Out():
			switch ev := busMsg.Data().(type) {
			case types.EventDataTxResult:
				backlog = append(backlog, msg{op: resultOp, id: ev.ID, result: ev.Result})
			case types.EventDataBatchCompleted:
				backlog = append(backlog, msg{op: batchOp, outcomes: ev.Outcomes})
			default:
				mem.Logger.Error("unexpected event type on the mempool subscription", "type", fmt.Sprintf("%T", ev))
			}
		case out <- next:
			backlog = backlog[1:]
		case <-sub.Canceled():
			return
		case <-mem.Quit():
			return
		}
	}
}

func (mem *Mempool) handleSubmit(id types.TxID, backend types.Backend, code []byte) {
	// last write wins on a duplicate id
	record := types.NewTxRecord(backend, code)
	mem.transactions[id] = record

	mem.metrics.SubmittedTxs.Add(1)
	mem.metrics.TxSizeBytes.Observe(float64(len(code)))
	mem.metrics.Size.Set(float64(len(mem.transactions)))

	if err := mem.eventBus.PublishEventNewTx(types.EventDataNewTx{
		NodeID: mem.nodeID,
		ID:     id,
		Record: record.Copy(),
	}); err != nil {
		mem.Logger.Error("failed to publish new tx event", "id", id, "err", err)
	}
	if err := mem.engine.Launch(mem.nodeID, backend, code, id); err != nil {
		mem.Logger.Error("failed to launch transaction", "id", id, "err", err)
	}
}

func (mem *Mempool) handleFinalize(order []types.TxID) {
	mem.metrics.BatchSizeTxs.Observe(float64(len(order)))

	if err := mem.eventBus.PublishEventOrderFinalized(types.EventDataOrderFinalized{
		NodeID: mem.nodeID,
		Order:  order,
	}); err != nil {
		mem.Logger.Error("failed to publish order finalized event", "err", err)
	}
	if err := mem.engine.ExecuteBatch(mem.nodeID, order); err != nil {
		mem.Logger.Error("failed to dispatch batch", "err", err)
	}
}

func (mem *Mempool) handleTxResult(id types.TxID, result types.TxResult) {
	record, ok := mem.transactions[id]
	if !ok {
		mem.unknownTxPanic("transaction result", id)
	}
	record.VMResult = result
}

// handleBatchCompleted finalizes every transaction of a completed batch and
// commits the batch as one block: execution results are recorded, the
// transactions leave the table and the write set goes to storage under the
// current round. The round advances by one per batch, empty batches included.
//
// The write set is accumulated by prepending, so storage receives it in
// reverse completion order while the block committed event carries the
// original order. Consumers rely on both readings.
func (mem *Mempool) handleBatchCompleted(outcomes []types.TxOutcome) {
	order := make([]types.TxID, 0, len(outcomes))
	var writes []types.CommittedTx
	for _, outcome := range outcomes {
		record, ok := mem.transactions[outcome.ID]
		if !ok {
			mem.unknownTxPanic("batch completion", outcome.ID)
		}
		record.ExecutionResult = outcome.Result
		delete(mem.transactions, outcome.ID)
		mem.finalized.Add(outcome.ID, struct{}{})

		order = append(order, outcome.ID)
		writes = append([]types.CommittedTx{{ID: outcome.ID, Record: *record}}, writes...)
	}

	if err := mem.store.Commit(mem.nodeID, mem.round, writes); err != nil {
		mem.Logger.Error("failed to commit write set", "round", mem.round, "err", err)
	}
	if err := mem.eventBus.PublishEventBlockCommitted(types.EventDataBlockCommitted{
		NodeID: mem.nodeID,
		Round:  mem.round,
		Order:  order,
	}); err != nil {
		mem.Logger.Error("failed to publish block committed event", "round", mem.round, "err", err)
	}

	mem.round++
	mem.metrics.FinalizedTxs.Add(float64(len(outcomes)))
	mem.metrics.Size.Set(float64(len(mem.transactions)))
	mem.metrics.Round.Set(float64(mem.round))
}

func (mem *Mempool) snapshot() []types.TxID {
	ids := make([]types.TxID, 0, len(mem.transactions))
	for id := range mem.transactions {
		ids = append(ids, id)
	}
	return ids
}

// unknownTxPanic crashes the node. Execution events referencing an id missing
// from the table mean the maps of coordinator and engine have diverged, and
// every commit after that point would be built on corrupt state. The
// finalized cache tells a double delivery apart from an event for a
// transaction that never was admitted.
func (mem *Mempool) unknownTxPanic(event string, id types.TxID) {
	reason := "never admitted"
	if mem.finalized.Contains(id) {
		reason = "already finalized, event delivered twice or out of order"
	}
	panic(fmt.Sprintf("%s references unknown transaction %v: %s", event, id, reason))
}
