package mempool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mukzid/anoma/config"
	"github.com/Mukzid/anoma/libs/log"
	"github.com/Mukzid/anoma/types"
)

const (
	testNode    = types.NodeID("n1")
	waitTimeout = 2 * time.Second
)

type engineCall struct {
	Kind    string
	ID      types.TxID
	Backend types.Backend
	Code    []byte
	Order   []types.TxID
}

// mockEngine records dispatches. Execution reports are played back by the
// tests themselves, publishing events on the bus in the engine's stead.
type mockEngine struct {
	calls chan engineCall
	err   error
}

func newMockEngine() *mockEngine {
	return &mockEngine{calls: make(chan engineCall, 100)}
}

func (e *mockEngine) Launch(_ types.NodeID, backend types.Backend, code []byte, id types.TxID) error {
	e.calls <- engineCall{Kind: "launch", ID: id, Backend: backend, Code: code}
	return e.err
}

func (e *mockEngine) ExecuteBatch(_ types.NodeID, order []types.TxID) error {
	e.calls <- engineCall{Kind: "batch", Order: order}
	return e.err
}

type storeCommit struct {
	Round  uint64
	Writes []types.CommittedTx
}

type mockStore struct {
	commits chan storeCommit
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{commits: make(chan storeCommit, 100)}
}

func (s *mockStore) Commit(_ types.NodeID, round uint64, writes []types.CommittedTx) error {
	s.commits <- storeCommit{Round: round, Writes: writes}
	return s.err
}

func newTestMempool(t *testing.T, options ...MempoolOption) (*Mempool, *mockEngine, *mockStore, *types.EventBus) {
	t.Helper()

	eventBus := types.NewEventBus()
	eventBus.SetLogger(log.TestingLogger().With("module", "events"))
	require.NoError(t, eventBus.Start())

	engine := newMockEngine()
	store := newMockStore()

	mem, err := NewMempool(config.TestMempoolConfig(), testNode, engine, store, eventBus, options...)
	require.NoError(t, err)
	mem.SetLogger(log.TestingLogger().With("module", "mempool"))
	require.NoError(t, mem.Start())

	t.Cleanup(func() {
		if mem.IsRunning() {
			if err := mem.Stop(); err != nil {
				t.Error(err)
			}
		}
		if err := eventBus.Stop(); err != nil {
			t.Error(err)
		}
	})
	return mem, engine, store, eventBus
}

func subscribeTo(t *testing.T, eventBus *types.EventBus, sources ...string) types.Subscription {
	t.Helper()
	sub, err := eventBus.Subscribe(context.Background(), t.Name(), types.QueryFor(testNode, sources...), 100)
	require.NoError(t, err)
	return sub
}

func nextEvent(t *testing.T, sub types.Subscription) types.EventData {
	t.Helper()
	select {
	case msg := <-sub.Out():
		return msg.Data()
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func nextCall(t *testing.T, engine *mockEngine) engineCall {
	t.Helper()
	select {
	case c := <-engine.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for engine dispatch")
		return engineCall{}
	}
}

func nextCommit(t *testing.T, store *mockStore) storeCommit {
	t.Helper()
	select {
	case c := <-store.commits:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for store commit")
		return storeCommit{}
	}
}

// publishResult and publishBatch play the execution engine's part of the
// event protocol.
func publishResult(t *testing.T, eventBus *types.EventBus, id types.TxID, result types.TxResult) {
	t.Helper()
	require.NoError(t, eventBus.PublishEventTxResult(types.EventDataTxResult{
		NodeID: testNode, ID: id, Result: result,
	}))
}

func publishBatch(t *testing.T, eventBus *types.EventBus, outcomes ...types.TxOutcome) {
	t.Helper()
	require.NoError(t, eventBus.PublishEventBatchCompleted(types.EventDataBatchCompleted{
		NodeID: testNode, Outcomes: outcomes,
	}))
}

func dump(t *testing.T, mem *Mempool) []types.TxID {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	ids, err := mem.Dump(ctx)
	require.NoError(t, err)
	return ids
}

func TestSubmitAdmitsAndDispatches(t *testing.T) {
	t.Cleanup(leaktest.CheckTimeout(t, 10*time.Second))
	mem, engine, _, eventBus := newTestMempool(t)
	sub := subscribeTo(t, eventBus, types.EventSourceMempool)

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("code-a")))

	ev := nextEvent(t, sub)
	newTx, ok := ev.(types.EventDataNewTx)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, types.TxID("a"), newTx.ID)
	assert.Equal(t, types.BackendDebug, newTx.Record.Backend)
	assert.Equal(t, []byte("code-a"), newTx.Record.Code)
	assert.True(t, newTx.Record.ExecutionResult.Pending())
	assert.True(t, newTx.Record.VMResult.Pending())

	call := nextCall(t, engine)
	assert.Equal(t, "launch", call.Kind)
	assert.Equal(t, types.TxID("a"), call.ID)
	assert.Equal(t, []byte("code-a"), call.Code)

	assert.Equal(t, []types.TxID{"a"}, dump(t, mem))
}

func TestSubmitGeneratesUniqueIDs(t *testing.T) {
	mem, engine, _, _ := newTestMempool(t)

	require.NoError(t, mem.SubmitTx(types.BackendDebug, []byte("x")))
	require.NoError(t, mem.SubmitTx(types.BackendDebug, []byte("y")))

	first := nextCall(t, engine)
	second := nextCall(t, engine)
	assert.Len(t, string(first.ID), types.TxIDSize)
	assert.Len(t, string(second.ID), types.TxIDSize)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmitTxIDSourceInjectable(t *testing.T) {
	var n int
	seq := func() types.TxID {
		n++
		return types.TxID(fmt.Sprintf("seq-%d", n))
	}
	mem, engine, _, _ := newTestMempool(t, WithTxIDSource(seq))

	require.NoError(t, mem.SubmitTx(types.BackendDebug, []byte("x")))
	require.NoError(t, mem.SubmitTx(types.BackendDebug, []byte("y")))

	assert.Equal(t, types.TxID("seq-1"), nextCall(t, engine).ID)
	assert.Equal(t, types.TxID("seq-2"), nextCall(t, engine).ID)
}

func TestSubmitDuplicateIDLastWriteWins(t *testing.T) {
	mem, engine, store, eventBus := newTestMempool(t)

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("old")))
	require.NoError(t, mem.SubmitTxWithID("a", types.BackendKV, []byte("k=new")))
	nextCall(t, engine)
	nextCall(t, engine)

	// still one entry
	assert.Equal(t, []types.TxID{"a"}, dump(t, mem))

	// the committed record carries the second submission
	require.NoError(t, mem.FinalizeOrder([]types.TxID{"a"}))
	nextCall(t, engine)
	publishBatch(t, eventBus, types.TxOutcome{Result: types.ResultOK([]byte("new")), ID: "a"})

	commit := nextCommit(t, store)
	require.Len(t, commit.Writes, 1)
	assert.Equal(t, types.BackendKV, commit.Writes[0].Record.Backend)
	assert.Equal(t, []byte("k=new"), commit.Writes[0].Record.Code)
}

func TestFinalizeOrderDispatchesVerbatim(t *testing.T) {
	mem, engine, _, eventBus := newTestMempool(t)
	sub := subscribeTo(t, eventBus, types.EventSourceMempool)

	// unknown ids pass through untouched, nothing validates them here
	order := []types.TxID{"nobody", "knows", "these"}
	require.NoError(t, mem.FinalizeOrder(order))

	ev := nextEvent(t, sub)
	finalized, ok := ev.(types.EventDataOrderFinalized)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, order, finalized.Order)

	call := nextCall(t, engine)
	assert.Equal(t, "batch", call.Kind)
	assert.Equal(t, order, call.Order)
}

func TestBatchCompletionCommitsReversedWrites(t *testing.T) {
	mem, engine, store, eventBus := newTestMempool(t)
	sub := subscribeTo(t, eventBus, types.EventSourceMempool)

	for _, id := range []types.TxID{"a", "b", "c"} {
		require.NoError(t, mem.SubmitTxWithID(id, types.BackendDebug, []byte("code-"+id)))
		nextCall(t, engine)
		nextEvent(t, sub)
	}
	require.NoError(t, mem.FinalizeOrder([]types.TxID{"a", "b", "c"}))
	nextCall(t, engine)
	nextEvent(t, sub)

	publishBatch(t, eventBus,
		types.TxOutcome{Result: types.ResultOK([]byte("ra")), ID: "a"},
		types.TxOutcome{Result: types.ResultOK([]byte("rb")), ID: "b"},
		types.TxOutcome{Result: types.ResultError(), ID: "c"},
	)

	// storage sees the write set in reverse completion order
	commit := nextCommit(t, store)
	require.Len(t, commit.Writes, 3)
	assert.Equal(t, types.TxID("c"), commit.Writes[0].ID)
	assert.Equal(t, types.TxID("b"), commit.Writes[1].ID)
	assert.Equal(t, types.TxID("a"), commit.Writes[2].ID)
	assert.Equal(t, types.ResultError(), commit.Writes[0].Record.ExecutionResult)
	assert.Equal(t, types.ResultOK([]byte("ra")), commit.Writes[2].Record.ExecutionResult)

	// the block committed event keeps the original order
	ev := nextEvent(t, sub)
	committed, ok := ev.(types.EventDataBlockCommitted)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, []types.TxID{"a", "b", "c"}, committed.Order)
	assert.Equal(t, uint64(0), committed.Round)

	// finalized transactions left the table
	assert.Empty(t, dump(t, mem))
}

func TestRoundAdvancesPerBatch(t *testing.T) {
	mem, engine, store, eventBus := newTestMempool(t, WithRound(7))
	sub := subscribeTo(t, eventBus, types.EventSourceMempool)

	nextBlockEvent := func() types.EventDataBlockCommitted {
		t.Helper()
		for {
			if ev, ok := nextEvent(t, sub).(types.EventDataBlockCommitted); ok {
				return ev
			}
		}
	}

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	require.NoError(t, mem.SubmitTxWithID("b", types.BackendDebug, []byte("y")))
	nextCall(t, engine)
	nextCall(t, engine)

	require.NoError(t, mem.FinalizeOrder([]types.TxID{"a"}))
	nextCall(t, engine)
	publishBatch(t, eventBus, types.TxOutcome{Result: types.ResultOK(nil), ID: "a"})
	ev := nextBlockEvent()
	assert.Equal(t, uint64(7), ev.Round)
	assert.Equal(t, uint64(7), nextCommit(t, store).Round)

	// an empty batch still commits and advances the round
	require.NoError(t, mem.FinalizeOrder(nil))
	nextCall(t, engine)
	publishBatch(t, eventBus)
	ev = nextBlockEvent()
	assert.Equal(t, uint64(8), ev.Round)
	assert.Empty(t, ev.Order)
	commit := nextCommit(t, store)
	assert.Equal(t, uint64(8), commit.Round)
	assert.Empty(t, commit.Writes)

	require.NoError(t, mem.FinalizeOrder([]types.TxID{"b"}))
	nextCall(t, engine)
	publishBatch(t, eventBus, types.TxOutcome{Result: types.ResultOK(nil), ID: "b"})
	assert.Equal(t, uint64(9), nextBlockEvent().Round)
	assert.Equal(t, uint64(9), nextCommit(t, store).Round)
}

func TestVMResultUpdatesAreDecoupled(t *testing.T) {
	mem, engine, store, eventBus := newTestMempool(t)

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	require.NoError(t, mem.SubmitTxWithID("b", types.BackendDebug, []byte("y")))
	nextCall(t, engine)
	nextCall(t, engine)

	// a sees two speculative results, the later one sticks; b sees none
	publishResult(t, eventBus, "a", types.ResultOK([]byte("v1")))
	publishResult(t, eventBus, "a", types.ResultOK([]byte("v2")))

	require.NoError(t, mem.FinalizeOrder([]types.TxID{"a", "b"}))
	nextCall(t, engine)
	publishBatch(t, eventBus,
		types.TxOutcome{Result: types.ResultOK([]byte("final-a")), ID: "a"},
		types.TxOutcome{Result: types.ResultOK([]byte("final-b")), ID: "b"},
	)

	commit := nextCommit(t, store)
	require.Len(t, commit.Writes, 2)
	byID := map[types.TxID]types.TxRecord{}
	for _, w := range commit.Writes {
		byID[w.ID] = w.Record
	}
	assert.Equal(t, types.ResultOK([]byte("v2")), byID["a"].VMResult)
	assert.Equal(t, types.ResultOK([]byte("final-a")), byID["a"].ExecutionResult)
	// finalization does not require a vm result to have arrived
	assert.True(t, byID["b"].VMResult.Pending())
	assert.Equal(t, types.ResultOK([]byte("final-b")), byID["b"].ExecutionResult)
}

func TestDumpSnapshotOrderedAfterPriorWork(t *testing.T) {
	mem, engine, store, eventBus := newTestMempool(t)

	assert.NotNil(t, dump(t, mem))
	assert.Empty(t, dump(t, mem))

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	require.NoError(t, mem.SubmitTxWithID("b", types.BackendDebug, []byte("y")))

	// enqueued strictly after the two submissions, so it must see both
	assert.ElementsMatch(t, []types.TxID{"a", "b"}, dump(t, mem))

	nextCall(t, engine)
	nextCall(t, engine)
	require.NoError(t, mem.FinalizeOrder([]types.TxID{"b"}))
	nextCall(t, engine)
	publishBatch(t, eventBus, types.TxOutcome{Result: types.ResultOK(nil), ID: "b"})
	nextCommit(t, store)

	assert.Equal(t, []types.TxID{"a"}, dump(t, mem))
}

func TestReplaySeedsTakeLivePaths(t *testing.T) {
	seedTxs := []RecoveredTx{
		{ID: "s1", Backend: types.BackendDebug, Code: []byte("one")},
		{ID: "s2", Backend: types.BackendKV, Code: []byte("k=two")},
	}
	seedOrders := [][]types.TxID{{"s1"}}

	run := func(options ...MempoolOption) ([]types.EventData, []engineCall) {
		eventBus := types.NewEventBus()
		eventBus.SetLogger(log.TestingLogger())
		require.NoError(t, eventBus.Start())
		engine := newMockEngine()
		store := newMockStore()

		mem, err := NewMempool(config.TestMempoolConfig(), testNode, engine, store, eventBus, options...)
		require.NoError(t, err)
		mem.SetLogger(log.TestingLogger())

		// subscribe before starting so that seeded events are not missed
		sub, err := eventBus.Subscribe(context.Background(), "observer", types.QueryFor(testNode, types.EventSourceMempool), 100)
		require.NoError(t, err)
		require.NoError(t, mem.Start())

		if len(options) == 0 {
			for _, tx := range seedTxs {
				require.NoError(t, mem.SubmitTxWithID(tx.ID, tx.Backend, tx.Code))
			}
			for _, order := range seedOrders {
				require.NoError(t, mem.FinalizeOrder(order))
			}
		}

		events := make([]types.EventData, 0, 3)
		for i := 0; i < 3; i++ {
			events = append(events, nextEvent(t, sub))
		}
		calls := make([]engineCall, 0, 3)
		for i := 0; i < 3; i++ {
			calls = append(calls, nextCall(t, engine))
		}

		require.NoError(t, mem.Stop())
		require.NoError(t, eventBus.Stop())
		return events, calls
	}

	liveEvents, liveCalls := run()
	seededEvents, seededCalls := run(WithRecoveredTxs(seedTxs), WithRecoveredOrders(seedOrders))

	// replay is indistinguishable from live traffic
	assert.Equal(t, liveEvents, seededEvents)
	assert.Equal(t, liveCalls, seededCalls)
}

func TestEngineErrorsAreNotFatal(t *testing.T) {
	mem, engine, _, _ := newTestMempool(t)
	engine.err = errors.New("engine down")

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	nextCall(t, engine)

	// the transaction was admitted regardless of the failed dispatch
	assert.Equal(t, []types.TxID{"a"}, dump(t, mem))

	require.NoError(t, mem.FinalizeOrder([]types.TxID{"a"}))
	nextCall(t, engine)
	assert.Equal(t, []types.TxID{"a"}, dump(t, mem))
}

func TestStoreErrorsAreNotFatal(t *testing.T) {
	mem, engine, store, eventBus := newTestMempool(t)
	store.err = errors.New("disk full")
	sub := subscribeTo(t, eventBus, types.EventSourceMempool)

	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	nextCall(t, engine)
	nextEvent(t, sub)
	require.NoError(t, mem.FinalizeOrder([]types.TxID{"a"}))
	nextCall(t, engine)
	nextEvent(t, sub)

	publishBatch(t, eventBus, types.TxOutcome{Result: types.ResultOK(nil), ID: "a"})
	nextCommit(t, store)

	// the block is still announced and the round still advances
	ev := nextEvent(t, sub)
	committed, ok := ev.(types.EventDataBlockCommitted)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, uint64(0), committed.Round)
	assert.Empty(t, dump(t, mem))
}

func TestNodesSharingBusAreIsolated(t *testing.T) {
	eventBus := types.NewEventBus()
	eventBus.SetLogger(log.TestingLogger())
	require.NoError(t, eventBus.Start())
	t.Cleanup(func() {
		if err := eventBus.Stop(); err != nil {
			t.Error(err)
		}
	})

	newNodeMempool := func(nodeID types.NodeID) (*Mempool, *mockEngine, *mockStore) {
		engine := newMockEngine()
		store := newMockStore()
		mem, err := NewMempool(config.TestMempoolConfig(), nodeID, engine, store, eventBus)
		require.NoError(t, err)
		mem.SetLogger(log.TestingLogger().With("node", nodeID))
		require.NoError(t, mem.Start())
		return mem, engine, store
	}

	memA, engineA, storeA := newNodeMempool("node-a")
	memB, engineB, storeB := newNodeMempool("node-b")

	require.NoError(t, memA.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	require.NoError(t, memB.SubmitTxWithID("b", types.BackendDebug, []byte("y")))
	nextCall(t, engineA)
	nextCall(t, engineB)

	// finalizing on a leaves b untouched
	require.NoError(t, memA.FinalizeOrder([]types.TxID{"a"}))
	nextCall(t, engineA)
	require.NoError(t, eventBus.PublishEventBatchCompleted(types.EventDataBatchCompleted{
		NodeID:   "node-a",
		Outcomes: []types.TxOutcome{{Result: types.ResultOK(nil), ID: "a"}},
	}))
	nextCommit(t, storeA)

	// stopping a must not tear down b's subscription
	require.NoError(t, memA.Stop())

	require.NoError(t, memB.FinalizeOrder([]types.TxID{"b"}))
	nextCall(t, engineB)
	require.NoError(t, eventBus.PublishEventBatchCompleted(types.EventDataBatchCompleted{
		NodeID:   "node-b",
		Outcomes: []types.TxOutcome{{Result: types.ResultOK(nil), ID: "b"}},
	}))
	commit := nextCommit(t, storeB)
	require.Len(t, commit.Writes, 1)
	assert.Equal(t, types.TxID("b"), commit.Writes[0].ID)

	require.NoError(t, memB.Stop())
}

func TestNotRunning(t *testing.T) {
	eventBus := types.NewEventBus()
	eventBus.SetLogger(log.TestingLogger())
	require.NoError(t, eventBus.Start())
	t.Cleanup(func() {
		if err := eventBus.Stop(); err != nil {
			t.Error(err)
		}
	})

	mem, err := NewMempool(config.TestMempoolConfig(), testNode, newMockEngine(), newMockStore(), eventBus)
	require.NoError(t, err)
	mem.SetLogger(log.TestingLogger())

	require.ErrorIs(t, mem.SubmitTx(types.BackendDebug, []byte("x")), ErrNotRunning)
	require.ErrorIs(t, mem.FinalizeOrder([]types.TxID{"a"}), ErrNotRunning)
	_, err = mem.Dump(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, mem.Start())
	require.NoError(t, mem.SubmitTxWithID("a", types.BackendDebug, []byte("x")))
	require.NoError(t, mem.Stop())

	require.ErrorIs(t, mem.SubmitTx(types.BackendDebug, []byte("x")), ErrNotRunning)
	require.ErrorIs(t, mem.FinalizeOrder([]types.TxID{"a"}), ErrNotRunning)
	_, err = mem.Dump(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)
}

// blockingEngine parks every Launch until released, keeping the loop busy so
// the mailbox can be filled behind it.
type blockingEngine struct {
	entered chan struct{}
	release chan struct{}
}

func (e *blockingEngine) Launch(types.NodeID, types.Backend, []byte, types.TxID) error {
	select {
	case e.entered <- struct{}{}:
	default:
	}
	<-e.release
	return nil
}

func (e *blockingEngine) ExecuteBatch(types.NodeID, []types.TxID) error { return nil }

func TestSubmitBlocksWhenMailboxFull(t *testing.T) {
	eventBus := types.NewEventBus()
	eventBus.SetLogger(log.TestingLogger())
	require.NoError(t, eventBus.Start())

	engine := &blockingEngine{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cfg := config.TestMempoolConfig()
	mem, err := NewMempool(cfg, testNode, engine, newMockStore(), eventBus)
	require.NoError(t, err)
	mem.SetLogger(log.TestingLogger())
	require.NoError(t, mem.Start())
	t.Cleanup(func() {
		if err := eventBus.Stop(); err != nil {
			t.Error(err)
		}
	})

	// the loop is parked inside Launch, everything after queues up
	require.NoError(t, mem.SubmitTxWithID("head", types.BackendDebug, []byte("x")))
	<-engine.entered
	for i := 0; i < cfg.MailboxCapacity; i++ {
		require.NoError(t, mem.SubmitTxWithID(types.TxID(fmt.Sprintf("fill-%d", i)), types.BackendDebug, []byte("x")))
	}

	overflow := make(chan error, 1)
	go func() {
		overflow <- mem.SubmitTxWithID("overflow", types.BackendDebug, []byte("x"))
	}()
	select {
	case err := <-overflow:
		t.Fatalf("submit returned %v while the mailbox was full", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(engine.release)
	select {
	case err := <-overflow:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the blocked submit")
	}

	require.Len(t, dump(t, mem), cfg.MailboxCapacity+2)
	require.NoError(t, mem.Stop())
}

// newUnstartedMempool builds a mempool whose handlers the test drives
// directly, without the loop goroutine.
func newUnstartedMempool(t *testing.T) *Mempool {
	t.Helper()

	eventBus := types.NewEventBus()
	eventBus.SetLogger(log.TestingLogger())
	require.NoError(t, eventBus.Start())
	t.Cleanup(func() {
		if err := eventBus.Stop(); err != nil {
			t.Error(err)
		}
	})

	mem, err := NewMempool(config.TestMempoolConfig(), testNode, newMockEngine(), newMockStore(), eventBus)
	require.NoError(t, err)
	mem.SetLogger(log.TestingLogger())
	return mem
}

func assertPanicContains(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		require.Contains(t, fmt.Sprint(r), substr)
	}()
	fn()
	t.Fatal("expected a panic")
}

func TestUnknownTxResultPanics(t *testing.T) {
	mem := newUnstartedMempool(t)

	assertPanicContains(t, "never admitted", func() {
		mem.handleTxResult("ghost", types.ResultOK(nil))
	})
}

func TestUnknownBatchCompletionPanics(t *testing.T) {
	mem := newUnstartedMempool(t)

	assertPanicContains(t, "never admitted", func() {
		mem.handleBatchCompleted([]types.TxOutcome{{Result: types.ResultOK(nil), ID: "ghost"}})
	})
}

func TestDoubleFinalizationPanics(t *testing.T) {
	mem := newUnstartedMempool(t)

	mem.handleSubmit("a", types.BackendDebug, []byte("x"))
	mem.handleBatchCompleted([]types.TxOutcome{{Result: types.ResultOK(nil), ID: "a"}})

	assertPanicContains(t, "already finalized", func() {
		mem.handleBatchCompleted([]types.TxOutcome{{Result: types.ResultOK(nil), ID: "a"}})
	})
}

func TestLateResultAfterFinalizationPanics(t *testing.T) {
	mem := newUnstartedMempool(t)

	mem.handleSubmit("a", types.BackendDebug, []byte("x"))
	mem.handleBatchCompleted([]types.TxOutcome{{Result: types.ResultOK(nil), ID: "a"}})

	assertPanicContains(t, "already finalized", func() {
		mem.handleTxResult("a", types.ResultOK([]byte("late")))
	})
}
