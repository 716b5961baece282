package store

import (
	"encoding/json"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/orderedcode"
	"github.com/pkg/errors"

	cmtsync "github.com/Mukzid/anoma/libs/sync"
	"github.com/Mukzid/anoma/types"
)

// prefixCommit namespaces committed write sets within the database.
const prefixCommit = int64(0)

/*
CommitStore is a simple low level store for committed write sets.

One record batch is stored per (node, round). Keys are encoded with
orderedcode so the rounds of a node iterate in ascending round order. Values
are the JSON encoded write set, stored verbatim in the order the coordinator
handed it over.

NOTE: CommitStore methods panic if they encounter errors deserializing
loaded data, indicating probable corruption on disk.
*/
type CommitStore struct {
	db dbm.DB

	// mtx guards the cached last committed round per node. We rely on the
	// database for everything else; the cache only avoids a reverse scan on
	// every LastRound call.
	mtx       cmtsync.RWMutex
	lastRound map[types.NodeID]uint64
}

// NewCommitStore returns a CommitStore backed by db.
func NewCommitStore(db dbm.DB) *CommitStore {
	return &CommitStore{
		db:        db,
		lastRound: make(map[types.NodeID]uint64),
	}
}

// Commit persists writes as the write set of the given node and round, in
// the order given. Committing the same round twice overwrites the previous
// write set.
func (cs *CommitStore) Commit(nodeID types.NodeID, round uint64, writes []types.CommittedTx) error {
	if writes == nil {
		writes = []types.CommittedTx{}
	}
	bz, err := json.Marshal(writes)
	if err != nil {
		return errors.Wrapf(err, "failed to encode write set for round %d", round)
	}
	if err := cs.db.SetSync(calcCommitKey(nodeID, round), bz); err != nil {
		return errors.Wrapf(err, "failed to persist write set for round %d", round)
	}

	cs.mtx.Lock()
	if last, ok := cs.lastRound[nodeID]; !ok || round > last {
		cs.lastRound[nodeID] = round
	}
	cs.mtx.Unlock()
	return nil
}

// LoadCommit returns the write set committed for the given node and round,
// or nil if the round was never committed. A committed empty write set comes
// back as an empty non-nil slice.
func (cs *CommitStore) LoadCommit(nodeID types.NodeID, round uint64) []types.CommittedTx {
	bz, err := cs.db.Get(calcCommitKey(nodeID, round))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}

	var writes []types.CommittedTx
	if err := json.Unmarshal(bz, &writes); err != nil {
		panic(errors.Wrapf(err, "failed to decode write set for round %d", round))
	}
	return writes
}

// LastRound returns the highest round committed for the node, and whether
// any round was committed at all.
func (cs *CommitStore) LastRound(nodeID types.NodeID) (uint64, bool) {
	cs.mtx.RLock()
	last, ok := cs.lastRound[nodeID]
	cs.mtx.RUnlock()
	if ok {
		return last, true
	}

	// Cache miss, e.g. right after reopening the database. Scan the node's
	// range in reverse for the highest round.
	start, end := commitKeyRange(nodeID)
	itr, err := cs.db.ReverseIterator(start, end)
	if err != nil {
		panic(err)
	}
	defer itr.Close()

	if !itr.Valid() {
		return 0, false
	}
	_, round := parseCommitKey(itr.Key())

	cs.mtx.Lock()
	if cached, ok := cs.lastRound[nodeID]; !ok || round > cached {
		cs.lastRound[nodeID] = round
	}
	cs.mtx.Unlock()
	return round, true
}

// Rounds returns every round committed for the node, in ascending order.
func (cs *CommitStore) Rounds(nodeID types.NodeID) []uint64 {
	start, end := commitKeyRange(nodeID)
	itr, err := cs.db.Iterator(start, end)
	if err != nil {
		panic(err)
	}
	defer itr.Close()

	var rounds []uint64
	for ; itr.Valid(); itr.Next() {
		_, round := parseCommitKey(itr.Key())
		rounds = append(rounds, round)
	}
	if err := itr.Error(); err != nil {
		panic(err)
	}
	return rounds
}

//-----------------------------------------------------------------------------

func calcCommitKey(nodeID types.NodeID, round uint64) []byte {
	key, err := orderedcode.Append(nil, prefixCommit, string(nodeID), int64(round))
	if err != nil {
		panic(err)
	}
	return key
}

// commitKeyRange returns the half-open key range covering every round of the
// node.
func commitKeyRange(nodeID types.NodeID) (start, end []byte) {
	start = calcCommitKey(nodeID, 0)
	end = append(calcCommitKey(nodeID, 1<<63-1), byte(0x00))
	return start, end
}

func parseCommitKey(key []byte) (types.NodeID, uint64) {
	var (
		prefix int64
		nodeID string
		round  int64
	)
	remaining, err := orderedcode.Parse(string(key), &prefix, &nodeID, &round)
	if err != nil {
		panic(errors.Wrapf(err, "failed to parse commit key %X", key))
	}
	if len(remaining) != 0 {
		panic(errors.Errorf("commit key %X has %d undecoded bytes", key, len(remaining)))
	}
	if prefix != prefixCommit {
		panic(errors.Errorf("commit key %X has unexpected prefix %d", key, prefix))
	}
	return types.NodeID(nodeID), uint64(round)
}
