package types

import (
	"fmt"
	"strings"

	cmtpubsub "github.com/Mukzid/anoma/libs/pubsub"
	cmtquery "github.com/Mukzid/anoma/libs/pubsub/query"
)

// Event sources (alphabetically sorted). Every published event carries the
// component it originated from, so subscribers can filter on it.
const (
	// EventSourceBackend marks per-transaction execution results reported
	// by a backend.
	EventSourceBackend = "backend"

	// EventSourceExecutor marks batch completions reported by the execution
	// engine.
	EventSourceExecutor = "executor"

	// EventSourceMempool marks admissions, finalized orders and committed
	// blocks published by the coordinator.
	EventSourceMempool = "mempool"
)

// EventData is the union of event payloads carried on the bus.
type EventData interface {
	// empty interface
}

// EventDataNewTx is published when the coordinator admits a transaction.
// Record is a snapshot taken at admission time.
type EventDataNewTx struct {
	NodeID NodeID   `json:"node_id"`
	ID     TxID     `json:"id"`
	Record TxRecord `json:"record"`
}

// EventDataOrderFinalized is published when a consensus ordering is recorded,
// before the batch is handed to the execution engine. Order is carried
// verbatim, whether or not the ids are known.
type EventDataOrderFinalized struct {
	NodeID NodeID `json:"node_id"`
	Order  []TxID `json:"order"`
}

// EventDataTxResult carries one backend execution result for a transaction.
type EventDataTxResult struct {
	NodeID NodeID   `json:"node_id"`
	ID     TxID     `json:"id"`
	Result TxResult `json:"result"`
}

// EventDataBatchCompleted reports an executed batch. Outcomes is in the
// execution order of the batch.
type EventDataBatchCompleted struct {
	NodeID   NodeID      `json:"node_id"`
	Outcomes []TxOutcome `json:"outcomes"`
}

// EventDataBlockCommitted is published after the write set of an executed
// batch was handed to storage. Order lists the ids in their original batch
// order, and Round is the round the block was committed under.
type EventDataBlockCommitted struct {
	NodeID NodeID `json:"node_id"`
	Round  uint64 `json:"round"`
	Order  []TxID `json:"order"`
}

// PUBSUB

const (
	// NodeIDKey is a reserved tag carrying the node scope of an event.
	NodeIDKey = "node.id"

	// EventSourceKey is a reserved tag carrying the component an event
	// originated from.
	EventSourceKey = "event.source"
)

// QueryFor returns the query matching events scoped to the given node and
// published by any of the given sources. With no sources it matches every
// event of the node.
func QueryFor(nodeID NodeID, sources ...string) cmtpubsub.Query {
	var b strings.Builder
	fmt.Fprintf(&b, "%s='%s'", NodeIDKey, nodeID)
	switch len(sources) {
	case 0:
	case 1:
		fmt.Fprintf(&b, " AND %s='%s'", EventSourceKey, sources[0])
	default:
		quoted := make([]string, len(sources))
		for i, s := range sources {
			quoted[i] = "'" + s + "'"
		}
		fmt.Fprintf(&b, " AND %s IN (%s)", EventSourceKey, strings.Join(quoted, ", "))
	}
	return cmtquery.MustParse(b.String())
}
