package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TxIDSize is the size of node-generated transaction identifiers.
const TxIDSize = 16

type (
	// TxID is an arbitrary byte identifier naming a transaction within a
	// node scope. Callers may supply their own ids of any length;
	// node-generated ones are TxIDSize random bytes. The string type keeps
	// identifiers usable as map keys.
	TxID string

	// Backend designates the execution semantics requested for a
	// transaction. It is opaque to the coordinator and interpreted only by
	// the execution engine.
	Backend string

	// NodeID scopes coordinator state, storage and events to a single node.
	NodeID string
)

// Backends understood by the reference execution engine.
const (
	// BackendKV interprets code as a key=value assignment against the
	// engine's state store.
	BackendKV Backend = "kv"

	// BackendReadOnly interprets code as a key to read from the engine's
	// state store.
	BackendReadOnly Backend = "readonly"

	// BackendDebug echoes the code back as the execution value.
	BackendDebug Backend = "debug"
)

// String returns the hex-encoded identifier.
func (id TxID) String() string {
	return fmt.Sprintf("TxID{%X}", string(id))
}

// Bytes returns the raw identifier bytes.
func (id TxID) Bytes() []byte {
	return []byte(id)
}

// MarshalJSON encodes the identifier as hex, since raw identifier bytes are
// not generally valid UTF-8.
func (id TxID) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%X", string(id)))
}

func (id *TxID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	bz, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*id = TxID(bz)
	return nil
}

// TxIDSource generates fresh transaction identifiers. The coordinator takes
// one as an option so tests can pin identifiers deterministically.
type TxIDSource func() TxID

// RandomTxID returns a TxIDSize-byte random identifier (a random RFC 4122
// UUID).
func RandomTxID() TxID {
	id := uuid.New()
	return TxID(id[:])
}
