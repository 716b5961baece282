package types

import "fmt"

// TxStatus enumerates the lifecycle states of a transaction result.
type TxStatus int8

const (
	// TxStatusPending means no outcome is known yet. It is the zero value.
	TxStatusPending TxStatus = iota
	// TxStatusOK means execution succeeded and produced a value.
	TxStatusOK
	// TxStatusError means execution failed.
	TxStatusError
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusPending:
		return "pending"
	case TxStatusOK:
		return "ok"
	case TxStatusError:
		return "error"
	default:
		return fmt.Sprintf("unknown (%d)", int8(s))
	}
}

// TxResult is the tri-state outcome attached to a transaction: pending until
// an outcome is known, then ok with a value or error without one. The zero
// value is pending.
type TxResult struct {
	Status TxStatus `json:"status"`
	// Value carries the produced bytes; meaningful only when Status is
	// TxStatusOK.
	Value []byte `json:"value,omitempty"`
}

// ResultOK returns a successful result carrying value.
func ResultOK(value []byte) TxResult {
	return TxResult{Status: TxStatusOK, Value: value}
}

// ResultError returns a failed result.
func ResultError() TxResult {
	return TxResult{Status: TxStatusError}
}

// Pending reports whether no outcome is known yet.
func (r TxResult) Pending() bool {
	return r.Status == TxStatusPending
}

// OK reports whether the result is a success.
func (r TxResult) OK() bool {
	return r.Status == TxStatusOK
}

func (r TxResult) String() string {
	if r.Status == TxStatusOK {
		return fmt.Sprintf("TxResult{ok %X}", r.Value)
	}
	return fmt.Sprintf("TxResult{%v}", r.Status)
}

// TxRecord is the coordinator's entry for an admitted transaction.
//
// ExecutionResult is the authoritative outcome, set exactly once when the
// transaction is finalized as part of an executed batch. VMResult reflects
// whatever a backend last reported for the speculative execution and may be
// overwritten any number of times. The two are decoupled and may land in any
// order.
type TxRecord struct {
	Backend Backend `json:"backend"`
	Code    []byte  `json:"code"`

	ExecutionResult TxResult `json:"execution_result"`
	VMResult        TxResult `json:"vm_result"`
}

// NewTxRecord returns the record for a newly admitted transaction, with both
// results pending.
func NewTxRecord(backend Backend, code []byte) *TxRecord {
	return &TxRecord{Backend: backend, Code: code}
}

// Copy returns a value snapshot of the record detached from coordinator
// state.
func (r *TxRecord) Copy() TxRecord {
	cp := *r
	cp.Code = append([]byte(nil), r.Code...)
	cp.ExecutionResult.Value = append([]byte(nil), r.ExecutionResult.Value...)
	cp.VMResult.Value = append([]byte(nil), r.VMResult.Value...)
	return cp
}

// TxOutcome is one entry of a completed batch: the result a backend produced
// for the identified transaction.
type TxOutcome struct {
	Result TxResult `json:"result"`
	ID     TxID     `json:"id"`
}

// CommittedTx pairs an identifier with its finalized record inside a
// committed write set.
type CommittedTx struct {
	ID     TxID     `json:"id"`
	Record TxRecord `json:"record"`
}
