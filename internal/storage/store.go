package storage

import (
	"context"
	"errors"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Store is the persistence gateway. All reads return detached copies, and all
// writes go through Commit, which applies a Tx as one atomic unit: either
// every op in the transaction is visible afterwards, or none is. The engine
// has no in-process locking of its own and relies entirely on this contract.
type Store interface {
	GetAgent(ctx context.Context, agentID string) (types.Agent, error)
	ListAgents(ctx context.Context) ([]types.Agent, error)

	GetSlot(ctx context.Context, date, slotID string) (types.DailyBreakSlot, error)
	FindSlot(ctx context.Context, date, shiftID, timeSlotID string, breakTypeIndex int) (types.DailyBreakSlot, error)
	ListSlots(ctx context.Context, date string) ([]types.DailyBreakSlot, error)

	GetLastEvent(ctx context.Context) (types.LastBreakEvent, error)
	GetResetMarker(ctx context.Context) (types.ResetMarker, error)

	Commit(ctx context.Context, tx *Tx) error
}

type opKind int

const (
	opPutAgent opKind = iota
	opPutSlot
	opDeleteSlot
	opPutLastEvent
	opPutResetMarker
)

type op struct {
	kind   opKind
	agent  types.Agent
	slot   types.DailyBreakSlot
	date   string
	slotID string
	event  types.LastBreakEvent
	marker types.ResetMarker
}

// Tx collects record mutations for a single atomic commit. Ops are applied
// in the order they were added.
type Tx struct {
	ops []op
}

// NewTx returns an empty transaction
func NewTx() *Tx { return &Tx{} }

// PutAgent stages a full agent record write
func (tx *Tx) PutAgent(a types.Agent) *Tx {
	tx.ops = append(tx.ops, op{kind: opPutAgent, agent: a})
	return tx
}

// PutSlot stages a full slot record write
func (tx *Tx) PutSlot(s types.DailyBreakSlot) *Tx {
	tx.ops = append(tx.ops, op{kind: opPutSlot, slot: s})
	return tx
}

// DeleteSlot stages a slot record deletion
func (tx *Tx) DeleteSlot(date, slotID string) *Tx {
	tx.ops = append(tx.ops, op{kind: opDeleteSlot, date: date, slotID: slotID})
	return tx
}

// PutLastEvent stages a write of the singleton banner event
func (tx *Tx) PutLastEvent(e types.LastBreakEvent) *Tx {
	tx.ops = append(tx.ops, op{kind: opPutLastEvent, event: e})
	return tx
}

// PutResetMarker stages a write of the daily reset marker. Callers that need
// the marker to gate retries stage it last, so a partial chunked commit
// leaves it unwritten.
func (tx *Tx) PutResetMarker(m types.ResetMarker) *Tx {
	tx.ops = append(tx.ops, op{kind: opPutResetMarker, marker: m})
	return tx
}

// Len returns the number of staged ops
func (tx *Tx) Len() int { return len(tx.ops) }

// Empty reports whether the transaction has no staged ops
func (tx *Tx) Empty() bool { return len(tx.ops) == 0 }
