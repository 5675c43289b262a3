package journal

import (
	"fmt"
	"time"
)

// Kind identifies what a journaled transaction did
type Kind string

const (
	KindApprove Kind = "approve" // Allowance for the market
	KindSupply  Kind = "supply"  // Mint into the market
)

// Status defines where a transaction is in its lifecycle
type Status string

const (
	StatusPending   Status = "pending"   // Sent, no receipt yet
	StatusConfirmed Status = "confirmed" // Mined with status 1
	StatusFailed    Status = "failed"    // Reverted or dropped
)

// Entry is a transaction sent by this client
type Entry struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Hash    string    `json:"hash"`
	Account string    `json:"account"`
	Amount  string    `json:"amount,omitempty"` // token units, supply only
	Status  Status    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	BlockNumber uint64 `json:"block_number,omitempty"`
}

// Validate checks that an entry can be stored
func (e *Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	if e.Hash == "" {
		return fmt.Errorf("transaction hash is required")
	}
	if e.Kind != KindApprove && e.Kind != KindSupply {
		return fmt.Errorf("kind must be 'approve' or 'supply'")
	}
	switch e.Status {
	case StatusPending, StatusConfirmed, StatusFailed:
	default:
		return fmt.Errorf("unknown status: %s", e.Status)
	}
	return nil
}

// IsPending returns true while no receipt has been observed
func (e *Entry) IsPending() bool {
	return e.Status == StatusPending
}
