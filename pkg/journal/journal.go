package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// ReceiptSource looks up receipts of sent transactions. ethereum.NotFound means the
// transaction is not mined yet.
type ReceiptSource interface {
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Journal provides high-level operations on the transaction journal
type Journal struct {
	storage *Storage
	now     func() time.Time
}

// Open loads the journal at path, or the default location when path is empty
func Open(path string) (*Journal, error) {
	storage, err := NewStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	return &Journal{
		storage: storage,
		now:     time.Now,
	}, nil
}

// Record adds a pending entry for a freshly sent transaction
func (j *Journal) Record(kind Kind, hash common.Hash, account common.Address, amount string) (*Entry, error) {
	now := j.now()
	entry := &Entry{
		ID:      uuid.New().String(),
		Kind:    kind,
		Hash:    hash.Hex(),
		Account: account.Hex(),
		Amount:  amount,
		Status:  StatusPending,
		Created: now,
		Updated: now,
	}

	if err := j.storage.Add(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Resolve moves an entry out of pending according to its receipt
func (j *Journal) Resolve(id string, receipt *types.Receipt) error {
	entry, err := j.storage.Get(id)
	if err != nil {
		return err
	}

	updated := *entry
	updated.Updated = j.now()
	if receipt.BlockNumber != nil {
		updated.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		updated.Status = StatusConfirmed
	} else {
		updated.Status = StatusFailed
		updated.Error = "transaction reverted"
	}

	return j.storage.Update(&updated)
}

// Fail marks an entry as failed with reason
func (j *Journal) Fail(id string, reason error) error {
	entry, err := j.storage.Get(id)
	if err != nil {
		return err
	}

	updated := *entry
	updated.Status = StatusFailed
	updated.Error = reason.Error()
	updated.Updated = j.now()

	return j.storage.Update(&updated)
}

// Reconcile checks every pending entry against the chain and resolves those that
// have a receipt. It returns the number of entries still pending.
func (j *Journal) Reconcile(ctx context.Context, src ReceiptSource) (int, error) {
	// Pick up entries other processes recorded since Open
	if err := j.storage.Reload(); err != nil {
		return 0, err
	}

	stillPending := 0
	for _, entry := range j.storage.ListByStatus(StatusPending) {
		receipt, err := src.Receipt(ctx, common.HexToHash(entry.Hash))
		if errors.Is(err, ethereum.NotFound) {
			stillPending++
			continue
		}
		if err != nil {
			return stillPending, fmt.Errorf("failed to get receipt for %s: %w", entry.Hash, err)
		}

		if err := j.Resolve(entry.ID, receipt); err != nil {
			return stillPending, err
		}
	}

	return stillPending, nil
}

// Entries returns all entries, newest first
func (j *Journal) Entries() []*Entry {
	return j.storage.List()
}

// Pending returns the entries without a receipt
func (j *Journal) Pending() []*Entry {
	return j.storage.ListByStatus(StatusPending)
}

// Path returns where the journal is stored
func (j *Journal) Path() string {
	return j.storage.GetFilePath()
}
