package sync

import (
	"context"
	"errors"

	"ledgersync-server/src/models"
)

// ErrNotFound is returned by point lookups that miss. Callers must treat it
// as a resolution verdict, not a failure.
var ErrNotFound = errors.New("not found")

// ErrOrphanReference is returned when a transaction upsert references an
// account that does not exist. The transaction is rejected, never created
// against a phantom owner.
var ErrOrphanReference = errors.New("owning account not found")

// AccountStore is the Accounts table boundary. Point lookups return
// ErrNotFound on a miss; ScanByUser is the expensive path reserved for the
// resolver's fuzzy fallback and the duplicate auditor.
type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
	GetByExternalID(ctx context.Context, userID int64, externalAccountID string) (*models.Account, error)
	GetByNumber(ctx context.Context, userID int64, accountNumber, institutionName string) (*models.Account, error)
	ScanByUser(ctx context.Context, userID int64) ([]models.Account, error)
	Put(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, userID int64, accountID string) error
}

// TransactionStore is the Transactions table boundary.
type TransactionStore interface {
	GetByExternalID(ctx context.Context, accountID, externalTransactionID string) (*models.Transaction, error)
	Put(ctx context.Context, txn *models.Transaction) error
	ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)
	// ReassignAccount moves every transaction on fromAccountID to
	// toAccountID and reports how many rows moved.
	ReassignAccount(ctx context.Context, fromAccountID, toAccountID string) (int64, error)
}

// ScanCache lets the resolver reuse one user-account snapshot across the
// many fuzzy lookups of a single run instead of rescanning per record.
// Implementations are free to evict at will; a miss just costs a rescan.
type ScanCache interface {
	Get(userID int64) ([]models.Account, bool)
	Set(userID int64, accounts []models.Account)
	Del(userID int64)
}
