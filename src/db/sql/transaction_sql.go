package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgersync-server/src/models"
	"ledgersync-server/src/sync"
)

const transactionColumns = `id, account_id, external_transaction_id, amount, date, category, merchant_name, created_at, updated_at`

// TransactionStore is the Postgres-backed Transactions table, satisfying
// sync.TransactionStore.
type TransactionStore struct {
	Pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{Pool: pool}
}

func (s *TransactionStore) GetByExternalID(ctx context.Context, accountID, externalTransactionID string) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND external_transaction_id = $2
		LIMIT 1
	`
	var txn models.Transaction
	err := scanTransaction(s.Pool.QueryRow(ctx, query, accountID, externalTransactionID), &txn)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sync.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *TransactionStore) Put(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, external_transaction_id, amount, date, category, merchant_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			account_id = $2,
			amount = $4,
			date = $5,
			category = $6,
			merchant_name = $7,
			updated_at = $9
	`
	_, err := s.Pool.Exec(ctx, query,
		txn.ID,
		txn.AccountID,
		txn.ExternalTransactionID,
		txn.Amount,
		txn.Date,
		txn.Category,
		txn.MerchantName,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	return err
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, id
	`
	rows, err := s.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := scanTransaction(rows, &txn); err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

func (s *TransactionStore) ReassignAccount(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	query := `UPDATE transactions SET account_id = $2, updated_at = NOW() WHERE account_id = $1`
	cmd, err := s.Pool.Exec(ctx, query, fromAccountID, toAccountID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanTransaction(row pgx.Row, txn *models.Transaction) error {
	return row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.ExternalTransactionID,
		&txn.Amount,
		&txn.Date,
		&txn.Category,
		&txn.MerchantName,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
}
