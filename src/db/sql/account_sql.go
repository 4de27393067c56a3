package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cache "ledgersync-server/src/db"
	"ledgersync-server/src/models"
	"ledgersync-server/src/sync"
)

const accountColumns = `id, user_id, external_account_id, name, account_number, institution_name, type, active, identity_unstable, created_at, updated_at`

// AccountStore is the Postgres-backed Accounts table, satisfying
// sync.AccountStore. Writes invalidate the owner's scan cache entry.
type AccountStore struct {
	Pool  *pgxpool.Pool
	Cache *cache.AccountScanCache
}

func NewAccountStore(pool *pgxpool.Pool, scanCache *cache.AccountScanCache) *AccountStore {
	return &AccountStore{Pool: pool, Cache: scanCache}
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.queryOne(ctx, query, accountID)
}

func (s *AccountStore) GetByExternalID(ctx context.Context, userID int64, externalAccountID string) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND external_account_id = $2
		ORDER BY created_at
		LIMIT 1
	`
	return s.queryOne(ctx, query, userID, externalAccountID)
}

func (s *AccountStore) GetByNumber(ctx context.Context, userID int64, accountNumber, institutionName string) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND account_number = $2 AND LOWER(institution_name) = LOWER($3)
		ORDER BY created_at
		LIMIT 1
	`
	return s.queryOne(ctx, query, userID, accountNumber, institutionName)
}

func (s *AccountStore) ScanByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := s.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := scanAccount(rows, &account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *AccountStore) Put(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, external_account_id, name, account_number, institution_name, type, active, identity_unstable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			external_account_id = $3,
			name = $4,
			account_number = $5,
			institution_name = $6,
			type = $7,
			active = $8,
			identity_unstable = $9,
			updated_at = $11
	`
	_, err := s.Pool.Exec(ctx, query,
		account.ID,
		account.UserID,
		nullIfEmpty(account.ExternalAccountID),
		account.Name,
		account.AccountNumber,
		account.InstitutionName,
		account.Type,
		account.Active,
		account.IdentityUnstable,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if s.Cache != nil {
		s.Cache.Del(account.UserID)
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, userID int64, accountID string) error {
	query := `DELETE FROM accounts WHERE id = $1 AND user_id = $2`
	cmd, err := s.Pool.Exec(ctx, query, accountID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return sync.ErrNotFound
	}
	if s.Cache != nil {
		s.Cache.Del(userID)
	}
	return nil
}

func (s *AccountStore) queryOne(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var account models.Account
	err := scanAccount(s.Pool.QueryRow(ctx, query, args...), &account)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sync.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func scanAccount(row pgx.Row, account *models.Account) error {
	var externalID *string
	err := row.Scan(
		&account.ID,
		&account.UserID,
		&externalID,
		&account.Name,
		&account.AccountNumber,
		&account.InstitutionName,
		&account.Type,
		&account.Active,
		&account.IdentityUnstable,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if externalID != nil {
		account.ExternalAccountID = *externalID
	}
	return nil
}

// nullIfEmpty keeps the partial unique index on external_account_id from
// tripping over the empty string: unknown identity is NULL, not "".
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
