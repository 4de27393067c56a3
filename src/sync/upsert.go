package sync

import (
	"context"
	"fmt"
	"time"

	"ledgersync-server/src/models"
)

// UpsertOutcome classifies what an upsert did to storage.
type UpsertOutcome int

const (
	OutcomeCreated UpsertOutcome = iota
	OutcomeUpdated
	// OutcomeSkipped means the entity resolved but the incoming record
	// carried nothing new; only updatedAt was refreshed.
	OutcomeSkipped
)

// Upserter turns a resolution verdict into a single logical write: merge
// into the existing entity, or construct and persist a new one. The merge
// rule is field-level "incoming wins if present, else keep stored", so a
// partial fetch can never erase previously known good data.
type Upserter struct {
	accounts     AccountStore
	transactions TransactionStore
	now          func() time.Time
}

func NewUpserter(accounts AccountStore, transactions TransactionStore) *Upserter {
	return &Upserter{accounts: accounts, transactions: transactions, now: time.Now}
}

// UpsertAccount persists one normalized account record. existing is the
// resolver's verdict; nil means create.
func (u *Upserter) UpsertAccount(ctx context.Context, userID int64, rec NormalizedAccount, existing *models.Account) (*models.Account, UpsertOutcome, error) {
	now := u.now().UTC()

	if existing == nil {
		id, stable := DeriveAccountID(rec.InstitutionName, rec.ExternalID)
		active := true
		acc := &models.Account{
			ID:                id,
			UserID:            userID,
			ExternalAccountID: rec.ExternalID,
			Name:              rec.Name,
			AccountNumber:     rec.AccountNumber,
			InstitutionName:   rec.InstitutionName,
			Type:              rec.Type,
			Active:            &active,
			IdentityUnstable:  !stable,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := u.accounts.Put(ctx, acc); err != nil {
			return nil, 0, fmt.Errorf("insert account: %w", err)
		}
		return acc, OutcomeCreated, nil
	}

	acc := *existing
	changed := false
	mergeField(&acc.ExternalAccountID, rec.ExternalID, &changed)
	mergeField(&acc.Name, rec.Name, &changed)
	mergeField(&acc.AccountNumber, rec.AccountNumber, &changed)
	mergeField(&acc.InstitutionName, rec.InstitutionName, &changed)
	mergeField(&acc.Type, rec.Type, &changed)

	// The provider is reporting this account, so it is alive regardless of
	// what any earlier run concluded.
	if acc.Active == nil || !*acc.Active {
		if acc.Active != nil && !*acc.Active {
			changed = true
		}
		active := true
		acc.Active = &active
	}

	// Identity backfill: once both stable attributes are known the entity
	// leaves the unstable set. The primary key stays put.
	if acc.IdentityUnstable && acc.ExternalAccountID != "" && acc.InstitutionName != "" {
		acc.IdentityUnstable = false
		changed = true
	}

	acc.UpdatedAt = now
	if err := u.accounts.Put(ctx, &acc); err != nil {
		return nil, 0, fmt.Errorf("update account %s: %w", acc.ID, err)
	}
	if changed {
		return &acc, OutcomeUpdated, nil
	}
	return &acc, OutcomeSkipped, nil
}

// UpsertTransaction persists one normalized transaction record against its
// owner account. A nil owner is an ORPHAN_REFERENCE rejection: the
// transaction is not created.
func (u *Upserter) UpsertTransaction(ctx context.Context, owner *models.Account, rec NormalizedTransaction, existing *models.Transaction) (*models.Transaction, UpsertOutcome, error) {
	if owner == nil {
		return nil, 0, fmt.Errorf("%w: external account %q", ErrOrphanReference, rec.ExternalAccountID)
	}
	now := u.now().UTC()

	if existing == nil {
		id, _ := DeriveTransactionID(owner.ID, rec.ExternalID)
		txn := &models.Transaction{
			ID:                    id,
			AccountID:             owner.ID,
			ExternalTransactionID: rec.ExternalID,
			Amount:                rec.Amount,
			Date:                  rec.Date,
			Category:              rec.Category,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if rec.MerchantName != "" {
			merchant := rec.MerchantName
			txn.MerchantName = &merchant
		}
		if err := u.transactions.Put(ctx, txn); err != nil {
			return nil, 0, fmt.Errorf("insert transaction: %w", err)
		}
		return txn, OutcomeCreated, nil
	}

	txn := *existing
	changed := false
	if rec.Amount != txn.Amount {
		txn.Amount = rec.Amount
		changed = true
	}
	mergeField(&txn.Date, rec.Date, &changed)
	mergeField(&txn.Category, rec.Category, &changed)
	if rec.MerchantName != "" && (txn.MerchantName == nil || *txn.MerchantName != rec.MerchantName) {
		merchant := rec.MerchantName
		txn.MerchantName = &merchant
		changed = true
	}

	txn.UpdatedAt = now
	if err := u.transactions.Put(ctx, &txn); err != nil {
		return nil, 0, fmt.Errorf("update transaction %s: %w", txn.ID, err)
	}
	if changed {
		return &txn, OutcomeUpdated, nil
	}
	return &txn, OutcomeSkipped, nil
}

func mergeField(stored *string, incoming string, changed *bool) {
	if incoming != "" && incoming != *stored {
		*stored = incoming
		*changed = true
	}
}
