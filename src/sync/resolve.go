package sync

import (
	"context"
	"errors"
	"strings"

	"ledgersync-server/src/models"
)

// Resolver maps normalized records onto existing internal entities. A nil
// entity with a nil error is the NotFound verdict.
//
// Accounts resolve through three tiers: external-id point lookup, then
// (number, institution) point lookup, then a fuzzy scan over all of the
// user's accounts. The scan runs only when one side of the comparison has
// an unstable identity, because that is the one situation where the point
// lookups can miss an account that really exists.
type Resolver struct {
	accounts     AccountStore
	transactions TransactionStore
	cache        ScanCache // optional; nil means every scan hits the store
}

func NewResolver(accounts AccountStore, transactions TransactionStore, cache ScanCache) *Resolver {
	return &Resolver{accounts: accounts, transactions: transactions, cache: cache}
}

// ResolveAccount runs the tiered lookup for one normalized account record.
func (r *Resolver) ResolveAccount(ctx context.Context, userID int64, rec NormalizedAccount) (*models.Account, error) {
	if rec.ExternalID != "" {
		acc, err := r.accounts.GetByExternalID(ctx, userID, rec.ExternalID)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if rec.AccountNumber != "" && rec.InstitutionName != "" {
		acc, err := r.accounts.GetByNumber(ctx, userID, rec.AccountNumber, rec.InstitutionName)
		if err == nil {
			return acc, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return r.fuzzyScan(ctx, userID, rec, false)
}

// RecheckBeforeInsert repeats the fuzzy scan against fresh store state
// immediately before a new account is inserted. It narrows, not closes, the
// window in which a concurrent run for the same user creates the entity
// between resolution and insert.
func (r *Resolver) RecheckBeforeInsert(ctx context.Context, userID int64, rec NormalizedAccount) (*models.Account, error) {
	return r.fuzzyScan(ctx, userID, rec, true)
}

// ResolveTransaction is the transaction lookup: (account, external id)
// only. Transactions do not get the fuzzy tier; an unresolvable one is
// simply created.
func (r *Resolver) ResolveTransaction(ctx context.Context, accountID, externalTransactionID string) (*models.Transaction, error) {
	if externalTransactionID == "" {
		return nil, nil
	}
	txn, err := r.transactions.GetByExternalID(ctx, accountID, externalTransactionID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *Resolver) fuzzyScan(ctx context.Context, userID int64, rec NormalizedAccount, fresh bool) (*models.Account, error) {
	snapshot, err := r.snapshot(ctx, userID, fresh)
	if err != nil {
		return nil, err
	}

	for i := range snapshot {
		stored := &snapshot[i]
		// A stable incoming record only matches stored accounts still
		// pending identity backfill; matching it against stable ones
		// would second-guess the point lookups that already missed.
		if !rec.UnstableIdentity && !stored.IdentityUnstable {
			if fresh && rec.ExternalID != "" && stored.ExternalAccountID == rec.ExternalID {
				return stored, nil
			}
			continue
		}
		if fuzzyAccountMatch(stored, rec) {
			return stored, nil
		}
	}
	return nil, nil
}

func (r *Resolver) snapshot(ctx context.Context, userID int64, fresh bool) ([]models.Account, error) {
	if !fresh && r.cache != nil {
		if accounts, ok := r.cache.Get(userID); ok {
			return accounts, nil
		}
	}
	accounts, err := r.accounts.ScanByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(userID, accounts)
	}
	return accounts, nil
}

func fuzzyAccountMatch(stored *models.Account, rec NormalizedAccount) bool {
	sameInstitution := stored.InstitutionName != "" && rec.InstitutionName != "" &&
		strings.EqualFold(stored.InstitutionName, rec.InstitutionName)
	storedLast4 := lastFour(stored.AccountNumber)
	recLast4 := lastFour(rec.AccountNumber)

	if sameInstitution && storedLast4 != "" && storedLast4 == recLast4 {
		return true
	}
	// Same masked number alone is enough when institution data is missing
	// on either side; that is exactly the unstable-identity case.
	return stored.AccountNumber != "" && stored.AccountNumber == rec.AccountNumber
}

// lastFour extracts the trailing four digits of a possibly masked account
// number ("****1234" and "1234" compare equal).
func lastFour(number string) string {
	var digits []rune
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
