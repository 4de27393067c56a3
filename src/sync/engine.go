package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ledgersync-server/src/models"
	"ledgersync-server/src/provider"
)

// Failure reason codes recorded in the run report.
const (
	ReasonInvalidDate     = "INVALID_DATE"
	ReasonOrphanReference = "ORPHAN_REFERENCE"
	ReasonStorageError    = "STORAGE_ERROR"
	ReasonProviderError   = "PROVIDER_ERROR"
)

// ErrMissingContext is fatal to a run: the owning user or the provider
// token is absent entirely, so there is nothing meaningful to sync.
var ErrMissingContext = errors.New("missing sync context")

// Options tunes a sync run. Zero values fall back to defaults.
type Options struct {
	WorkerLimit  int           // concurrent accounts per run (default 4)
	MaxRetries   int           // attempts per provider call (default 3)
	RetryBackoff time.Duration // base backoff, doubled per attempt (default 500ms)
	LookbackDays int           // transaction window when no checkpoint exists (default 730)
}

func (o Options) withDefaults() Options {
	if o.WorkerLimit <= 0 {
		o.WorkerLimit = 4
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = 730
	}
	return o
}

// Engine drives a sync run: provider pages in, normalized records through
// the resolver and upserter, a report out. One bad record never aborts the
// batch; one dead provider call only abandons the affected account's
// remaining pages.
type Engine struct {
	provider     provider.Client
	accounts     AccountStore
	transactions TransactionStore
	resolver     *Resolver
	upserter     *Upserter
	cache        ScanCache
	log          zerolog.Logger
	opts         Options
}

func NewEngine(p provider.Client, accounts AccountStore, transactions TransactionStore, cache ScanCache, log zerolog.Logger, opts Options) *Engine {
	return &Engine{
		provider:     p,
		accounts:     accounts,
		transactions: transactions,
		resolver:     NewResolver(accounts, transactions, cache),
		upserter:     NewUpserter(accounts, transactions),
		cache:        cache,
		log:          log,
		opts:         opts.withDefaults(),
	}
}

// Run executes one sync for one user's provider item. since bounds the
// transaction window; pass the zero time to use the default lookback.
// Run returns an error only for structural failures (missing context,
// accounts unfetchable after retries); everything else lands in the report.
func (e *Engine) Run(ctx context.Context, userID int64, accessToken string, since time.Time) (*models.SyncReport, error) {
	if userID == 0 || accessToken == "" {
		return nil, ErrMissingContext
	}

	rep := newReporter(userID)
	start := time.Now()
	e.log.Info().Int64("user_id", userID).Msg("sync run started")

	// Stale snapshots from a previous run must not feed this run's fuzzy
	// resolution.
	if e.cache != nil {
		e.cache.Del(userID)
	}

	var rawAccounts []provider.RawAccount
	err := withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func() error {
		var ferr error
		rawAccounts, ferr = e.provider.FetchAccounts(ctx, accessToken)
		return ferr
	})
	if err != nil {
		e.log.Error().Int64("user_id", userID).Err(err).Msg("sync run aborted: accounts unfetchable")
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}

	// Accounts are upserted sequentially: the resolver's pre-insert
	// re-check is only worth anything if this run is not racing itself.
	synced := e.syncAccounts(ctx, userID, rawAccounts, rep)

	startDate, endDate := e.dateRange(since)
	g := new(errgroup.Group)
	g.SetLimit(e.opts.WorkerLimit)
	for _, acc := range synced {
		acc := acc
		g.Go(func() error {
			e.syncAccountTransactions(ctx, accessToken, acc, startDate, endDate, rep)
			return nil
		})
	}
	g.Wait()

	report := rep.snapshot()
	e.log.Info().
		Int64("user_id", userID).
		Dur("elapsed", time.Since(start)).
		Int("accounts_created", report.Accounts.Created).
		Int("accounts_updated", report.Accounts.Updated).
		Int("transactions_created", report.Transactions.Created).
		Int("transactions_updated", report.Transactions.Updated).
		Int("failures", len(report.Failures)).
		Msg("sync run completed")
	return report, nil
}

func (e *Engine) syncAccounts(ctx context.Context, userID int64, rawAccounts []provider.RawAccount, rep *reporter) []*models.Account {
	var synced []*models.Account
	for _, raw := range rawAccounts {
		rec := NormalizeAccount(raw)

		existing, err := e.resolver.ResolveAccount(ctx, userID, rec)
		if err != nil {
			rep.fail("account", rec.ExternalID, ReasonStorageError, err)
			continue
		}
		if existing == nil {
			// Final re-check against fresh state before inserting;
			// narrows the concurrent-creator race window.
			existing, err = e.resolver.RecheckBeforeInsert(ctx, userID, rec)
			if err != nil {
				rep.fail("account", rec.ExternalID, ReasonStorageError, err)
				continue
			}
		}

		acc, outcome, err := e.upserter.UpsertAccount(ctx, userID, rec, existing)
		if err != nil {
			rep.fail("account", rec.ExternalID, ReasonStorageError, err)
			continue
		}
		rep.account(outcome)
		if acc.ExternalAccountID != "" {
			synced = append(synced, acc)
		}
	}
	return synced
}

func (e *Engine) syncAccountTransactions(ctx context.Context, accessToken string, owner *models.Account, startDate, endDate string, rep *reporter) {
	cursor := ""
	for {
		var page []provider.RawTransaction
		var next string
		err := withRetry(ctx, e.opts.MaxRetries, e.opts.RetryBackoff, func() error {
			var ferr error
			page, next, ferr = e.provider.FetchTransactions(ctx, accessToken, owner.ExternalAccountID, startDate, endDate, cursor)
			return ferr
		})
		if err != nil {
			// Retries exhausted: abandon this account's remaining pages;
			// other accounts in the run are unaffected.
			rep.fail("transaction", owner.ExternalAccountID, ReasonProviderError, err)
			e.log.Warn().
				Str("account_id", owner.ID).
				Str("cursor", cursor).
				Err(err).
				Msg("transaction page fetch exhausted retries")
			return
		}

		for _, raw := range page {
			e.syncTransaction(ctx, owner, raw, rep)
		}

		if next == "" {
			return
		}
		cursor = next
	}
}

func (e *Engine) syncTransaction(ctx context.Context, owner *models.Account, raw provider.RawTransaction, rep *reporter) {
	rec, err := NormalizeTransaction(raw)
	if err != nil {
		rep.fail("transaction", raw.ExternalID, ReasonInvalidDate, err)
		return
	}

	// Pages are filtered per account, but the payload's owner reference is
	// still authoritative. A mismatch that resolves nowhere is an orphan.
	target := owner
	if rec.ExternalAccountID != "" && rec.ExternalAccountID != owner.ExternalAccountID {
		target, err = e.accounts.GetByExternalID(ctx, owner.UserID, rec.ExternalAccountID)
		if errors.Is(err, ErrNotFound) {
			target = nil
		} else if err != nil {
			rep.fail("transaction", rec.ExternalID, ReasonStorageError, err)
			return
		}
	}

	var existing *models.Transaction
	if target != nil {
		existing, err = e.resolver.ResolveTransaction(ctx, target.ID, rec.ExternalID)
		if err != nil {
			rep.fail("transaction", rec.ExternalID, ReasonStorageError, err)
			return
		}
	}

	_, outcome, err := e.upserter.UpsertTransaction(ctx, target, rec, existing)
	if err != nil {
		if errors.Is(err, ErrOrphanReference) {
			rep.fail("transaction", rec.ExternalID, ReasonOrphanReference, err)
		} else {
			rep.fail("transaction", rec.ExternalID, ReasonStorageError, err)
		}
		return
	}
	rep.transaction(outcome)
}

func (e *Engine) dateRange(since time.Time) (string, string) {
	now := time.Now().UTC()
	if since.IsZero() {
		since = now.AddDate(0, 0, -e.opts.LookbackDays)
	}
	return since.Format(DateFormat), now.Format(DateFormat)
}

// reporter aggregates per-item outcomes; safe for the concurrent
// per-account transaction workers.
type reporter struct {
	mu     sync.Mutex
	report models.SyncReport
}

func newReporter(userID int64) *reporter {
	return &reporter{report: models.SyncReport{UserID: userID}}
}

func (r *reporter) account(outcome UpsertOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bump(&r.report.Accounts, outcome)
}

func (r *reporter) transaction(outcome UpsertOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bump(&r.report.Transactions, outcome)
}

func (r *reporter) fail(kind, externalID, reason string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case "account":
		r.report.Accounts.Failed++
	case "transaction":
		r.report.Transactions.Failed++
	}
	failure := models.ItemFailure{Kind: kind, ExternalID: externalID, Reason: reason}
	if err != nil {
		failure.Detail = err.Error()
	}
	r.report.Failures = append(r.report.Failures, failure)
}

func (r *reporter) snapshot() *models.SyncReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := r.report
	report.Failures = append([]models.ItemFailure(nil), r.report.Failures...)
	return &report
}

func bump(counts *models.EntityCounts, outcome UpsertOutcome) {
	switch outcome {
	case OutcomeCreated:
		counts.Created++
	case OutcomeUpdated:
		counts.Updated++
	case OutcomeSkipped:
		counts.Skipped++
	}
}
