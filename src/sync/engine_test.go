package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ledgersync-server/src/provider"
)

func testEngine(p provider.Client, accounts *memAccounts, txns *memTransactions, cache ScanCache) *Engine {
	return NewEngine(p, accounts, txns, cache, zerolog.Nop(), Options{
		WorkerLimit:  2,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})
}

func twoAccountFixture() *fakeProvider {
	p := newFakeProvider()
	p.accounts = []provider.RawAccount{
		{ExternalID: "ext-a", Name: "Checking", Mask: "1234", InstitutionName: "Chase", Type: "depository"},
		{ExternalID: "ext-b", Name: "Savings", Mask: "5678", InstitutionName: "Chase", Type: "depository"},
	}
	p.txns["ext-a"] = []provider.RawTransaction{
		{ExternalID: "t-1", ExternalAccountID: "ext-a", Amount: 25, Date: "2024-03-01", Category: "Dining"},
		{ExternalID: "t-2", ExternalAccountID: "ext-a", Amount: 60, Date: "2024-03-02", Category: "Groceries"},
		{ExternalID: "t-3", ExternalAccountID: "ext-a", Amount: -2000, Date: "2024-03-03", Category: "Income"},
	}
	p.txns["ext-b"] = []provider.RawTransaction{
		{ExternalID: "t-4", ExternalAccountID: "ext-b", Amount: 10, Date: "2024-03-04"},
	}
	return p
}

func TestRun_CreatesEverythingOnce(t *testing.T) {
	p := twoAccountFixture()
	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, nil)

	report, err := e.Run(context.Background(), 7, "token", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Accounts.Created != 2 {
		t.Errorf("accounts created = %d, want 2", report.Accounts.Created)
	}
	if report.Transactions.Created != 4 {
		t.Errorf("transactions created = %d, want 4", report.Transactions.Created)
	}
	if len(report.Failures) != 0 {
		t.Errorf("unexpected failures: %+v", report.Failures)
	}
	if len(accounts.accounts) != 2 || len(txns.txns) != 4 {
		t.Errorf("persisted %d accounts / %d transactions, want 2/4", len(accounts.accounts), len(txns.txns))
	}
}

func TestRun_Idempotent(t *testing.T) {
	p := twoAccountFixture()
	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, newMemScanCache())

	if _, err := e.Run(context.Background(), 7, "token", time.Time{}); err != nil {
		t.Fatal(err)
	}
	firstIDs := storedIDs(accounts, txns)

	report, err := e.Run(context.Background(), 7, "token", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Accounts.Created != 0 || report.Transactions.Created != 0 {
		t.Errorf("second run created %d/%d entities, want 0/0", report.Accounts.Created, report.Transactions.Created)
	}
	if len(report.Failures) != 0 {
		t.Errorf("second run failures: %+v", report.Failures)
	}

	secondIDs := storedIDs(accounts, txns)
	if fmt.Sprint(firstIDs) != fmt.Sprint(secondIDs) {
		t.Errorf("ids changed between runs:\n%v\n%v", firstIDs, secondIDs)
	}
}

func TestRun_StableIdentityConvergence(t *testing.T) {
	// Two independent runs with empty state between them must derive the
	// same internal ids for payloads sharing (institution, external id).
	var idSets [][]string
	for i := 0; i < 2; i++ {
		p := twoAccountFixture()
		accounts, txns := newMemAccounts(), newMemTransactions()
		e := testEngine(p, accounts, txns, nil)
		if _, err := e.Run(context.Background(), 7, "token", time.Time{}); err != nil {
			t.Fatal(err)
		}
		idSets = append(idSets, storedIDs(accounts, txns))
	}
	if fmt.Sprint(idSets[0]) != fmt.Sprint(idSets[1]) {
		t.Errorf("independent runs diverged:\n%v\n%v", idSets[0], idSets[1])
	}
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	p := newFakeProvider()
	p.pageSize = 4
	p.accounts = []provider.RawAccount{{ExternalID: "ext-a", Mask: "1234", InstitutionName: "Chase"}}
	for i := 1; i <= 10; i++ {
		date := fmt.Sprintf("2024-03-%02d", i)
		if i == 5 {
			date = "not-a-date"
		}
		p.txns["ext-a"] = append(p.txns["ext-a"], provider.RawTransaction{
			ExternalID:        fmt.Sprintf("t-%d", i),
			ExternalAccountID: "ext-a",
			Amount:            float64(i),
			Date:              date,
		})
	}

	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, nil)

	report, err := e.Run(context.Background(), 7, "token", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Transactions.Created != 9 {
		t.Errorf("created = %d, want 9", report.Transactions.Created)
	}
	if report.Transactions.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Transactions.Failed)
	}
	if len(txns.txns) != 9 {
		t.Errorf("persisted %d transactions, want 9", len(txns.txns))
	}
	if len(report.Failures) != 1 || report.Failures[0].Reason != ReasonInvalidDate || report.Failures[0].ExternalID != "t-5" {
		t.Errorf("failures = %+v, want one INVALID_DATE for t-5", report.Failures)
	}
}

func TestRun_ProviderFlakeRetried(t *testing.T) {
	p := twoAccountFixture()
	p.failuresLeft["ext-a"] = 2 // two failures, third attempt succeeds

	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, nil)

	report, err := e.Run(context.Background(), 7, "token", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Errorf("failures after successful retry: %+v", report.Failures)
	}
	if report.Transactions.Created != 4 {
		t.Errorf("created = %d, want 4", report.Transactions.Created)
	}
}

func TestRun_RetryExhaustionAbandonsOneAccount(t *testing.T) {
	p := twoAccountFixture()
	p.failuresLeft["ext-a"] = 10 // beyond the retry budget

	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, nil)

	report, err := e.Run(context.Background(), 7, "token", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	// Both accounts still upserted; only ext-a's transactions abandoned.
	if report.Accounts.Created != 2 {
		t.Errorf("accounts created = %d, want 2", report.Accounts.Created)
	}
	if report.Transactions.Created != 1 {
		t.Errorf("transactions created = %d, want 1 (ext-b only)", report.Transactions.Created)
	}
	if len(report.Failures) != 1 || report.Failures[0].Reason != ReasonProviderError {
		t.Errorf("failures = %+v, want one PROVIDER_ERROR", report.Failures)
	}
}

func TestRun_OrphanReferenceRecorded(t *testing.T) {
	p := newFakeProvider()
	p.accounts = []provider.RawAccount{{ExternalID: "ext-a", Mask: "1234", InstitutionName: "Chase"}}
	p.txns["ext-a"] = []provider.RawTransaction{
		{ExternalID: "t-1", ExternalAccountID: "ext-missing", Amount: 5, Date: "2024-03-01"},
	}

	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, nil)

	report, err := e.Run(context.Background(), 7, "token", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 1 || report.Failures[0].Reason != ReasonOrphanReference {
		t.Errorf("failures = %+v, want one ORPHAN_REFERENCE", report.Failures)
	}
	if len(txns.txns) != 0 {
		t.Error("orphan transaction must not be persisted")
	}
}

func TestRun_MissingContextIsFatal(t *testing.T) {
	e := testEngine(newFakeProvider(), newMemAccounts(), newMemTransactions(), nil)

	if _, err := e.Run(context.Background(), 0, "token", time.Time{}); !errors.Is(err, ErrMissingContext) {
		t.Errorf("missing user: err = %v, want ErrMissingContext", err)
	}
	if _, err := e.Run(context.Background(), 7, "", time.Time{}); !errors.Is(err, ErrMissingContext) {
		t.Errorf("missing token: err = %v, want ErrMissingContext", err)
	}
}

func TestRun_AccountsUnfetchableAbortsRun(t *testing.T) {
	p := newFakeProvider()
	p.accountsErr = errProviderDown

	accounts, txns := newMemAccounts(), newMemTransactions()
	e := testEngine(p, accounts, txns, nil)

	if _, err := e.Run(context.Background(), 7, "token", time.Time{}); !errors.Is(err, errProviderDown) {
		t.Fatalf("err = %v, want provider error", err)
	}
	if len(accounts.accounts) != 0 {
		t.Error("aborted run must persist nothing")
	}
}

func storedIDs(accounts *memAccounts, txns *memTransactions) []string {
	var ids []string
	for id := range accounts.accounts {
		ids = append(ids, id)
	}
	for id := range txns.txns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
