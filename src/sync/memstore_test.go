package sync

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ledgersync-server/src/models"
	"ledgersync-server/src/provider"
)

var errProviderDown = errors.New("provider unavailable")

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }

// In-memory implementations of the store and provider boundaries, shared by
// the engine, resolver, upsert, and merger tests.

type memAccounts struct {
	mu          sync.Mutex
	accounts    map[string]models.Account
	putErr      error
	deleteErrID string
	scans       int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]models.Account)}
}

func (m *memAccounts) GetByID(_ context.Context, accountID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[accountID]; ok {
		return &acc, nil
	}
	return nil, ErrNotFound
}

func (m *memAccounts) GetByExternalID(_ context.Context, userID int64, externalID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.sorted() {
		if acc.UserID == userID && acc.ExternalAccountID == externalID {
			return &acc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memAccounts) GetByNumber(_ context.Context, userID int64, number, institution string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.sorted() {
		if acc.UserID == userID && acc.AccountNumber == number && strings.EqualFold(acc.InstitutionName, institution) {
			return &acc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memAccounts) ScanByUser(_ context.Context, userID int64) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	var out []models.Account
	for _, acc := range m.sorted() {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (m *memAccounts) Put(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.accounts[account.ID] = *account
	return nil
}

func (m *memAccounts) Delete(_ context.Context, userID int64, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accountID == m.deleteErrID {
		return errors.New("delete rejected")
	}
	acc, ok := m.accounts[accountID]
	if !ok || acc.UserID != userID {
		return ErrNotFound
	}
	delete(m.accounts, accountID)
	return nil
}

func (m *memAccounts) sorted() []models.Account {
	out := make([]models.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memTransactions struct {
	mu     sync.Mutex
	txns   map[string]models.Transaction
	putErr error
}

func newMemTransactions() *memTransactions {
	return &memTransactions{txns: make(map[string]models.Transaction)}
}

func (m *memTransactions) GetByExternalID(_ context.Context, accountID, externalID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.txns {
		if txn.AccountID == accountID && txn.ExternalTransactionID == externalID {
			return &txn, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memTransactions) Put(_ context.Context, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.txns[txn.ID] = *txn
	return nil
}

func (m *memTransactions) ListByAccount(_ context.Context, accountID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, txn := range m.txns {
		if txn.AccountID == accountID {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTransactions) ReassignAccount(_ context.Context, fromAccountID, toAccountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var moved int64
	for id, txn := range m.txns {
		if txn.AccountID == fromAccountID {
			txn.AccountID = toAccountID
			m.txns[id] = txn
			moved++
		}
	}
	return moved, nil
}

// fakeProvider serves scripted payloads with offset-cursor paging and
// injectable per-account failure counts.
type fakeProvider struct {
	mu           sync.Mutex
	accounts     []provider.RawAccount
	accountsErr  error
	txns         map[string][]provider.RawTransaction // by external account id
	pageSize     int
	failuresLeft map[string]int // FetchTransactions errors before success
	fetchCalls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		txns:         make(map[string][]provider.RawTransaction),
		pageSize:     2,
		failuresLeft: make(map[string]int),
	}
}

func (f *fakeProvider) FetchAccounts(_ context.Context, _ string) ([]provider.RawAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accountsErr != nil {
		return nil, f.accountsErr
	}
	return append([]provider.RawAccount(nil), f.accounts...), nil
}

func (f *fakeProvider) FetchTransactions(_ context.Context, _, externalAccountID, _, _, cursor string) ([]provider.RawTransaction, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if left := f.failuresLeft[externalAccountID]; left > 0 {
		f.failuresLeft[externalAccountID] = left - 1
		return nil, "", errProviderDown
	}

	all := f.txns[externalAccountID]
	offset := 0
	if cursor != "" {
		offset = atoiOrZero(cursor)
	}
	if offset >= len(all) {
		return nil, "", nil
	}
	end := offset + f.pageSize
	if end > len(all) {
		end = len(all)
	}
	next := ""
	if end < len(all) {
		next = itoa(end)
	}
	return append([]provider.RawTransaction(nil), all[offset:end]...), next, nil
}

type memScanCache struct {
	mu   sync.Mutex
	m    map[int64][]models.Account
	hits int
}

func newMemScanCache() *memScanCache {
	return &memScanCache{m: make(map[int64][]models.Account)}
}

func (c *memScanCache) Get(userID int64) ([]models.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	accounts, ok := c.m[userID]
	if ok {
		c.hits++
	}
	return accounts, ok
}

func (c *memScanCache) Set(userID int64, accounts []models.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID] = accounts
}

func (c *memScanCache) Del(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, userID)
}
