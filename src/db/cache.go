package db

import (
	"strconv"

	"github.com/dgraph-io/ristretto"

	"ledgersync-server/src/models"
)

// AccountScanCache memoizes per-user account snapshots so the resolver's
// fuzzy fallback does not rescan the Accounts table for every record in a
// run. Any write through the account store invalidates the owner's entry;
// a ristretto eviction just means the next scan hits the database.
type AccountScanCache struct {
	cache *ristretto.Cache
}

func NewAccountScanCache() (*AccountScanCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, err
	}
	return &AccountScanCache{cache: cache}, nil
}

func (c *AccountScanCache) Get(userID int64) ([]models.Account, bool) {
	value, ok := c.cache.Get(scanKey(userID))
	if !ok {
		return nil, false
	}
	accounts, ok := value.([]models.Account)
	return accounts, ok
}

func (c *AccountScanCache) Set(userID int64, accounts []models.Account) {
	c.cache.Set(scanKey(userID), accounts, int64(len(accounts))+1)
}

func (c *AccountScanCache) Del(userID int64) {
	c.cache.Del(scanKey(userID))
}

// Clear drops every cached snapshot; exposed for the admin cache endpoint.
func (c *AccountScanCache) Clear() {
	c.cache.Clear()
}

func scanKey(userID int64) string {
	return "accounts:" + strconv.FormatInt(userID, 10)
}
