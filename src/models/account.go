package models

import "time"

// Account is one financial account at one institution, owned by exactly one
// user. ID is assigned internally and never changes once set, even when the
// provider's identifiers for the same real-world account drift between syncs.
type Account struct {
	ID                string    `json:"id"`
	UserID            int64     `json:"user_id"`
	ExternalAccountID string    `json:"external_account_id"`
	Name              string    `json:"name"`
	AccountNumber     string    `json:"account_number"` // masked by the provider, e.g. "1234" or "****1234"
	InstitutionName   string    `json:"institution_name"`
	Type              string    `json:"type"`
	Active            *bool     `json:"active"`
	IdentityUnstable  bool      `json:"identity_unstable"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsActive treats an unset flag as active. A missing flag must never hide an
// account from its owner.
func (a *Account) IsActive() bool {
	return a.Active == nil || *a.Active
}
