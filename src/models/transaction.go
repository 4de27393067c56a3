package models

import "time"

// Transaction is one ledger entry belonging to exactly one Account.
// Amount uses the internal sign convention: expenses negative, income
// positive. Date is a canonical calendar date (YYYY-MM-DD), no time
// component. Category is never empty once persisted.
type Transaction struct {
	ID                    string    `json:"id"`
	AccountID             string    `json:"account_id"`
	ExternalTransactionID string    `json:"external_transaction_id"`
	Amount                float64   `json:"amount"`
	Date                  string    `json:"date"`
	Category              string    `json:"category"`
	MerchantName          *string   `json:"merchant_name"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
