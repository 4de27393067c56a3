package provider

import (
	"testing"

	"github.com/plaid/plaid-go/v41/plaid"
)

func TestRawTransactionMapping(t *testing.T) {
	var txn plaid.Transaction
	txn.SetTransactionId("t-1")
	txn.SetAccountId("ext-a")
	txn.SetAmount(12.5)
	txn.SetDate("2024-01-01")
	txn.SetMerchantName("Cafe")
	txn.SetPersonalFinanceCategory(plaid.PersonalFinanceCategory{Primary: "FOOD_AND_DRINK"})

	raw := rawTransaction(txn)
	if raw.ExternalID != "t-1" || raw.ExternalAccountID != "ext-a" {
		t.Errorf("ids = %q/%q, want t-1/ext-a", raw.ExternalID, raw.ExternalAccountID)
	}
	if raw.Amount != 12.5 {
		t.Errorf("amount = %v, want provider-convention 12.5", raw.Amount)
	}
	if raw.Date != "2024-01-01" {
		t.Errorf("date = %q", raw.Date)
	}
	if raw.Category != "FOOD_AND_DRINK" {
		t.Errorf("category = %q, want FOOD_AND_DRINK", raw.Category)
	}
	if raw.MerchantName != "Cafe" {
		t.Errorf("merchant = %q, want Cafe", raw.MerchantName)
	}
}

func TestRawTransactionMapping_UnsetCategory(t *testing.T) {
	var txn plaid.Transaction
	txn.SetTransactionId("t-2")

	raw := rawTransaction(txn)
	if raw.Category != "" {
		t.Errorf("category = %q, want empty for an unset payload", raw.Category)
	}
}
