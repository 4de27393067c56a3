package sync

import (
	"errors"
	"testing"

	"ledgersync-server/src/provider"
)

func TestNormalizeTransaction_Dates(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		want    string
		wantErr bool
	}{
		{name: "canonical", date: "2024-03-09", want: "2024-03-09"},
		{name: "rfc3339", date: "2024-03-09T14:30:00Z", want: "2024-03-09"},
		{name: "us slash", date: "03/09/2024", want: "2024-03-09"},
		{name: "empty", date: "", wantErr: true},
		{name: "garbage", date: "next tuesday", wantErr: true},
		{name: "month out of range", date: "2024-13-09", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NormalizeTransaction(provider.RawTransaction{
				ExternalID: "txn-1",
				Amount:     10,
				Date:       tt.date,
			})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDate) {
					t.Fatalf("want ErrInvalidDate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeTransaction failed: %v", err)
			}
			if rec.Date != tt.want {
				t.Errorf("date = %q, want %q", rec.Date, tt.want)
			}
		})
	}
}

func TestNormalizeTransaction_CategoryDefault(t *testing.T) {
	tests := []struct {
		name     string
		category string
		want     string
	}{
		{name: "missing", category: "", want: "Other"},
		{name: "unrecognized", category: "FOOD_AND_DRINK", want: "Other"},
		{name: "known kept", category: "Dining", want: "Dining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NormalizeTransaction(provider.RawTransaction{
				ExternalID: "txn-1",
				Date:       "2024-01-01",
				Category:   tt.category,
			})
			if err != nil {
				t.Fatalf("NormalizeTransaction failed: %v", err)
			}
			if rec.Category != tt.want {
				t.Errorf("category = %q, want %q", rec.Category, tt.want)
			}
		})
	}
}

func TestNormalizeTransaction_SignConvention(t *testing.T) {
	// Provider reports outflows positive; internally expenses are negative.
	expense, err := NormalizeTransaction(provider.RawTransaction{ExternalID: "a", Date: "2024-01-01", Amount: 42.50})
	if err != nil {
		t.Fatal(err)
	}
	if expense.Amount != -42.50 {
		t.Errorf("expense amount = %v, want -42.50", expense.Amount)
	}

	income, err := NormalizeTransaction(provider.RawTransaction{ExternalID: "b", Date: "2024-01-01", Amount: -1500})
	if err != nil {
		t.Fatal(err)
	}
	if income.Amount != 1500 {
		t.Errorf("income amount = %v, want 1500", income.Amount)
	}
}

func TestNormalizeAccount_UnstableIdentity(t *testing.T) {
	stable := NormalizeAccount(provider.RawAccount{ExternalID: "ext-1", InstitutionName: "Chase"})
	if stable.UnstableIdentity {
		t.Error("account with external id flagged unstable")
	}

	unstable := NormalizeAccount(provider.RawAccount{ExternalID: "  ", Mask: "1234"})
	if !unstable.UnstableIdentity {
		t.Error("account without external id not flagged unstable")
	}
	if unstable.ExternalID != "" {
		t.Errorf("external id = %q, want empty", unstable.ExternalID)
	}
}
