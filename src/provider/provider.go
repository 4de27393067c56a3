package provider

import (
	"context"
	"log"

	"github.com/plaid/plaid-go/v41/plaid"
)

// RawAccount is an account payload as delivered by the provider, before
// normalization. Any field other than ExternalID may be empty; ExternalID
// itself has been observed empty in pathological payloads, which is exactly
// the case the sync engine's unstable-identity handling exists for.
type RawAccount struct {
	ExternalID      string
	Name            string
	Mask            string
	InstitutionName string
	Type            string
}

// RawTransaction is a transaction payload as delivered by the provider.
// Amount uses the provider's sign convention: money leaving the account is
// positive. The normalizer flips it.
type RawTransaction struct {
	ExternalID        string
	ExternalAccountID string
	Amount            float64
	Date              string
	Category          string
	MerchantName      string
}

// Client is the provider boundary the sync engine drives. FetchTransactions
// pages per account: pass the cursor returned by the previous call, start
// with "", and stop when the returned cursor is "".
type Client interface {
	FetchAccounts(ctx context.Context, accessToken string) ([]RawAccount, error)
	FetchTransactions(ctx context.Context, accessToken, externalAccountID, startDate, endDate, cursor string) ([]RawTransaction, string, error)
}

func NewPlaidClient(clientID, secret, env string) *plaid.APIClient {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		log.Fatalf("Invalid Plaid environment: %s", env)
	}

	return plaid.NewAPIClient(configuration)
}
