package provider

import (
	"context"
	"strconv"
	"sync"

	"github.com/plaid/plaid-go/v41/plaid"
)

// PlaidClient adapts the Plaid API to the Client interface. Transaction
// paging uses Plaid's offset-based TransactionsGet, with the offset carried
// in the opaque cursor string.
type PlaidClient struct {
	api      *plaid.APIClient
	pageSize int32

	mu        sync.Mutex
	instNames map[string]string // access token -> institution name, filled lazily
}

func NewClient(api *plaid.APIClient, pageSize int) *PlaidClient {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PlaidClient{
		api:       api,
		pageSize:  int32(pageSize),
		instNames: make(map[string]string),
	}
}

func (c *PlaidClient) FetchAccounts(ctx context.Context, accessToken string) ([]RawAccount, error) {
	request := plaid.NewAccountsGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, err
	}

	institution := c.institutionName(ctx, accessToken)

	var accounts []RawAccount
	for _, acc := range resp.GetAccounts() {
		accounts = append(accounts, RawAccount{
			ExternalID:      acc.GetAccountId(),
			Name:            acc.GetName(),
			Mask:            acc.GetMask(),
			InstitutionName: institution,
			Type:            string(acc.GetType()),
		})
	}
	return accounts, nil
}

func (c *PlaidClient) FetchTransactions(ctx context.Context, accessToken, externalAccountID, startDate, endDate, cursor string) ([]RawTransaction, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", err
		}
		offset = n
	}

	request := plaid.NewTransactionsGetRequest(accessToken, startDate, endDate)
	options := plaid.NewTransactionsGetRequestOptions()
	options.SetAccountIds([]string{externalAccountID})
	options.SetCount(c.pageSize)
	options.SetOffset(int32(offset))
	request.SetOptions(*options)

	resp, _, err := c.api.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, "", err
	}

	var page []RawTransaction
	for _, txn := range resp.GetTransactions() {
		page = append(page, rawTransaction(txn))
	}

	next := ""
	if fetched := offset + len(page); len(page) > 0 && fetched < int(resp.GetTotalTransactions()) {
		next = strconv.Itoa(fetched)
	}
	return page, next, nil
}

// rawTransaction maps one Plaid transaction payload onto the provider
// boundary type. The personal finance category is nullable; an unset one
// maps to an empty category for the normalizer to default.
func rawTransaction(txn plaid.Transaction) RawTransaction {
	pfc := txn.GetPersonalFinanceCategory()
	return RawTransaction{
		ExternalID:        txn.GetTransactionId(),
		ExternalAccountID: txn.GetAccountId(),
		Amount:            txn.GetAmount(),
		Date:              txn.GetDate(),
		Category:          pfc.GetPrimary(),
		MerchantName:      txn.GetMerchantName(),
	}
}

// institutionName resolves the institution behind an access token via
// ItemGet. Plaid only exposes the display name through the item's
// additional properties, so a missing name degrades to "" rather than
// failing the fetch.
func (c *PlaidClient) institutionName(ctx context.Context, accessToken string) string {
	c.mu.Lock()
	if name, ok := c.instNames[accessToken]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	itemReq := plaid.NewItemGetRequest(accessToken)
	itemResp, _, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*itemReq).Execute()
	if err != nil {
		return ""
	}

	name := ""
	if v, ok := itemResp.GetItem().AdditionalProperties["institution_name"].(string); ok {
		name = v
	}
	c.mu.Lock()
	c.instNames[accessToken] = name
	c.mu.Unlock()
	return name
}
