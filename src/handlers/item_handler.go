package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plaid/plaid-go/v41/plaid"

	db "ledgersync-server/src/db/sql"
)

func CreateLinkToken(plaidClient *plaid.APIClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		user := plaid.LinkTokenCreateRequestUser{
			ClientUserId: strconv.FormatInt(userID, 10),
		}
		request := plaid.NewLinkTokenCreateRequest(
			"LedgerSync",
			"en",
			[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		)
		request.SetUser(user)
		request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
		resp, _, err := plaidClient.PlaidApi.LinkTokenCreate(context.Background()).LinkTokenCreateRequest(*request).Execute()
		if err != nil {
			http.Error(w, "Failed to create link token", http.StatusInternalServerError)
			log.Printf("ERROR: Plaid link token creation failed for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(resp.GetLinkToken())
	}
}

func ExchangePublicToken(plaidClient *plaid.APIClient, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("ERROR: Failed to decode exchange public token request body: %v", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		exchangeReq := plaid.NewItemPublicTokenExchangeRequest(req.PublicToken)
		exchangeResp, _, err := plaidClient.PlaidApi.ItemPublicTokenExchange(context.Background()).ItemPublicTokenExchangeRequest(
			*exchangeReq,
		).Execute()
		if err != nil {
			http.Error(w, "Failed to exchange public token", http.StatusInternalServerError)
			log.Printf("ERROR: Plaid public token exchange failed for user %d: %v", userID, err)
			return
		}

		accessToken := exchangeResp.GetAccessToken()
		externalItemID := exchangeResp.GetItemId()

		// Institution details are useful for identity resolution but
		// optional; their absence must not fail the link flow.
		institutionID := ""
		institutionName := ""
		itemReq := plaid.NewItemGetRequest(accessToken)
		itemResp, _, err := plaidClient.PlaidApi.ItemGet(context.Background()).ItemGetRequest(*itemReq).Execute()
		if err != nil {
			log.Printf("ERROR: Failed to fetch item details for user %d: %v", userID, err)
		} else {
			if itemResp.GetItem().InstitutionId.IsSet() {
				institutionID = *itemResp.GetItem().InstitutionId.Get()
			}
			if name, ok := itemResp.GetItem().AdditionalProperties["institution_name"].(string); ok {
				institutionName = name
			}
		}

		if err := db.SaveItem(r.Context(), pool, userID, externalItemID, accessToken, institutionID, institutionName); err != nil {
			http.Error(w, "Failed to save item", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to save item for user %d: %v", userID, err)
			return
		}

		log.Printf("INFO: Successfully exchanged public token and saved item for user %d, item %s", userID, externalItemID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"item_id": externalItemID,
		})
	}
}

func GetItems(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		items, err := db.GetItemsByUser(r.Context(), pool, userID)
		if err != nil {
			http.Error(w, "Failed to retrieve items", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get items for user %d: %v", userID, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}

func DeleteItem(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		if err := db.DeleteItem(r.Context(), pool, userID, itemID); err != nil {
			http.Error(w, "Failed to delete item", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to delete item %d for user %d: %v", itemID, userID, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
