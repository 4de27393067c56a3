package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	db "ledgersync-server/src/db/sql"
	"ledgersync-server/src/models"
)

// accountView is the listing shape: the nullable active flag collapses to a
// plain bool, with absence reading as true so a missing flag never hides an
// account.
type accountView struct {
	ID                string `json:"id"`
	ExternalAccountID string `json:"external_account_id"`
	Name              string `json:"name"`
	AccountNumber     string `json:"account_number"`
	InstitutionName   string `json:"institution_name"`
	Type              string `json:"type"`
	Active            bool   `json:"active"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func toAccountView(a *models.Account) accountView {
	return accountView{
		ID:                a.ID,
		ExternalAccountID: a.ExternalAccountID,
		Name:              a.Name,
		AccountNumber:     a.AccountNumber,
		InstitutionName:   a.InstitutionName,
		Type:              a.Type,
		Active:            a.IsActive(),
		CreatedAt:         a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:         a.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func GetAccounts(accounts *db.AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)

		list, err := accounts.ScanByUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to retrieve accounts", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get accounts for user %d: %v", userID, err)
			return
		}

		views := make([]accountView, 0, len(list))
		for i := range list {
			views = append(views, toAccountView(&list[i]))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(views)
	}
}

func GetTransactions(accounts *db.AccountStore, transactions *db.TransactionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value("user_id").(int64)
		accountID := chi.URLParam(r, "account_id")

		account, err := accounts.GetByID(r.Context(), accountID)
		if err != nil || account.UserID != userID {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}

		list, err := transactions.ListByAccount(r.Context(), accountID)
		if err != nil {
			http.Error(w, "Failed to retrieve transactions", http.StatusInternalServerError)
			log.Printf("ERROR: Failed to get transactions for user %d, account %s: %v", userID, accountID, err)
			return
		}
		if list == nil {
			list = []models.Transaction{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(list)
	}
}
