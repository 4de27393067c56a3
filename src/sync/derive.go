package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// DeriveAccountID computes the internal id for a new account. When both
// stable business attributes are present the id is a deterministic digest,
// so two concurrent runs that observe the same real account converge on the
// same id with no coordination. Otherwise the id is random and the caller
// must mark the record unstable-identity; the id itself never changes once
// assigned, only the external identity gets backfilled later.
func DeriveAccountID(institutionName, externalAccountID string) (id string, stable bool) {
	institutionName = strings.ToLower(strings.TrimSpace(institutionName))
	externalAccountID = strings.TrimSpace(externalAccountID)
	if institutionName == "" || externalAccountID == "" {
		return "acc_" + uuid.NewString(), false
	}
	return "acc_" + digest(institutionName+"|"+externalAccountID), true
}

// DeriveTransactionID computes the internal id for a new transaction,
// deterministic on (owning account, external id) when the provider supplied
// one.
func DeriveTransactionID(accountID, externalTransactionID string) (id string, stable bool) {
	externalTransactionID = strings.TrimSpace(externalTransactionID)
	if externalTransactionID == "" {
		return "txn_" + uuid.NewString(), false
	}
	return "txn_" + digest(accountID+"|"+externalTransactionID), true
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:12])
}
