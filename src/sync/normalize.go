package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ledgersync-server/src/provider"
)

// DefaultCategory is the sentinel substituted for a missing or unrecognized
// transaction category. Missing optional data gets a default; missing
// required data gets a rejection.
const DefaultCategory = "Other"

// DateFormat is the canonical calendar-date layout for persisted
// transactions: no time component, no timezone.
const DateFormat = "2006-01-02"

// ErrInvalidDate rejects a transaction whose date cannot be parsed into a
// calendar date. Dates are required data and are never defaulted.
var ErrInvalidDate = errors.New("unparseable transaction date")

var dateLayouts = []string{
	DateFormat,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

var knownCategories = map[string]struct{}{
	"Income":        {},
	"Transfer":      {},
	"Dining":        {},
	"Groceries":     {},
	"Shopping":      {},
	"Transport":     {},
	"Travel":        {},
	"Entertainment": {},
	"Bills":         {},
	"Health":        {},
	"Other":         {},
}

// NormalizedAccount is the canonical shape of an account payload. An empty
// ExternalID does not fail normalization; it flags the record as having an
// unstable identity, which routes the resolver onto its exhaustive-scan
// path.
type NormalizedAccount struct {
	ExternalID       string
	Name             string
	AccountNumber    string
	InstitutionName  string
	Type             string
	UnstableIdentity bool
}

// NormalizedTransaction is the canonical shape of a transaction payload.
// Amount is in the internal convention: expenses negative, income positive.
type NormalizedTransaction struct {
	ExternalID        string
	ExternalAccountID string
	Amount            float64
	Date              string
	Category          string
	MerchantName      string
}

// NormalizeAccount converts a raw account payload into canonical form.
// Pure; never fails.
func NormalizeAccount(raw provider.RawAccount) NormalizedAccount {
	return NormalizedAccount{
		ExternalID:       strings.TrimSpace(raw.ExternalID),
		Name:             strings.TrimSpace(raw.Name),
		AccountNumber:    strings.TrimSpace(raw.Mask),
		InstitutionName:  strings.TrimSpace(raw.InstitutionName),
		Type:             strings.TrimSpace(raw.Type),
		UnstableIdentity: strings.TrimSpace(raw.ExternalID) == "",
	}
}

// NormalizeTransaction converts a raw transaction payload into canonical
// form. The provider reports outflows as positive; internally expenses are
// negative, so the sign is flipped. Pure.
func NormalizeTransaction(raw provider.RawTransaction) (NormalizedTransaction, error) {
	date, err := parseDate(raw.Date)
	if err != nil {
		return NormalizedTransaction{}, err
	}

	category := strings.TrimSpace(raw.Category)
	if _, ok := knownCategories[category]; !ok {
		category = DefaultCategory
	}

	return NormalizedTransaction{
		ExternalID:        strings.TrimSpace(raw.ExternalID),
		ExternalAccountID: strings.TrimSpace(raw.ExternalAccountID),
		Amount:            -raw.Amount,
		Date:              date,
		Category:          category,
		MerchantName:      strings.TrimSpace(raw.MerchantName),
	}, nil
}

func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateFormat), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
