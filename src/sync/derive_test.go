package sync

import (
	"strings"
	"testing"
)

func TestDeriveAccountID_Deterministic(t *testing.T) {
	first, stable := DeriveAccountID("Chase", "ext-1")
	if !stable {
		t.Fatal("expected stable derivation")
	}
	second, _ := DeriveAccountID("Chase", "ext-1")
	if first != second {
		t.Errorf("same inputs derived %q and %q", first, second)
	}

	// Institution casing and padding must not fork the identity.
	third, _ := DeriveAccountID("  chase ", "ext-1")
	if first != third {
		t.Errorf("case/space variant derived %q, want %q", third, first)
	}

	other, _ := DeriveAccountID("Chase", "ext-2")
	if first == other {
		t.Error("different external ids derived the same account id")
	}
}

func TestDeriveAccountID_RandomFallback(t *testing.T) {
	a, stable := DeriveAccountID("", "ext-1")
	if stable {
		t.Fatal("derivation without institution must be unstable")
	}
	b, _ := DeriveAccountID("", "ext-1")
	if a == b {
		t.Error("fallback ids must not collide")
	}
	if !strings.HasPrefix(a, "acc_") {
		t.Errorf("id %q missing acc_ prefix", a)
	}
}

func TestDeriveTransactionID(t *testing.T) {
	a, stable := DeriveTransactionID("acc_1", "ext-t-1")
	if !stable {
		t.Fatal("expected stable derivation")
	}
	b, _ := DeriveTransactionID("acc_1", "ext-t-1")
	if a != b {
		t.Errorf("same inputs derived %q and %q", a, b)
	}
	c, _ := DeriveTransactionID("acc_2", "ext-t-1")
	if a == c {
		t.Error("same external id on different accounts must derive distinct ids")
	}

	r1, stable := DeriveTransactionID("acc_1", "")
	r2, _ := DeriveTransactionID("acc_1", "")
	if stable || r1 == r2 {
		t.Error("missing external id must fall back to distinct random ids")
	}
}
