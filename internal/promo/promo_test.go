package promo

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestHashCode(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashCode("abc"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDefaultTable_Redeem(t *testing.T) {
	table := DefaultTable()
	if table.Len() != 5 {
		t.Fatalf("expected 5 built-in codes, got %d", table.Len())
	}

	code := HashCode("a1b2c3d4e5f6;YNG;EU;916;9x8y7z6w5v4u")
	amount, err := table.Redeem(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 916 {
		t.Errorf("expected 916, got %v", amount)
	}

	// Case-insensitive and reusable.
	again, err := table.Redeem(strings.ToUpper(code))
	if err != nil || again != 916 {
		t.Errorf("expected reusable uppercase code to redeem 916, got %v (%v)", again, err)
	}
}

func TestRedeem_Invalid(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"too short", "abc123"},
		{"not hex", strings.Repeat("z", 64)},
		{"unknown", HashCode("nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.Redeem(tt.code)
			if !errors.Is(err, ErrInvalidCode) {
				t.Errorf("expected ErrInvalidCode, got %v", err)
			}
		})
	}
}

func TestParseEntries(t *testing.T) {
	digest := HashCode("secret")
	entries, err := ParseEntries(" " + strings.ToUpper(digest) + ":12.5 , ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if !entries[digest].Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected 12.5, got %s", entries[digest])
	}

	if _, err := ParseEntries("nocolon"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode for missing amount, got %v", err)
	}
	if _, err := ParseEntries(digest + ":lots"); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestMerge(t *testing.T) {
	table := DefaultTable()
	digest := HashCode("extra")
	if err := table.Merge(map[string]decimal.Decimal{digest: decimal.NewFromInt(42)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount, _ := table.Redeem(digest); amount != 42 {
		t.Errorf("expected 42, got %v", amount)
	}

	if err := table.Merge(map[string]decimal.Decimal{"short": decimal.NewFromInt(1)}); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode for malformed digest, got %v", err)
	}
	if err := table.Merge(map[string]decimal.Decimal{digest: decimal.Zero}); err == nil {
		t.Error("expected error for zero amount")
	}
}

func TestNewTable(t *testing.T) {
	table, err := NewTable(map[string]decimal.Decimal{HashCode("x"): decimal.NewFromInt(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("expected 1 code, got %d", table.Len())
	}
}
