// Package promo handles promotional cash codes. A code is the SHA-256 hex
// digest of a secret payload; the table maps digests to the cash they credit.
package promo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidCode = errors.New("promo: invalid code")

// codeRegex matches a lowercase SHA-256 hex digest.
var codeRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// builtinSecrets are the payloads behind the default codes. Format:
// {nonce};{token};{region};{amount};{nonce}
var builtinSecrets = []struct {
	payload string
	amount  int64
}{
	{"a1b2c3d4e5f6;YNG;EU;916;9x8y7z6w5v4u", 916},
	{"f1e2d3c4b5a6;YNG;EU;500;u4v5w6x7y8z9", 500},
	{"9z8y7x6w5v4u;YNG;EU;250;a1b2c3d4e5f6", 250},
	{"m1n2o3p4q5r6;YNG;EU;100;s7t8u9v0w1x2", 100},
	{"x2w1v0u9t8s7;YNG;EU;1000;r6q5p4o3n2m1", 1000},
}

// Table maps code digests to cash amounts. It is read-only after
// construction and safe for concurrent use.
type Table struct {
	amounts map[string]decimal.Decimal
}

// NewTable builds a table from digest → amount entries. Digests are
// normalized to lowercase; malformed digests or non-positive amounts are
// rejected.
func NewTable(entries map[string]decimal.Decimal) (*Table, error) {
	t := &Table{amounts: make(map[string]decimal.Decimal, len(entries))}
	for digest, amount := range entries {
		if err := t.add(digest, amount); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DefaultTable returns the built-in codes.
func DefaultTable() *Table {
	t := &Table{amounts: make(map[string]decimal.Decimal, len(builtinSecrets))}
	for _, s := range builtinSecrets {
		t.amounts[HashCode(s.payload)] = decimal.NewFromInt(s.amount)
	}
	return t
}

// HashCode returns the code that redeems for secret.
func HashCode(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ParseEntries parses "digest:amount,digest:amount" into table entries.
// Blank items are skipped.
func ParseEntries(s string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		digest, amountStr, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q (expected digest:amount)", ErrInvalidCode, item)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(amountStr))
		if err != nil {
			return nil, fmt.Errorf("promo: entry %q: %w", item, err)
		}
		out[strings.ToLower(strings.TrimSpace(digest))] = amount
	}
	return out, nil
}

// Merge adds entries to the table, overriding existing digests.
func (t *Table) Merge(entries map[string]decimal.Decimal) error {
	for digest, amount := range entries {
		if err := t.add(digest, amount); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) add(digest string, amount decimal.Decimal) error {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if !codeRegex.MatchString(digest) {
		return fmt.Errorf("%w: %q is not a SHA-256 hex digest", ErrInvalidCode, digest)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("promo: amount for %s must be positive, got %s", digest, amount)
	}
	t.amounts[digest] = amount
	return nil
}

// Len returns the number of codes.
func (t *Table) Len() int { return len(t.amounts) }

// Redeem returns the cash amount for code. Codes are case-insensitive and
// may be redeemed any number of times.
func (t *Table) Redeem(code string) (float64, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if !codeRegex.MatchString(code) {
		return 0, fmt.Errorf("%w: malformed code", ErrInvalidCode)
	}
	amount, ok := t.amounts[code]
	if !ok {
		return 0, fmt.Errorf("%w: unknown code", ErrInvalidCode)
	}
	return amount.InexactFloat64(), nil
}
