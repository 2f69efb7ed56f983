// Package normalizer turns raw statement rows into canonical transactions.
package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/eshaffer321/expense-matcher/internal/domain/expense"
	"github.com/shopspring/decimal"
)

// ErrMalformed marks a row that cannot be imported. Malformed rows are
// counted and skipped; they never abort an import.
var ErrMalformed = errors.New("malformed row")

// plainAmount is an unsigned amount with optional thousands grouping.
var plainAmount = regexp.MustCompile(`^(\d{1,3}(,\d{3})+|\d+)?(\.\d*)?$`)

// Row is one raw statement line, all fields as text.
type Row struct {
	Date         string
	Description  string
	Category     string
	Amount       string
	IssuerID     string
	CardLastFour string
	SalesTax     string
	ExternalID   string
}

// dateLayouts are tried in order. Two-digit years come after four-digit ones
// so "01/02/2024" never parses as year 20.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
	"2006/01/02",
}

// Normalize parses r into a Transaction. The returned error wraps ErrMalformed.
func Normalize(r Row) (*expense.Transaction, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, err
	}

	description := CanonicalDescription(r.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: empty description", ErrMalformed)
	}

	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return nil, err
	}

	tx := &expense.Transaction{
		Date:                  date,
		Description:           description,
		Amount:                amount,
		Category:              strings.TrimSpace(r.Category),
		CardLastFour:          strings.TrimSpace(r.CardLastFour),
		IssuerTransactionID:   strings.TrimSpace(r.IssuerID),
		ExternalTransactionID: strings.TrimSpace(r.ExternalID),
	}

	if strings.TrimSpace(r.SalesTax) != "" {
		tax, err := ParseAmount(r.SalesTax)
		if err != nil {
			return nil, fmt.Errorf("sales tax: %w", err)
		}
		tx.SalesTax = decimal.NewNullDecimal(tax)
	}

	return tx, nil
}

// ParseDate accepts the layouts statement exports use and returns a calendar date.
func ParseDate(s string) (expense.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return expense.Date{}, fmt.Errorf("%w: empty date", ErrMalformed)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return expense.DateOf(t), nil
		}
	}
	return expense.Date{}, fmt.Errorf("%w: unrecognised date %q", ErrMalformed, s)
}

// ParseAmount parses a signed money string, rounded to cents.
//
// Currency symbols, thousands separators and spaces are ignored. A minus sign
// may lead or trail the number, and accounting parentheses mean negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrMalformed)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ' ', '\t', '\u00a0':
			return -1
		}
		return r
	}, s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	if s == "" || s == "." || !plainAmount.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrMalformed, raw)
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrMalformed, raw)
	}
	if negative {
		amount = amount.Neg()
	}
	return amount.Round(2), nil
}

// CanonicalDescription trims and collapses internal whitespace.
func CanonicalDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DuplicateKey is the natural key used to detect re-imported rows.
func DuplicateKey(tx *expense.Transaction) string {
	return tx.Date.String() + "|" + tx.Description + "|" + tx.Amount.StringFixed(2)
}

// Summary counts the outcome of one import.
type Summary struct {
	Total      int `json:"total"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
}

// Skipped is every row that did not produce a new transaction.
func (s Summary) Skipped() int {
	return s.Duplicates + s.Malformed
}
