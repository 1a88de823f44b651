package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	PayerShiang Payer = "想想"
	PayerChien  Payer = "錢錢"

	CurrencyTWD Currency = "TWD"
	CurrencyJPY Currency = "JPY"
)

type (
	// Payer is one of the two enumerated trip identities.
	Payer string

	// Currency selects which amount column a new entry lands in.
	Currency string

	// ExpenseRecord is a single ledger entry as normalized from the remote
	// sheet. The remote assigns identity; the app never creates records
	// locally. Date stays opaque text because the feed does not guarantee a
	// parseable format.
	ExpenseRecord struct {
		// RowIndex is the remote-assigned sheet row when the deployed
		// script revision reports one. Zero means absent.
		RowIndex  int
		Date      string
		Item      string
		Payer     string
		AmountTWD decimal.Decimal
		AmountJPY decimal.Decimal
		Note      string
	}

	// NewExpenseInput is a submission candidate. Exactly one currency is
	// selected; serialization populates the matching amount field and zeroes
	// the other.
	NewExpenseInput struct {
		Item     string
		Payer    Payer
		Amount   decimal.Decimal
		Currency Currency
		Note     string
	}

	// Totals is the derived pairwise sum over a record set. Never persisted.
	Totals struct {
		TWD decimal.Decimal
		JPY decimal.Decimal
	}
)

var (
	ErrEmptyItem       = errors.New("empty item")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrUnknownPayer    = errors.New("unknown payer")
	ErrUnknownCurrency = errors.New("unknown currency")
)

func (p Payer) Valid() bool {
	return p == PayerShiang || p == PayerChien
}

func (c Currency) Valid() bool {
	return c == CurrencyTWD || c == CurrencyJPY
}

func (in NewExpenseInput) Validate() error {
	if strings.TrimSpace(in.Item) == "" {
		return ErrEmptyItem
	}
	if len(in.Item) > 200 {
		return errors.New("item too long (max 200 characters)")
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !in.Payer.Valid() {
		return ErrUnknownPayer
	}
	if !in.Currency.Valid() {
		return ErrUnknownCurrency
	}
	return nil
}

// SumTotals folds the record set into per-currency totals. Zero-valued
// amounts contribute nothing; records never carry negative amounts past
// normalization, but the fold does not assume that.
func SumTotals(records []ExpenseRecord) Totals {
	t := Totals{TWD: decimal.Zero, JPY: decimal.Zero}
	for _, r := range records {
		t.TWD = t.TWD.Add(r.AmountTWD)
		t.JPY = t.JPY.Add(r.AmountJPY)
	}
	return t
}
