// Package reconcile derives the expected balance of a transaction and
// classifies how the logged outcome diverges from it.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

// UnknownCountry is reported for currencies outside the lookup table.
const UnknownCountry = "Unknown"

var countries = map[string]string{
	"SAR": "Saudi Arabia",
	"BHD": "Bahrain",
	"AED": "United Arab Emirates",
	"KWD": "Kuwait",
	"OMR": "Oman",
}

// Country maps a currency code to the country label used in reports.
func Country(currency string) string {
	if c, ok := countries[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return c
	}
	return UnknownCountry
}

// Calculator reconciles transaction records. The zero value is ready to use
// and flags any non-zero difference between expected and logged balance.
type Calculator struct {
	// Tolerance is the largest absolute difference, after rounding, that is
	// still not a calculation mismatch.
	Tolerance decimal.Decimal
}

// NewCalculator creates a Calculator with the given tolerance.
func NewCalculator(tolerance float64) *Calculator {
	return &Calculator{Tolerance: money(tolerance)}
}

// CalculateAll reconciles a batch of records. It is a full recompute: the
// output depends only on the input records.
func (c *Calculator) CalculateAll(records []model.TransactionRecord) []model.ReconcileEvent {
	events := make([]model.ReconcileEvent, len(records))
	for i, r := range records {
		events[i] = c.Calculate(r)
	}
	return events
}

// Calculate reconciles a single record.
func (c *Calculator) Calculate(rec model.TransactionRecord) model.ReconcileEvent {
	oldBalance := money(rec.OldBalance)
	amount := money(rec.Amount)
	vat := money(rec.VAT)
	newBalance := money(rec.NewBalance)
	payment := money(rec.PaymentBalance)
	subscription := money(rec.SubscriptionBalance)

	eventType := rec.EventType
	if eventType == "" {
		eventType = InferEventType(oldBalance, amount, vat, newBalance)
	}

	signed := amount.Abs()
	if eventType == model.EventDebit {
		signed = signed.Neg()
	}
	expected := oldBalance.Add(signed).Sub(vat).Round(2)

	calculationIssue := expected.Sub(newBalance).Round(2).Abs().GreaterThan(c.Tolerance)
	syncIssue := !payment.Equal(subscription)

	out := rec
	out.EventType = eventType
	out.OldBalance = oldBalance.InexactFloat64()
	out.Amount = amount.InexactFloat64()
	out.VAT = vat.InexactFloat64()
	out.NewBalance = newBalance.InexactFloat64()
	out.PaymentBalance = payment.InexactFloat64()
	out.SubscriptionBalance = subscription.InexactFloat64()

	return model.ReconcileEvent{
		TransactionRecord:  out,
		Country:            Country(rec.Currency),
		ExpectedNewBalance: expected.InexactFloat64(),
		MismatchType:       classify(calculationIssue, syncIssue),
		IsOverdraft:        newBalance.IsNegative(),
	}
}

// InferEventType guesses the direction of a record that was logged without
// one. It returns EventUnknown when neither direction balances.
func InferEventType(oldBalance, amount, vat, newBalance decimal.Decimal) model.EventType {
	switch {
	case oldBalance.Add(amount).Sub(vat).Equal(newBalance):
		return model.EventCredit
	case oldBalance.Sub(amount).Sub(vat).Equal(newBalance):
		return model.EventDebit
	default:
		return model.EventUnknown
	}
}

func classify(calculationIssue, syncIssue bool) model.MismatchType {
	switch {
	case calculationIssue && syncIssue:
		return model.MismatchCalculationAndBalanceSync
	case calculationIssue:
		return model.MismatchCalculation
	case syncIssue:
		return model.MismatchBalanceSync
	default:
		return model.MismatchNone
	}
}

// money rounds a logged amount to cents.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
