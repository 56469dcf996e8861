package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/balance-sync-recon/internal/model"
)

func baseRecord() model.TransactionRecord {
	return model.TransactionRecord{
		UserID:              "u1",
		Currency:            "SAR",
		EventType:           model.EventCredit,
		OldBalance:          100,
		Amount:              50,
		VAT:                 5,
		NewBalance:          145,
		PaymentBalance:      200,
		SubscriptionBalance: 200,
	}
}

func TestCalculator_Classification(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*model.TransactionRecord)
		wantMismatch model.MismatchType
		wantExpected float64
	}{
		{
			name:         "balanced",
			mutate:       func(*model.TransactionRecord) {},
			wantMismatch: model.MismatchNone,
			wantExpected: 145,
		},
		{
			name:         "calculation only",
			mutate:       func(r *model.TransactionRecord) { r.NewBalance = 140 },
			wantMismatch: model.MismatchCalculation,
			wantExpected: 145,
		},
		{
			name:         "balance sync only",
			mutate:       func(r *model.TransactionRecord) { r.SubscriptionBalance = 180 },
			wantMismatch: model.MismatchBalanceSync,
			wantExpected: 145,
		},
		{
			name: "calculation and balance sync",
			mutate: func(r *model.TransactionRecord) {
				r.NewBalance = 140
				r.SubscriptionBalance = 180
			},
			wantMismatch: model.MismatchCalculationAndBalanceSync,
			wantExpected: 145,
		},
		{
			name: "debit subtracts amount",
			mutate: func(r *model.TransactionRecord) {
				r.EventType = model.EventDebit
				r.NewBalance = 45
			},
			wantMismatch: model.MismatchNone,
			wantExpected: 45,
		},
		{
			name: "debit uses magnitude of negative amount",
			mutate: func(r *model.TransactionRecord) {
				r.EventType = model.EventDebit
				r.Amount = -50
				r.NewBalance = 45
			},
			wantMismatch: model.MismatchNone,
			wantExpected: 45,
		},
		{
			name: "rounding hides sub-cent noise",
			mutate: func(r *model.TransactionRecord) {
				r.OldBalance = 225.9075
				r.Amount = 34.5
				r.VAT = 3.136
				r.NewBalance = 257.2715
			},
			wantMismatch: model.MismatchNone,
			wantExpected: 257.27,
		},
	}

	calc := &Calculator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			tt.mutate(&rec)

			event := calc.Calculate(rec)

			assert.Equal(t, tt.wantMismatch, event.MismatchType)
			assert.InDelta(t, tt.wantExpected, event.ExpectedNewBalance, 0.0001)
			assert.True(t, event.MismatchType.IsValid())
		})
	}
}

func TestCalculator_Overdraft(t *testing.T) {
	calc := &Calculator{}

	rec := baseRecord()
	assert.False(t, calc.Calculate(rec).IsOverdraft)

	rec.NewBalance = -0.01
	event := calc.Calculate(rec)
	assert.True(t, event.IsOverdraft)
	assert.Equal(t, model.MismatchCalculation, event.MismatchType)
}

func TestCalculator_InfersMissingEventType(t *testing.T) {
	tests := []struct {
		name         string
		newBalance   float64
		wantType     model.EventType
		wantExpected float64
	}{
		{name: "credit", newBalance: 145, wantType: model.EventCredit, wantExpected: 145},
		{name: "debit", newBalance: 45, wantType: model.EventDebit, wantExpected: 45},
		{name: "neither", newBalance: 999, wantType: model.EventUnknown, wantExpected: 145},
	}

	calc := &Calculator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			rec.EventType = ""
			rec.NewBalance = tt.newBalance

			event := calc.Calculate(rec)

			assert.Equal(t, tt.wantType, event.EventType)
			assert.InDelta(t, tt.wantExpected, event.ExpectedNewBalance, 0.0001)
		})
	}
}

func TestCalculator_ProvidedEventTypeIsKept(t *testing.T) {
	rec := baseRecord()
	rec.EventType = model.EventDebit

	event := (&Calculator{}).Calculate(rec)

	assert.Equal(t, model.EventDebit, event.EventType)
	assert.Equal(t, model.MismatchCalculation, event.MismatchType)
	assert.InDelta(t, 45, event.ExpectedNewBalance, 0.0001)
}

func TestCalculator_Tolerance(t *testing.T) {
	rec := baseRecord()
	rec.NewBalance = 145.4

	assert.Equal(t, model.MismatchCalculation, (&Calculator{}).Calculate(rec).MismatchType)
	assert.Equal(t, model.MismatchNone, NewCalculator(0.5).Calculate(rec).MismatchType)
}

func TestCalculator_RoundsStoredFields(t *testing.T) {
	rec := baseRecord()
	rec.OldBalance = 99.999
	rec.VAT = 5.004

	event := (&Calculator{}).Calculate(rec)

	assert.InDelta(t, 100, event.OldBalance, 0.0001)
	assert.InDelta(t, 5, event.VAT, 0.0001)
	assert.Equal(t, "u1", event.UserID)
}

func TestCalculateAll(t *testing.T) {
	first := baseRecord()
	second := baseRecord()
	second.NewBalance = 140

	events := (&Calculator{}).CalculateAll([]model.TransactionRecord{first, second})

	require.Len(t, events, 2)
	assert.Equal(t, model.MismatchNone, events[0].MismatchType)
	assert.Equal(t, model.MismatchCalculation, events[1].MismatchType)
	assert.Empty(t, (&Calculator{}).CalculateAll(nil))
}

func TestCountry(t *testing.T) {
	tests := []struct {
		currency string
		want     string
	}{
		{"SAR", "Saudi Arabia"},
		{"BHD", "Bahrain"},
		{"AED", "United Arab Emirates"},
		{"KWD", "Kuwait"},
		{"OMR", "Oman"},
		{" aed ", "United Arab Emirates"},
		{"XYZ", UnknownCountry},
		{"", UnknownCountry},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, Country(tt.currency))
		})
	}
}

func TestInferEventType(t *testing.T) {
	d := decimal.NewFromFloat
	assert.Equal(t, model.EventCredit, InferEventType(d(10), d(5), d(1), d(14)))
	assert.Equal(t, model.EventDebit, InferEventType(d(10), d(5), d(1), d(4)))
	assert.Equal(t, model.EventUnknown, InferEventType(d(10), d(5), d(1), d(10)))
}
