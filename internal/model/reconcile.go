package model

// MismatchType classifies why a transaction's outcome diverges from the expected one.
type MismatchType string

// Mismatch type constants, in classification priority order.
const (
	MismatchCalculationAndBalanceSync MismatchType = "CALCULATION_AND_BALANCE_SYNC"
	MismatchCalculation               MismatchType = "CALCULATION"
	MismatchBalanceSync               MismatchType = "BALANCE_SYNC"
	MismatchNone                      MismatchType = "NO_FOUND_ISSUE"
)

// IsValid reports whether m is one of the known mismatch types.
func (m MismatchType) IsValid() bool {
	switch m {
	case MismatchCalculationAndBalanceSync, MismatchCalculation, MismatchBalanceSync, MismatchNone:
		return true
	}
	return false
}

// ReconcileEvent is a transaction record together with its reconciled view.
type ReconcileEvent struct {
	Country            string
	MismatchType       MismatchType
	TransactionRecord
	ExpectedNewBalance float64
	IsOverdraft        bool
}
