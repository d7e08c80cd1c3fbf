package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
)

// Result describes one finished allocation pass.
type Result struct {
	Credit         *models.CreditNote
	DebitNotes     []models.DebitNote
	Allocated      decimal.Decimal
	Unallocated    decimal.Decimal
	FullyAllocated bool
}

func newResult(credit *models.CreditNote, touched []models.DebitNote) *Result {
	allocated := credit.AllocatedAmount()
	unallocated := credit.CreditAmount.Sub(allocated)
	return &Result{
		Credit:         credit,
		DebitNotes:     touched,
		Allocated:      allocated,
		Unallocated:    unallocated,
		FullyAllocated: unallocated.IsZero(),
	}
}

// Settlements returns the credit-side history written by the pass.
func (r *Result) Settlements() []models.CreditNoteSettlement {
	if r == nil || r.Credit == nil {
		return nil
	}
	return r.Credit.Settlements
}

func (r *Result) Outcome() enums.AllocationOutcome {
	switch {
	case r.FullyAllocated:
		return enums.AllocationOutcomeFull
	case r.Allocated.IsPositive():
		return enums.AllocationOutcomePartial
	default:
		return enums.AllocationOutcomeNone
	}
}
