package settlement

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
)

// Step is the outcome of settling one debit note against a running credit balance.
type Step struct {
	DebitNoteID  uuid.UUID
	Amount       decimal.Decimal
	SettledAfter decimal.Decimal
	StatusAfter  enums.DebitNoteStatus
}

// Plan computes how much of remaining goes to note. It reports false when the
// note cannot take any of it.
func Plan(note models.DebitNote, remaining decimal.Decimal) (Step, bool) {
	if !remaining.IsPositive() || note.Status == enums.DebitNoteStatusSettled {
		return Step{}, false
	}
	outstanding := note.OutstandingAmount()
	if !outstanding.IsPositive() {
		return Step{}, false
	}

	amount := decimal.Min(remaining, outstanding)
	settled := note.TotalSettledAmount.Add(amount)
	return Step{
		DebitNoteID:  note.ID,
		Amount:       amount,
		SettledAfter: settled,
		StatusAfter:  DeriveStatus(note.GrandTotal, settled, note.Status),
	}, true
}

// Apply returns a copy of note carrying the step and the history entry that
// records it on the debit side.
func (s Step) Apply(note models.DebitNote, credit *models.CreditNote, at time.Time) (models.DebitNote, models.DebitNoteSettlement) {
	note.TotalSettledAmount = s.SettledAfter
	note.Status = s.StatusAfter
	note.Settlements = nil
	entry := models.DebitNoteSettlement{
		DebitNoteID:        note.ID,
		CreditNoteID:       credit.ID,
		CreditNoteNumber:   credit.Number,
		SettledAmount:      s.Amount,
		SettledOn:          at,
		CreditNoteDocument: credit.DocumentRef,
	}
	return note, entry
}

// Mirror builds the credit-side history entry for a persisted step.
func (s Step) Mirror(credit *models.CreditNote, note models.DebitNote, at time.Time) models.CreditNoteSettlement {
	return models.CreditNoteSettlement{
		CreditNoteID:    credit.ID,
		DebitNoteID:     note.ID,
		DebitNoteNumber: note.Number,
		SettledAmount:   s.Amount,
		StatusAfter:     s.StatusAfter,
		CreatedAt:       at,
	}
}

// DeriveStatus maps settled totals onto the debit note status. Workflow
// statuses (raised, sent) survive only while nothing has been settled.
func DeriveStatus(grandTotal, settled decimal.Decimal, prior enums.DebitNoteStatus) enums.DebitNoteStatus {
	switch {
	case settled.GreaterThanOrEqual(grandTotal):
		return enums.DebitNoteStatusSettled
	case settled.IsPositive():
		return enums.DebitNoteStatusPartial
	case prior.IsFinancial() || !prior.IsValid():
		return enums.DebitNoteStatusRaised
	default:
		return prior
	}
}

// SortOldestFirst orders notes by creation time, ties broken by id.
func SortOldestFirst(notes []models.DebitNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.Before(notes[j].CreatedAt)
		}
		return bytes.Compare(notes[i].ID[:], notes[j].ID[:]) < 0
	})
}
