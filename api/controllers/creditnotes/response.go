package creditnotes

import (
	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db/models"
)

func newCreditNote(credit *models.CreditNote) CreditNote {
	settlements := make([]Settlement, 0, len(credit.Settlements))
	for _, s := range credit.Settlements {
		settlements = append(settlements, Settlement{
			Position:        s.Position,
			DebitNoteID:     s.DebitNoteID,
			DebitNoteNumber: s.DebitNoteNumber,
			SettledAmount:   s.SettledAmount,
			StatusAfter:     s.StatusAfter,
		})
	}
	return CreditNote{
		ID:                  credit.ID,
		Number:              credit.Number,
		CreditNoteDate:      credit.CreditNoteDate.Format(dateLayout),
		CreditAmount:        credit.CreditAmount,
		AllocatedAmount:     credit.AllocatedAmount(),
		UnallocatedAmount:   credit.UnallocatedAmount(),
		DocumentRef:         credit.DocumentRef,
		PurchaseOrderNumber: credit.PurchaseOrderNumber,
		VendorID:            credit.VendorID,
		SiteID:              credit.SiteID,
		AllocatedAt:         credit.AllocatedAt,
		Settlements:         settlements,
		CreatedAt:           credit.CreatedAt,
	}
}

func newAllocation(result *settlement.Result) Allocation {
	notes := make([]DebitNoteState, 0, len(result.DebitNotes))
	for _, note := range result.DebitNotes {
		notes = append(notes, DebitNoteState{
			ID:                 note.ID,
			Number:             note.Number,
			GrandTotal:         note.GrandTotal,
			TotalSettledAmount: note.TotalSettledAmount,
			OutstandingAmount:  note.OutstandingAmount(),
			Status:             note.Status,
			Version:            note.Version,
		})
	}
	return Allocation{
		CreditNote:     newCreditNote(result.Credit),
		Outcome:        result.Outcome(),
		Allocated:      result.Allocated,
		Unallocated:    result.Unallocated,
		FullyAllocated: result.FullyAllocated,
		DebitNotes:     notes,
	}
}
