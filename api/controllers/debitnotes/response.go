package debitnotes

import (
	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/pkg/db/models"
)

func newDebitNote(note *models.DebitNote) DebitNote {
	settlements := make([]Settlement, 0, len(note.Settlements))
	for _, s := range note.Settlements {
		settlements = append(settlements, Settlement{
			CreditNoteID:       s.CreditNoteID,
			CreditNoteNumber:   s.CreditNoteNumber,
			SettledAmount:      s.SettledAmount,
			SettledOn:          s.SettledOn,
			CreditNoteDocument: s.CreditNoteDocument,
		})
	}
	docs := []uuid.UUID(note.SourceDocumentIDs)
	if docs == nil {
		docs = []uuid.UUID{}
	}
	return DebitNote{
		ID:                 note.ID,
		Number:             note.Number,
		PurchaseOrderID:    note.PurchaseOrderID,
		VendorID:           note.VendorID,
		SiteID:             note.SiteID,
		SourceDocumentIDs:  docs,
		Reason:             note.Reason,
		Remarks:            note.Remarks,
		GrandTotal:         note.GrandTotal,
		TotalSettledAmount: note.TotalSettledAmount,
		OutstandingAmount:  note.OutstandingAmount(),
		Status:             note.Status,
		Version:            note.Version,
		Settlements:        settlements,
		CreatedAt:          note.CreatedAt,
		UpdatedAt:          note.UpdatedAt,
	}
}
