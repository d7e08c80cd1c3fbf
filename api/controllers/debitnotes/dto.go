package debitnotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/pkg/enums"
)

type createRequest struct {
	PurchaseOrderID   uuid.UUID       `json:"purchase_order_id" validate:"required"`
	VendorID          uuid.UUID       `json:"vendor_id" validate:"required"`
	SiteID            uuid.UUID       `json:"site_id" validate:"required"`
	SourceDocumentIDs []uuid.UUID     `json:"source_document_ids,omitempty" validate:"omitempty,unique"`
	Reason            string          `json:"reason" validate:"required,max=500"`
	Remarks           *string         `json:"remarks,omitempty" validate:"omitempty,max=2000"`
	GrandTotal        decimal.Decimal `json:"grand_total" validate:"amount"`
}

type updateRequest struct {
	Version           *int             `json:"version,omitempty" validate:"omitempty,min=1"`
	Reason            *string          `json:"reason,omitempty" validate:"omitempty,min=1,max=500"`
	Remarks           *string          `json:"remarks,omitempty" validate:"omitempty,max=2000"`
	SourceDocumentIDs *[]uuid.UUID     `json:"source_document_ids,omitempty"`
	GrandTotal        *decimal.Decimal `json:"grand_total,omitempty" validate:"omitempty,amount"`
}

// DebitNote is the API view of a debit note and its settlement history.
type DebitNote struct {
	ID                 uuid.UUID             `json:"id"`
	Number             string                `json:"number"`
	PurchaseOrderID    uuid.UUID             `json:"purchase_order_id"`
	VendorID           uuid.UUID             `json:"vendor_id"`
	SiteID             uuid.UUID             `json:"site_id"`
	SourceDocumentIDs  []uuid.UUID           `json:"source_document_ids"`
	Reason             string                `json:"reason"`
	Remarks            *string               `json:"remarks,omitempty"`
	GrandTotal         decimal.Decimal       `json:"grand_total"`
	TotalSettledAmount decimal.Decimal       `json:"total_settled_amount"`
	OutstandingAmount  decimal.Decimal       `json:"outstanding_amount"`
	Status             enums.DebitNoteStatus `json:"status"`
	Version            int                   `json:"version"`
	Settlements        []Settlement          `json:"settlements"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type Settlement struct {
	CreditNoteID       uuid.UUID       `json:"credit_note_id"`
	CreditNoteNumber   string          `json:"credit_note_number"`
	SettledAmount      decimal.Decimal `json:"settled_amount"`
	SettledOn          time.Time       `json:"settled_on"`
	CreditNoteDocument string          `json:"credit_note_document,omitempty"`
}

type listResponse struct {
	Items  []DebitNote `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
}
