package creditnotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/pkg/enums"
)

const dateLayout = "2006-01-02"

type createRequest struct {
	Number              string          `json:"number" validate:"required,max=64"`
	CreditNoteDate      string          `json:"credit_note_date" validate:"required,datetime=2006-01-02"`
	CreditAmount        decimal.Decimal `json:"credit_amount" validate:"amount"`
	DocumentRef         string          `json:"document_ref" validate:"required,max=1024"`
	PurchaseOrderNumber string          `json:"purchase_order_number" validate:"required,max=64"`
	VendorID            uuid.UUID       `json:"vendor_id" validate:"required"`
	SiteID              uuid.UUID       `json:"site_id" validate:"required"`
	DebitNoteIDs        []uuid.UUID     `json:"debit_note_ids,omitempty"`
}

// CreditNote is the API view of a credit note and the debit notes it settled,
// in allocation order.
type CreditNote struct {
	ID                  uuid.UUID       `json:"id"`
	Number              string          `json:"number"`
	CreditNoteDate      string          `json:"credit_note_date"`
	CreditAmount        decimal.Decimal `json:"credit_amount"`
	AllocatedAmount     decimal.Decimal `json:"allocated_amount"`
	UnallocatedAmount   decimal.Decimal `json:"unallocated_amount"`
	DocumentRef         string          `json:"document_ref"`
	PurchaseOrderNumber string          `json:"purchase_order_number"`
	VendorID            uuid.UUID       `json:"vendor_id"`
	SiteID              uuid.UUID       `json:"site_id"`
	AllocatedAt         *time.Time      `json:"allocated_at,omitempty"`
	Settlements         []Settlement    `json:"settlements"`
	CreatedAt           time.Time       `json:"created_at"`
}

type Settlement struct {
	Position        int                   `json:"position"`
	DebitNoteID     uuid.UUID             `json:"debit_note_id"`
	DebitNoteNumber string                `json:"debit_note_number"`
	SettledAmount   decimal.Decimal       `json:"settled_amount"`
	StatusAfter     enums.DebitNoteStatus `json:"status_after"`
}

// DebitNoteState is a debit note as left by the allocation pass.
type DebitNoteState struct {
	ID                 uuid.UUID             `json:"id"`
	Number             string                `json:"number"`
	GrandTotal         decimal.Decimal       `json:"grand_total"`
	TotalSettledAmount decimal.Decimal       `json:"total_settled_amount"`
	OutstandingAmount  decimal.Decimal       `json:"outstanding_amount"`
	Status             enums.DebitNoteStatus `json:"status"`
	Version            int                   `json:"version"`
}

// Allocation is the response to creating a credit note.
type Allocation struct {
	CreditNote     CreditNote              `json:"credit_note"`
	Outcome        enums.AllocationOutcome `json:"outcome"`
	Allocated      decimal.Decimal         `json:"allocated_amount"`
	Unallocated    decimal.Decimal         `json:"unallocated_amount"`
	FullyAllocated bool                    `json:"fully_allocated"`
	DebitNotes     []DebitNoteState        `json:"debit_notes"`
}

type listResponse struct {
	Items  []CreditNote `json:"items"`
	Cursor string       `json:"cursor,omitempty"`
}
