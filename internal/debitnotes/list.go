package debitnotes

import (
	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
)

// ListParams filters the company's debit notes, newest first.
type ListParams struct {
	CompanyID uuid.UUID
	VendorID  *uuid.UUID
	SiteID    *uuid.UUID
	Status    *enums.DebitNoteStatus
	Limit     int
	Cursor    string
}

// ListResult wraps a page of debit notes and the cursor for the next page.
type ListResult struct {
	Items  []models.DebitNote
	Cursor string
}
