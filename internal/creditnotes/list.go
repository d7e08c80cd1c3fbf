package creditnotes

import (
	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/pkg/db/models"
)

// ListParams filters the company's credit notes, newest first.
type ListParams struct {
	CompanyID uuid.UUID
	VendorID  *uuid.UUID
	SiteID    *uuid.UUID
	Limit     int
	Cursor    string
}

// ListResult wraps a page of credit notes and the cursor for the next page.
type ListResult struct {
	Items  []models.CreditNote
	Cursor string
}
