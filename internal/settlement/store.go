package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/siteworks/procurement-backend/pkg/db/models"
)

// ErrVersionConflict is returned by ApplySettlement when the stored debit
// note no longer carries the expected version.
var ErrVersionConflict = errors.New("debit note version conflict")

// ErrAlreadyAllocated is returned by SaveAllocation when the credit note was
// stamped by another pass first.
var ErrAlreadyAllocated = errors.New("credit note already allocated")

// ObligationFilter scopes candidate debit notes. An empty IDs slice selects
// every open note for the vendor and site.
type ObligationFilter struct {
	CompanyID uuid.UUID
	VendorID  uuid.UUID
	SiteID    uuid.UUID
	IDs       []uuid.UUID
}

// DebitObligationStore persists debit notes touched by an allocation pass.
type DebitObligationStore interface {
	// FindOpen returns non-settled notes matching the filter, oldest first.
	FindOpen(ctx context.Context, filter ObligationFilter) ([]models.DebitNote, error)
	// FindByID returns nil, nil when the note does not exist for the company.
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error)
	// ApplySettlement writes the new settled total and status only if the
	// stored version still equals expectedVersion, and appends entry to the
	// note's history. On success note.Version holds the new version.
	ApplySettlement(ctx context.Context, note *models.DebitNote, expectedVersion int, entry models.DebitNoteSettlement) error
}

// CreditRecordStore persists the credit note once its allocation pass ends.
type CreditRecordStore interface {
	// SaveAllocation appends credit.Settlements and stamps AllocatedAt.
	SaveAllocation(ctx context.Context, credit *models.CreditNote) error
}
