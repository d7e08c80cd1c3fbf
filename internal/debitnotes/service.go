package debitnotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db"
	"github.com/siteworks/procurement-backend/pkg/db/models"
	dbtypes "github.com/siteworks/procurement-backend/pkg/db/types"
	"github.com/siteworks/procurement-backend/pkg/enums"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/money"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

const createAttempts = 2

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the debit note lifecycle outside of settlement.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.DebitNote, error)
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkSent(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error)
	Update(ctx context.Context, input UpdateInput) (*models.DebitNote, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires debit note dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("debit notes repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateInput carries a new debit note raised against a vendor.
type CreateInput struct {
	CompanyID         uuid.UUID
	PurchaseOrderID   uuid.UUID
	VendorID          uuid.UUID
	SiteID            uuid.UUID
	SourceDocumentIDs []uuid.UUID
	Reason            string
	Remarks           *string
	GrandTotal        decimal.Decimal
}

// UpdateInput is an administrative edit. Nil fields are left untouched;
// Version, when set, must match the stored version.
type UpdateInput struct {
	CompanyID         uuid.UUID
	ID                uuid.UUID
	Version           *int
	Reason            *string
	Remarks           *string
	SourceDocumentIDs *[]uuid.UUID
	GrandTotal        *decimal.Decimal
}

// FormatNumber renders the human readable number for a site sequence.
func FormatNumber(sequence int) string {
	return fmt.Sprintf("DN-%05d", sequence)
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.DebitNote, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		note := &models.DebitNote{
			CompanyID:          input.CompanyID,
			PurchaseOrderID:    input.PurchaseOrderID,
			VendorID:           input.VendorID,
			SiteID:             input.SiteID,
			SourceDocumentIDs:  dbtypes.UUIDArray(input.SourceDocumentIDs),
			Reason:             strings.TrimSpace(input.Reason),
			Remarks:            input.Remarks,
			GrandTotal:         input.GrandTotal,
			TotalSettledAmount: decimal.Zero,
			Status:             enums.DebitNoteStatusRaised,
			Version:            1,
		}
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			txRepo := s.repo.WithTx(tx)
			seq, err := txRepo.NextSequence(ctx, input.CompanyID, input.SiteID)
			if err != nil {
				return err
			}
			note.Sequence = seq
			note.Number = FormatNumber(seq)
			return txRepo.Create(ctx, note)
		})
		if err == nil {
			return note, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create debit note")
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "debit note sequence taken concurrently")
}

func (in CreateInput) validate() error {
	switch {
	case in.CompanyID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	case in.PurchaseOrderID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	case in.VendorID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	case in.SiteID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "site id required")
	case strings.TrimSpace(in.Reason) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	if err := money.ValidatePositive("grand_total", in.GrandTotal); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	return nil
}

func (s *service) Get(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error) {
	note, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load debit note")
	}
	if note == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "debit note not found")
	}
	return note, nil
}

func (s *service) MarkSent(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error) {
	note, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	switch note.Status {
	case enums.DebitNoteStatusSent:
		return note, nil
	case enums.DebitNoteStatusRaised:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("debit note in status %s cannot be sent", note.Status))
	}

	note.Status = enums.DebitNoteStatusSent
	if err := s.save(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.DebitNote, error) {
	note, err := s.Get(ctx, input.CompanyID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Version != nil && *input.Version != note.Version {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "debit note was modified").
			WithDetails(map[string]any{"current_version": note.Version})
	}

	if input.Reason != nil {
		reason := strings.TrimSpace(*input.Reason)
		if reason == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
		}
		note.Reason = reason
	}
	if input.Remarks != nil {
		note.Remarks = input.Remarks
	}
	if input.SourceDocumentIDs != nil {
		note.SourceDocumentIDs = dbtypes.UUIDArray(*input.SourceDocumentIDs)
	}
	if input.GrandTotal != nil {
		if err := money.ValidatePositive("grand_total", *input.GrandTotal); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		if input.GrandTotal.LessThan(note.TotalSettledAmount) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "grand_total cannot drop below the settled amount").
				WithDetails(map[string]any{"total_settled_amount": note.TotalSettledAmount.String()})
		}
		note.GrandTotal = *input.GrandTotal
	}
	note.Status = settlement.DeriveStatus(note.GrandTotal, note.TotalSettledAmount, note.Status)

	if err := s.save(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *service) save(ctx context.Context, note *models.DebitNote) error {
	if err := s.repo.UpdateVersioned(ctx, note, note.Version); err != nil {
		if errors.Is(err, settlement.ErrVersionConflict) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "debit note was modified concurrently")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update debit note")
	}
	return nil
}

func (s *service) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	note, err := s.repo.FindByID(ctx, companyID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load debit note")
	}
	if note == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "debit note not found")
	}

	settlements, err := s.repo.CountSettlements(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count debit note settlements")
	}
	if settlements > 0 || note.TotalSettledAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeConflict, "debit note has settlements and cannot be deleted")
	}

	deleted, err := s.repo.Delete(ctx, companyID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete debit note")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "debit note not found")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	query := listParams{
		CompanyID: params.CompanyID,
		VendorID:  params.VendorID,
		SiteID:    params.SiteID,
		Status:    params.Status,
		Limit:     params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list debit notes")
	}
	items, next := pagination.Trim(rows, params.Limit, func(n models.DebitNote) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return &ListResult{Items: items, Cursor: next}, nil
}
