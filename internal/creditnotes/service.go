package creditnotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db"
	"github.com/siteworks/procurement-backend/pkg/db/models"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/money"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

const vendorNumberConstraint = "ux_credit_notes_vendor_number"

// Service records vendor credit notes and runs their single allocation pass.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*settlement.Result, error)
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.CreditNote, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo      Repository
	allocator settlement.Allocator
}

// NewService wires credit note dependencies.
func NewService(repo Repository, allocator settlement.Allocator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credit notes repository required")
	}
	if allocator == nil {
		return nil, fmt.Errorf("settlement allocator required")
	}
	return &service{repo: repo, allocator: allocator}, nil
}

// CreateInput is a vendor credit note. DebitNoteIDs narrows allocation to
// specific debit notes; empty means every open note for the vendor and site.
type CreateInput struct {
	CompanyID           uuid.UUID
	Number              string
	Date                time.Time
	Amount              decimal.Decimal
	DocumentRef         string
	PurchaseOrderNumber string
	VendorID            uuid.UUID
	SiteID              uuid.UUID
	DebitNoteIDs        []uuid.UUID
}

func (in CreateInput) validate() error {
	switch {
	case in.CompanyID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	case strings.TrimSpace(in.Number) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "credit note number required")
	case in.Date.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "credit note date required")
	case strings.TrimSpace(in.DocumentRef) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "credit note document required")
	case strings.TrimSpace(in.PurchaseOrderNumber) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase order number required")
	case in.VendorID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	case in.SiteID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "site id required")
	}
	if err := money.ValidatePositive("amount", in.Amount); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*settlement.Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	credit := &models.CreditNote{
		CompanyID:           input.CompanyID,
		Number:              strings.TrimSpace(input.Number),
		CreditNoteDate:      input.Date.UTC(),
		CreditAmount:        input.Amount,
		DocumentRef:         strings.TrimSpace(input.DocumentRef),
		PurchaseOrderNumber: strings.TrimSpace(input.PurchaseOrderNumber),
		VendorID:            input.VendorID,
		SiteID:              input.SiteID,
	}
	if err := s.repo.Create(ctx, credit); err != nil {
		if db.IsUniqueViolation(err, vendorNumberConstraint) || db.IsUniqueViolation(err, "credit_notes.number") {
			return nil, s.duplicateNumber(ctx, credit, err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create credit note")
	}

	return s.allocator.Allocate(ctx, input.CompanyID, credit, dedupe(input.DebitNoteIDs))
}

// duplicateNumber points the caller at the credit already holding the number.
// A stored credit without allocated_at lost its allocation pass part way and is
// left for reconciliation; creating it again cannot resume it.
func (s *service) duplicateNumber(ctx context.Context, credit *models.CreditNote, cause error) error {
	details := map[string]any{"number": credit.Number}
	existing, err := s.repo.FindByNumber(ctx, credit.CompanyID, credit.VendorID, credit.Number)
	if err != nil || existing == nil {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "credit note number already recorded for vendor").WithDetails(details)
	}
	details["credit_note_id"] = existing.ID.String()
	if existing.AllocatedAt == nil {
		details["allocation_incomplete"] = true
		return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "credit note number already recorded but its allocation did not complete; reconciliation required").
			WithDetails(details)
	}
	details["allocated_at"] = existing.AllocatedAt.UTC().Format(time.RFC3339)
	return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "credit note number already recorded for vendor").WithDetails(details)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *service) Get(ctx context.Context, companyID, id uuid.UUID) (*models.CreditNote, error) {
	credit, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit note")
	}
	if credit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit note not found")
	}
	return credit, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.CompanyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company id required")
	}
	query := listParams{
		CompanyID: params.CompanyID,
		VendorID:  params.VendorID,
		SiteID:    params.SiteID,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit notes")
	}
	items, next := pagination.Trim(rows, params.Limit, func(c models.CreditNote) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &ListResult{Items: items, Cursor: next}, nil
}
