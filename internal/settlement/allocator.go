package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/metrics"
)

const defaultMaxAttempts = 3

// Allocator spreads a credit note over a vendor's open debit notes, oldest first.
type Allocator interface {
	Allocate(ctx context.Context, companyID uuid.UUID, credit *models.CreditNote, targets []uuid.UUID) (*Result, error)
}

// AllocatorParams wires the allocator dependencies.
type AllocatorParams struct {
	Debits      DebitObligationStore
	Credits     CreditRecordStore
	Logger      *logger.Logger
	Metrics     *metrics.SettlementMetrics
	MaxAttempts int
	Clock       func() time.Time
}

type allocator struct {
	debits      DebitObligationStore
	credits     CreditRecordStore
	logg        *logger.Logger
	metrics     *metrics.SettlementMetrics
	maxAttempts int
	now         func() time.Time
}

// NewAllocator builds an Allocator. MaxAttempts bounds the optimistic retries
// spent on a single debit note.
func NewAllocator(params AllocatorParams) (Allocator, error) {
	if params.Debits == nil {
		return nil, fmt.Errorf("debit note store required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit note store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &allocator{
		debits:      params.Debits,
		credits:     params.Credits,
		logg:        params.Logger,
		metrics:     params.Metrics,
		maxAttempts: attempts,
		now:         clock,
	}, nil
}

func (a *allocator) Allocate(ctx context.Context, companyID uuid.UUID, credit *models.CreditNote, targets []uuid.UUID) (*Result, error) {
	if credit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit note is required")
	}
	if !credit.CreditAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be greater than zero")
	}
	if credit.AllocatedAt != nil || len(credit.Settlements) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "credit note has already been allocated")
	}

	candidates, err := a.debits.FindOpen(ctx, ObligationFilter{
		CompanyID: companyID,
		VendorID:  credit.VendorID,
		SiteID:    credit.SiteID,
		IDs:       targets,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open debit notes")
	}
	SortOldestFirst(candidates)

	at := a.now().UTC()
	remaining := credit.CreditAmount
	touched := make([]models.DebitNote, 0, len(candidates))
	for _, candidate := range candidates {
		if !remaining.IsPositive() {
			break
		}
		note, entry, ok, err := a.settle(ctx, companyID, credit, candidate, remaining, at)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		touched = append(touched, note)
		entry.Position = len(credit.Settlements) + 1
		credit.Settlements = append(credit.Settlements, entry)
		remaining = remaining.Sub(entry.SettledAmount)
	}

	credit.AllocatedAt = &at
	if err := a.credits.SaveAllocation(ctx, credit); err != nil {
		if errors.Is(err, ErrAlreadyAllocated) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "credit note has already been allocated")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save credit note settlements")
	}

	result := newResult(credit, touched)
	a.metrics.ObserveAllocation(string(result.Outcome()), result.Allocated)
	a.logResult(ctx, companyID, result, len(candidates))
	return result, nil
}

// settle applies one debit note, reloading and re-planning it when another
// writer bumped its version in between.
func (a *allocator) settle(ctx context.Context, companyID uuid.UUID, credit *models.CreditNote, note models.DebitNote, remaining decimal.Decimal, at time.Time) (models.DebitNote, models.CreditNoteSettlement, bool, error) {
	for attempt := 1; ; attempt++ {
		step, ok := Plan(note, remaining)
		if !ok {
			return models.DebitNote{}, models.CreditNoteSettlement{}, false, nil
		}

		updated, entry := step.Apply(note, credit, at)
		err := a.debits.ApplySettlement(ctx, &updated, note.Version, entry)
		if err == nil {
			return updated, step.Mirror(credit, updated, at), true, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return models.DebitNote{}, models.CreditNoteSettlement{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist debit note settlement")
		}

		a.metrics.IncVersionConflict()
		if attempt >= a.maxAttempts {
			return models.DebitNote{}, models.CreditNoteSettlement{}, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "debit note changed concurrently").
				WithDetails(map[string]any{"debit_note_id": note.ID.String(), "attempts": attempt})
		}

		reloaded, err := a.debits.FindByID(ctx, companyID, note.ID)
		if err != nil {
			return models.DebitNote{}, models.CreditNoteSettlement{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload debit note")
		}
		if reloaded == nil || !eligible(*reloaded, credit) {
			return models.DebitNote{}, models.CreditNoteSettlement{}, false, nil
		}
		note = *reloaded
	}
}

func eligible(note models.DebitNote, credit *models.CreditNote) bool {
	return note.Status != enums.DebitNoteStatusSettled &&
		note.VendorID == credit.VendorID &&
		note.SiteID == credit.SiteID
}

func (a *allocator) logResult(ctx context.Context, companyID uuid.UUID, result *Result, candidates int) {
	ctx = a.logg.WithFields(ctx, map[string]any{
		"company_id":     companyID.String(),
		"credit_note_id": result.Credit.ID.String(),
		"candidates":     candidates,
		"touched":        len(result.DebitNotes),
		"allocated":      result.Allocated.String(),
		"unallocated":    result.Unallocated.String(),
		"outcome":        string(result.Outcome()),
	})
	if result.Outcome() == enums.AllocationOutcomeNone {
		a.logg.Warn(ctx, "credit note matched no open debit notes")
		return
	}
	a.logg.Info(ctx, "credit note allocated")
}
