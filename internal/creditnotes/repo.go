package creditnotes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/internal/repo"
	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

// Repository persists credit notes and the credit side of settlements.
type Repository interface {
	settlement.CreditRecordStore

	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, credit *models.CreditNote) error
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.CreditNote, error)
	FindByNumber(ctx context.Context, companyID, vendorID uuid.UUID, number string) (*models.CreditNote, error)
	List(ctx context.Context, params listParams) ([]models.CreditNote, error)
	SettlementsForDebitNotes(ctx context.Context, debitNoteIDs []uuid.UUID) ([]models.CreditNoteSettlement, error)
	FindUnallocatedBefore(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.CreditNote, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a credit note repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

type listParams struct {
	CompanyID uuid.UUID
	VendorID  *uuid.UUID
	SiteID    *uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Rebind(tx)}
}

func (r *repository) Create(ctx context.Context, credit *models.CreditNote) error {
	return r.DB(ctx).Omit("Settlements").Create(credit).Error
}

// SaveAllocation inserts the credit-side history and stamps allocated_at in
// one transaction. A credit already stamped yields settlement.ErrAlreadyAllocated.
func (r *repository) SaveAllocation(ctx context.Context, credit *models.CreditNote) error {
	if credit.AllocatedAt == nil {
		return errors.New("allocated_at required")
	}
	return r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditNote{}).
			Where("id = ? AND company_id = ? AND allocated_at IS NULL", credit.ID, credit.CompanyID).
			Updates(map[string]any{
				"allocated_at": credit.AllocatedAt,
				"updated_at":   *credit.AllocatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return settlement.ErrAlreadyAllocated
		}
		if len(credit.Settlements) == 0 {
			return nil
		}
		return tx.Create(&credit.Settlements).Error
	})
}

func (r *repository) Get(ctx context.Context, companyID, id uuid.UUID) (*models.CreditNote, error) {
	var credit models.CreditNote
	found, err := repo.FirstOrNil(r.Company(ctx, companyID).Preload("Settlements", orderByPosition).Where("id = ?", id), &credit)
	if err != nil || !found {
		return nil, err
	}
	return &credit, nil
}

func (r *repository) FindByNumber(ctx context.Context, companyID, vendorID uuid.UUID, number string) (*models.CreditNote, error) {
	var credit models.CreditNote
	found, err := repo.FirstOrNil(r.Company(ctx, companyID).Where("vendor_id = ? AND number = ?", vendorID, number), &credit)
	if err != nil || !found {
		return nil, err
	}
	return &credit, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.CreditNote, error) {
	query := r.Company(ctx, params.CompanyID)
	if params.VendorID != nil {
		query = query.Where("vendor_id = ?", *params.VendorID)
	}
	if params.SiteID != nil {
		query = query.Where("site_id = ?", *params.SiteID)
	}

	var credits []models.CreditNote
	err := repo.NewestFirst(query.Preload("Settlements", orderByPosition), params.Cursor, params.Limit).Find(&credits).Error
	if err != nil {
		return nil, err
	}
	return credits, nil
}

func (r *repository) SettlementsForDebitNotes(ctx context.Context, debitNoteIDs []uuid.UUID) ([]models.CreditNoteSettlement, error) {
	if len(debitNoteIDs) == 0 {
		return nil, nil
	}
	var rows []models.CreditNoteSettlement
	if err := r.DB(ctx).Where("debit_note_id IN ?", debitNoteIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindUnallocatedBefore returns credits created before cutoff whose allocation
// pass never completed, oldest first, resuming after the given position.
func (r *repository) FindUnallocatedBefore(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.CreditNote, error) {
	var credits []models.CreditNote
	query := r.DB(ctx).Where("allocated_at IS NULL AND created_at < ?", cutoff)
	if after != nil {
		query = query.Where("(created_at > ?) OR (created_at = ? AND id > ?)",
			after.CreatedAt, after.CreatedAt, after.ID)
	}
	err := query.
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&credits).Error
	if err != nil {
		return nil, err
	}
	return credits, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
