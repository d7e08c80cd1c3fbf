package debitnotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/internal/repo"
	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

// Repository persists debit notes and their settlement history. It doubles
// as the allocator's debit note store.
type Repository interface {
	settlement.DebitObligationStore

	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, note *models.DebitNote) error
	NextSequence(ctx context.Context, companyID, siteID uuid.UUID) (int, error)
	Get(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error)
	List(ctx context.Context, params listParams) ([]models.DebitNote, error)
	UpdateVersioned(ctx context.Context, note *models.DebitNote, expectedVersion int) error
	CountSettlements(ctx context.Context, debitNoteID uuid.UUID) (int64, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error)
	ScanWithSettlements(ctx context.Context, afterID uuid.UUID, limit int) ([]models.DebitNote, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a debit note repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

type listParams struct {
	CompanyID uuid.UUID
	VendorID  *uuid.UUID
	SiteID    *uuid.UUID
	Status    *enums.DebitNoteStatus
	Limit     int
	Cursor    *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Rebind(tx)}
}

func (r *repository) Create(ctx context.Context, note *models.DebitNote) error {
	return r.DB(ctx).Omit("Settlements").Create(note).Error
}

func (r *repository) NextSequence(ctx context.Context, companyID, siteID uuid.UUID) (int, error) {
	var current int64
	err := r.Company(ctx, companyID).
		Model(&models.DebitNote{}).
		Where("site_id = ?", siteID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return int(current) + 1, nil
}

func (r *repository) Get(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error) {
	return r.first(r.Company(ctx, companyID).Preload("Settlements", orderSettlements).Where("id = ?", id))
}

func (r *repository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error) {
	return r.first(r.Company(ctx, companyID).Where("id = ?", id))
}

func (r *repository) first(query *gorm.DB) (*models.DebitNote, error) {
	var note models.DebitNote
	found, err := repo.FirstOrNil(query, &note)
	if err != nil || !found {
		return nil, err
	}
	return &note, nil
}

func (r *repository) FindOpen(ctx context.Context, filter settlement.ObligationFilter) ([]models.DebitNote, error) {
	query := r.Company(ctx, filter.CompanyID).
		Where("vendor_id = ? AND site_id = ?", filter.VendorID, filter.SiteID).
		Where("status <> ?", enums.DebitNoteStatusSettled)
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}

	var notes []models.DebitNote
	if err := query.Order("created_at ASC, id ASC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repository) ApplySettlement(ctx context.Context, note *models.DebitNote, expectedVersion int, entry models.DebitNoteSettlement) error {
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DebitNote{}).
			Where("id = ? AND company_id = ? AND version = ?", note.ID, note.CompanyID, expectedVersion).
			Updates(map[string]any{
				"total_settled_amount": note.TotalSettledAmount,
				"status":               note.Status,
				"version":              expectedVersion + 1,
				"updated_at":           time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return settlement.ErrVersionConflict
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return err
	}
	note.Version = expectedVersion + 1
	return nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.DebitNote, error) {
	query := r.Company(ctx, params.CompanyID)
	if params.VendorID != nil {
		query = query.Where("vendor_id = ?", *params.VendorID)
	}
	if params.SiteID != nil {
		query = query.Where("site_id = ?", *params.SiteID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var notes []models.DebitNote
	if err := repo.NewestFirst(query, params.Cursor, params.Limit).Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *repository) UpdateVersioned(ctx context.Context, note *models.DebitNote, expectedVersion int) error {
	res := r.DB(ctx).
		Model(&models.DebitNote{}).
		Where("id = ? AND company_id = ? AND version = ?", note.ID, note.CompanyID, expectedVersion).
		Updates(map[string]any{
			"reason":              note.Reason,
			"remarks":             note.Remarks,
			"source_document_ids": note.SourceDocumentIDs,
			"grand_total":         note.GrandTotal,
			"status":              note.Status,
			"version":             expectedVersion + 1,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return settlement.ErrVersionConflict
	}
	note.Version = expectedVersion + 1
	return nil
}

func (r *repository) CountSettlements(ctx context.Context, debitNoteID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.DebitNoteSettlement{}).
		Where("debit_note_id = ?", debitNoteID).
		Count(&count).Error
	return count, err
}

func (r *repository) Delete(ctx context.Context, companyID, id uuid.UUID) (bool, error) {
	res := r.Company(ctx, companyID).Where("id = ?", id).Delete(&models.DebitNote{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ScanWithSettlements walks every debit note in id order, across companies.
func (r *repository) ScanWithSettlements(ctx context.Context, afterID uuid.UUID, limit int) ([]models.DebitNote, error) {
	var notes []models.DebitNote
	err := r.DB(ctx).
		Preload("Settlements", orderSettlements).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func orderSettlements(db *gorm.DB) *gorm.DB {
	return db.Order("settled_on ASC, id ASC")
}
