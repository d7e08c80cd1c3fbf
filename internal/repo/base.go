package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/pkg/pagination"
)

// Base carries the connection shared by the ledger repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx when one is supplied.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Company scopes a query to one tenant's rows.
func (b Base) Company(ctx context.Context, companyID uuid.UUID) *gorm.DB {
	return b.DB(ctx).Where("company_id = ?", companyID)
}

// Rebind returns a Base on tx, or b itself when tx is nil.
func (b Base) Rebind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// FirstOrNil loads the first match into dest. A missing row reports false
// with a nil error.
func FirstOrNil(query *gorm.DB, dest any) (bool, error) {
	if err := query.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewestFirst orders query by (created_at, id) descending, resumes after
// cursor and fetches one extra row so the caller can tell if a next page exists.
func NewestFirst(query *gorm.DB, cursor *pagination.Cursor, limit int) *gorm.DB {
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit))
}
