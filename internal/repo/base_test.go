package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/pkg/pagination"
)

type row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&row{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func seed(t *testing.T, db *gorm.DB, company uuid.UUID, n int) []row {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{ID: uuid.New(), CompanyID: company, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return rows
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}
	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestRebind(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.Rebind(nil).db != db {
		t.Fatalf("expected nil tx to keep the connection")
	}
	tx := db.Session(&gorm.Session{})
	if base.Rebind(tx).db != tx {
		t.Fatalf("expected rebind onto tx")
	}
}

func TestCompanyScopeAndFirstOrNil(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	mine, other := uuid.New(), uuid.New()
	rows := seed(t, db, mine, 1)
	seed(t, db, other, 2)

	var got row
	found, err := FirstOrNil(base.Company(context.Background(), mine).Where("id = ?", rows[0].ID), &got)
	if err != nil || !found || got.ID != rows[0].ID {
		t.Fatalf("expected row, found=%v err=%v", found, err)
	}

	found, err = FirstOrNil(base.Company(context.Background(), other).Where("id = ?", rows[0].ID), &got)
	if err != nil || found {
		t.Fatalf("expected miss across companies, found=%v err=%v", found, err)
	}
}

func TestNewestFirstPages(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	company := uuid.New()
	rows := seed(t, db, company, 5)

	var page []row
	if err := NewestFirst(base.Company(context.Background(), company), nil, 2).Find(&page).Error; err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 3 || page[0].ID != rows[4].ID || page[1].ID != rows[3].ID {
		t.Fatalf("unexpected first page")
	}

	cursor := &pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}
	page = nil
	if err := NewestFirst(base.Company(context.Background(), company), cursor, 2).Find(&page).Error; err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 3 || page[0].ID != rows[2].ID {
		t.Fatalf("unexpected second page")
	}
}
