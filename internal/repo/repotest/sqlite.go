// Package repotest opens throwaway sqlite databases shaped like the
// Postgres schema, for repository tests.
package repotest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE debit_notes (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		number TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		purchase_order_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		source_document_ids TEXT NOT NULL DEFAULT '{}',
		reason TEXT NOT NULL,
		remarks TEXT,
		grand_total TEXT NOT NULL,
		total_settled_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_debit_notes_site_sequence UNIQUE (company_id, site_id, sequence)
	)`,
	`CREATE TABLE debit_note_settlements (
		id TEXT PRIMARY KEY,
		debit_note_id TEXT NOT NULL REFERENCES debit_notes(id),
		credit_note_id TEXT NOT NULL,
		credit_note_number TEXT NOT NULL,
		settled_amount TEXT NOT NULL,
		settled_on DATETIME NOT NULL,
		credit_note_document TEXT,
		created_at DATETIME,
		CONSTRAINT ux_debit_note_settlements_pair UNIQUE (debit_note_id, credit_note_id)
	)`,
	`CREATE TABLE credit_notes (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		number TEXT NOT NULL,
		credit_note_date DATETIME NOT NULL,
		credit_amount TEXT NOT NULL,
		document_ref TEXT NOT NULL,
		purchase_order_number TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		site_id TEXT NOT NULL,
		allocated_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_credit_notes_vendor_number UNIQUE (company_id, vendor_id, number)
	)`,
	`CREATE TABLE credit_note_settlements (
		id TEXT PRIMARY KEY,
		credit_note_id TEXT NOT NULL REFERENCES credit_notes(id),
		debit_note_id TEXT NOT NULL,
		debit_note_number TEXT NOT NULL,
		position INTEGER NOT NULL,
		settled_amount TEXT NOT NULL,
		status_after TEXT NOT NULL,
		created_at DATETIME
	)`,
}

// Open returns an isolated in-memory database with the settlement tables.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:procurement_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
