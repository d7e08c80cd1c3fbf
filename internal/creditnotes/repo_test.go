package creditnotes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

func TestFindUnallocatedBefore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	stale := &models.CreditNote{
		CompanyID: company, Number: "CN-STALE", CreditNoteDate: cutoff,
		CreditAmount: decimal.NewFromInt(50), DocumentRef: "x.pdf",
		PurchaseOrderNumber: "PO-1", VendorID: vendor, SiteID: site,
	}
	fresh := &models.CreditNote{
		CompanyID: company, Number: "CN-FRESH", CreditNoteDate: cutoff,
		CreditAmount: decimal.NewFromInt(50), DocumentRef: "y.pdf",
		PurchaseOrderNumber: "PO-1", VendorID: vendor, SiteID: site,
	}
	require.NoError(t, h.credits.Create(ctx, stale))
	require.NoError(t, h.credits.Create(ctx, fresh))
	require.NoError(t, h.conn.Model(&models.CreditNote{}).Where("id = ?", stale.ID).Update("created_at", cutoff.Add(-time.Hour)).Error)
	require.NoError(t, h.conn.Model(&models.CreditNote{}).Where("id = ?", fresh.ID).Update("created_at", cutoff.Add(time.Hour)).Error)

	done, err := h.svc.Create(ctx, creditInput("CN-DONE", "10"))
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&models.CreditNote{}).Where("id = ?", done.Credit.ID).Update("created_at", cutoff.Add(-2*time.Hour)).Error)

	found, err := h.credits.FindUnallocatedBefore(ctx, cutoff, nil, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)

	rest, err := h.credits.FindUnallocatedBefore(ctx, cutoff, &pagination.Cursor{CreatedAt: found[0].CreatedAt, ID: found[0].ID}, 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestFindUnallocatedBeforeResumesAfterCursor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i, number := range []string{"CN-1", "CN-2", "CN-3"} {
		credit := &models.CreditNote{
			CompanyID: company, Number: number, CreditNoteDate: cutoff,
			CreditAmount: decimal.NewFromInt(5), DocumentRef: "x.pdf",
			PurchaseOrderNumber: "PO-1", VendorID: vendor, SiteID: site,
		}
		require.NoError(t, h.credits.Create(ctx, credit))
		at := cutoff.Add(-time.Duration(3-i) * time.Hour)
		require.NoError(t, h.conn.Model(&models.CreditNote{}).Where("id = ?", credit.ID).Update("created_at", at).Error)
		ids = append(ids, credit.ID)
	}

	first, err := h.credits.FindUnallocatedBefore(ctx, cutoff, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[:2], []uuid.UUID{first[0].ID, first[1].ID})

	last := first[len(first)-1]
	second, err := h.credits.FindUnallocatedBefore(ctx, cutoff, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, ids[2], second[0].ID)
}

func TestSettlementsForDebitNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	o1 := h.raise(t, "100", t1)
	o2 := h.raise(t, "100", t1.Add(time.Hour))

	_, err := h.svc.Create(ctx, creditInput("CN-A", "150"))
	require.NoError(t, err)

	rows, err := h.credits.SettlementsForDebitNotes(ctx, []uuid.UUID{o2.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, o2.ID, rows[0].DebitNoteID)
	assert.True(t, rows[0].SettledAmount.Equal(decimal.NewFromInt(50)))

	rows, err = h.credits.SettlementsForDebitNotes(ctx, []uuid.UUID{o1.ID, o2.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = h.credits.SettlementsForDebitNotes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
