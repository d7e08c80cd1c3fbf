package creditnotes

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/internal/debitnotes"
	"github.com/siteworks/procurement-backend/internal/repo/repotest"
	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db"
	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/metrics"
)

var (
	company = uuid.MustParse("9d4c3b2a-1f0e-4d9c-8b7a-6f5e4d3c2b1a")
	vendor  = uuid.MustParse("1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d")
	site    = uuid.MustParse("5e6f7a8b-9c0d-4e1f-8a2b-3c4d5e6f7a8b")
)

type harness struct {
	conn    *gorm.DB
	svc     Service
	credits Repository
	debits  debitnotes.Repository
	notes   debitnotes.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := repotest.Open(t)
	debits := debitnotes.NewRepository(conn)
	credits := NewRepository(conn)

	alloc, err := settlement.NewAllocator(settlement.AllocatorParams{
		Debits:  debits,
		Credits: credits,
		Logger:  logger.New(logger.Options{ServiceName: "creditnotes-test", Output: &bytes.Buffer{}}),
		Metrics: metrics.NewSettlementMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	svc, err := NewService(credits, alloc)
	require.NoError(t, err)
	notes, err := debitnotes.NewService(debits, db.FromConn(conn))
	require.NoError(t, err)
	return &harness{conn: conn, svc: svc, credits: credits, debits: debits, notes: notes}
}

// raise creates a debit note and backdates it so creation order is explicit.
func (h *harness) raise(t *testing.T, total string, createdAt time.Time) *models.DebitNote {
	t.Helper()
	note, err := h.notes.Create(context.Background(), debitnotes.CreateInput{
		CompanyID:       company,
		PurchaseOrderID: uuid.New(),
		VendorID:        vendor,
		SiteID:          site,
		Reason:          "short supply",
		GrandTotal:      decimal.RequireFromString(total),
	})
	require.NoError(t, err)
	require.NoError(t, h.conn.Model(&models.DebitNote{}).Where("id = ?", note.ID).Update("created_at", createdAt).Error)
	return note
}

// settleDirect records a prior settlement through the debit note store.
func (h *harness) settleDirect(t *testing.T, note *models.DebitNote, amount string) {
	t.Helper()
	stored, err := h.debits.FindByID(context.Background(), company, note.ID)
	require.NoError(t, err)
	settled := stored.TotalSettledAmount.Add(decimal.RequireFromString(amount))
	stored.TotalSettledAmount = settled
	stored.Status = settlement.DeriveStatus(stored.GrandTotal, settled, stored.Status)
	require.NoError(t, h.debits.ApplySettlement(context.Background(), stored, stored.Version, models.DebitNoteSettlement{
		DebitNoteID:      note.ID,
		CreditNoteID:     uuid.New(),
		CreditNoteNumber: "CN-OLD",
		SettledAmount:    decimal.RequireFromString(amount),
		SettledOn:        time.Now().UTC(),
	}))
}

func creditInput(number, amount string) CreateInput {
	return CreateInput{
		CompanyID:           company,
		Number:              number,
		Date:                time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Amount:              decimal.RequireFromString(amount),
		DocumentRef:         "uploads/" + number + ".pdf",
		PurchaseOrderNumber: "PO-2026-0042",
		VendorID:            vendor,
		SiteID:              site,
	}
}

func TestCreateAllocatesAcrossOpenDebitNotes(t *testing.T) {
	cases := []struct {
		amount      string
		o2Settled   string
		unallocated string
		full        bool
	}{
		{amount: "650", o2Settled: "250", unallocated: "0", full: true},
		{amount: "900", o2Settled: "300", unallocated: "200", full: false},
	}

	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			h := newHarness(t)
			t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
			o1 := h.raise(t, "500", t1)
			o2 := h.raise(t, "300", t1.Add(24*time.Hour))
			h.settleDirect(t, o2, "100")

			result, err := h.svc.Create(context.Background(), creditInput("CN-"+tc.amount, tc.amount))
			require.NoError(t, err)
			assert.Equal(t, tc.full, result.FullyAllocated)
			assert.True(t, result.Unallocated.Equal(decimal.RequireFromString(tc.unallocated)))

			stored, err := h.svc.Get(context.Background(), company, result.Credit.ID)
			require.NoError(t, err)
			require.NotNil(t, stored.AllocatedAt)
			require.Len(t, stored.Settlements, 2)
			assert.Equal(t, o1.ID, stored.Settlements[0].DebitNoteID)
			assert.Equal(t, enums.DebitNoteStatusSettled, stored.Settlements[0].StatusAfter)
			assert.Equal(t, o2.ID, stored.Settlements[1].DebitNoteID)

			first, err := h.notes.Get(context.Background(), company, o1.ID)
			require.NoError(t, err)
			assert.Equal(t, enums.DebitNoteStatusSettled, first.Status)
			assert.True(t, first.TotalSettledAmount.Equal(decimal.NewFromInt(500)))

			second, err := h.notes.Get(context.Background(), company, o2.ID)
			require.NoError(t, err)
			assert.True(t, second.TotalSettledAmount.Equal(decimal.RequireFromString(tc.o2Settled)))
			require.Len(t, second.Settlements, 2)
			mirror := second.Settlements[1]
			assert.Equal(t, result.Credit.ID, mirror.CreditNoteID)
			assert.True(t, mirror.SettledAmount.Equal(stored.Settlements[1].SettledAmount))

			rows, err := h.credits.SettlementsForDebitNotes(context.Background(), []uuid.UUID{o1.ID, o2.ID})
			require.NoError(t, err)
			assert.Len(t, rows, 2)
		})
	}
}

func TestCreateWithoutMatchesKeepsCreditUnallocated(t *testing.T) {
	h := newHarness(t)

	result, err := h.svc.Create(context.Background(), creditInput("CN-1", "75"))
	require.NoError(t, err)
	assert.False(t, result.FullyAllocated)
	assert.Empty(t, result.Settlements())
	assert.True(t, result.Unallocated.Equal(decimal.NewFromInt(75)))

	stored, err := h.svc.Get(context.Background(), company, result.Credit.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.AllocatedAt)
	assert.Empty(t, stored.Settlements)
}

func TestCreateHonoursExplicitTargets(t *testing.T) {
	h := newHarness(t)
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := h.raise(t, "100", t1)
	newer := h.raise(t, "100", t1.Add(time.Hour))

	in := creditInput("CN-7", "60")
	in.DebitNoteIDs = []uuid.UUID{newer.ID, newer.ID, uuid.New()}
	result, err := h.svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Settlements(), 1)
	assert.Equal(t, newer.ID, result.Settlements()[0].DebitNoteID)

	untouched, err := h.notes.Get(context.Background(), company, older.ID)
	require.NoError(t, err)
	assert.True(t, untouched.TotalSettledAmount.IsZero())
	assert.Equal(t, enums.DebitNoteStatusRaised, untouched.Status)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-3", "1.00001"} {
		_, err := h.svc.Create(ctx, creditInput("CN-bad", amount))
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "amount %s: %v", amount, err)
	}

	in := creditInput("", "10")
	_, err := h.svc.Create(ctx, in)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, h.conn.Model(&models.CreditNote{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRejectsDuplicateVendorNumber(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Create(ctx, creditInput("CN-55", "10"))
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, creditInput("CN-55", "10"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, first.Credit.ID.String(), details["credit_note_id"])
	assert.NotContains(t, details, "allocation_incomplete")
}

func TestCreateDuplicateOfInterruptedCreditNeedsReconciliation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// a credit whose allocation pass never stamped allocated_at
	stranded := &models.CreditNote{
		CompanyID: company, Number: "CN-77", CreditNoteDate: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		CreditAmount: decimal.NewFromInt(40), DocumentRef: "uploads/CN-77.pdf",
		PurchaseOrderNumber: "PO-2026-0042", VendorID: vendor, SiteID: site,
	}
	require.NoError(t, h.credits.Create(ctx, stranded))

	_, err := h.svc.Create(ctx, creditInput("CN-77", "40"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)
	assert.Contains(t, pkgerrors.As(err).Message(), "reconciliation required")

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, stranded.ID.String(), details["credit_note_id"])
	assert.Equal(t, true, details["allocation_incomplete"])
}

func TestSaveAllocationOnlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	result, err := h.svc.Create(ctx, creditInput("CN-2", "10"))
	require.NoError(t, err)

	credit := result.Credit
	credit.Settlements = nil
	err = h.credits.SaveAllocation(ctx, credit)
	assert.True(t, errors.Is(err, settlement.ErrAlreadyAllocated))
}

func TestListCreditNotes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, number := range []string{"CN-a", "CN-b", "CN-c"} {
		_, err := h.svc.Create(ctx, creditInput(number, "5"))
		require.NoError(t, err)
	}

	page, err := h.svc.List(ctx, ListParams{CompanyID: company, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := h.svc.List(ctx, ListParams{CompanyID: company, Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)

	other := uuid.New()
	none, err := h.svc.List(ctx, ListParams{CompanyID: company, VendorID: &other})
	require.NoError(t, err)
	assert.Empty(t, none.Items)

	_, err = h.svc.Get(ctx, company, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil)
	require.Error(t, err)
	_, err = NewService(NewRepository(repotest.Open(t)), nil)
	require.Error(t, err)
}
