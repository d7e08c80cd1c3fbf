package settlement

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
	pkgerrors "github.com/siteworks/procurement-backend/pkg/errors"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/metrics"
)

func newTestAllocator(t *testing.T, debits *fakeDebitStore, credits *fakeCreditStore) Allocator {
	t.Helper()
	alloc, err := NewAllocator(AllocatorParams{
		Debits:  debits,
		Credits: credits,
		Logger:  logger.New(logger.Options{ServiceName: "settlement-test", Output: &bytes.Buffer{}}),
		Metrics: metrics.NewSettlementMetrics(prometheus.NewRegistry()),
		Clock:   func() time.Time { return testEpoch.Add(48 * time.Hour) },
	})
	require.NoError(t, err)
	return alloc
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

// requireReconciled checks conservation and that both histories agree 1:1.
func requireReconciled(t *testing.T, store *fakeDebitStore, credit *models.CreditNote) {
	t.Helper()
	require.True(t, credit.AllocatedAmount().LessThanOrEqual(credit.CreditAmount))

	for _, entry := range credit.Settlements {
		var matches int
		for _, debit := range store.history[entry.DebitNoteID] {
			if debit.CreditNoteID == credit.ID {
				matches++
				require.True(t, debit.SettledAmount.Equal(entry.SettledAmount))
			}
		}
		require.Equal(t, 1, matches, "debit note %s should carry exactly one entry for the credit", entry.DebitNoteNumber)
	}

	for id, entries := range store.history {
		note := store.notes[id]
		total := decimal.Zero
		for _, e := range entries {
			total = total.Add(e.SettledAmount)
		}
		require.True(t, total.Equal(note.TotalSettledAmount), "settled total drifted on %s", note.Number)
		require.True(t, note.TotalSettledAmount.LessThanOrEqual(note.GrandTotal))
		require.Equal(t, DeriveStatus(note.GrandTotal, note.TotalSettledAmount, note.Status), note.Status)
	}
}

func TestAllocateRejectsNonPositiveAmount(t *testing.T) {
	for _, amount := range []string{"0", "-10.50"} {
		debits := newFakeDebitStore(debitNote("DN-00001", "100", "0", 0))
		credits := &fakeCreditStore{}
		alloc := newTestAllocator(t, debits, credits)

		_, err := alloc.Allocate(context.Background(), testCompany, creditNote(amount), nil)
		require.Error(t, err)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		require.Empty(t, debits.findOpenCalls, "no store access expected for amount %s", amount)
		require.Empty(t, credits.saved)
	}
}

func TestAllocateRejectsAlreadyAllocatedCredit(t *testing.T) {
	debits := newFakeDebitStore(debitNote("DN-00001", "100", "0", 0))
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})

	credit := creditNote("50")
	at := testEpoch
	credit.AllocatedAt = &at

	_, err := alloc.Allocate(context.Background(), testCompany, credit, nil)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	require.Zero(t, debits.applyCalls)
}

func TestAllocateSettlesOldestFirst(t *testing.T) {
	o1 := debitNote("DN-00001", "100", "0", 0)
	o2 := debitNote("DN-00002", "50", "0", time.Hour)
	debits := newFakeDebitStore(o2, o1)
	credits := &fakeCreditStore{}
	alloc := newTestAllocator(t, debits, credits)

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("120"), nil)
	require.NoError(t, err)

	require.Len(t, result.Settlements(), 2)
	assert.Equal(t, o1.ID, result.Settlements()[0].DebitNoteID)
	assert.Equal(t, enums.DebitNoteStatusSettled, result.Settlements()[0].StatusAfter)
	requireDecimal(t, "100", result.Settlements()[0].SettledAmount)
	assert.Equal(t, o2.ID, result.Settlements()[1].DebitNoteID)
	requireDecimal(t, "20", result.Settlements()[1].SettledAmount)

	stored := debits.notes[o2.ID]
	requireDecimal(t, "20", stored.TotalSettledAmount)
	assert.Equal(t, enums.DebitNoteStatusPartial, stored.Status)
	assert.True(t, result.FullyAllocated)
	requireReconciled(t, debits, result.Credit)
}

func TestAllocateStopsWhenCreditIsExhausted(t *testing.T) {
	o1 := debitNote("DN-00001", "100", "0", 0)
	o2 := debitNote("DN-00002", "50", "0", time.Hour)
	debits := newFakeDebitStore(o1, o2)
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("30"), nil)
	require.NoError(t, err)

	require.Len(t, result.Settlements(), 1)
	requireDecimal(t, "30", debits.notes[o1.ID].TotalSettledAmount)
	assert.Equal(t, enums.DebitNoteStatusPartial, debits.notes[o1.ID].Status)
	assert.Equal(t, 1, debits.applyCalls)
	assert.Equal(t, o2, debits.notes[o2.ID])
	assert.Empty(t, debits.history[o2.ID])
	assert.True(t, result.FullyAllocated)
}

func TestAllocateNeverSelectsSettledNotes(t *testing.T) {
	settled := debitNote("DN-00001", "100", "100", 0)
	open := debitNote("DN-00002", "80", "0", time.Hour)
	debits := newFakeDebitStore(settled, open)
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("40"), []uuid.UUID{settled.ID, open.ID})
	require.NoError(t, err)

	require.Len(t, result.Settlements(), 1)
	assert.Equal(t, open.ID, result.Settlements()[0].DebitNoteID)
	assert.Equal(t, settled, debits.notes[settled.ID])
	require.Len(t, debits.findOpenCalls, 1)
	assert.Equal(t, []uuid.UUID{settled.ID, open.ID}, debits.findOpenCalls[0].IDs)
}

func TestAllocateDropsUnknownAndForeignTargets(t *testing.T) {
	own := debitNote("DN-00001", "100", "0", 0)
	foreign := debitNote("DN-00002", "100", "0", time.Hour)
	foreign.SiteID = uuid.New()
	debits := newFakeDebitStore(own, foreign)
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("150"), []uuid.UUID{uuid.New(), foreign.ID, own.ID})
	require.NoError(t, err)

	require.Len(t, result.Settlements(), 1)
	requireDecimal(t, "100", result.Allocated)
	requireDecimal(t, "50", result.Unallocated)
	assert.False(t, result.FullyAllocated)
	assert.Empty(t, debits.history[foreign.ID])
}

func TestAllocateWithNoEligibleNotesStillSavesCredit(t *testing.T) {
	other := debitNote("DN-00001", "100", "0", 0)
	other.VendorID = uuid.New()
	debits := newFakeDebitStore(other)
	credits := &fakeCreditStore{}
	alloc := newTestAllocator(t, debits, credits)

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("75"), nil)
	require.NoError(t, err)

	assert.Zero(t, debits.applyCalls)
	assert.Empty(t, result.Settlements())
	assert.False(t, result.FullyAllocated)
	assert.Equal(t, enums.AllocationOutcomeNone, result.Outcome())
	requireDecimal(t, "75", result.Unallocated)
	require.Len(t, credits.saved, 1)
	assert.NotNil(t, credits.saved[0].AllocatedAt)
}

func TestAllocateEndToEnd(t *testing.T) {
	cases := []struct {
		name        string
		amount      string
		o2Settled   string
		allocated   string
		unallocated string
		full        bool
		outcome     enums.AllocationOutcome
	}{
		{name: "credit consumed exactly", amount: "650", o2Settled: "250", allocated: "650", unallocated: "0", full: true, outcome: enums.AllocationOutcomeFull},
		{name: "credit left over", amount: "900", o2Settled: "300", allocated: "700", unallocated: "200", full: false, outcome: enums.AllocationOutcomePartial},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o1 := debitNote("DN-00001", "500", "0", 0)
			o2 := debitNote("DN-00002", "300", "100", time.Hour)
			debits := newFakeDebitStore(o1, o2)
			credits := &fakeCreditStore{}
			alloc := newTestAllocator(t, debits, credits)

			result, err := alloc.Allocate(context.Background(), testCompany, creditNote(tc.amount), nil)
			require.NoError(t, err)

			requireDecimal(t, "500", debits.notes[o1.ID].TotalSettledAmount)
			assert.Equal(t, enums.DebitNoteStatusSettled, debits.notes[o1.ID].Status)
			requireDecimal(t, tc.o2Settled, debits.notes[o2.ID].TotalSettledAmount)
			requireDecimal(t, tc.allocated, result.Allocated)
			requireDecimal(t, tc.unallocated, result.Unallocated)
			assert.Equal(t, tc.full, result.FullyAllocated)
			assert.Equal(t, tc.outcome, result.Outcome())
			require.Len(t, result.Settlements(), 2)
			assert.Equal(t, 1, result.Settlements()[0].Position)
			assert.Equal(t, 2, result.Settlements()[1].Position)
			require.Len(t, result.DebitNotes, 2)
			assert.Equal(t, 2, debits.notes[o1.ID].Version)
			require.Len(t, credits.saved, 1)
			requireReconciled(t, debits, result.Credit)
		})
	}
}

func TestAllocateReplansAfterVersionConflict(t *testing.T) {
	o1 := debitNote("DN-00001", "500", "0", 0)
	debits := newFakeDebitStore(o1)
	debits.beforeApply = func(call int, note *models.DebitNote) error {
		if call == 1 {
			debits.settleConcurrently(o1.ID, "450")
		}
		return nil
	}
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("200"), nil)
	require.NoError(t, err)

	require.Len(t, result.Settlements(), 1)
	requireDecimal(t, "50", result.Settlements()[0].SettledAmount)
	requireDecimal(t, "500", debits.notes[o1.ID].TotalSettledAmount)
	assert.Equal(t, enums.DebitNoteStatusSettled, debits.notes[o1.ID].Status)
	requireDecimal(t, "150", result.Unallocated)
	assert.Equal(t, 2, debits.applyCalls)
	requireReconciled(t, debits, result.Credit)
}

func TestAllocateSkipsNoteSettledByConcurrentWriter(t *testing.T) {
	o1 := debitNote("DN-00001", "100", "0", 0)
	o2 := debitNote("DN-00002", "100", "0", time.Hour)
	debits := newFakeDebitStore(o1, o2)
	debits.beforeApply = func(call int, note *models.DebitNote) error {
		if call == 1 {
			debits.settleConcurrently(o1.ID, "100")
		}
		return nil
	}
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})

	result, err := alloc.Allocate(context.Background(), testCompany, creditNote("60"), nil)
	require.NoError(t, err)

	require.Len(t, result.Settlements(), 1)
	assert.Equal(t, o2.ID, result.Settlements()[0].DebitNoteID)
	requireReconciled(t, debits, result.Credit)
}

func TestAllocateFailsAfterExhaustingAttempts(t *testing.T) {
	o1 := debitNote("DN-00001", "1000", "0", 0)
	debits := newFakeDebitStore(o1)
	debits.beforeApply = func(call int, note *models.DebitNote) error {
		debits.settleConcurrently(o1.ID, "1")
		return nil
	}
	credits := &fakeCreditStore{}
	alloc := newTestAllocator(t, debits, credits)

	_, err := alloc.Allocate(context.Background(), testCompany, creditNote("10"), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, defaultMaxAttempts, debits.applyCalls)
	assert.Empty(t, credits.saved)
}

func TestAllocatePersistenceFailureKeepsEarlierWrites(t *testing.T) {
	o1 := debitNote("DN-00001", "100", "0", 0)
	o2 := debitNote("DN-00002", "100", "0", time.Hour)
	debits := newFakeDebitStore(o1, o2)
	debits.beforeApply = func(call int, note *models.DebitNote) error {
		if call == 2 {
			return errStoreDown
		}
		return nil
	}
	credits := &fakeCreditStore{}
	alloc := newTestAllocator(t, debits, credits)

	_, err := alloc.Allocate(context.Background(), testCompany, creditNote("150"), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.ErrorIs(t, err, errStoreDown)

	requireDecimal(t, "100", debits.notes[o1.ID].TotalSettledAmount)
	assert.Empty(t, debits.history[o2.ID])
	assert.Empty(t, credits.saved)
}

func TestAllocateSurfacesStoreFailures(t *testing.T) {
	debits := newFakeDebitStore()
	debits.findOpenErr = errStoreDown
	alloc := newTestAllocator(t, debits, &fakeCreditStore{})
	_, err := alloc.Allocate(context.Background(), testCompany, creditNote("10"), nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	debits = newFakeDebitStore(debitNote("DN-00001", "100", "0", 0))
	alloc = newTestAllocator(t, debits, &fakeCreditStore{err: errStoreDown})
	_, err = alloc.Allocate(context.Background(), testCompany, creditNote("10"), nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, 1, debits.applyCalls)
}

func TestNewAllocatorRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: &bytes.Buffer{}})

	_, err := NewAllocator(AllocatorParams{Credits: &fakeCreditStore{}, Logger: logg})
	require.Error(t, err)
	_, err = NewAllocator(AllocatorParams{Debits: newFakeDebitStore(), Logger: logg})
	require.Error(t, err)
	_, err = NewAllocator(AllocatorParams{Debits: newFakeDebitStore(), Credits: &fakeCreditStore{}})
	require.Error(t, err)
}
