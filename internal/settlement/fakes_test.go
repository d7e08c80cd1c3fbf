package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/enums"
)

type fakeDebitStore struct {
	mu      sync.Mutex
	order   []uuid.UUID
	notes   map[uuid.UUID]models.DebitNote
	history map[uuid.UUID][]models.DebitNoteSettlement

	findOpenCalls []ObligationFilter
	applyCalls    int

	findOpenErr error
	// beforeApply runs ahead of every write; returning an error fails the write.
	beforeApply func(call int, note *models.DebitNote) error
}

func newFakeDebitStore(notes ...models.DebitNote) *fakeDebitStore {
	store := &fakeDebitStore{
		notes:   map[uuid.UUID]models.DebitNote{},
		history: map[uuid.UUID][]models.DebitNoteSettlement{},
	}
	for _, note := range notes {
		store.order = append(store.order, note.ID)
		store.notes[note.ID] = note
		if note.TotalSettledAmount.IsPositive() {
			store.history[note.ID] = []models.DebitNoteSettlement{{
				DebitNoteID:   note.ID,
				CreditNoteID:  uuid.New(),
				SettledAmount: note.TotalSettledAmount,
			}}
		}
	}
	return store
}

func (f *fakeDebitStore) FindOpen(ctx context.Context, filter ObligationFilter) ([]models.DebitNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findOpenCalls = append(f.findOpenCalls, filter)
	if f.findOpenErr != nil {
		return nil, f.findOpenErr
	}

	wanted := map[uuid.UUID]bool{}
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []models.DebitNote
	for _, id := range f.order {
		note := f.notes[id]
		if note.CompanyID != filter.CompanyID || note.VendorID != filter.VendorID || note.SiteID != filter.SiteID {
			continue
		}
		if note.Status == enums.DebitNoteStatusSettled {
			continue
		}
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

func (f *fakeDebitStore) FindByID(ctx context.Context, companyID, id uuid.UUID) (*models.DebitNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[id]
	if !ok || note.CompanyID != companyID {
		return nil, nil
	}
	return &note, nil
}

func (f *fakeDebitStore) ApplySettlement(ctx context.Context, note *models.DebitNote, expectedVersion int, entry models.DebitNoteSettlement) error {
	f.mu.Lock()
	f.applyCalls++
	call := f.applyCalls
	hook := f.beforeApply
	f.mu.Unlock()

	if hook != nil {
		stored := f.snapshot(note.ID)
		if err := hook(call, &stored); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.notes[note.ID]
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	stored.TotalSettledAmount = note.TotalSettledAmount
	stored.Status = note.Status
	stored.Version = expectedVersion + 1
	f.notes[note.ID] = stored
	f.history[note.ID] = append(f.history[note.ID], entry)
	note.Version = stored.Version
	return nil
}

func (f *fakeDebitStore) snapshot(id uuid.UUID) models.DebitNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes[id]
}

// settleConcurrently simulates another allocation pass writing to the note.
func (f *fakeDebitStore) settleConcurrently(id uuid.UUID, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note := f.notes[id]
	settled := note.TotalSettledAmount.Add(decimal.RequireFromString(amount))
	note.TotalSettledAmount = settled
	note.Status = DeriveStatus(note.GrandTotal, settled, note.Status)
	note.Version++
	f.notes[id] = note
	f.history[id] = append(f.history[id], models.DebitNoteSettlement{
		DebitNoteID:   id,
		CreditNoteID:  uuid.New(),
		SettledAmount: decimal.RequireFromString(amount),
	})
}

type fakeCreditStore struct {
	saved []models.CreditNote
	err   error
}

func (f *fakeCreditStore) SaveAllocation(ctx context.Context, credit *models.CreditNote) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *credit)
	return nil
}

var (
	testCompany = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	testVendor  = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	testSite    = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	testEpoch   = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
)

func debitNote(number string, grandTotal, settled string, createdAfter time.Duration) models.DebitNote {
	grand := decimal.RequireFromString(grandTotal)
	total := decimal.RequireFromString(settled)
	return models.DebitNote{
		ID:                 uuid.New(),
		CompanyID:          testCompany,
		Number:             number,
		VendorID:           testVendor,
		SiteID:             testSite,
		GrandTotal:         grand,
		TotalSettledAmount: total,
		Status:             DeriveStatus(grand, total, enums.DebitNoteStatusSent),
		Version:            1,
		CreatedAt:          testEpoch.Add(createdAfter),
	}
}

func creditNote(amount string) *models.CreditNote {
	return &models.CreditNote{
		ID:           uuid.New(),
		CompanyID:    testCompany,
		Number:       "CN-7781",
		CreditAmount: decimal.RequireFromString(amount),
		DocumentRef:  "credit-notes/cn-7781.pdf",
		VendorID:     testVendor,
		SiteID:       testSite,
	}
}

var errStoreDown = errors.New("connection reset by peer")
