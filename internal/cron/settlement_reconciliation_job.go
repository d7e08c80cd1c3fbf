package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/siteworks/procurement-backend/internal/settlement"
	"github.com/siteworks/procurement-backend/pkg/db/models"
	"github.com/siteworks/procurement-backend/pkg/logger"
	"github.com/siteworks/procurement-backend/pkg/metrics"
	"github.com/siteworks/procurement-backend/pkg/pagination"
)

const (
	reconciliationJobName   = "settlement_reconciliation"
	reconciliationBatchSize = 200
	reconciliationGrace     = 15 * time.Minute
)

type debitLedger interface {
	ScanWithSettlements(ctx context.Context, afterID uuid.UUID, limit int) ([]models.DebitNote, error)
}

type creditLedger interface {
	SettlementsForDebitNotes(ctx context.Context, debitNoteIDs []uuid.UUID) ([]models.CreditNoteSettlement, error)
	FindUnallocatedBefore(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.CreditNote, error)
}

type SettlementReconciliationJobParams struct {
	Logger    *logger.Logger
	Debits    debitLedger
	Credits   creditLedger
	Metrics   *metrics.SettlementMetrics
	BatchSize int
	// Grace skips rows newer than now-Grace; an allocation in flight writes
	// the credit side last.
	Grace time.Duration
}

func NewSettlementReconciliationJob(params SettlementReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Debits == nil {
		return nil, fmt.Errorf("debit note ledger required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit note ledger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reconciliationBatchSize
	}
	grace := params.Grace
	if grace <= 0 {
		grace = reconciliationGrace
	}
	return &settlementReconciliationJob{
		logg:    params.Logger,
		debits:  params.Debits,
		credits: params.Credits,
		metrics: params.Metrics,
		batch:   batch,
		grace:   grace,
		now:     time.Now,
	}, nil
}

type settlementReconciliationJob struct {
	logg    *logger.Logger
	debits  debitLedger
	credits creditLedger
	metrics *metrics.SettlementMetrics
	batch   int
	grace   time.Duration
	now     func() time.Time
}

// Mismatch describes one inconsistency between a debit note and its ledgers.
type Mismatch struct {
	CompanyID    uuid.UUID
	DebitNoteID  uuid.UUID
	CreditNoteID uuid.UUID
	Check        string
	Detail       string
}

func (m Mismatch) Error() string {
	if m.DebitNoteID == uuid.Nil {
		return fmt.Sprintf("%s: credit note %s: %s", m.Check, m.CreditNoteID, m.Detail)
	}
	return fmt.Sprintf("%s: debit note %s: %s", m.Check, m.DebitNoteID, m.Detail)
}

func (j *settlementReconciliationJob) Name() string { return reconciliationJobName }

func (j *settlementReconciliationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)

	var (
		found   error
		scanned int
		after   uuid.UUID
	)
	for {
		notes, err := j.debits.ScanWithSettlements(ctx, after, j.batch)
		if err != nil {
			return fmt.Errorf("scan debit notes: %w", err)
		}
		if len(notes) == 0 {
			break
		}

		ids := make([]uuid.UUID, len(notes))
		for i, note := range notes {
			ids[i] = note.ID
		}
		mirrors, err := j.credits.SettlementsForDebitNotes(ctx, ids)
		if err != nil {
			return fmt.Errorf("load credit note settlements: %w", err)
		}
		index := indexMirrors(mirrors)

		for _, note := range notes {
			for _, m := range checkDebitNote(note, index[note.ID], cutoff) {
				j.report(ctx, m)
				found = multierr.Append(found, m)
			}
		}

		scanned += len(notes)
		after = notes[len(notes)-1].ID
		if len(notes) < j.batch {
			break
		}
	}

	var position *pagination.Cursor
	for {
		stuck, err := j.credits.FindUnallocatedBefore(ctx, cutoff, position, j.batch)
		if err != nil {
			return fmt.Errorf("load unallocated credit notes: %w", err)
		}
		for _, credit := range stuck {
			m := Mismatch{
				CompanyID:    credit.CompanyID,
				CreditNoteID: credit.ID,
				Check:        "allocation_incomplete",
				Detail:       fmt.Sprintf("credit %s created %s was never allocated", credit.Number, credit.CreatedAt.Format(time.RFC3339)),
			}
			j.report(ctx, m)
			found = multierr.Append(found, m)
		}
		if len(stuck) < j.batch {
			break
		}
		last := stuck[len(stuck)-1]
		position = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	count := len(multierr.Errors(found))
	j.metrics.SetReconciliationMismatches(count)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"debit_notes_scanned": scanned,
		"mismatches":          count,
		"cutoff":              cutoff,
	})
	if found != nil {
		j.logg.Warn(logCtx, "settlement reconciliation found mismatches")
		return fmt.Errorf("settlement reconciliation found %d mismatches: %w", count, found)
	}
	j.logg.Info(logCtx, "settlement reconciliation clean")
	return nil
}

func (j *settlementReconciliationJob) report(ctx context.Context, m Mismatch) {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"company_id":     m.CompanyID.String(),
		"debit_note_id":  m.DebitNoteID.String(),
		"credit_note_id": m.CreditNoteID.String(),
		"check":          m.Check,
	})
	j.logg.Warn(logCtx, m.Detail)
}

func indexMirrors(rows []models.CreditNoteSettlement) map[uuid.UUID]map[uuid.UUID]models.CreditNoteSettlement {
	index := make(map[uuid.UUID]map[uuid.UUID]models.CreditNoteSettlement)
	for _, row := range rows {
		byCredit, ok := index[row.DebitNoteID]
		if !ok {
			byCredit = make(map[uuid.UUID]models.CreditNoteSettlement)
			index[row.DebitNoteID] = byCredit
		}
		byCredit[row.CreditNoteID] = row
	}
	return index
}

// checkDebitNote compares a debit note with its own history and with the
// credit-side rows that point at it. Debit rows settled after cutoff are not
// expected to be mirrored yet.
func checkDebitNote(note models.DebitNote, mirrors map[uuid.UUID]models.CreditNoteSettlement, cutoff time.Time) []Mismatch {
	var out []Mismatch
	add := func(creditID uuid.UUID, check, detail string) {
		out = append(out, Mismatch{
			CompanyID:    note.CompanyID,
			DebitNoteID:  note.ID,
			CreditNoteID: creditID,
			Check:        check,
			Detail:       detail,
		})
	}

	sum := decimal.Zero
	seen := make(map[uuid.UUID]struct{}, len(note.Settlements))
	for _, row := range note.Settlements {
		sum = sum.Add(row.SettledAmount)
		seen[row.CreditNoteID] = struct{}{}

		mirror, ok := mirrors[row.CreditNoteID]
		switch {
		case !ok && row.SettledOn.Before(cutoff):
			add(row.CreditNoteID, "mirror_missing",
				fmt.Sprintf("%s settled %s with no credit-side row", row.CreditNoteNumber, row.SettledAmount))
		case ok && !mirror.SettledAmount.Equal(row.SettledAmount):
			add(row.CreditNoteID, "mirror_amount",
				fmt.Sprintf("debit side %s, credit side %s", row.SettledAmount, mirror.SettledAmount))
		}
	}
	for creditID, mirror := range mirrors {
		if _, ok := seen[creditID]; !ok {
			add(creditID, "mirror_orphan",
				fmt.Sprintf("credit-side row of %s with no debit-side row", mirror.SettledAmount))
		}
	}

	if !sum.Equal(note.TotalSettledAmount) {
		add(uuid.Nil, "settled_sum",
			fmt.Sprintf("total_settled_amount %s, history sums to %s", note.TotalSettledAmount, sum))
	}
	if note.TotalSettledAmount.GreaterThan(note.GrandTotal) {
		add(uuid.Nil, "settled_cap",
			fmt.Sprintf("total_settled_amount %s exceeds grand_total %s", note.TotalSettledAmount, note.GrandTotal))
	}
	if want := settlement.DeriveStatus(note.GrandTotal, note.TotalSettledAmount, note.Status); want != note.Status {
		add(uuid.Nil, "status",
			fmt.Sprintf("status %s, amounts imply %s", note.Status, want))
	}
	return out
}
