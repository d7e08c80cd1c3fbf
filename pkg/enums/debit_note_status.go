package enums

import "fmt"

// DebitNoteStatus maps to the debit_note_status_enum enum in Postgres.
type DebitNoteStatus string

const (
	DebitNoteStatusRaised  DebitNoteStatus = "raised"
	DebitNoteStatusSent    DebitNoteStatus = "sent"
	DebitNoteStatusPartial DebitNoteStatus = "partial"
	DebitNoteStatusSettled DebitNoteStatus = "settled"
)

var validDebitNoteStatuses = []DebitNoteStatus{
	DebitNoteStatusRaised,
	DebitNoteStatusSent,
	DebitNoteStatusPartial,
	DebitNoteStatusSettled,
}

// IsValid reports whether the value matches the canonical debit note status enum.
func (s DebitNoteStatus) IsValid() bool {
	for _, candidate := range validDebitNoteStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsFinancial reports whether the status is driven by settlement totals
// rather than by the document workflow.
func (s DebitNoteStatus) IsFinancial() bool {
	return s == DebitNoteStatusPartial || s == DebitNoteStatusSettled
}

// ParseDebitNoteStatus converts raw input into DebitNoteStatus.
func ParseDebitNoteStatus(value string) (DebitNoteStatus, error) {
	for _, candidate := range validDebitNoteStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid debit note status %q", value)
}
