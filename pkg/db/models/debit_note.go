package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/siteworks/procurement-backend/pkg/db/types"
	"github.com/siteworks/procurement-backend/pkg/enums"
)

// DebitNote is a claim raised against a vendor for value to be recovered.
// GrandTotal is fixed at creation; TotalSettledAmount only grows as credit
// notes are allocated against it.
type DebitNote struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID          uuid.UUID             `gorm:"column:company_id;type:uuid;not null"`
	Number             string                `gorm:"column:number;not null"`
	Sequence           int                   `gorm:"column:sequence;not null"`
	PurchaseOrderID    uuid.UUID             `gorm:"column:purchase_order_id;type:uuid;not null"`
	VendorID           uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null"`
	SiteID             uuid.UUID             `gorm:"column:site_id;type:uuid;not null"`
	SourceDocumentIDs  dbtypes.UUIDArray     `gorm:"column:source_document_ids;type:uuid[];not null"`
	Reason             string                `gorm:"column:reason;not null"`
	Remarks            *string               `gorm:"column:remarks"`
	GrandTotal         decimal.Decimal       `gorm:"column:grand_total;type:numeric(18,4);not null"`
	TotalSettledAmount decimal.Decimal       `gorm:"column:total_settled_amount;type:numeric(18,4);not null;default:0"`
	Status             enums.DebitNoteStatus `gorm:"column:status;type:debit_note_status_enum;not null"`
	Version            int                   `gorm:"column:version;not null;default:1"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`

	Settlements []DebitNoteSettlement `gorm:"foreignKey:DebitNoteID"`
}

func (d *DebitNote) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Version == 0 {
		d.Version = 1
	}
	return nil
}

// OutstandingAmount is the unpaid remainder of the debit note.
func (d DebitNote) OutstandingAmount() decimal.Decimal {
	return d.GrandTotal.Sub(d.TotalSettledAmount)
}

// DebitNoteSettlement records one credit note allocation applied to a debit note.
type DebitNoteSettlement struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DebitNoteID        uuid.UUID       `gorm:"column:debit_note_id;type:uuid;not null"`
	CreditNoteID       uuid.UUID       `gorm:"column:credit_note_id;type:uuid;not null"`
	CreditNoteNumber   string          `gorm:"column:credit_note_number;not null"`
	SettledAmount      decimal.Decimal `gorm:"column:settled_amount;type:numeric(18,4);not null"`
	SettledOn          time.Time       `gorm:"column:settled_on;not null"`
	CreditNoteDocument string          `gorm:"column:credit_note_document"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (s *DebitNoteSettlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
