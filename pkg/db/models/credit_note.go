package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/siteworks/procurement-backend/pkg/enums"
)

// CreditNote is a vendor-issued document whose amount is allocated, once,
// across the vendor's outstanding debit notes for a site.
type CreditNote struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyID           uuid.UUID       `gorm:"column:company_id;type:uuid;not null"`
	Number              string          `gorm:"column:number;not null"`
	CreditNoteDate      time.Time       `gorm:"column:credit_note_date;type:date;not null"`
	CreditAmount        decimal.Decimal `gorm:"column:credit_amount;type:numeric(18,4);not null"`
	DocumentRef         string          `gorm:"column:document_ref;not null"`
	PurchaseOrderNumber string          `gorm:"column:purchase_order_number;not null"`
	VendorID            uuid.UUID       `gorm:"column:vendor_id;type:uuid;not null"`
	SiteID              uuid.UUID       `gorm:"column:site_id;type:uuid;not null"`
	AllocatedAt         *time.Time      `gorm:"column:allocated_at"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	Settlements []CreditNoteSettlement `gorm:"foreignKey:CreditNoteID"`
}

func (c *CreditNote) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// AllocatedAmount sums the settlement history.
func (c CreditNote) AllocatedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, s := range c.Settlements {
		total = total.Add(s.SettledAmount)
	}
	return total
}

// UnallocatedAmount is the part of the credit left unspent after allocation.
func (c CreditNote) UnallocatedAmount() decimal.Decimal {
	return c.CreditAmount.Sub(c.AllocatedAmount())
}

// CreditNoteSettlement mirrors a DebitNoteSettlement on the credit side.
type CreditNoteSettlement struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreditNoteID    uuid.UUID             `gorm:"column:credit_note_id;type:uuid;not null"`
	DebitNoteID     uuid.UUID             `gorm:"column:debit_note_id;type:uuid;not null"`
	DebitNoteNumber string                `gorm:"column:debit_note_number;not null"`
	Position        int                   `gorm:"column:position;not null"`
	SettledAmount   decimal.Decimal       `gorm:"column:settled_amount;type:numeric(18,4);not null"`
	StatusAfter     enums.DebitNoteStatus `gorm:"column:status_after;type:debit_note_status_enum;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (s *CreditNoteSettlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
