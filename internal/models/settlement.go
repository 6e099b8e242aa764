package models

import "time"

// Settlement note lifecycle statuses.
const (
	NotePending = "pending"
	NotePaid    = "paid"
	NoteOverdue = "overdue"
)

// Payment type tag, mandatory at creation.
const (
	PaymentAdvance  = "advance"  // paiement comptant / avance
	PaymentDeferred = "deferred" // crédit différé
)

// Installment statuses.
const (
	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
)

// SettlementNote is one commercial agreement: beneficiaries, priced line
// items and self-computed financial aggregates. The derived fields are
// recomputed from the line items on every mutation and never trusted from
// input.
type SettlementNote struct {
	ID            uint   `gorm:"primaryKey"`
	FamilyID      uint   `gorm:"not null;index"`
	Family        Family `gorm:"foreignKey:FamilyID"`
	ClientName    string
	Department    string
	PaymentMethod string // ex: virement, CB, chèque
	PaymentType   string `gorm:"not null"`                   // advance, deferred
	Status        string `gorm:"not null;default:'pending'"` // pending, paid, overdue
	ChargePerUnit float64
	Notes         string

	Beneficiaries []*Student    `gorm:"many2many:settlement_beneficiaries"`
	LineItems     []LineItem    `gorm:"foreignKey:SettlementNoteID"`
	Installments  []Installment `gorm:"foreignKey:SettlementNoteID"`

	// Set once the coupon series has been issued.
	CouponSeriesID *uint
	CouponsIssued  int

	// Derived totals (see services.SettlementService.ComputeTotals).
	TotalHourlyRate  float64
	TotalQuantity    int
	TotalTutorPayout float64
	TutorCost        float64
	ChargesToPay     float64
	Revenue          float64
	Margin           float64
	MarginPercent    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

type LineItem struct {
	ID               uint    `gorm:"primaryKey"`
	SettlementNoteID uint    `gorm:"not null;index"`
	SubjectID        uint    `gorm:"not null"`
	Subject          Subject `gorm:"foreignKey:SubjectID"`
	HourlyRate       float64 `gorm:"not null"`
	Quantity         int     `gorm:"not null"` // session hours, >= 1
	TutorPayoutRate  float64 `gorm:"not null"`
	Position         int     // display order only
}

type Installment struct {
	ID               uint      `gorm:"primaryKey"`
	SettlementNoteID uint      `gorm:"not null;index"`
	DueDate          time.Time `gorm:"not null"`
	Amount           float64   `gorm:"not null"`
	Status           string    `gorm:"not null;default:'pending'"` // pending, paid
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
