package models

import "time"

type Student struct {
	ID          uint   `gorm:"primaryKey"`
	FamilyID    uint   `gorm:"not null;index"`
	FirstName   string `gorm:"not null"`
	LastName    string
	SchoolLevel string // ex: CM2, 3ème, Terminale

	// Back-reference list of notes naming this student as beneficiary.
	// Both sides of the join are written only by the lifecycle service.
	SettlementNotes []*SettlementNote `gorm:"many2many:settlement_beneficiaries"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
