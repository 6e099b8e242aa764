package models

import "time"

// Commercial statuses for a family. A family starts as prospect and becomes
// client once its first settlement note is signed.
const (
	FamilyProspect = "prospect"
	FamilyClient   = "client"
)

type Family struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null;index"`
	Email      string
	Telephone  string
	Department string                        // code département (ex: 75, 92)
	Status     string `gorm:"not null;default:'prospect'"` // prospect, client

	Students        []Student        `gorm:"foreignKey:FamilyID"`
	SettlementNotes []SettlementNote `gorm:"foreignKey:FamilyID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
