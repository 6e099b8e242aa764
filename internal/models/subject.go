package models

import "time"

// Subject catalog entry (read-only from the settlement engine's perspective).
type Subject struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;unique"` // ex: Mathématiques, Physique-Chimie
	Code      string // MATH, PHYS, etc.
	CreatedAt time.Time
	UpdatedAt time.Time
}
