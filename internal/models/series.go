package models

import "time"

// Coupon series statuses. "expired" can also be true at read time without
// being stored: see IsExpired.
const (
	SeriesActive    = "active"
	SeriesSuspended = "suspended"
	SeriesCompleted = "completed"
	SeriesExpired   = "expired"
)

// CouponSeries is the bounded pool of coupons issued for one settlement note.
// Counters are mutated only through redemption/cancellation, guarded by the
// Version column.
type CouponSeries struct {
	ID               uint       `gorm:"primaryKey"`
	Reference        string     `gorm:"size:36;not null;uniqueIndex"` // prefix source for coupon codes
	SettlementNoteID uint       `gorm:"not null;index"`
	FamilyID         uint       `gorm:"not null;index"`
	Beneficiaries    []*Student `gorm:"many2many:series_beneficiaries"`
	TotalCoupons     int        `gorm:"not null"`
	UsedCoupons      int        `gorm:"not null;default:0"`
	HourlyRate       float64
	TutorPayoutRate  float64
	ExpiresAt        *time.Time
	Status           string `gorm:"not null;default:'active'"`
	Version          int    `gorm:"not null;default:0"`

	Coupons []Coupon `gorm:"foreignKey:SeriesID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired is evaluated against the clock, independent of the stored status.
// Checked before any redemption.
func (s *CouponSeries) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
