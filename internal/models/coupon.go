package models

import "time"

// Coupon redemption states.
const (
	CouponAvailable = "available"
	CouponUsed      = "used"
	CouponExpired   = "expired"
	CouponCancelled = "cancelled"
)

// Rating sides on a used coupon.
const (
	RatingSideBeneficiary = "beneficiary"
	RatingSideTutor       = "tutor"
)

// Session duration bounds in minutes.
const (
	SessionMinMinutes = 30
	SessionMaxMinutes = 180
)

// Coupon is one prepaid session slot within a series. Usage fields carry a
// value only while the status is "used".
type Coupon struct {
	ID       uint   `gorm:"primaryKey"`
	SeriesID uint   `gorm:"not null;index"`
	FamilyID uint   `gorm:"not null;index"` // denormalized for lookups
	Sequence int    `gorm:"not null"`       // 1..TotalCoupons within the series
	Code     string `gorm:"size:16;not null;uniqueIndex"`
	Status   string `gorm:"not null;default:'available'"`

	SessionDate     *time.Time
	DurationMinutes int
	Location        string
	RedeemedBy      string

	// Two-sided session rating; each side rated independently, re-rating
	// overwrites the side's prior value.
	BeneficiaryScore   int
	BeneficiaryComment string
	BeneficiaryRater   string
	BeneficiaryRatedAt *time.Time
	TutorScore         int
	TutorComment       string
	TutorRater         string
	TutorRatedAt       *time.Time

	History string // append-only audit trail (cancellation reasons)

	CreatedAt time.Time
	UpdatedAt time.Time
}
