package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/coursplus/crm/internal/models"

	"gorm.io/gorm"
)

type SessionInput struct {
	Date            time.Time `json:"session_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
}

// RedemptionService drives the coupon state machine and keeps the series
// counters consistent with the set of used coupons. Counter updates go
// through an optimistic version check so a redemption and a cascade on the
// same series cannot interleave silently.
type RedemptionService struct {
	DB *gorm.DB
}

func NewRedemptionService(db *gorm.DB) *RedemptionService {
	return &RedemptionService{DB: db}
}

// Redeem consumes an available coupon by recording an actual session. The
// parent series must be active and not expired.
func (r *RedemptionService) Redeem(couponID uint, in SessionInput, actor string) (*models.Coupon, error) {
	if in.DurationMinutes < models.SessionMinMinutes || in.DurationMinutes > models.SessionMaxMinutes {
		return nil, &ValidationError{Msg: "invalid session", Fields: map[string]string{
			"duration_minutes": fmt.Sprintf("must be between %d and %d", models.SessionMinMinutes, models.SessionMaxMinutes),
		}}
	}
	if in.Date.IsZero() {
		return nil, &ValidationError{Msg: "invalid session", Fields: map[string]string{"session_date": "required"}}
	}
	var out models.Coupon
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		coupon, series, err := loadCouponAndSeries(tx, couponID)
		if err != nil {
			return err
		}
		if coupon.Status != models.CouponAvailable {
			return &StateConflictError{Code: ConflictNotAvailable, Current: coupon.Status, Attempted: "redeem"}
		}
		if series.Status != models.SeriesActive {
			return &StateConflictError{Code: ConflictSeriesInactive, Current: series.Status, Attempted: "redeem"}
		}
		if series.IsExpired(time.Now()) {
			return &StateConflictError{Code: ConflictSeriesExpired, Current: series.Status, Attempted: "redeem"}
		}
		if series.UsedCoupons+1 > series.TotalCoupons {
			return &ConsistencyError{Op: "redeem", Detail: "used counter would exceed series total"}
		}
		date := in.Date
		if err := tx.Model(coupon).Updates(map[string]any{
			"status":           models.CouponUsed,
			"session_date":     &date,
			"duration_minutes": in.DurationMinutes,
			"location":         in.Location,
			"redeemed_by":      actor,
		}).Error; err != nil {
			return err
		}
		newStatus := series.Status
		if series.UsedCoupons+1 == series.TotalCoupons {
			newStatus = models.SeriesCompleted
		}
		if err := bumpSeries(tx, series, map[string]any{
			"used_coupons": series.UsedCoupons + 1,
			"status":       newStatus,
		}, "redeem"); err != nil {
			return err
		}
		coupon.Status = models.CouponUsed
		coupon.SessionDate = &date
		coupon.DurationMinutes = in.DurationMinutes
		coupon.Location = in.Location
		coupon.RedeemedBy = actor
		out = *coupon
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelRedemption reverts a used coupon to available, appends the reason to
// its audit trail and decrements the series counter, reverting an
// auto-completed series back to active.
func (r *RedemptionService) CancelRedemption(couponID uint, reason string) (*models.Coupon, error) {
	var out models.Coupon
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		coupon, series, err := loadCouponAndSeries(tx, couponID)
		if err != nil {
			return err
		}
		if coupon.Status != models.CouponUsed {
			return &StateConflictError{Code: ConflictNotUsed, Current: coupon.Status, Attempted: "cancel"}
		}
		if series.UsedCoupons < 1 {
			return &ConsistencyError{Op: "cancel", Detail: "used counter already zero"}
		}
		// Audit line appended, never overwriting prior entries.
		history := coupon.History + fmt.Sprintf("%s cancelled: %s\n", time.Now().Format(time.RFC3339), reason)
		if err := tx.Model(coupon).Updates(map[string]any{
			"status":               models.CouponAvailable,
			"session_date":         nil,
			"duration_minutes":     0,
			"location":             "",
			"redeemed_by":          "",
			"beneficiary_score":    0,
			"beneficiary_comment":  "",
			"beneficiary_rater":    "",
			"beneficiary_rated_at": nil,
			"tutor_score":          0,
			"tutor_comment":        "",
			"tutor_rater":          "",
			"tutor_rated_at":       nil,
			"history":              history,
		}).Error; err != nil {
			return err
		}
		newStatus := series.Status
		if series.Status == models.SeriesCompleted {
			newStatus = models.SeriesActive
		}
		if err := bumpSeries(tx, series, map[string]any{
			"used_coupons": series.UsedCoupons - 1,
			"status":       newStatus,
		}, "cancel"); err != nil {
			return err
		}
		coupon.Status = models.CouponAvailable
		coupon.SessionDate = nil
		coupon.DurationMinutes = 0
		coupon.Location = ""
		coupon.RedeemedBy = ""
		coupon.History = history
		out = *coupon
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Rate records a session rating on a used coupon for one side. Re-rating a
// side replaces its prior value.
func (r *RedemptionService) Rate(couponID uint, side string, score int, comment, rater string) (*models.Coupon, error) {
	fields := map[string]string{}
	if side != models.RatingSideBeneficiary && side != models.RatingSideTutor {
		fields["side"] = "must be beneficiary or tutor"
	}
	if score < 1 || score > 5 {
		fields["score"] = "must be between 1 and 5"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Msg: "invalid rating", Fields: fields}
	}
	var coupon models.Coupon
	if err := r.DB.First(&coupon, couponID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReferenceNotFoundError{Kind: "coupon", IDs: []uint{couponID}}
		}
		return nil, err
	}
	if coupon.Status != models.CouponUsed {
		return nil, &StateConflictError{Code: ConflictNotUsed, Current: coupon.Status, Attempted: "rate"}
	}
	now := time.Now()
	var updates map[string]any
	if side == models.RatingSideBeneficiary {
		updates = map[string]any{
			"beneficiary_score":    score,
			"beneficiary_comment":  comment,
			"beneficiary_rater":    rater,
			"beneficiary_rated_at": &now,
		}
		coupon.BeneficiaryScore = score
		coupon.BeneficiaryComment = comment
		coupon.BeneficiaryRater = rater
		coupon.BeneficiaryRatedAt = &now
	} else {
		updates = map[string]any{
			"tutor_score":    score,
			"tutor_comment":  comment,
			"tutor_rater":    rater,
			"tutor_rated_at": &now,
		}
		coupon.TutorScore = score
		coupon.TutorComment = comment
		coupon.TutorRater = rater
		coupon.TutorRatedAt = &now
	}
	if err := r.DB.Model(&coupon).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// SuspendSeries suspends an active series and expires every coupon still
// available in it. Used coupons are untouched.
func (r *RedemptionService) SuspendSeries(seriesID uint) (*models.CouponSeries, error) {
	var out models.CouponSeries
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var series models.CouponSeries
		if err := tx.First(&series, seriesID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ReferenceNotFoundError{Kind: "coupon_series", IDs: []uint{seriesID}}
			}
			return err
		}
		if series.Status != models.SeriesActive {
			return &StateConflictError{Code: ConflictSeriesNotActive, Current: series.Status, Attempted: "suspend"}
		}
		if err := bumpSeries(tx, &series, map[string]any{"status": models.SeriesSuspended}, "suspend"); err != nil {
			return err
		}
		if err := tx.Model(&models.Coupon{}).
			Where("series_id = ? AND status = ?", series.ID, models.CouponAvailable).
			Update("status", models.CouponExpired).Error; err != nil {
			return err
		}
		series.Status = models.SeriesSuspended
		out = series
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByCode resolves a coupon from its printed code.
func (r *RedemptionService) FindByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReferenceNotFoundError{Kind: "coupon", IDs: nil}
		}
		return nil, err
	}
	return &coupon, nil
}

func loadCouponAndSeries(tx *gorm.DB, couponID uint) (*models.Coupon, *models.CouponSeries, error) {
	var coupon models.Coupon
	if err := tx.First(&coupon, couponID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &ReferenceNotFoundError{Kind: "coupon", IDs: []uint{couponID}}
		}
		return nil, nil, err
	}
	var series models.CouponSeries
	if err := tx.First(&series, coupon.SeriesID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &ConsistencyError{Op: "load", Detail: fmt.Sprintf("coupon %d references missing series %d", coupon.ID, coupon.SeriesID)}
		}
		return nil, nil, err
	}
	return &coupon, &series, nil
}

// bumpSeries applies updates to a series guarded by its version column. Zero
// rows affected means a concurrent writer won; the transaction rolls back.
func bumpSeries(tx *gorm.DB, series *models.CouponSeries, updates map[string]any, op string) error {
	updates["version"] = series.Version + 1
	res := tx.Model(&models.CouponSeries{}).
		Where("id = ? AND version = ?", series.ID, series.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &ConsistencyError{Op: op, Detail: "concurrent series update detected"}
	}
	series.Version++
	if used, ok := updates["used_coupons"].(int); ok {
		series.UsedCoupons = used
	}
	if st, ok := updates["status"].(string); ok {
		series.Status = st
	}
	return nil
}
