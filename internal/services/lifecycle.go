package services

import (
	"errors"
	"time"

	"github.com/coursplus/crm/internal/couponcode"
	"github.com/coursplus/crm/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LineItemInput struct {
	SubjectID       uint    `json:"subject_id"`
	HourlyRate      float64 `json:"hourly_rate"`
	Quantity        int     `json:"quantity"`
	TutorPayoutRate float64 `json:"tutor_payout_rate"`
}

type InstallmentInput struct {
	DueDate time.Time `json:"due_date"`
	Amount  float64   `json:"amount"`
}

type CreateSettlementInput struct {
	FamilyID       uint               `json:"family_id"`
	BeneficiaryIDs []uint             `json:"beneficiary_ids"`
	ClientName     string             `json:"client_name"`
	Department     string             `json:"department"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentType    string             `json:"payment_type"` // advance or deferred, mandatory
	ChargePerUnit  float64            `json:"charge_per_unit"`
	Items          []LineItemInput    `json:"items"`
	Installments   []InstallmentInput `json:"installments"`
	ExpiresAt      *time.Time         `json:"expires_at"`
	Notes          string             `json:"notes"`
}

type CreateSettlementResult struct {
	Note    *models.SettlementNote
	Series  *models.CouponSeries
	Coupons []models.Coupon
}

// ImpactReport is the read-only deletion preview. Preview and execute share
// one impact computation so the two phases cannot diverge.
type ImpactReport struct {
	NoteID            uint    `json:"note_id"`
	FamilyID          uint    `json:"family_id"`
	Revenue           float64 `json:"revenue"`
	SeriesID          *uint   `json:"series_id"`
	TotalCoupons      int     `json:"total_coupons"`
	UsedCoupons       int     `json:"used_coupons"`
	AvailableCoupons  int     `json:"available_coupons"`
	LastNoteForFamily bool    `json:"last_note_for_family"`
}

type DeletionResult struct {
	CouponsDeleted int  `json:"coupons_deleted"`
	SeriesDeleted  bool `json:"series_deleted"`
	FamilyReverted bool `json:"family_reverted"`
}

// LifecycleService is the only component allowed to create or destroy a
// settlement note together with its coupon series and coupons, and the sole
// writer of the student/family back-reference lists.
type LifecycleService struct {
	DB     *gorm.DB
	Settle *SettlementService
}

func NewLifecycleService(db *gorm.DB, settle *SettlementService) *LifecycleService {
	return &LifecycleService{DB: db, Settle: settle}
}

// CreateSettlement validates references, persists the note with derived
// totals, issues the coupon series and its coupons, links the series back and
// flips the family to client. Either every record exists afterwards or none.
func (l *LifecycleService) CreateSettlement(in CreateSettlementInput) (*CreateSettlementResult, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}
	var family models.Family
	if err := l.DB.First(&family, in.FamilyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReferenceNotFoundError{Kind: "family", IDs: []uint{in.FamilyID}}
		}
		return nil, err
	}
	beneficiaries, err := l.resolveBeneficiaries(family.ID, in.BeneficiaryIDs)
	if err != nil {
		return nil, err
	}
	if err := l.resolveSubjects(in.Items); err != nil {
		return nil, err
	}

	note := &models.SettlementNote{
		FamilyID:      family.ID,
		ClientName:    in.ClientName,
		Department:    in.Department,
		PaymentMethod: in.PaymentMethod,
		PaymentType:   in.PaymentType,
		Status:        models.NotePending,
		ChargePerUnit: in.ChargePerUnit,
		Notes:         in.Notes,
	}
	for i, it := range in.Items {
		note.LineItems = append(note.LineItems, models.LineItem{
			SubjectID:       it.SubjectID,
			HourlyRate:      it.HourlyRate,
			Quantity:        it.Quantity,
			TutorPayoutRate: it.TutorPayoutRate,
			Position:        i + 1,
		})
	}
	for _, ins := range in.Installments {
		note.Installments = append(note.Installments, models.Installment{
			DueDate: ins.DueDate,
			Amount:  ins.Amount,
			Status:  models.InstallmentPending,
		})
	}
	l.Settle.ComputeTotals(note)
	count := l.Settle.CouponCount(note, len(beneficiaries))

	var series *models.CouponSeries
	var coupons []models.Coupon
	err = l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		if len(beneficiaries) > 0 {
			if err := tx.Model(note).Association("Beneficiaries").Append(beneficiaries); err != nil {
				return err
			}
		}
		qty := float64(note.TotalQuantity)
		series = &models.CouponSeries{
			Reference:        uuid.NewString(),
			SettlementNoteID: note.ID,
			FamilyID:         family.ID,
			TotalCoupons:     count,
			UsedCoupons:      0,
			HourlyRate:       note.Revenue / qty,
			TutorPayoutRate:  note.TutorCost / qty,
			ExpiresAt:        in.ExpiresAt,
			Status:           models.SeriesActive,
		}
		if err := tx.Create(series).Error; err != nil {
			return err
		}
		if len(beneficiaries) > 0 {
			if err := tx.Model(series).Association("Beneficiaries").Append(beneficiaries); err != nil {
				return err
			}
		}
		coupons = make([]models.Coupon, count)
		for i := range coupons {
			coupons[i] = models.Coupon{
				SeriesID: series.ID,
				FamilyID: family.ID,
				Sequence: i + 1,
				Code:     couponcode.Encode(series.Reference, i+1),
				Status:   models.CouponAvailable,
			}
		}
		if err := tx.Create(&coupons).Error; err != nil {
			return err
		}
		if err := tx.Model(note).Updates(map[string]any{
			"coupon_series_id": series.ID,
			"coupons_issued":   count,
		}).Error; err != nil {
			return err
		}
		note.CouponSeriesID = &series.ID
		note.CouponsIssued = count
		// First agreement converts a prospect; no-op if already client.
		if family.Status == models.FamilyProspect {
			if err := tx.Model(&family).Update("status", models.FamilyClient).Error; err != nil {
				return err
			}
			family.Status = models.FamilyClient
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CreateSettlementResult{Note: note, Series: series, Coupons: coupons}, nil
}

// PreviewDeletion computes the deletion impact without writing anything.
func (l *LifecycleService) PreviewDeletion(noteID uint) (*ImpactReport, error) {
	report, _, _, err := l.computeImpact(l.DB, noteID)
	return report, err
}

// ExecuteDeletion removes the note, its series and coupons, cleans both sides
// of the beneficiary back-references and reverts the family to prospect when
// this was its last note. The whole cascade is one transaction.
func (l *LifecycleService) ExecuteDeletion(noteID uint) (*DeletionResult, error) {
	result := &DeletionResult{}
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		report, note, series, err := l.computeImpact(tx, noteID)
		if err != nil {
			return err
		}
		if series != nil {
			res := tx.Where("series_id = ?", series.ID).Delete(&models.Coupon{})
			if res.Error != nil {
				return res.Error
			}
			result.CouponsDeleted = int(res.RowsAffected)
			if err := tx.Model(series).Association("Beneficiaries").Clear(); err != nil {
				return err
			}
			if err := tx.Delete(series).Error; err != nil {
				return err
			}
			result.SeriesDeleted = true
		}
		// Back-reference cleanup: drop this note from every beneficiary's list.
		if err := tx.Model(note).Association("Beneficiaries").Clear(); err != nil {
			return err
		}
		if err := tx.Where("settlement_note_id = ?", note.ID).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("settlement_note_id = ?", note.ID).Delete(&models.Installment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(note).Error; err != nil {
			return err
		}
		if report.LastNoteForFamily {
			if err := tx.Model(&models.Family{}).Where("id = ? AND status = ?", note.FamilyID, models.FamilyClient).
				Update("status", models.FamilyProspect).Error; err != nil {
				return err
			}
			result.FamilyReverted = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPaid marks a note and all of its installments as paid.
func (l *LifecycleService) MarkPaid(noteID uint) error {
	var note models.SettlementNote
	if err := l.DB.First(&note, noteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ReferenceNotFoundError{Kind: "settlement_note", IDs: []uint{noteID}}
		}
		return err
	}
	return l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&note).Update("status", models.NotePaid).Error; err != nil {
			return err
		}
		return tx.Model(&models.Installment{}).
			Where("settlement_note_id = ?", note.ID).
			Update("status", models.InstallmentPaid).Error
	})
}

// computeImpact is the single impact computation shared by preview and
// execute. It performs no writes.
func (l *LifecycleService) computeImpact(db *gorm.DB, noteID uint) (*ImpactReport, *models.SettlementNote, *models.CouponSeries, error) {
	var note models.SettlementNote
	if err := db.Preload("LineItems").First(&note, noteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, &ReferenceNotFoundError{Kind: "settlement_note", IDs: []uint{noteID}}
		}
		return nil, nil, nil, err
	}
	// Recompute revenue instead of trusting the stored aggregate.
	l.Settle.ComputeTotals(&note)
	report := &ImpactReport{NoteID: note.ID, FamilyID: note.FamilyID, Revenue: note.Revenue}

	var series models.CouponSeries
	err := db.Where("settlement_note_id = ?", note.ID).First(&series).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// note without series: legal, nothing more to report
	case err != nil:
		return nil, nil, nil, err
	default:
		report.SeriesID = &series.ID
		report.TotalCoupons = series.TotalCoupons
		var used, available int64
		if err := db.Model(&models.Coupon{}).Where("series_id = ? AND status = ?", series.ID, models.CouponUsed).Count(&used).Error; err != nil {
			return nil, nil, nil, err
		}
		if err := db.Model(&models.Coupon{}).Where("series_id = ? AND status = ?", series.ID, models.CouponAvailable).Count(&available).Error; err != nil {
			return nil, nil, nil, err
		}
		report.UsedCoupons = int(used)
		report.AvailableCoupons = int(available)
	}

	var noteCount int64
	if err := db.Model(&models.SettlementNote{}).Where("family_id = ?", note.FamilyID).Count(&noteCount).Error; err != nil {
		return nil, nil, nil, err
	}
	report.LastNoteForFamily = noteCount == 1

	if report.SeriesID == nil {
		return report, &note, nil, nil
	}
	return report, &note, &series, nil
}

func validateCreateInput(in CreateSettlementInput) error {
	fields := map[string]string{}
	if in.FamilyID == 0 {
		fields["family_id"] = "required"
	}
	switch in.PaymentType {
	case "":
		fields["payment_type"] = "required"
	case models.PaymentAdvance, models.PaymentDeferred:
	default:
		fields["payment_type"] = "must be advance or deferred"
	}
	if len(in.Items) == 0 {
		fields["items"] = "at least one line item required"
	}
	for _, it := range in.Items {
		if it.SubjectID == 0 {
			fields["items.subject_id"] = "required"
		}
		if it.Quantity < 1 {
			fields["items.quantity"] = "must be >= 1"
		}
		if it.HourlyRate < 0 {
			fields["items.hourly_rate"] = "must be >= 0"
		}
		if it.TutorPayoutRate < 0 {
			fields["items.tutor_payout_rate"] = "must be >= 0"
		}
	}
	if in.ChargePerUnit < 0 {
		fields["charge_per_unit"] = "must be >= 0"
	}
	if len(fields) > 0 {
		return &ValidationError{Msg: "invalid settlement input", Fields: fields}
	}
	return nil
}

func (l *LifecycleService) resolveBeneficiaries(familyID uint, ids []uint) ([]*models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []*models.Student
	if err := l.DB.Where("id IN ? AND family_id = ?", ids, familyID).Find(&students).Error; err != nil {
		return nil, err
	}
	if len(students) != len(ids) {
		found := map[uint]bool{}
		for _, st := range students {
			found[st.ID] = true
		}
		var missing []uint
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, &ReferenceNotFoundError{Kind: "student", IDs: missing}
	}
	return students, nil
}

// resolveSubjects checks every line-item subject reference and reports all
// unresolved ones in a single error.
func (l *LifecycleService) resolveSubjects(items []LineItemInput) error {
	ids := make([]uint, 0, len(items))
	seen := map[uint]bool{}
	for _, it := range items {
		if !seen[it.SubjectID] {
			seen[it.SubjectID] = true
			ids = append(ids, it.SubjectID)
		}
	}
	var subjects []models.Subject
	if err := l.DB.Where("id IN ?", ids).Find(&subjects).Error; err != nil {
		return err
	}
	if len(subjects) != len(ids) {
		found := map[uint]bool{}
		for _, s := range subjects {
			found[s.ID] = true
		}
		var missing []uint
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return &ReferenceNotFoundError{Kind: "subject", IDs: missing}
	}
	return nil
}
