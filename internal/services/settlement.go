package services

import (
	"github.com/coursplus/crm/internal/models"
)

// SettlementService owns the financial aggregates of a settlement note.
type SettlementService struct{}

func NewSettlementService() *SettlementService { return &SettlementService{} }

// ComputeTotals recomputes every derived field of a note from its line items.
// Derived fields are never trusted from input; callers mutate line items and
// call this before persisting.
func (s *SettlementService) ComputeTotals(note *models.SettlementNote) {
	note.TotalHourlyRate = 0
	note.TotalQuantity = 0
	note.TotalTutorPayout = 0
	note.TutorCost = 0
	note.Revenue = 0
	for _, it := range note.LineItems {
		qty := float64(it.Quantity)
		note.TotalHourlyRate += it.HourlyRate
		note.TotalQuantity += it.Quantity
		note.TotalTutorPayout += it.TutorPayoutRate
		note.TutorCost += it.TutorPayoutRate * qty
		note.Revenue += it.HourlyRate * qty
	}
	note.ChargesToPay = note.ChargePerUnit * float64(note.TotalQuantity)
	note.Margin = note.Revenue - note.TutorCost - note.ChargesToPay
	if note.Revenue > 0 {
		note.MarginPercent = note.Margin / note.Revenue * 100
	} else {
		note.MarginPercent = 0
	}
}

// CouponCount returns how many coupons a note entitles the family to: the
// total session hours multiplied by the number of named beneficiaries. A
// family-only agreement (no student named) yields the base count.
func (s *SettlementService) CouponCount(note *models.SettlementNote, beneficiaries int) int {
	if beneficiaries < 1 {
		beneficiaries = 1
	}
	return note.TotalQuantity * beneficiaries
}
