package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/coursplus/crm/internal/httpx"
	"github.com/coursplus/crm/internal/services"

	"gorm.io/gorm"
)

type CouponHandler struct {
	DB         *gorm.DB
	Redemption *services.RedemptionService
}

func NewCouponHandler(db *gorm.DB, rd *services.RedemptionService) *CouponHandler {
	return &CouponHandler{DB: db, Redemption: rd}
}

// Redeem: POST /coupons/redeem – JSON body
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CouponID uint `json:"coupon_id"`
		services.SessionInput
		RedeemedBy string `json:"redeemed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.CouponID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"coupon_id": "required"})
		return
	}
	coupon, err := h.Redemption.Redeem(req.CouponID, req.SessionInput, req.RedeemedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

// Cancel: POST /coupons/cancel – JSON body
func (h *CouponHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CouponID uint   `json:"coupon_id"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.CouponID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"coupon_id": "required"})
		return
	}
	coupon, err := h.Redemption.CancelRedemption(req.CouponID, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

// Rate: POST or PATCH /coupons/rate – JSON body
func (h *CouponHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CouponID uint   `json:"coupon_id"`
		Side     string `json:"side"`
		Score    int    `json:"score"`
		Comment  string `json:"comment"`
		Rater    string `json:"rater"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.CouponID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"coupon_id": "required"})
		return
	}
	coupon, err := h.Redemption.Rate(req.CouponID, req.Side, req.Score, req.Comment, req.Rater)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

// Lookup: GET /coupons/lookup?code=... – resolve a printed voucher code.
func (h *CouponHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_code", nil)
		return
	}
	coupon, err := h.Redemption.FindByCode(code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

// Suspend: POST /series/suspend?id=... – expires remaining available coupons.
func (h *CouponHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	series, err := h.Redemption.SuspendSeries(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, series)
}
