package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coursplus/crm/internal/httpx"
	"github.com/coursplus/crm/internal/models"
	"github.com/coursplus/crm/internal/services"

	"gorm.io/gorm"
)

type SettlementHandler struct {
	DB        *gorm.DB
	Lifecycle *services.LifecycleService
}

func NewSettlementHandler(db *gorm.DB, lc *services.LifecycleService) *SettlementHandler {
	return &SettlementHandler{DB: db, Lifecycle: lc}
}

// Create: POST /settlements – JSON body
func (h *SettlementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CreateSettlementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	res, err := h.Lifecycle.CreateSettlement(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":               res.Note.ID,
		"status":           res.Note.Status,
		"revenue":          res.Note.Revenue,
		"tutor_cost":       res.Note.TutorCost,
		"charges_to_pay":   res.Note.ChargesToPay,
		"margin":           res.Note.Margin,
		"margin_percent":   res.Note.MarginPercent,
		"series_id":        res.Series.ID,
		"series_reference": res.Series.Reference,
		"coupons_issued":   res.Note.CouponsIssued,
	})
}

// List: GET /settlements – paginated JSON
func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	dbq := h.DB.Model(&models.SettlementNote{})
	if fam := r.URL.Query().Get("family_id"); fam != "" {
		if id, err := strconv.Atoi(fam); err == nil && id > 0 {
			dbq = dbq.Where("family_id = ?", id)
		}
	}
	var total int64
	dbq.Count(&total)
	var notes []models.SettlementNote
	if err := dbq.Preload("LineItems").Order("id desc").Limit(limit).Offset(offset).Find(&notes).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_settlements", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": notes, "total": total, "limit": limit, "offset": offset})
}

// Detail: GET /settlements/detail?id=...
func (h *SettlementHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var note models.SettlementNote
	err := h.DB.Preload("LineItems.Subject").Preload("Beneficiaries").Preload("Installments").First(&note, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_settlement", nil)
		return
	}
	payload := map[string]any{"note": note}
	if note.CouponSeriesID != nil {
		var series models.CouponSeries
		if err := h.DB.Preload("Coupons").First(&series, *note.CouponSeriesID).Error; err == nil {
			payload["series"] = series
		}
	}
	httpx.JSON(w, http.StatusOK, payload)
}

// PreviewDelete: GET /settlements/preview-delete?id=...
func (h *SettlementHandler) PreviewDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	report, err := h.Lifecycle.PreviewDeletion(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// Delete: POST or DELETE /settlements/delete?id=...
func (h *SettlementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	result, err := h.Lifecycle.ExecuteDeletion(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Pay: POST /settlements/pay?id=... – manual payment marks the whole note paid.
func (h *SettlementHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Lifecycle.MarkPaid(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": models.NotePaid})
}

func parseID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return 0, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}
