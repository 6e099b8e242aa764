package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/coursplus/crm/internal/models"
	"github.com/coursplus/crm/internal/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Family{}, &models.Student{}, &models.Subject{},
		&models.SettlementNote{}, &models.LineItem{}, &models.Installment{},
		&models.CouponSeries{}, &models.Coupon{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// seed minimal family/student/subject for settlement flows
func seedSettlementFixtures(t *testing.T, db *gorm.DB) (family models.Family, student models.Student, subject models.Subject) {
	t.Helper()
	family = models.Family{Name: "Martin", Department: "92", Status: models.FamilyProspect}
	if err := db.Create(&family).Error; err != nil {
		t.Fatalf("family: %v", err)
	}
	student = models.Student{FamilyID: family.ID, FirstName: "Léa", SchoolLevel: "Terminale"}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("student: %v", err)
	}
	subject = models.Subject{Name: "Mathématiques", Code: "MATH"}
	if err := db.Create(&subject).Error; err != nil {
		t.Fatalf("subject: %v", err)
	}
	return
}

func newSettlementHandler(db *gorm.DB) *SettlementHandler {
	return NewSettlementHandler(db, services.NewLifecycleService(db, services.NewSettlementService()))
}

func createBody(familyID, subjectID uint, beneficiaryIDs []uint) string {
	b, _ := json.Marshal(map[string]any{
		"family_id":       familyID,
		"beneficiary_ids": beneficiaryIDs,
		"payment_type":    "advance",
		"payment_method":  "virement",
		"charge_per_unit": 2,
		"items": []map[string]any{
			{"subject_id": subjectID, "hourly_rate": 30, "quantity": 10, "tutor_payout_rate": 20},
		},
	})
	return string(b)
}

func TestSettlementCreateAndDetail(t *testing.T) {
	db := setupSettlementTestDB(t)
	family, _, subject := seedSettlementFixtures(t, db)
	h := newSettlementHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(createBody(family.ID, subject.ID, nil)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["revenue"].(float64) != 300 {
		t.Fatalf("expected revenue 300 got %v", created["revenue"])
	}
	if created["coupons_issued"].(float64) != 10 {
		t.Fatalf("expected 10 coupons got %v", created["coupons_issued"])
	}
	id := int(created["id"].(float64))

	detReq := httptest.NewRequest(http.MethodGet, "/settlements/detail?id="+strconv.Itoa(id), nil)
	detW := httptest.NewRecorder()
	h.Detail(detW, detReq)
	if detW.Code != http.StatusOK {
		t.Fatalf("detail expected 200 got %d", detW.Code)
	}
	var detail struct {
		Note   models.SettlementNote `json:"note"`
		Series models.CouponSeries   `json:"series"`
	}
	if err := json.Unmarshal(detW.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Series.Coupons) != 10 {
		t.Fatalf("expected 10 coupons in detail got %d", len(detail.Series.Coupons))
	}
	if len(detail.Note.LineItems) != 1 {
		t.Fatalf("expected 1 line item got %d", len(detail.Note.LineItems))
	}
}

func TestSettlementCreateValidationErrors(t *testing.T) {
	db := setupSettlementTestDB(t)
	family, _, _ := seedSettlementFixtures(t, db)
	h := newSettlementHandler(db)

	// missing payment type and items
	body := fmt.Sprintf(`{"family_id":%d}`, family.ID)
	req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}

	// unresolved subject -> 404 with every missing id listed
	body = createBody(family.ID, 4242, nil)
	req = httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(body))
	w = httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "reference_not_found") {
		t.Fatalf("expected reference_not_found body got %s", w.Body.String())
	}
}

func TestSettlementPreviewAndDelete(t *testing.T) {
	db := setupSettlementTestDB(t)
	family, student, subject := seedSettlementFixtures(t, db)
	h := newSettlementHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(createBody(family.ID, subject.ID, []uint{student.ID})))
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create got %d body=%s", w.Code, w.Body.String())
	}
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := int(created["id"].(float64))

	// preview
	prevReq := httptest.NewRequest(http.MethodGet, "/settlements/preview-delete?id="+strconv.Itoa(id), nil)
	prevW := httptest.NewRecorder()
	h.PreviewDelete(prevW, prevReq)
	if prevW.Code != http.StatusOK {
		t.Fatalf("preview expected 200 got %d", prevW.Code)
	}
	var report services.ImpactReport
	if err := json.Unmarshal(prevW.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalCoupons != 10 || !report.LastNoteForFamily {
		t.Fatalf("unexpected report: %+v", report)
	}

	// execute
	delReq := httptest.NewRequest(http.MethodDelete, "/settlements/delete?id="+strconv.Itoa(id), nil)
	delW := httptest.NewRecorder()
	h.Delete(delW, delReq)
	if delW.Code != http.StatusOK {
		t.Fatalf("delete expected 200 got %d body=%s", delW.Code, delW.Body.String())
	}
	var result services.DeletionResult
	if err := json.Unmarshal(delW.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.CouponsDeleted != 10 || !result.SeriesDeleted || !result.FamilyReverted {
		t.Fatalf("unexpected result: %+v", result)
	}

	// note gone
	detReq := httptest.NewRequest(http.MethodGet, "/settlements/detail?id="+strconv.Itoa(id), nil)
	detW := httptest.NewRecorder()
	h.Detail(detW, detReq)
	if detW.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete got %d", detW.Code)
	}
}

func TestSettlementListPagination(t *testing.T) {
	db := setupSettlementTestDB(t)
	family, _, subject := seedSettlementFixtures(t, db)
	h := newSettlementHandler(db)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(createBody(family.ID, subject.ID, nil)))
		w := httptest.NewRecorder()
		h.Create(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create %d got %d", i, w.Code)
		}
	}

	listReq := httptest.NewRequest(http.MethodGet, "/settlements?limit=2", nil)
	listW := httptest.NewRecorder()
	h.List(listW, listReq)
	if listW.Code != http.StatusOK {
		t.Fatalf("list expected 200 got %d", listW.Code)
	}
	var list struct {
		Items []models.SettlementNote `json:"items"`
		Total int64                   `json:"total"`
	}
	if err := json.Unmarshal(listW.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 2 || list.Total != 3 {
		t.Fatalf("unexpected list: len=%d total=%d", len(list.Items), list.Total)
	}
}

func TestSettlementPay(t *testing.T) {
	db := setupSettlementTestDB(t)
	family, _, subject := seedSettlementFixtures(t, db)
	h := newSettlementHandler(db)

	req := httptest.NewRequest(http.MethodPost, "/settlements", strings.NewReader(createBody(family.ID, subject.ID, nil)))
	w := httptest.NewRecorder()
	h.Create(w, req)
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	id := int(created["id"].(float64))

	payReq := httptest.NewRequest(http.MethodPost, "/settlements/pay?id="+strconv.Itoa(id), nil)
	payW := httptest.NewRecorder()
	h.Pay(payW, payReq)
	if payW.Code != http.StatusOK {
		t.Fatalf("pay expected 200 got %d", payW.Code)
	}
	var note models.SettlementNote
	if err := db.First(&note, id).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if note.Status != models.NotePaid {
		t.Fatalf("expected paid got %s", note.Status)
	}
}

func TestSettlementBadID(t *testing.T) {
	db := setupSettlementTestDB(t)
	h := newSettlementHandler(db)

	for _, target := range []string{"/settlements/detail", "/settlements/detail?id=abc", "/settlements/detail?id=-1"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		h.Detail(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s got %d", target, w.Code)
		}
	}
}
