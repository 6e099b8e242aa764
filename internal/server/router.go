package server

import (
	"net/http"
	"time"

	"github.com/coursplus/crm/internal/handlers"
	"github.com/coursplus/crm/internal/httpx"
	"github.com/coursplus/crm/internal/services"

	"gorm.io/gorm"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// Lightweight DB check (SELECT 1) – ignore detailed errors in body
		if err := db.Exec("SELECT 1").Error; err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, werr := w.Write([]byte(`{"status":"degraded"}`)); werr != nil {
				_ = werr
			}
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	settle := services.NewSettlementService()
	lifecycle := services.NewLifecycleService(db, settle)
	redemption := services.NewRedemptionService(db)

	sh := handlers.NewSettlementHandler(db, lifecycle)
	mux.HandleFunc("/settlements", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sh.List(w, r)
		case http.MethodPost:
			sh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	})
	mux.HandleFunc("/settlements/detail", sh.Detail)
	mux.HandleFunc("/settlements/preview-delete", sh.PreviewDelete)
	mux.HandleFunc("/settlements/delete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			w.Header().Set("Allow", "POST,DELETE")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		sh.Delete(w, r)
	})
	mux.HandleFunc("/settlements/pay", sh.Pay)

	ch := handlers.NewCouponHandler(db, redemption)
	mux.HandleFunc("/coupons/redeem", ch.Redeem)
	mux.HandleFunc("/coupons/cancel", ch.Cancel)
	mux.HandleFunc("/coupons/rate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPatch {
			w.Header().Set("Allow", "POST,PATCH")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		ch.Rate(w, r)
	})
	mux.HandleFunc("/coupons/lookup", ch.Lookup)
	mux.HandleFunc("/series/suspend", ch.Suspend)

	return withRecover(withLogging(mux))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		_ = start // switched off by default; flip to log.Printf when debugging latency
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
