package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/contaflow/proposal-app/internal/catalog"
	"github.com/contaflow/proposal-app/internal/handlers"
	"github.com/contaflow/proposal-app/internal/httpx"
	"github.com/contaflow/proposal-app/internal/services"
	"github.com/contaflow/proposal-app/internal/wizard"
)

// New constructs the root http.Handler with all routes and logging applied.
func New(db *gorm.DB, manager *wizard.Manager, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	repo := catalog.NewGormRepository(db)
	wh := handlers.NewWizardHandler(manager, repo, services.NewProposalService(db), log)
	ch := handlers.NewCatalogHandler(repo, manager, log)

	mux.HandleFunc("/wizard/sessions", wh.Sessions)
	mux.Handle("/wizard/sessions/resume", post(wh.Resume))
	mux.Handle("/wizard/sessions/discard", post(wh.Discard))
	mux.Handle("/wizard/client", post(wh.SetClient))
	mux.Handle("/wizard/activity-type", post(wh.SetActivityType))
	mux.Handle("/wizard/tax-regime", post(wh.SetTaxRegime))
	mux.Handle("/wizard/revenue-bracket", post(wh.SetRevenueBracket))
	mux.Handle("/wizard/service", post(wh.UpsertService))
	mux.Handle("/wizard/service/remove", post(wh.RemoveService))
	mux.Handle("/wizard/discount", post(wh.SetDiscount))
	mux.Handle("/wizard/discount/confirm", post(wh.ConfirmDiscount))
	mux.Handle("/wizard/notes", post(wh.SetNotes))
	mux.Handle("/wizard/advance", post(wh.Advance))
	mux.Handle("/wizard/back", post(wh.Back))
	mux.Handle("/wizard/flush", post(wh.Flush))
	mux.Handle("/wizard/finalize", post(wh.Finalize))
	mux.Handle("/wizard/save-status", get(wh.SaveStatus))
	mux.Handle("/wizard/pricing", get(wh.Pricing))

	mux.Handle("/catalog/activity-types", get(ch.ActivityTypes))
	mux.Handle("/catalog/tax-regimes", get(ch.TaxRegimes))
	mux.Handle("/catalog/revenue-brackets", get(ch.RevenueBrackets))
	mux.Handle("/catalog/services", get(ch.Services))

	return withLogging(mux, log)
}

func post(h http.HandlerFunc) http.Handler { return method(http.MethodPost, h) }
func get(h http.HandlerFunc) http.Handler  { return method(http.MethodGet, h) }

func method(m string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			w.Header().Set("Allow", m)
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		h(w, r)
	})
}

func withLogging(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}
