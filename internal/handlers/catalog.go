package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/contaflow/proposal-app/internal/catalog"
	"github.com/contaflow/proposal-app/internal/httpx"
	"github.com/contaflow/proposal-app/internal/wizard"
)

// CatalogHandler exposes the read-only catalog the wizard steps load from.
type CatalogHandler struct {
	Repo    catalog.Repository
	Manager *wizard.Manager
	Log     *zap.Logger
}

func NewCatalogHandler(repo catalog.Repository, m *wizard.Manager, log *zap.Logger) *CatalogHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogHandler{Repo: repo, Manager: m, Log: log}
}

func (h *CatalogHandler) ActivityTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Repo.ListActivityTypes(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": types})
}

func (h *CatalogHandler) TaxRegimes(w http.ResponseWriter, r *http.Request) {
	filter := catalog.RegimeFilter{
		ForIndividual: r.URL.Query().Get("individual") == "1",
		ForCorporate:  r.URL.Query().Get("corporate") == "1",
	}
	regimes, err := h.Repo.ListTaxRegimes(r.Context(), filter)
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": regimes})
}

func (h *CatalogHandler) RevenueBrackets(w http.ResponseWriter, r *http.Request) {
	regimeID, err := strconv.ParseUint(r.URL.Query().Get("regime_id"), 10, 64)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_regime_id", nil)
		return
	}
	brackets, err := h.Repo.ListRevenueBrackets(r.Context(), uint(regimeID))
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": brackets})
}

// Services lists selectable services for a session, one category at a time, with
// the special fiscal filter applied. Listing also refreshes the session's
// assignable-service count used by the services-step validator.
func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	category := r.URL.Query().Get("category")
	s, ok := h.Manager.Get(sessionID)
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "session_not_found", nil)
		return
	}
	snap := s.Snapshot()
	var activityID, regimeID uint
	if snap.ActivityType != nil {
		activityID = snap.ActivityType.ID
	}
	if snap.TaxRegime != nil {
		regimeID = snap.TaxRegime.ID
	}
	all, err := h.Repo.ListServicesForProposal(r.Context(), activityID, regimeID)
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	s.SetAssignableServices(len(all))
	if category == "" {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": all})
		return
	}
	filtered := catalog.FilterCatalog(all, category, snap.ActivityType)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      filtered,
		"restricted": catalog.IsSpecialFiscalFilter(snap.ActivityType, category),
	})
}
