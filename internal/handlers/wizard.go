package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/contaflow/proposal-app/internal/catalog"
	"github.com/contaflow/proposal-app/internal/draft"
	"github.com/contaflow/proposal-app/internal/httpx"
	"github.com/contaflow/proposal-app/internal/models"
	"github.com/contaflow/proposal-app/internal/pricing"
	"github.com/contaflow/proposal-app/internal/services"
	"github.com/contaflow/proposal-app/internal/wizard"
)

// WizardHandler exposes the wizard session operations over JSON.
type WizardHandler struct {
	Manager   *wizard.Manager
	Repo      catalog.Repository
	Proposals *services.ProposalService
	Log       *zap.Logger
}

func NewWizardHandler(m *wizard.Manager, repo catalog.Repository, ps *services.ProposalService, log *zap.Logger) *WizardHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WizardHandler{Manager: m, Repo: repo, Proposals: ps, Log: log}
}

func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_session_id", nil)
		return nil, false
	}
	s, ok := h.Manager.Get(id)
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "session_not_found", nil)
		return nil, false
	}
	return s, true
}

func (h *WizardHandler) controller(id string) *draft.Controller {
	ctrl, _ := h.Manager.Controller(id)
	return ctrl
}

// Sessions: POST creates, GET returns the full session view.
func (h *WizardHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s := h.Manager.Create()
		httpx.JSON(w, http.StatusCreated, map[string]any{"id": s.ID, "step": s.Step().String()})
	case http.MethodGet:
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		h.writeSessionView(w, r, s)
	default:
		w.Header().Set("Allow", "GET,POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

// Resume: POST /wizard/sessions/resume?id= — rehydrates from drafts when the
// session is no longer live.
func (h *WizardHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_session_id", nil)
		return
	}
	s, err := h.Manager.Resume(id)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "resume_failed", nil)
		return
	}
	h.writeSessionView(w, r, s)
}

// Discard: POST /wizard/sessions/discard?id= — drops the session and purges its
// drafts ("new proposal").
func (h *WizardHandler) Discard(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_session_id", nil)
		return
	}
	if err := h.Manager.Discard(id); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "discard_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (h *WizardHandler) SetClient(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ClientID uint `json:"client_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	client, err := h.Repo.GetClient(r.Context(), req.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "client_not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusBadGateway, "client_load_failed", nil)
		return
	}
	s.SetClient(client)
	h.writeSessionView(w, r, s)
}

func (h *WizardHandler) SetActivityType(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ActivityTypeID uint `json:"activity_type_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	types, err := h.Repo.ListActivityTypes(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	for i := range types {
		if types[i].ID == req.ActivityTypeID {
			s.SetActivityType(&types[i])
			h.writeSessionView(w, r, s)
			return
		}
	}
	httpx.JSONError(w, http.StatusNotFound, "activity_type_not_found", nil)
}

func (h *WizardHandler) SetTaxRegime(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		TaxRegimeID uint `json:"tax_regime_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	regimes, err := h.Repo.ListTaxRegimes(r.Context(), catalog.RegimeFilter{})
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	var regime *models.TaxRegime
	for i := range regimes {
		if regimes[i].ID == req.TaxRegimeID {
			regime = &regimes[i]
			break
		}
	}
	if regime == nil {
		httpx.JSONError(w, http.StatusNotFound, "tax_regime_not_found", nil)
		return
	}
	if err := s.SetTaxRegime(regime); err != nil {
		httpx.JSONError(w, http.StatusConflict, err.Error(), nil)
		return
	}
	// Reload available brackets for the new regime; zero is a valid outcome.
	brackets, err := h.Repo.ListRevenueBrackets(r.Context(), regime.ID)
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "bracket_load_failed", nil)
		return
	}
	s.SetAvailableBrackets(len(brackets))
	h.writeSessionView(w, r, s)
}

func (h *WizardHandler) SetRevenueBracket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		RevenueBracketID uint `json:"revenue_bracket_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	snap := s.Snapshot()
	if snap.TaxRegime == nil {
		httpx.JSONError(w, http.StatusConflict, "tax_regime_required", nil)
		return
	}
	brackets, err := h.Repo.ListRevenueBrackets(r.Context(), snap.TaxRegime.ID)
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "bracket_load_failed", nil)
		return
	}
	for i := range brackets {
		if brackets[i].ID == req.RevenueBracketID {
			s.SetRevenueBracket(&brackets[i])
			h.writeSessionView(w, r, s)
			return
		}
	}
	httpx.JSONError(w, http.StatusNotFound, "revenue_bracket_not_found", nil)
}

// UpsertService adds or updates one selected service. Unit price defaults to the
// catalog base price; quantity is clamped per service kind inside the session.
func (h *WizardHandler) UpsertService(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ServiceID uint   `json:"service_id"`
		Quantity  int    `json:"quantity"`
		Label     string `json:"label"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
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
	available, err := h.Repo.ListServicesForProposal(r.Context(), activityID, regimeID)
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	s.SetAssignableServices(len(available))
	for _, svc := range available {
		if svc.ID != req.ServiceID {
			continue
		}
		entry := wizard.ServiceEntry{
			ServiceID: svc.ID,
			Kind:      svc.Kind,
			Quantity:  req.Quantity,
			UnitPrice: svc.BasePrice,
		}
		if req.Label != "" {
			entry.Extra = &wizard.Extra{Kind: wizard.ExtraKindCustomLabel, Value: req.Label}
		}
		s.UpsertService(entry)
		h.writeSessionView(w, r, s)
		return
	}
	httpx.JSONError(w, http.StatusNotFound, "service_not_found", nil)
}

func (h *WizardHandler) RemoveService(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ServiceID uint `json:"service_id"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	s.RemoveService(req.ServiceID)
	h.writeSessionView(w, r, s)
}

func (h *WizardHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Percent decimal.Decimal `json:"percent"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	s.SetDiscount(req.Percent)
	h.writeSessionView(w, r, s)
}

func (h *WizardHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	s.SetNotes(req.Notes)
	h.writeSessionView(w, r, s)
}

// Advance moves forward when the current step validates. The step being left is
// flushed in the background; navigation never waits on persistence.
func (h *WizardHandler) Advance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	leaving := s.Step()
	res := s.Advance()
	if res.OK {
		if ctrl := h.controller(s.ID); ctrl != nil {
			go func() { _ = ctrl.FlushNow(int(leaving)) }()
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"ok":      res.OK,
		"step":    res.Step.String(),
		"reason":  res.Reason,
		"confirm": s.ConfirmState().String(),
	})
}

func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	step := s.Back()
	httpx.JSON(w, http.StatusOK, map[string]any{"step": step.String()})
}

// ConfirmDiscount answers the above-threshold discount prompt.
func (h *WizardHandler) ConfirmDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	var err error
	if req.Accept {
		err = s.ConfirmDiscount()
	} else {
		err = s.CancelDiscount()
	}
	if err != nil {
		httpx.JSONError(w, http.StatusConflict, err.Error(), nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"confirm": s.ConfirmState().String()})
}

// Flush triggers a manual save of every pending step, which also clears a sticky
// autosave error.
func (h *WizardHandler) Flush(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl := h.controller(s.ID)
	if ctrl == nil {
		httpx.JSONError(w, http.StatusNotFound, "session_not_found", nil)
		return
	}
	if err := ctrl.FlushAll(); err != nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"flushed": false, "status": ctrl.Status()})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"flushed": true, "status": ctrl.Status()})
}

func (h *WizardHandler) SaveStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl := h.controller(s.ID)
	if ctrl == nil {
		httpx.JSONError(w, http.StatusNotFound, "session_not_found", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, ctrl.Status())
}

// Pricing recomputes the breakdown from the current snapshot. Always derived on
// demand, never cached or persisted.
func (h *WizardHandler) Pricing(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	cat, err := h.Repo.PricingCatalog(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	bd := pricing.Compute(s.Snapshot().PricingInput(), cat)
	httpx.JSON(w, http.StatusOK, breakdownView(bd))
}

// Finalize flushes all drafts, computes the final breakdown, persists the
// proposal, and discards the session (purging its drafts) on success.
func (h *WizardHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ProposalID uint `json:"proposal_id"`
	}
	_ = httpx.Decode(r, &req) // body optional on create

	if ctrl := h.controller(s.ID); ctrl != nil {
		if err := ctrl.FlushAll(); err != nil {
			h.Log.Warn("draft flush before finalize failed", zap.String("session", s.ID), zap.Error(err))
		}
	}
	cat, err := h.Repo.PricingCatalog(r.Context())
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "catalog_load_failed", nil)
		return
	}
	snap := s.Snapshot()
	bd := pricing.Compute(snap.PricingInput(), cat)
	proposal, err := h.Proposals.Finalize(r.Context(), snap, bd, req.ProposalID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfirmationRequired):
			httpx.JSONError(w, http.StatusConflict, "discount_confirmation_required", nil)
		case errors.Is(err, services.ErrIncompleteSession):
			httpx.JSONError(w, http.StatusConflict, "session_incomplete", nil)
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "finalize_failed", nil)
		}
		return
	}
	if err := h.Manager.Discard(s.ID); err != nil {
		h.Log.Warn("session discard after finalize failed", zap.String("session", s.ID), zap.Error(err))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"id":     proposal.ID,
		"number": proposal.Number,
		"status": proposal.Status,
	})
}
