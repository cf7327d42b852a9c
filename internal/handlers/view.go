package handlers

import (
	"net/http"

	"github.com/contaflow/proposal-app/internal/httpx"
	"github.com/contaflow/proposal-app/internal/pricing"
	"github.com/contaflow/proposal-app/internal/wizard"
)

// breakdownView renders a pricing breakdown with two-fraction-digit amounts.
// Rounding happens here, at the presentation boundary, never mid-calculation.
func breakdownView(bd pricing.Breakdown) map[string]any {
	rounded := bd.Rounded()
	byCategory := make(map[string]string, len(rounded.SubtotalByCategory))
	for cat, amt := range rounded.SubtotalByCategory {
		byCategory[cat] = amt.StringFixed(2)
	}
	return map[string]any{
		"subtotal_by_category": byCategory,
		"subtotal_services":    rounded.SubtotalServices.StringFixed(2),
		"opening_fee":          rounded.OpeningFee.StringFixed(2),
		"opening_fee_kind":     rounded.OpeningFeeKind,
		"base":                 rounded.Base.StringFixed(2),
		"discount_amount":      rounded.DiscountAmount.StringFixed(2),
		"final_total":          rounded.FinalTotal.StringFixed(2),
		"requires_approval":    rounded.RequiresApproval,
	}
}

func (h *WizardHandler) writeSessionView(w http.ResponseWriter, r *http.Request, s *wizard.Session) {
	snap := s.Snapshot()
	view := map[string]any{
		"id":               snap.SessionID,
		"step":             snap.Step.String(),
		"step_ordinal":     int(snap.Step),
		"client":           snap.Client,
		"activity_type":    snap.ActivityType,
		"tax_regime":       snap.TaxRegime,
		"revenue_bracket":  snap.RevenueBracket,
		"services":         snap.Services,
		"discount_percent": snap.DiscountPercent,
		"notes":            snap.Notes,
		"confirm":          snap.Confirm.String(),
	}
	if cat, err := h.Repo.PricingCatalog(r.Context()); err == nil {
		view["pricing"] = breakdownView(pricing.Compute(snap.PricingInput(), cat))
	}
	if ctrl := h.controller(snap.SessionID); ctrl != nil {
		view["save_status"] = ctrl.Status()
	}
	httpx.JSON(w, http.StatusOK, view)
}
