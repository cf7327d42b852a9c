package wizard

import (
	"github.com/shopspring/decimal"

	"github.com/contaflow/proposal-app/internal/models"
)

// ExtraKindCustomLabel is the only extra currently attached to service entries: a
// free-text label shown on the proposal line.
const ExtraKindCustomLabel = "custom-label"

// Extra is a tagged per-service metadata variant. Closed set of kinds so
// validation and pricing stay total over known shapes.
type Extra struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ServiceEntry is one selected catalog service. Quantity semantics depend on the
// service kind: boolean and single-with-extras entries are included (1) or not (0),
// quantity entries scale.
type ServiceEntry struct {
	ServiceID uint            `json:"serviceId"`
	Kind      string          `json:"kind"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Extra     *Extra          `json:"extra,omitempty"`
}

// Subtotal is always derived, never stored, so it can never diverge from
// quantity * unitPrice.
func (e ServiceEntry) Subtotal() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Included reports whether the entry counts toward step completion.
func (e ServiceEntry) Included() bool {
	switch e.Kind {
	case models.ServiceKindBoolean, models.ServiceKindSingleWithExtras:
		return e.Quantity == 1
	default:
		return e.Quantity > 0
	}
}

// clampQuantity enforces the per-kind quantity invariant at the mutation boundary.
func clampQuantity(kind string, qty int) int {
	if qty < 0 {
		qty = 0
	}
	switch kind {
	case models.ServiceKindBoolean, models.ServiceKindSingleWithExtras:
		if qty > 1 {
			qty = 1
		}
	}
	return qty
}
