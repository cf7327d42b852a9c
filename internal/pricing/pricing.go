package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Opening fee classification.
const (
	FeeKindNone    = "NONE"
	FeeKindMEI     = "MEI"
	FeeKindCompany = "COMPANY"
)

// ApprovalThresholdPercent is the discount boundary above which a proposal must be
// explicitly confirmed and flagged for administrative review.
var ApprovalThresholdPercent = decimal.NewFromInt(20)

var (
	openingFeeMEI     = decimal.NewFromInt(300)
	openingFeeCompany = decimal.NewFromInt(1000)
	hundred           = decimal.NewFromInt(100)
)

// CatalogEntry resolves a service to its category and list price.
type CatalogEntry struct {
	Category  string
	BasePrice decimal.Decimal
}

// Catalog maps serviceID to its catalog entry.
type Catalog map[uint]CatalogEntry

// Line is one selected service as the engine sees it. Subtotal is always derived
// from quantity and unit price, never carried in.
type Line struct {
	ServiceID uint
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Input is the session data the engine consumes. DiscountPercent is assumed to be
// pre-clamped to [0,100] at the mutation boundary.
type Input struct {
	Lines           []Line
	OpensNewCompany bool
	RegimeCode      string
	RegimeName      string
	DiscountPercent decimal.Decimal
}

// Breakdown is the derived pricing result. Never persisted; recomputed on demand.
type Breakdown struct {
	SubtotalByCategory map[string]decimal.Decimal
	SubtotalServices   decimal.Decimal
	OpeningFee         decimal.Decimal
	OpeningFeeKind     string
	Base               decimal.Decimal
	DiscountAmount     decimal.Decimal
	FinalTotal         decimal.Decimal
	RequiresApproval   bool
}

// RequiresApproval reports whether a discount percentage exceeds the auto-approval
// threshold. Strictly greater: 20 itself does not require approval.
func RequiresApproval(discountPercent decimal.Decimal) bool {
	return discountPercent.GreaterThan(ApprovalThresholdPercent)
}

// ClassifyOpeningFee returns the one-time company-opening charge and its kind.
// MEI regimes (matched on code or name) carry the reduced fee.
func ClassifyOpeningFee(opensNewCompany bool, regimeCode, regimeName string) (decimal.Decimal, string) {
	if !opensNewCompany {
		return decimal.Zero, FeeKindNone
	}
	if isMEI(regimeCode) || isMEI(regimeName) {
		return openingFeeMEI, FeeKindMEI
	}
	return openingFeeCompany, FeeKindCompany
}

func isMEI(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "mei") || strings.Contains(s, "microempreendedor")
}

// Compute derives the full pricing breakdown for a session snapshot. Pure: no I/O,
// no mutation of inputs, never errors. Monetary values stay unrounded; rounding to
// two places happens only at presentation boundaries (see Rounded).
func Compute(in Input, catalog Catalog) Breakdown {
	byCategory := make(map[string]decimal.Decimal)
	subtotal := decimal.Zero
	for _, line := range in.Lines {
		lineTotal := line.Subtotal()
		subtotal = subtotal.Add(lineTotal)
		category := ""
		if entry, ok := catalog[line.ServiceID]; ok {
			category = entry.Category
		}
		byCategory[category] = byCategory[category].Add(lineTotal)
	}

	fee, kind := ClassifyOpeningFee(in.OpensNewCompany, in.RegimeCode, in.RegimeName)
	base := subtotal.Add(fee)
	discount := base.Mul(in.DiscountPercent).Div(hundred)

	return Breakdown{
		SubtotalByCategory: byCategory,
		SubtotalServices:   subtotal,
		OpeningFee:         fee,
		OpeningFeeKind:     kind,
		Base:               base,
		DiscountAmount:     discount,
		FinalTotal:         base.Sub(discount),
		RequiresApproval:   RequiresApproval(in.DiscountPercent),
	}
}

// Rounded returns a copy of the breakdown with every amount rounded to two
// fraction digits, for display or persistence of final totals.
func (b Breakdown) Rounded() Breakdown {
	out := b
	out.SubtotalByCategory = make(map[string]decimal.Decimal, len(b.SubtotalByCategory))
	for cat, amt := range b.SubtotalByCategory {
		out.SubtotalByCategory[cat] = amt.Round(2)
	}
	out.SubtotalServices = b.SubtotalServices.Round(2)
	out.OpeningFee = b.OpeningFee.Round(2)
	out.Base = b.Base.Round(2)
	out.DiscountAmount = b.DiscountAmount.Round(2)
	out.FinalTotal = b.FinalTotal.Round(2)
	return out
}
