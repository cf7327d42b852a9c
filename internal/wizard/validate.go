package wizard

import (
	"github.com/contaflow/proposal-app/internal/validation"
)

// CanAdvance decides whether a step's accumulated data is complete enough to move
// forward. Total over the snapshot shape: never errors, never panics. When
// blocked, the second return names the offending field.
func CanAdvance(step Step, snap Snapshot) (bool, string) {
	switch step {
	case StepClient:
		if snap.Client == nil {
			return false, "client"
		}
		v := validation.Violations{}
		validation.Required("name", snap.Client.Name, v)
		validation.Required("tax_id", snap.Client.TaxID, v)
		validation.Required("email", snap.Client.Email, v)
		if !v.Empty() {
			field, _ := v.First()
			return false, "client." + field
		}
		return true, ""

	case StepTaxConfig:
		if snap.ActivityType == nil {
			return false, "activity_type"
		}
		if snap.TaxRegime == nil {
			return false, "tax_regime"
		}
		// A bracket is required only when the selected regime exposes at least
		// one; a regime without brackets is a valid terminal state here.
		if snap.AvailableBrackets > 0 && snap.RevenueBracket == nil {
			return false, "revenue_bracket"
		}
		return true, ""

	case StepServices:
		// Nothing assignable in the category set makes the step vacuously valid.
		if snap.AssignableServices == 0 {
			return true, ""
		}
		for _, e := range snap.Services {
			if e.Included() {
				return true, ""
			}
		}
		return false, "services"

	case StepReview:
		v := validation.Violations{}
		validation.MaxLen("notes", snap.Notes, MaxNotesLen, v)
		if !v.Empty() {
			return false, "notes"
		}
		return true, ""

	case StepFinalize:
		return false, "already_at_final_step"
	}
	return false, "unknown_step"
}
