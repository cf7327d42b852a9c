package wizard

// Step is one of the five wizard screens, ordinal 1..5. Navigation is linear:
// forward moves are gated, backward moves are unconditional.
type Step int

const (
	StepClient Step = iota + 1
	StepTaxConfig
	StepServices
	StepReview
	StepFinalize
)

func (s Step) String() string {
	switch s {
	case StepClient:
		return "client"
	case StepTaxConfig:
		return "tax_config"
	case StepServices:
		return "services"
	case StepReview:
		return "review"
	case StepFinalize:
		return "finalize"
	}
	return "unknown"
}

func (s Step) Valid() bool { return s >= StepClient && s <= StepFinalize }
