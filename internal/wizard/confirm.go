package wizard

// ConfirmState is the discount-confirmation sub-state-machine guarding
// finalization when the discount exceeds the auto-approval threshold.
// IDLE -> PROMPT -> (CONFIRMED | CANCELLED). Transient per finalize attempt;
// never persisted across sessions.
type ConfirmState int

const (
	ConfirmIdle ConfirmState = iota
	ConfirmPrompt
	ConfirmConfirmed
	ConfirmCancelled
)

func (c ConfirmState) String() string {
	switch c {
	case ConfirmIdle:
		return "idle"
	case ConfirmPrompt:
		return "prompt"
	case ConfirmConfirmed:
		return "confirmed"
	case ConfirmCancelled:
		return "cancelled"
	}
	return "unknown"
}
