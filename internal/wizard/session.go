package wizard

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/contaflow/proposal-app/internal/models"
	"github.com/contaflow/proposal-app/internal/pricing"
)

// MaxNotesLen bounds the free-text notes field.
const MaxNotesLen = 500

var (
	ErrActivityTypeRequired = errors.New("activity_type_required")
	ErrNotPrompted          = errors.New("confirmation_not_prompted")
)

// Observer receives a notification after every in-step mutation. The autosave
// controller registers here; the session never persists anything itself.
type Observer func(step Step, payload any)

// BracketReloadFunc signals that available revenue brackets for a newly selected
// regime must be reloaded by the caller.
type BracketReloadFunc func(regimeID uint)

// Session is the wizard aggregate: current step, accumulated per-step data, and
// navigation gated by the per-step validators. All mutations are synchronous and
// immediately consistent; invariants (quantity bounds, discount range, notes
// length) are enforced here, before data can reach pricing or validation.
type Session struct {
	ID string

	mu                sync.Mutex
	step              Step
	client            *models.Client
	activityType      *models.ActivityType
	taxRegime         *models.TaxRegime
	revenueBracket    *models.RevenueBracket
	availableBrackets int
	assignable        int // services assignable at step 3; -1 until the catalog is loaded
	services          map[uint]ServiceEntry
	discountPercent   decimal.Decimal
	notes             string
	confirm           ConfirmState

	observer        Observer
	onBracketReload BracketReloadFunc

	createdAt time.Time
	updatedAt time.Time
}

func NewSession(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now()
	return &Session{
		ID:         id,
		step:       StepClient,
		assignable: -1,
		services:   make(map[uint]ServiceEntry),
		createdAt:  now,
		updatedAt:  now,
	}
}

// SetObserver registers the mutation observer. Pass nil to detach.
func (s *Session) SetObserver(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *Session) SetBracketReload(fn BracketReloadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBracketReload = fn
}

func (s *Session) notifyLocked(step Step, payload any) {
	s.updatedAt = time.Now()
	if s.observer != nil {
		s.observer(step, payload)
	}
}

// Snapshot is an immutable copy of the session used by validators, the pricing
// engine, and finalization.
type Snapshot struct {
	SessionID          string
	Step               Step
	Client             *models.Client
	ActivityType       *models.ActivityType
	TaxRegime          *models.TaxRegime
	RevenueBracket     *models.RevenueBracket
	AvailableBrackets  int
	AssignableServices int
	Services           []ServiceEntry
	DiscountPercent    decimal.Decimal
	Notes              string
	Confirm            ConfirmState
	UpdatedAt          time.Time
}

// PricingInput projects the snapshot onto the pricing engine's input shape.
func (snap Snapshot) PricingInput() pricing.Input {
	lines := make([]pricing.Line, 0, len(snap.Services))
	for _, e := range snap.Services {
		lines = append(lines, pricing.Line{ServiceID: e.ServiceID, Quantity: e.Quantity, UnitPrice: e.UnitPrice})
	}
	in := pricing.Input{Lines: lines, DiscountPercent: snap.DiscountPercent}
	if snap.Client != nil {
		in.OpensNewCompany = snap.Client.OpensNewCompany
	}
	if snap.TaxRegime != nil {
		in.RegimeCode = snap.TaxRegime.Code
		in.RegimeName = snap.TaxRegime.Name
	}
	return in
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	entries := make([]ServiceEntry, 0, len(s.services))
	for _, e := range s.services {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ServiceID < entries[j].ServiceID })
	return Snapshot{
		SessionID:          s.ID,
		Step:               s.step,
		Client:             s.client,
		ActivityType:       s.activityType,
		TaxRegime:          s.taxRegime,
		RevenueBracket:     s.revenueBracket,
		AvailableBrackets:  s.availableBrackets,
		AssignableServices: s.assignable,
		Services:           entries,
		DiscountPercent:    s.discountPercent,
		Notes:              s.notes,
		Confirm:            s.confirm,
		UpdatedAt:          s.updatedAt,
	}
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// --- mutations ---

func (s *Session) SetClient(c *models.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
	s.notifyLocked(StepClient, ClientPayload{Client: c})
}

// SetActivityType cascades: a new activity type invalidates the regime and
// bracket choices made under the old one.
func (s *Session) SetActivityType(at *models.ActivityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.activityType == nil || at == nil || s.activityType.ID != at.ID
	s.activityType = at
	if changed {
		s.taxRegime = nil
		s.revenueBracket = nil
		s.availableBrackets = 0
	}
	s.notifyLocked(StepTaxConfig, s.taxConfigPayloadLocked())
}

// SetTaxRegime requires an activity type and resets the bracket choice. The
// registered reload callback is invoked so the caller can fetch the regime's
// brackets and report the count back via SetAvailableBrackets.
func (s *Session) SetTaxRegime(r *models.TaxRegime) error {
	s.mu.Lock()
	if s.activityType == nil {
		s.mu.Unlock()
		return ErrActivityTypeRequired
	}
	s.taxRegime = r
	s.revenueBracket = nil
	s.availableBrackets = 0
	reload := s.onBracketReload
	s.notifyLocked(StepTaxConfig, s.taxConfigPayloadLocked())
	s.mu.Unlock()
	if reload != nil && r != nil {
		reload(r.ID)
	}
	return nil
}

// SetAvailableBrackets records how many brackets the selected regime exposes.
// Zero is a valid terminal state for the tax-config step.
func (s *Session) SetAvailableBrackets(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.availableBrackets = n
}

func (s *Session) SetRevenueBracket(b *models.RevenueBracket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revenueBracket = b
	s.notifyLocked(StepTaxConfig, s.taxConfigPayloadLocked())
}

// SetAssignableServices records how many catalog services are assignable at the
// services step; zero makes the step vacuously valid.
func (s *Session) SetAssignableServices(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignable = n
}

func (s *Session) UpsertService(e ServiceEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Quantity = clampQuantity(e.Kind, e.Quantity)
	if e.UnitPrice.IsNegative() {
		e.UnitPrice = decimal.Zero
	}
	s.services[e.ServiceID] = e
	s.notifyLocked(StepServices, s.servicesPayloadLocked())
}

func (s *Session) RemoveService(serviceID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, serviceID)
	s.notifyLocked(StepServices, s.servicesPayloadLocked())
}

// SetDiscount clamps to [0,100] and resets any pending discount confirmation:
// changing the value invalidates a prior prompt or answer.
func (s *Session) SetDiscount(pct decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		pct = decimal.NewFromInt(100)
	}
	s.discountPercent = pct
	s.confirm = ConfirmIdle
	s.notifyLocked(StepReview, s.reviewPayloadLocked())
}

// SetNotes truncates to MaxNotesLen runes at the boundary.
func (s *Session) SetNotes(notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if runes := []rune(notes); len(runes) > MaxNotesLen {
		notes = string(runes[:MaxNotesLen])
	}
	s.notes = notes
	s.notifyLocked(StepReview, s.reviewPayloadLocked())
}

// --- navigation ---

// AdvanceResult reports whether a forward transition happened and, when blocked,
// which field blocked it.
type AdvanceResult struct {
	OK     bool
	Step   Step
	Reason string
}

// Advance moves one step forward when the current step validates. Leaving the
// review step with an above-threshold discount additionally requires the
// confirmation flow to have reached CONFIRMED; otherwise the flow is prompted
// and the transition is a no-op.
func (s *Session) Advance() AdvanceResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step >= StepFinalize {
		return AdvanceResult{OK: false, Step: s.step, Reason: "already_at_final_step"}
	}
	if ok, reason := CanAdvance(s.step, s.snapshotLocked()); !ok {
		return AdvanceResult{OK: false, Step: s.step, Reason: reason}
	}
	if s.step == StepReview && pricing.RequiresApproval(s.discountPercent) && s.confirm != ConfirmConfirmed {
		s.confirm = ConfirmPrompt
		return AdvanceResult{OK: false, Step: s.step, Reason: "discount_requires_confirmation"}
	}
	s.step++
	s.updatedAt = time.Now()
	return AdvanceResult{OK: true, Step: s.step}
}

// Back moves one step backward, always permitted. Backing out of the review step
// abandons any in-flight confirmation prompt.
func (s *Session) Back() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step > StepClient {
		if s.step == StepReview || s.step == StepFinalize {
			s.confirm = ConfirmIdle
		}
		s.step--
		s.updatedAt = time.Now()
	}
	return s.step
}

// GoTo jumps directly to an earlier step. Forward jumps are rejected so step
// gating cannot be skipped.
func (s *Session) GoTo(target Step) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !target.Valid() || target > s.step {
		return false
	}
	if target < StepReview {
		s.confirm = ConfirmIdle
	}
	s.step = target
	s.updatedAt = time.Now()
	return true
}

// --- discount confirmation flow ---

func (s *Session) ConfirmState() ConfirmState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirm
}

// ConfirmDiscount accepts the above-threshold discount. Only meaningful while
// the prompt is open; the next Advance from review will then pass the gate and
// the persisted proposal is flagged as awaiting administrative approval.
func (s *Session) ConfirmDiscount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm != ConfirmPrompt {
		return ErrNotPrompted
	}
	s.confirm = ConfirmConfirmed
	s.updatedAt = time.Now()
	return nil
}

// CancelDiscount dismisses the prompt and keeps the session on review unchanged,
// letting the operator lower the discount instead.
func (s *Session) CancelDiscount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm != ConfirmPrompt {
		return ErrNotPrompted
	}
	s.confirm = ConfirmCancelled
	s.updatedAt = time.Now()
	return nil
}
