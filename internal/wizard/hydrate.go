package wizard

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/contaflow/proposal-app/internal/draft"
	"github.com/contaflow/proposal-app/internal/models"
)

// Per-step draft payloads. One draft per step, independently saved and
// independently recoverable.

type ClientPayload struct {
	Client *models.Client `json:"client"`
}

type TaxConfigPayload struct {
	ActivityType      *models.ActivityType   `json:"activityType,omitempty"`
	TaxRegime         *models.TaxRegime      `json:"taxRegime,omitempty"`
	RevenueBracket    *models.RevenueBracket `json:"revenueBracket,omitempty"`
	AvailableBrackets int                    `json:"availableBrackets"`
}

type ServicesPayload struct {
	Entries    []ServiceEntry `json:"entries"`
	Assignable int            `json:"assignable"`
}

type ReviewPayload struct {
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Notes           string          `json:"notes"`
}

func (s *Session) taxConfigPayloadLocked() TaxConfigPayload {
	return TaxConfigPayload{
		ActivityType:      s.activityType,
		TaxRegime:         s.taxRegime,
		RevenueBracket:    s.revenueBracket,
		AvailableBrackets: s.availableBrackets,
	}
}

func (s *Session) servicesPayloadLocked() ServicesPayload {
	entries := make([]ServiceEntry, 0, len(s.services))
	for _, e := range s.services {
		entries = append(entries, e)
	}
	return ServicesPayload{Entries: entries, Assignable: s.assignable}
}

func (s *Session) reviewPayloadLocked() ReviewPayload {
	return ReviewPayload{DiscountPercent: s.discountPercent, Notes: s.notes}
}

// Hydrate rebuilds a session from its persisted step drafts. Drafts older than
// maxAge are stale: skipped and deleted instead of replayed. The session resumes
// at the furthest drafted step, capped at review so finalization is never
// re-entered from a recovery.
func Hydrate(store draft.Store, sessionID string, maxAge time.Duration) (*Session, error) {
	drafts, err := store.List(draft.SessionPrefix(sessionID))
	if err != nil {
		return nil, err
	}
	s := NewSession(sessionID)
	now := time.Now()
	resumeAt := StepClient
	for _, d := range drafts {
		if d.StaleAt(maxAge, now) {
			_ = store.Delete(draft.Key(sessionID, d.Step))
			continue
		}
		step := Step(d.Step)
		if !step.Valid() {
			continue
		}
		if err := s.applyDraft(step, d.Payload); err != nil {
			// A corrupt draft loses one step of work, not the whole recovery.
			continue
		}
		if step > resumeAt {
			resumeAt = step
		}
	}
	if resumeAt > StepReview {
		resumeAt = StepReview
	}
	s.mu.Lock()
	s.step = resumeAt
	s.mu.Unlock()
	return s, nil
}

// applyDraft replays one step payload into the session without notifying the
// observer; hydration must not immediately re-save what it just read.
func (s *Session) applyDraft(step Step, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch step {
	case StepClient:
		var p ClientPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		s.client = p.Client
	case StepTaxConfig:
		var p TaxConfigPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		s.activityType = p.ActivityType
		s.taxRegime = p.TaxRegime
		s.revenueBracket = p.RevenueBracket
		s.availableBrackets = p.AvailableBrackets
	case StepServices:
		var p ServicesPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		s.services = make(map[uint]ServiceEntry, len(p.Entries))
		for _, e := range p.Entries {
			e.Quantity = clampQuantity(e.Kind, e.Quantity)
			s.services[e.ServiceID] = e
		}
		s.assignable = p.Assignable
	case StepReview:
		var p ReviewPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		s.discountPercent = p.DiscountPercent
		s.notes = p.Notes
	}
	return nil
}
