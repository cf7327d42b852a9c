package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/contaflow/proposal-app/internal/models"
	"github.com/contaflow/proposal-app/internal/pricing"
	"github.com/contaflow/proposal-app/internal/wizard"
)

var (
	ErrIncompleteSession    = errors.New("session_incomplete")
	ErrConfirmationRequired = errors.New("discount_confirmation_required")
)

// ProposalService turns a finished wizard session into a persisted proposal.
// Invoked once per finalize attempt; failures surface to the operator and are
// not retried here.
type ProposalService struct {
	DB *gorm.DB
}

func NewProposalService(db *gorm.DB) *ProposalService { return &ProposalService{DB: db} }

// Finalize creates the proposal (or updates it when existingID is non-zero) from
// the session snapshot and its pricing breakdown. Totals are rounded to two
// places here, at the persistence boundary. An above-threshold discount must
// have passed the confirmation flow; the proposal is then flagged as awaiting
// administrative approval.
func (s *ProposalService) Finalize(ctx context.Context, snap wizard.Snapshot, bd pricing.Breakdown, existingID uint) (*models.Proposal, error) {
	if snap.Client == nil || snap.Client.ID == 0 {
		return nil, ErrIncompleteSession
	}
	if snap.Step != wizard.StepFinalize {
		return nil, ErrIncompleteSession
	}
	if bd.RequiresApproval && snap.Confirm != wizard.ConfirmConfirmed {
		return nil, ErrConfirmationRequired
	}

	rounded := bd.Rounded()
	p := models.Proposal{
		ID:               existingID,
		Status:           models.ProposalStatusFinalized,
		ClientID:         snap.Client.ID,
		DiscountPercent:  snap.DiscountPercent,
		Notes:            snap.Notes,
		SubtotalServices: rounded.SubtotalServices,
		OpeningFee:       rounded.OpeningFee,
		OpeningFeeKind:   rounded.OpeningFeeKind,
		DiscountAmount:   rounded.DiscountAmount,
		FinalTotal:       rounded.FinalTotal,
		AwaitingApproval: bd.RequiresApproval,
	}
	if bd.RequiresApproval {
		p.Status = models.ProposalStatusAwaitingApproval
	}
	if snap.ActivityType != nil {
		p.ActivityTypeID = snap.ActivityType.ID
	}
	if snap.TaxRegime != nil {
		p.TaxRegimeID = snap.TaxRegime.ID
	}
	if snap.RevenueBracket != nil {
		p.RevenueBracketID = snap.RevenueBracket.ID
	}
	for _, e := range snap.Services {
		if !e.Included() {
			continue
		}
		item := models.ProposalItem{
			ServiceID: e.ServiceID,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
			Subtotal:  e.Subtotal().Round(2),
		}
		if e.Extra != nil && e.Extra.Kind == wizard.ExtraKindCustomLabel {
			item.Label = e.Extra.Value
		}
		p.Items = append(p.Items, item)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existingID != 0 {
			// Replace items wholesale on update; the snapshot is authoritative.
			var prev models.Proposal
			if err := tx.First(&prev, existingID).Error; err != nil {
				return err
			}
			p.Number = prev.Number
			p.CreatedAt = prev.CreatedAt
			if err := tx.Delete(&models.ProposalItem{}, "proposal_id = ?", existingID).Error; err != nil {
				return err
			}
		} else {
			number, err := nextNumber(tx)
			if err != nil {
				return err
			}
			p.Number = number
		}
		return tx.Save(&p).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// nextNumber issues ORC-<year>-<seq> proposal numbers, sequential per year.
func nextNumber(tx *gorm.DB) (string, error) {
	year := time.Now().Year()
	var count int64
	prefix := fmt.Sprintf("ORC-%d-", year)
	if err := tx.Model(&models.Proposal{}).Where("number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}
