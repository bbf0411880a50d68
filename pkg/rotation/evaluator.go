// Package rotation decides who moves between the intern and formal member roles
// and carries out the role swaps.
package rotation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/settings"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// LedgerReader provides the points total of a user in a month.
type LedgerReader interface {
	Total(ctx context.Context, userID uuid.UUID, month types.Month) (int64, error)
}

// ArchiveReader provides the archived allocation records of a user, newest first.
type ArchiveReader interface {
	Archived(ctx context.Context, userID uuid.UUID) ([]models.AllocationRecord, error)
}

// SettingsReader provides the rotation thresholds.
type SettingsReader interface {
	RotationThresholds(ctx context.Context) (settings.RotationThresholds, error)
}

// Evaluator inspects the ledger and the allocation history.
type Evaluator struct {
	db       *gorm.DB
	ledger   LedgerReader
	archive  ArchiveReader
	settings SettingsReader

	// Now determines the current month.
	Now func() time.Time
}

// Review is the state of a promotion review.
type Review struct {
	Eligible    []models.User `json:"eligible"`
	Candidates  []models.User `json:"candidates"`
	Triggerable bool          `json:"triggerable"`
}

func NewEvaluator(db *gorm.DB, l LedgerReader, a ArchiveReader, s SettingsReader) *Evaluator {
	return &Evaluator{
		db:       db,
		ledger:   l,
		archive:  a,
		settings: s,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// PromotionEligible returns the interns whose points in the current month reach
// the promotion threshold.
func (e *Evaluator) PromotionEligible(ctx context.Context) ([]models.User, error) {
	t, err := e.settings.RotationThresholds(ctx)
	if err != nil {
		return nil, err
	}

	interns, err := models.UsersWithRole(e.db.WithContext(ctx), models.RoleIntern)
	if err != nil {
		return nil, err
	}

	month := types.MonthOf(e.Now())
	eligible := []models.User{}
	for _, u := range interns {
		total, err := e.ledger.Total(ctx, u.ID, month)
		if err != nil {
			return nil, err
		}

		if total >= t.PromotionPoints {
			eligible = append(eligible, u)
		}
	}

	return eligible, nil
}

// DemotionCandidates returns the formal seat holders whose most recent archived
// periods were all below the demotion threshold. Holders with fewer archived
// periods than inspected are not candidates.
func (e *Evaluator) DemotionCandidates(ctx context.Context) ([]models.User, error) {
	t, err := e.settings.RotationThresholds(ctx)
	if err != nil {
		return nil, err
	}

	holders, err := models.FormalSeatHolders(e.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	candidates := []models.User{}
	for _, u := range holders {
		history, err := e.archive.Archived(ctx, u.ID)
		if err != nil {
			return nil, err
		}

		if len(history) < t.DemotionPeriods {
			continue
		}

		below := true
		for _, r := range history[:t.DemotionPeriods] {
			if r.TotalPoints >= t.DemotionPoints {
				below = false
				break
			}
		}

		if below {
			candidates = append(candidates, u)
		}
	}

	return candidates, nil
}

// MarkDismissalCandidates flags every intern whose points were below the
// dismissal threshold in each of the previous months. Only interns that were
// not flagged before are returned. The months are summed up independently
// from the ledger.
func (e *Evaluator) MarkDismissalCandidates(ctx context.Context) ([]models.User, error) {
	t, err := e.settings.RotationThresholds(ctx)
	if err != nil {
		return nil, err
	}

	interns, err := models.UsersWithRole(e.db.WithContext(ctx), models.RoleIntern)
	if err != nil {
		return nil, err
	}

	current := types.MonthOf(e.Now())
	marked := []models.User{}
	var ids []uuid.UUID

	for _, u := range interns {
		if u.PendingDismissal {
			continue
		}

		below := true
		for k := 1; k <= t.DismissalPeriods; k++ {
			total, err := e.ledger.Total(ctx, u.ID, current.AddDate(0, -k))
			if err != nil {
				return nil, err
			}

			if total >= t.DismissalPoints {
				below = false
				break
			}
		}

		if below {
			u.PendingDismissal = true
			marked = append(marked, u)
			ids = append(ids, u.ID)
		}
	}

	if len(ids) == 0 {
		return marked, nil
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.User{}).
			Where("id IN ? AND role = ? AND pending_dismissal = ?", ids, models.RoleIntern, false).
			Update("pending_dismissal", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("marking dismissal candidates: %w", err)
	}

	log.Info().Int("count", len(marked)).Msg("dismissal candidates marked")
	return marked, nil
}

// PendingDismissals returns the interns that are marked for dismissal.
func (e *Evaluator) PendingDismissals(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := e.db.WithContext(ctx).
		Where("role = ? AND pending_dismissal = ?", models.RoleIntern, true).
		Order("id ASC").
		Find(&users).Error

	return users, err
}

// TriggerPromotionReview reports whether a promotion review can take place.
// This needs at least one eligible intern and one demotion candidate, since a
// seat must be vacated before it can be filled.
func (e *Evaluator) TriggerPromotionReview(ctx context.Context) (bool, error) {
	review, err := e.Review(ctx)
	if err != nil {
		return false, err
	}
	return review.Triggerable, nil
}

// Review returns the eligible interns and the demotion candidates.
func (e *Evaluator) Review(ctx context.Context) (Review, error) {
	eligible, err := e.PromotionEligible(ctx)
	if err != nil {
		return Review{}, err
	}

	candidates, err := e.DemotionCandidates(ctx)
	if err != nil {
		return Review{}, err
	}

	return Review{
		Eligible:    eligible,
		Candidates:  candidates,
		Triggerable: len(eligible) > 0 && len(candidates) > 0,
	}, nil
}
