// Package ledger implements the append-only points ledger.
package ledger

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

// TierSource provides the check-in tier table.
type TierSource interface {
	CheckinTiers(ctx context.Context) ([]settings.CheckinTier, error)
}

// Ledger appends entries and sums them up.
type Ledger struct {
	db    *gorm.DB
	tiers TierSource

	// Now is the clock used for entries without an explicit time.
	Now func() time.Time
}

// Breakdown splits the points of a user in a month into the allocation components.
// Base + Bonus - Deductions == Total.
type Breakdown struct {
	Base       int64 `json:"base"`
	Bonus      int64 `json:"bonus"`
	Deductions int64 `json:"deductions"`
	Total      int64 `json:"total"`
}

func New(db *gorm.DB, tiers TierSource) *Ledger {
	return &Ledger{
		db:    db,
		tiers: tiers,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Award appends a positive entry.
func (l *Ledger) Award(ctx context.Context, userID uuid.UUID, category string, amount int64, description string) (models.PointsEntry, error) {
	if err := checkAmount(category, amount); err != nil {
		return models.PointsEntry{}, err
	}
	return l.create(ctx, userID, category, amount, description)
}

// Deduct appends a negative entry. amount is the positive magnitude to deduct.
func (l *Ledger) Deduct(ctx context.Context, userID uuid.UUID, category string, amount int64, description string) (models.PointsEntry, error) {
	if err := checkAmount(category, amount); err != nil {
		return models.PointsEntry{}, err
	}
	return l.create(ctx, userID, category, -amount, description)
}

func checkAmount(category string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: the amount must be positive, got %d", models.ErrValidation, amount)
	}
	return Check(category, amount)
}

func (l *Ledger) create(ctx context.Context, userID uuid.UUID, category string, amount int64, description string) (models.PointsEntry, error) {
	if err := l.userExists(ctx, userID); err != nil {
		return models.PointsEntry{}, err
	}

	entry := models.PointsEntry{
		UserID:      userID,
		Category:    category,
		Amount:      amount,
		Description: description,
		OccurredAt:  l.Now().UTC(),
	}

	err := l.db.WithContext(ctx).Create(&entry).Error
	if err != nil {
		return models.PointsEntry{}, err
	}

	log.Debug().Str("user", userID.String()).Str("category", category).Int64("amount", amount).Msg("points recorded")
	return entry, nil
}

// RecordCheckins converts a monthly check-in count into points using the tier
// table and appends the entry. Tiers worth 0 points do not create an entry,
// the returned bool reports whether one was created.
func (l *Ledger) RecordCheckins(ctx context.Context, userID uuid.UUID, count int64) (models.PointsEntry, bool, error) {
	tiers, err := l.tiers.CheckinTiers(ctx)
	if err != nil {
		return models.PointsEntry{}, false, err
	}

	tier, ok := settings.Settings{CheckinTiers: tiers}.TierFor(count)
	if !ok {
		return models.PointsEntry{}, false, fmt.Errorf("%w: no check-in tier for %d check-ins", models.ErrConfiguration, count)
	}

	if tier.Points == 0 {
		return models.PointsEntry{}, false, l.userExists(ctx, userID)
	}

	description := fmt.Sprintf("%d check-ins", count)
	if tier.Label != "" {
		description = fmt.Sprintf("%s: %s", description, tier.Label)
	}

	entry, err := l.create(ctx, userID, CategoryCheckin, tier.Points, description)
	if err != nil {
		return models.PointsEntry{}, false, err
	}
	return entry, true, nil
}

// Total is the sum of all entries of the user in the month.
func (l *Ledger) Total(ctx context.Context, userID uuid.UUID, month types.Month) (int64, error) {
	var result struct {
		Total int64
	}

	err := l.db.WithContext(ctx).
		Model(&models.PointsEntry{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, month.Start(), month.End()).
		Scan(&result).Error

	return result.Total, err
}

// Breakdown returns the components of the user's points in the month.
func (l *Ledger) Breakdown(ctx context.Context, userID uuid.UUID, month types.Month) (Breakdown, error) {
	var rows []struct {
		Category string
		Positive int64
		Negative int64
	}

	err := l.db.WithContext(ctx).
		Model(&models.PointsEntry{}).
		Select("category, COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS positive, COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS negative").
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, month.Start(), month.End()).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return Breakdown{}, err
	}

	var b Breakdown
	for _, r := range rows {
		if Rules[r.Category].Dimension == DimensionBonus {
			b.Bonus += r.Positive
		} else {
			b.Base += r.Positive
		}
		b.Deductions += r.Negative
	}
	b.Total = b.Base + b.Bonus - b.Deductions

	return b, nil
}

// Entries returns all entries of the user, newest first.
func (l *Ledger) Entries(ctx context.Context, userID uuid.UUID) ([]models.PointsEntry, error) {
	if err := l.userExists(ctx, userID); err != nil {
		return nil, err
	}

	entries := []models.PointsEntry{}
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC, created_at DESC").
		Find(&entries).Error

	return entries, err
}

func (l *Ledger) userExists(ctx context.Context, userID uuid.UUID) error {
	var user models.User
	return l.db.WithContext(ctx).Select("id").First(&user, "id = ?", userID).Error
}
