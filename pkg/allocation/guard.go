package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FieldError is a validation error of a single record.
type FieldError struct {
	UserID  uuid.UUID `json:"userId"`
	Field   string    `json:"field"`
	Message string    `json:"message"`
}

// BatchResult is the outcome of a batch save.
type BatchResult struct {
	Success          bool                      `json:"success"`
	Errors           []FieldError              `json:"errors"`
	ViolatingUserIDs []uuid.UUID               `json:"violatingUserIds"`
	GlobalError      string                    `json:"globalError,omitempty"`
	Saved            []models.AllocationRecord `json:"saved"`
}

func (r *BatchResult) addError(userID uuid.UUID, field, message string) {
	r.Errors = append(r.Errors, FieldError{UserID: userID, Field: field, Message: message})

	for _, id := range r.ViolatingUserIDs {
		if id == userID {
			return
		}
	}
	r.ViolatingUserIDs = append(r.ViolatingUserIDs, userID)
}

// Report summarizes the allocation of the current, unarchived records.
type Report struct {
	Budget    int64                     `json:"budget"`
	Allocated int64                     `json:"allocated"`
	Remaining int64                     `json:"remaining"`
	Currency  string                    `json:"currency"`
	Amount    decimal.Decimal           `json:"amount"`
	Records   []models.AllocationRecord `json:"records"`
}

// Guard validates and stores changes to allocation records.
type Guard struct {
	db       *gorm.DB
	settings SettingsReader

	Now func() time.Time
}

func NewGuard(db *gorm.DB, s SettingsReader) *Guard {
	return &Guard{
		db:       db,
		settings: s,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// BatchSave validates all records and stores them in one transaction.
//
// Records with an ID are updated if their version still matches the stored one.
// Only units and remark are taken from them, the points stay as calculated.
// Records without an ID are created. If any check fails, nothing is stored and
// the result describes every problem found.
func (g *Guard) BatchSave(ctx context.Context, records []models.AllocationRecord, actorID string) (result BatchResult, err error) {
	defer func() { observe("batch_save", err) }()

	result.Errors = []FieldError{}
	result.ViolatingUserIDs = []uuid.UUID{}

	s, err := g.settings.Snapshot(ctx)
	if err != nil {
		return result, err
	}

	if int64(len(records)) != s.FormalSeatCount {
		result.GlobalError = fmt.Sprintf("the batch contains %d records, but %d seats are configured", len(records), s.FormalSeatCount)
		return result, fmt.Errorf("%w: %s", models.ErrValidation, result.GlobalError)
	}

	holding, err := g.holders(ctx)
	if err != nil {
		return result, err
	}

	owners, err := g.owners(ctx, records)
	if err != nil {
		return result, err
	}

	var total int64
	seen := make(map[uuid.UUID]bool, len(records))
	for _, r := range records {
		if r.UserID == uuid.Nil {
			result.addError(r.UserID, "userId", "the user ID is required")
		} else if !holding[r.UserID] {
			result.addError(r.UserID, "userId", "the user does not hold a formal seat")
		}

		if owner, ok := owners[r.ID]; ok && owner != r.UserID {
			result.addError(r.UserID, "id", fmt.Sprintf("record %s belongs to another user", r.ID))
		}

		if seen[r.UserID] {
			result.addError(r.UserID, "userId", "the user appears more than once in the batch")
		}
		seen[r.UserID] = true

		if r.Units < s.UnitMin || r.Units > s.UnitMax {
			result.addError(r.UserID, "units", fmt.Sprintf("%d is outside of the allowed range %d to %d", r.Units, s.UnitMin, s.UnitMax))
		}

		total += r.Units
	}

	if total > s.BudgetTotal {
		result.GlobalError = fmt.Sprintf("the batch allocates %d units, but the budget is %d", total, s.BudgetTotal)
		return result, fmt.Errorf("%w: %s", models.ErrValidation, result.GlobalError)
	}

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: %d records are invalid", models.ErrValidation, len(result.Errors))
	}

	period := types.MonthOf(g.Now())
	saved := make([]models.AllocationRecord, len(records))
	copy(saved, records)

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range saved {
			r := &saved[i]
			r.CurrencyAmount = decimal.NewFromInt(r.Units).Mul(s.UnitValue)

			if r.ID != uuid.Nil {
				if err := compareAndSwap(tx, r, editable(r)); err != nil {
					return err
				}
				continue
			}

			if r.Period.IsZero() {
				r.Period = period
			}

			if err := insert(tx, r); err != nil {
				return err
			}
		}

		if err := withinBudget(tx, s.BudgetTotal); err != nil {
			return err
		}

		return tx.Create(&models.AuditLog{
			ActorID:    actorID,
			Operation:  models.OperationBatchSave,
			Detail:     userIDs(saved),
			OccurredAt: g.Now().UTC(),
		}).Error
	})
	if err != nil {
		result.GlobalError = err.Error()
		return result, err
	}

	// Reload to return the stored state including timestamps
	ids := make([]uuid.UUID, len(saved))
	for i, r := range saved {
		ids[i] = r.ID
	}
	err = g.db.WithContext(ctx).Where("id IN ?", ids).Order("user_id ASC").Find(&result.Saved).Error
	if err != nil {
		return result, err
	}

	result.Success = true
	log.Info().Str("actor", actorID).Int("records", len(saved)).Msg("allocation batch saved")
	return result, nil
}

// holders returns the IDs of the current formal seat holders.
func (g *Guard) holders(ctx context.Context) (map[uuid.UUID]bool, error) {
	users, err := models.FormalSeatHolders(g.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	holding := make(map[uuid.UUID]bool, len(users))
	for _, u := range users {
		holding[u.ID] = true
	}
	return holding, nil
}

// owners maps the IDs of the stored records in the batch to their users.
func (g *Guard) owners(ctx context.Context, records []models.AllocationRecord) (map[uuid.UUID]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, r := range records {
		if r.ID != uuid.Nil {
			ids = append(ids, r.ID)
		}
	}

	owners := make(map[uuid.UUID]uuid.UUID, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}

	var stored []models.AllocationRecord
	err := g.db.WithContext(ctx).Select("id", "user_id").Where("id IN ?", ids).Find(&stored).Error
	if err != nil {
		return nil, err
	}

	for _, r := range stored {
		owners[r.ID] = r.UserID
	}
	return owners, nil
}

// withinBudget checks that the unarchived records of every period stay within the budget.
func withinBudget(tx *gorm.DB, budget int64) error {
	var periods []struct {
		Units int64
	}

	err := tx.Model(&models.AllocationRecord{}).
		Select("SUM(units) AS units").
		Where("archived = ?", false).
		Group("period").
		Having("SUM(units) > ?", budget).
		Scan(&periods).Error
	if err != nil {
		return err
	}

	if len(periods) > 0 {
		return fmt.Errorf("%w: the active records of a period allocate %d units, but the budget is %d", models.ErrValidation, periods[0].Units, budget)
	}
	return nil
}

// insert creates a record unless the user already has an unarchived record for the period.
func insert(tx *gorm.DB, r *models.AllocationRecord) error {
	var count int64
	err := tx.Model(&models.AllocationRecord{}).
		Where("user_id = ? AND period = ? AND archived = ?", r.UserID, r.Period, false).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return fmt.Errorf("%w: user %s already has a record for %s", models.ErrConcurrentModification, r.UserID, r.Period)
	}

	r.ID = uuid.Nil
	r.Version = 1
	r.Archived = false
	r.ArchivedAt = nil
	return tx.Create(r).Error
}

// Archive archives all unarchived records with the same timestamp and returns their number.
func (g *Guard) Archive(ctx context.Context, actorID string) (count int, err error) {
	defer func() { observe("archive", err) }()

	now := g.Now().UTC()

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AllocationRecord{}).
			Where("archived = ?", false).
			Updates(map[string]any{
				"archived":    true,
				"archived_at": now,
				"version":     gorm.Expr("version + 1"),
			})
		if result.Error != nil {
			return result.Error
		}

		count = int(result.RowsAffected)
		if count == 0 {
			return nil
		}

		return tx.Create(&models.AuditLog{
			ActorID:    actorID,
			Operation:  models.OperationArchive,
			Detail:     fmt.Sprintf("archived %d records", count),
			OccurredAt: now,
		}).Error
	})
	if err != nil {
		return 0, err
	}

	log.Info().Str("actor", actorID).Int("records", count).Msg("allocation archived")
	return count, nil
}

// Archived returns the archived records of the user, newest first.
func (g *Guard) Archived(ctx context.Context, userID uuid.UUID) ([]models.AllocationRecord, error) {
	records := []models.AllocationRecord{}
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND archived = ?", userID, true).
		Order("archived_at DESC, period DESC").
		Find(&records).Error

	return records, err
}

// Current returns all unarchived records, sorted by user.
func (g *Guard) Current(ctx context.Context) ([]models.AllocationRecord, error) {
	records := []models.AllocationRecord{}
	err := g.db.WithContext(ctx).
		Where("archived = ?", false).
		Order("user_id ASC").
		Find(&records).Error

	return records, err
}

// Report summarizes the unarchived records.
func (g *Guard) Report(ctx context.Context) (Report, error) {
	s, err := g.settings.Snapshot(ctx)
	if err != nil {
		return Report{}, err
	}

	records, err := g.Current(ctx)
	if err != nil {
		return Report{}, err
	}

	if len(records) == 0 {
		return Report{}, fmt.Errorf("%w unarchived allocation record", models.ErrResourceNotFound)
	}

	report := Report{
		Budget:   s.BudgetTotal,
		Currency: s.Currency,
		Amount:   decimal.Zero,
		Records:  records,
	}

	for _, r := range records {
		report.Allocated += r.Units
		report.Amount = report.Amount.Add(r.CurrencyAmount)
	}
	report.Remaining = report.Budget - report.Allocated

	return report, nil
}

// IsConflict reports whether err means that the caller should reload and retry.
func IsConflict(err error) bool {
	return errors.Is(err, models.ErrConcurrentModification)
}
