// Package allocation turns ledger points into the compensation of the formal
// seat holders and guards all writes to allocation records.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/pollen-club/backoffice/pkg/ledger"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/settings"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// LedgerReader provides the points of a user in a month.
type LedgerReader interface {
	Breakdown(ctx context.Context, userID uuid.UUID, month types.Month) (ledger.Breakdown, error)
}

// SettingsReader provides the current settings.
type SettingsReader interface {
	Snapshot(ctx context.Context) (settings.Settings, error)
}

// Engine calculates the allocation for the current period.
type Engine struct {
	db       *gorm.DB
	ledger   LedgerReader
	settings SettingsReader

	// Now determines the current period.
	Now func() time.Time
}

func NewEngine(db *gorm.DB, l LedgerReader, s SettingsReader) *Engine {
	return &Engine{
		db:       db,
		ledger:   l,
		settings: s,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Period returns the current period.
func (e *Engine) Period() types.Month {
	return types.MonthOf(e.Now())
}

// Allocate calculates the allocation of the current period for all formal seat
// holders and stores it. Existing unarchived records of the period are updated.
func (e *Engine) Allocate(ctx context.Context) (records []models.AllocationRecord, err error) {
	defer func() { observe("allocate", err) }()

	s, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	holders, err := models.FormalSeatHolders(e.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if int64(len(holders)) != s.FormalSeatCount {
		return nil, fmt.Errorf("%w: %d formal seat holders, but %d seats are configured", models.ErrConfiguration, len(holders), s.FormalSeatCount)
	}

	if err := s.Feasible(); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrConfiguration, err)
	}

	period := e.Period()
	breakdowns, err := e.breakdowns(ctx, holders, period)
	if err != nil {
		return nil, err
	}

	raw := make([]int64, len(holders))
	for i, b := range breakdowns {
		raw[i], err = scale(b.Total, s.PointsToUnitsRatio)
		if err != nil {
			return nil, fmt.Errorf("%w: the points of %s: %s", models.ErrConfiguration, holders[i].ID, err)
		}
	}

	units := EnforceBounds(Distribute(raw, s.BudgetTotal), s.UnitMin, s.UnitMax)

	var sum int64
	for _, u := range units {
		sum += u
	}
	if sum != s.BudgetTotal {
		return nil, fmt.Errorf("%w: allocated %d units, but the budget is %d", models.ErrConsistency, sum, s.BudgetTotal)
	}

	records = make([]models.AllocationRecord, len(holders))
	for i, h := range holders {
		records[i] = models.AllocationRecord{
			UserID:         h.ID,
			Period:         period,
			BasePoints:     breakdowns[i].Base,
			BonusPoints:    breakdowns[i].Bonus,
			Deductions:     breakdowns[i].Deductions,
			TotalPoints:    breakdowns[i].Total,
			Units:          units[i],
			CurrencyAmount: decimal.NewFromInt(units[i]).Mul(s.UnitValue),
		}
	}

	var superseded int64
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if err := upsert(tx, &records[i]); err != nil {
				return err
			}
		}

		// Records of users that lost their seat during the period were never archived
		result := tx.Where("period = ? AND archived = ? AND user_id NOT IN ?", period, false, holderIDs(holders)).
			Delete(&models.AllocationRecord{})
		if result.Error != nil {
			return result.Error
		}
		superseded = result.RowsAffected

		return tx.Create(&models.AuditLog{
			ActorID:    "system",
			Operation:  models.OperationAllocate,
			Detail:     fmt.Sprintf("period %s: %s, %d superseded", period, userIDs(records), superseded),
			OccurredAt: e.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	allocatedUnits.Set(float64(sum))
	log.Info().Str("period", period.String()).Int("holders", len(records)).Int64("superseded", superseded).Int64("units", sum).Msg("allocation calculated")

	return records, nil
}

// breakdowns reads the ledger for all holders concurrently. The result has the
// same order as holders.
func (e *Engine) breakdowns(ctx context.Context, holders []models.User, period types.Month) ([]ledger.Breakdown, error) {
	result := make([]ledger.Breakdown, len(holders))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, h := range holders {
		g.Go(func() error {
			b, err := e.ledger.Breakdown(ctx, h.ID, period)
			if err != nil {
				return fmt.Errorf("reading points of %s: %w", h.ID, err)
			}
			result[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// scale converts points to raw units.
func scale(points, ratio int64) (int64, error) {
	raw := decimal.NewFromInt(points).Mul(decimal.NewFromInt(ratio))
	if raw.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || raw.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("%d points times the ratio %d are out of range", points, ratio)
	}
	return raw.IntPart(), nil
}

// upsert updates the unarchived record of the user for the period or creates one.
func upsert(tx *gorm.DB, record *models.AllocationRecord) error {
	var existing []models.AllocationRecord
	err := tx.Where("user_id = ? AND period = ? AND archived = ?", record.UserID, record.Period, false).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		record.Version = 1
		return tx.Create(record).Error
	}

	current := existing[0]
	record.ID = current.ID
	record.CreatedAt = current.CreatedAt
	record.Remark = current.Remark
	record.Version = current.Version

	return compareAndSwap(tx, record, calculated(record))
}

// editable returns the columns a batch save may change.
func editable(record *models.AllocationRecord) map[string]any {
	return map[string]any{
		"units":           record.Units,
		"currency_amount": record.CurrencyAmount,
		"remark":          strings.TrimSpace(record.Remark),
	}
}

// calculated returns the columns written by a calculation.
func calculated(record *models.AllocationRecord) map[string]any {
	columns := editable(record)
	columns["base_points"] = record.BasePoints
	columns["bonus_points"] = record.BonusPoints
	columns["deductions"] = record.Deductions
	columns["total_points"] = record.TotalPoints
	return columns
}

// compareAndSwap writes the columns if the stored record still belongs to
// record.UserID, its version equals record.Version and it is not archived. On success, record.Version is incremented.
func compareAndSwap(tx *gorm.DB, record *models.AllocationRecord, columns map[string]any) error {
	columns["version"] = gorm.Expr("version + 1")

	result := tx.Model(&models.AllocationRecord{}).
		Where("id = ? AND user_id = ? AND version = ? AND archived = ?", record.ID, record.UserID, record.Version, false).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 1 {
		record.Version++
		record.Remark = strings.TrimSpace(record.Remark)
		return nil
	}

	return classifyConflict(tx, record)
}

// classifyConflict determines why a compare and swap did not match.
func classifyConflict(tx *gorm.DB, record *models.AllocationRecord) error {
	var stored models.AllocationRecord
	err := tx.First(&stored, "id = ?", record.ID).Error
	if err != nil {
		if errors.Is(err, models.ErrResourceNotFound) {
			return fmt.Errorf("%w allocation record with ID %s", models.ErrResourceNotFound, record.ID)
		}
		return err
	}

	if stored.UserID != record.UserID {
		return fmt.Errorf("%w: record %s belongs to user %s, not %s", models.ErrValidation, record.ID, stored.UserID, record.UserID)
	}

	if stored.Archived {
		return fmt.Errorf("%w: record %s", models.ErrRecordArchived, record.ID)
	}

	return fmt.Errorf("%w: record %s of user %s has version %d, expected %d", models.ErrConcurrentModification, record.ID, record.UserID, stored.Version, record.Version)
}

func holderIDs(users []models.User) []uuid.UUID {
	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

func userIDs(records []models.AllocationRecord) string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.UserID.String()
	}
	return strings.Join(ids, ",")
}
