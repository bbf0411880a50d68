package rotation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/notify"
	"github.com/pollen-club/backoffice/pkg/settings"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SeatReader provides the configured number of formal seats.
type SeatReader interface {
	Snapshot(ctx context.Context) (settings.Settings, error)
}

// Executor is the only component that changes membership roles.
type Executor struct {
	db       *gorm.DB
	settings SeatReader
	notifier notify.Notifier

	Now func() time.Time
}

func NewExecutor(db *gorm.DB, s SeatReader, n notify.Notifier) *Executor {
	return &Executor{
		db:       db,
		settings: s,
		notifier: n,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Swap promotes the intern to member and demotes the formal seat holder to
// intern in one transaction. The number of formal seats is checked afterwards,
// if it does not match the configuration nothing is changed.
func (x *Executor) Swap(ctx context.Context, internID, memberID uuid.UUID, actor string) error {
	if internID == memberID {
		return fmt.Errorf("%w: a user cannot be swapped with themselves", models.ErrValidation)
	}

	s, err := x.settings.Snapshot(ctx)
	if err != nil {
		return err
	}

	var intern, member models.User
	err = x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&intern, "id = ?", internID).Error; err != nil {
			return err
		}

		if err := tx.First(&member, "id = ?", memberID).Error; err != nil {
			return err
		}

		if intern.Role != models.RoleIntern {
			return fmt.Errorf("%w: %s is %s, expected %s", models.ErrRoleMismatch, intern.ID, intern.Role, models.RoleIntern)
		}

		if !member.Role.IsFormalSeat() {
			return fmt.Errorf("%w: %s is %s, expected a formal seat holder", models.ErrRoleMismatch, member.ID, member.Role)
		}

		now := x.Now().UTC()

		if err := changeRole(tx, intern, models.RoleMember, map[string]any{"pending_dismissal": false}); err != nil {
			return err
		}

		if err := changeRole(tx, member, models.RoleIntern, nil); err != nil {
			return err
		}

		entries := []models.RoleChangeEntry{
			{UserID: intern.ID, OldRole: intern.Role, NewRole: models.RoleMember, ChangedBy: actor, ChangedAt: now},
			{UserID: member.ID, OldRole: member.Role, NewRole: models.RoleIntern, ChangedBy: actor, ChangedAt: now},
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}

		count, err := models.CountFormalSeats(tx)
		if err != nil {
			return err
		}

		if count != s.FormalSeatCount {
			return fmt.Errorf("%w: %d formal seats after the swap, %d are configured", models.ErrConsistency, count, s.FormalSeatCount)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("intern", intern.ID.String()).Str("member", member.ID.String()).Str("actor", actor).Msg("roles swapped")

	notify.Send(x.notifier, notify.Event{
		Kind:    notify.KindRoleChanged,
		UserID:  intern.ID,
		Message: fmt.Sprintf("%s was promoted to %s", intern.Name, models.RoleMember),
	})
	notify.Send(x.notifier, notify.Event{
		Kind:    notify.KindRoleChanged,
		UserID:  member.ID,
		Message: fmt.Sprintf("%s moved from %s to %s", member.Name, member.Role, models.RoleIntern),
	})

	return nil
}

// changeRole updates the role of the user if it still has the role that was read.
func changeRole(tx *gorm.DB, user models.User, role models.Role, extra map[string]any) error {
	updates := map[string]any{"role": role}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.User{}).
		Where("id = ? AND role = ?", user.ID, user.Role).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: the role of %s changed during the swap", models.ErrConcurrentModification, user.ID)
	}

	return nil
}

// History returns the role changes of the user, newest first.
func (x *Executor) History(ctx context.Context, userID uuid.UUID) ([]models.RoleChangeEntry, error) {
	entries := []models.RoleChangeEntry{}
	err := x.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("changed_at DESC").
		Find(&entries).Error

	return entries, err
}
