package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleChangeEntry records a single role transition. Entries are never changed.
type RoleChangeEntry struct {
	DefaultModel
	UserID    uuid.UUID `json:"userId" gorm:"index"`
	User      User      `json:"-"`
	OldRole   Role      `json:"oldRole" example:"intern"`
	NewRole   Role      `json:"newRole" example:"member"`
	ChangedBy string    `json:"changedBy" example:"admin"`
	ChangedAt time.Time `json:"changedAt"`
}

func (r RoleChangeEntry) Self() string {
	return "Role Change"
}

func (r *RoleChangeEntry) BeforeUpdate(_ *gorm.DB) error {
	return ErrLedgerImmutable
}
