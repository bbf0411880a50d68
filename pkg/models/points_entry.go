package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointsEntry is a single signed entry in the points ledger.
//
// Entries are append-only. The hooks reject every update and delete.
type PointsEntry struct {
	DefaultModel
	UserID      uuid.UUID `json:"userId" gorm:"index:points_user_occurred" example:"4e743e94-6a4b-44d6-aba5-d77c87103ff7"`
	User        User      `json:"-"`
	Category    string    `json:"category" example:"task_completion"`
	Amount      int64     `json:"amount" example:"5"`
	Description string    `json:"description" example:"Organized the spring meetup"`
	OccurredAt  time.Time `json:"occurredAt" gorm:"index:points_user_occurred" example:"2024-05-12T17:59:23Z"`
}

func (p PointsEntry) Self() string {
	return "Points Entry"
}

func (p *PointsEntry) BeforeCreate(tx *gorm.DB) error {
	p.Description = strings.TrimSpace(p.Description)
	if p.OccurredAt.IsZero() {
		p.OccurredAt = tx.NowFunc()
	}
	p.OccurredAt = p.OccurredAt.UTC()

	return p.DefaultModel.BeforeCreate(tx)
}

func (p *PointsEntry) AfterFind(tx *gorm.DB) error {
	p.OccurredAt = p.OccurredAt.In(time.UTC)
	return p.DefaultModel.AfterFind(tx)
}

func (p *PointsEntry) BeforeUpdate(_ *gorm.DB) error {
	return ErrLedgerImmutable
}

func (p *PointsEntry) BeforeDelete(_ *gorm.DB) error {
	return ErrLedgerImmutable
}
