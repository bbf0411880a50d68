package v1

import (
	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/pollen-club/backoffice/pkg/ledger"
	"github.com/pollen-club/backoffice/pkg/models"
)

// Response wraps the data of a successful request.
type Response[T any] struct {
	Data T `json:"data"`
}

type SettingsUpdate map[string]string

type PointsCreate struct {
	UserID      uuid.UUID `json:"userId" binding:"required"`
	Category    string    `json:"category" binding:"required"`
	Amount      int64     `json:"amount" binding:"required"` // Positive to award, negative to deduct
	Description string    `json:"description"`
}

type CheckinsCreate struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
	Count  int64     `json:"count"`
}

type Checkins struct {
	Created bool                `json:"created"` // false if the tier awards no points
	Entry   *models.PointsEntry `json:"entry"`
}

type UserPoints struct {
	Month     types.Month          `json:"month"`
	Breakdown ledger.Breakdown     `json:"breakdown"`
	Entries   []models.PointsEntry `json:"entries"`
}

// AllocationEditable is a record of a batch save.
type AllocationEditable struct {
	ID      uuid.UUID `json:"id"` // Empty to create a record
	UserID  uuid.UUID `json:"userId"`
	Units   int64     `json:"units"`
	Remark  string    `json:"remark"`
	Version int       `json:"version"` // The version that was read
}

func (e AllocationEditable) model() models.AllocationRecord {
	return models.AllocationRecord{
		DefaultModel: models.DefaultModel{ID: e.ID},
		UserID:       e.UserID,
		Units:        e.Units,
		Remark:       e.Remark,
		Version:      e.Version,
	}
}

type Archived struct {
	Count int `json:"count"`
}

type SwapCreate struct {
	InternID uuid.UUID `json:"internId" binding:"required"`
	MemberID uuid.UUID `json:"memberId" binding:"required"`
}

type Triggered struct {
	Triggerable bool `json:"triggerable"`
}
