package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AllocationRecord is the compensation of one formal seat holder for one period.
//
// Version is an optimistic lock counter. Writers compare and increment it, see
// the allocation package.
type AllocationRecord struct {
	DefaultModel
	UserID         uuid.UUID       `json:"userId" gorm:"index" example:"4e743e94-6a4b-44d6-aba5-d77c87103ff7"`
	User           User            `json:"-"`
	Period         types.Month     `json:"period" gorm:"index" example:"2024-05"`
	BasePoints     int64           `json:"basePoints" example:"60"`
	BonusPoints    int64           `json:"bonusPoints" example:"25"`
	Deductions     int64           `json:"deductions" example:"10"`
	TotalPoints    int64           `json:"totalPoints" example:"75"`
	Units          int64           `json:"units" example:"400"`
	CurrencyAmount decimal.Decimal `json:"currencyAmount" gorm:"type:DECIMAL(20,8)" example:"400"`
	Remark         string          `json:"remark" example:"Hosted two events"`
	Archived       bool            `json:"archived" gorm:"index" example:"false"`
	ArchivedAt     *time.Time      `json:"archivedAt" example:"2024-06-01T00:00:00Z"`
	Version        int             `json:"version" example:"1"`
}

func (r AllocationRecord) Self() string {
	return "Allocation Record"
}

func (r *AllocationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.Version == 0 {
		r.Version = 1
	}
	return r.DefaultModel.BeforeCreate(tx)
}

func (r *AllocationRecord) BeforeSave(_ *gorm.DB) error {
	r.Remark = strings.TrimSpace(r.Remark)
	return nil
}

func (r *AllocationRecord) AfterFind(tx *gorm.DB) error {
	if r.ArchivedAt != nil {
		t := r.ArchivedAt.In(time.UTC)
		r.ArchivedAt = &t
	}
	return r.DefaultModel.AfterFind(tx)
}
