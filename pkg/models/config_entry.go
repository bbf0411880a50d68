package models

import (
	"time"
)

// ConfigEntry is a single business setting. Settings are validated as a batch
// by the settings package before they are written.
type ConfigEntry struct {
	Key         string    `json:"key" gorm:"primaryKey" example:"budget_total"`
	Value       string    `json:"value" example:"2000"`
	Description string    `json:"description" example:"Shared pool in monetary units"`
	UpdatedAt   time.Time `json:"updatedAt" example:"2024-04-17T20:14:01.048145Z"`
}

func (c ConfigEntry) Self() string {
	return "Config Entry"
}
