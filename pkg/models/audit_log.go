package models

import (
	"time"
)

// AuditLog is an entry in the operations audit trail.
type AuditLog struct {
	DefaultModel
	ActorID    string    `json:"actorId" example:"admin"`
	Operation  string    `json:"operation" example:"ALLOCATION_ARCHIVE"`
	Detail     string    `json:"detail" example:"archived 5 records"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (a AuditLog) Self() string {
	return "Audit Log"
}

const (
	OperationBatchSave = "ALLOCATION_BATCH_SAVE"
	OperationArchive   = "ALLOCATION_ARCHIVE"
	OperationAllocate  = "ALLOCATION_CALCULATE"
	OperationSettings  = "SETTINGS_SAVE"
)
