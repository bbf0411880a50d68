package models_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/pkg/models"
)

func (suite *TestSuiteStandard) TestPointsEntryImmutable() {
	user := suite.createUser("Ledger", models.RoleIntern)

	entry := models.PointsEntry{UserID: user.ID, Category: "task_completion", Amount: 5}
	suite.Require().Nil(suite.db.Create(&entry).Error)
	suite.Assert().False(entry.OccurredAt.IsZero(), "occurredAt must default to now")
	suite.Assert().Equal(time.UTC, entry.OccurredAt.Location())

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Save", func() error {
			entry.Amount = 10
			return suite.db.Save(&entry).Error
		}},
		{"Update", func() error {
			return suite.db.Model(&entry).Update("amount", 100).Error
		}},
		{"Delete", func() error {
			return suite.db.Delete(&entry).Error
		}},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			suite.Assert().ErrorIs(tt.fn(), models.ErrLedgerImmutable)
		})
	}

	var stored models.PointsEntry
	suite.Require().Nil(suite.db.First(&stored, "id = ?", entry.ID).Error)
	suite.Assert().Equal(int64(5), stored.Amount)
}

func (suite *TestSuiteStandard) TestPointsEntryUnknownUser() {
	err := suite.db.Create(&models.PointsEntry{UserID: uuid.New(), Category: "checkin", Amount: 30}).Error
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestAllocationRecordDefaults() {
	user := suite.createUser("Member", models.RoleMember)

	record := models.AllocationRecord{UserID: user.ID, Units: 400, Remark: "  spaced  "}
	suite.Require().Nil(suite.db.Create(&record).Error)
	suite.Assert().Equal(1, record.Version)
	suite.Assert().Equal("spaced", record.Remark)
}
