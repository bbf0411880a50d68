package allocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/pollen-club/backoffice/pkg/allocation"
	"github.com/pollen-club/backoffice/pkg/models"
)

// allocated creates 5 holders and their allocation for the current period.
func (suite *TestSuiteStandard) allocated() []models.AllocationRecord {
	suite.createHolders(5)

	records, err := suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)
	return records
}

func (suite *TestSuiteStandard) TestBatchSave() {
	records := suite.allocated()

	records[0].Units = 300
	records[0].Remark = "Less active this month"
	records[1].Units = 200

	result, err := suite.guard.BatchSave(context.Background(), records, "admin")
	suite.Require().Nil(err)
	suite.Assert().True(result.Success)
	suite.Assert().Empty(result.Errors)
	suite.Require().Len(result.Saved, 5)
	suite.Assert().Equal(int64(300), result.Saved[0].Units)
	suite.Assert().Equal("Less active this month", result.Saved[0].Remark)
	suite.Assert().Equal(2, result.Saved[0].Version)

	var audit models.AuditLog
	suite.Require().Nil(suite.db.First(&audit, "operation = ?", models.OperationBatchSave).Error)
	suite.Assert().Equal("admin", audit.ActorID)
	suite.Assert().Contains(audit.Detail, records[4].UserID.String())
}

func (suite *TestSuiteStandard) TestBatchSaveKeepsPoints() {
	users := suite.createHolders(5)
	suite.points(users[2].ID, 40, suite.now)

	records, err := suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)

	total := records[2].TotalPoints
	suite.Require().Equal(int64(40), total)

	records[2].TotalPoints = 0
	records[2].BasePoints = 0

	result, err := suite.guard.BatchSave(context.Background(), records, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal(total, result.Saved[2].TotalPoints, "Points are calculated and must not be changed by a batch")
}

func (suite *TestSuiteStandard) TestBatchSaveValidation() {
	tests := []struct {
		name      string
		modify    func([]models.AllocationRecord) []models.AllocationRecord
		global    string
		violating []int
	}{
		{
			"Seat mismatch",
			func(r []models.AllocationRecord) []models.AllocationRecord { return r[:4] },
			"the batch contains 4 records, but 5 seats are configured",
			nil,
		},
		{
			"Out of range",
			func(r []models.AllocationRecord) []models.AllocationRecord {
				r[1].Units = 199
				r[3].Units = 401
				return r
			},
			"",
			[]int{1, 3},
		},
		{
			"Budget exceeded keeps record errors",
			func(r []models.AllocationRecord) []models.AllocationRecord {
				r[0].Units = 500
				return r
			},
			"the batch allocates 2100 units, but the budget is 2000",
			[]int{0},
		},
		{
			"Duplicate user",
			func(r []models.AllocationRecord) []models.AllocationRecord {
				r[4].UserID = r[0].UserID
				r[4].Units = 300
				return r
			},
			"",
			[]int{0},
		},
	}

	records := suite.allocated()

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			batch := make([]models.AllocationRecord, len(records))
			copy(batch, records)

			result, err := suite.guard.BatchSave(context.Background(), tt.modify(batch), "admin")
			suite.Assert().ErrorIs(err, models.ErrValidation)
			suite.Assert().False(result.Success)
			suite.Assert().Equal(tt.global, result.GlobalError)

			suite.Require().Len(result.ViolatingUserIDs, len(tt.violating))
			for i, idx := range tt.violating {
				suite.Assert().Equal(records[idx].UserID, result.ViolatingUserIDs[i])
			}

			// Nothing was persisted
			current, err := suite.guard.Current(context.Background())
			suite.Require().Nil(err)
			for i, r := range current {
				suite.Assert().Equal(records[i].Units, r.Units)
				suite.Assert().Equal(1, r.Version)
			}
		})
	}
}

func (suite *TestSuiteStandard) TestBatchSaveConcurrentModification() {
	records := suite.allocated()
	ctx := context.Background()

	stale := make([]models.AllocationRecord, len(records))
	copy(stale, records)

	// A first writer saves
	records[0].Units = 300
	records[1].Units = 300
	_, err := suite.guard.BatchSave(ctx, records, "first")
	suite.Require().Nil(err)

	// The second writer still has the old versions
	stale[2].Units = 250
	result, err := suite.guard.BatchSave(ctx, stale, "second")
	suite.Require().ErrorIs(err, models.ErrConcurrentModification)
	suite.Assert().True(allocation.IsConflict(err))
	suite.Assert().False(result.Success)
	suite.Assert().NotEmpty(result.GlobalError)

	current, err := suite.guard.Current(ctx)
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(300), current[0].Units)
	suite.Assert().Equal(int64(400), current[2].Units, "the stale batch must not be persisted")
}

func (suite *TestSuiteStandard) TestBatchSaveNotFound() {
	records := suite.allocated()

	records[2].ID = uuid.New()
	_, err := suite.guard.BatchSave(context.Background(), records, "admin")
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestBatchSaveCreates() {
	users := suite.createHolders(5)

	batch := make([]models.AllocationRecord, len(users))
	for i, u := range users {
		batch[i] = models.AllocationRecord{UserID: u.ID, Units: 400}
	}

	result, err := suite.guard.BatchSave(context.Background(), batch, "admin")
	suite.Require().Nil(err)
	suite.Require().Len(result.Saved, 5)
	suite.Assert().True(types.NewMonth(2024, 5).Equal(result.Saved[0].Period))
	suite.Assert().Equal(1, result.Saved[0].Version)

	// Creating a second active record for the same period is a conflict
	_, err = suite.guard.BatchSave(context.Background(), batch, "admin")
	suite.Assert().ErrorIs(err, models.ErrConcurrentModification)
}

func (suite *TestSuiteStandard) TestArchive() {
	ctx := context.Background()

	count, err := suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal(0, count, "nothing to archive is not an error")

	records := suite.allocated()

	count, err = suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal(5, count)

	var archived []models.AllocationRecord
	suite.Require().Nil(suite.db.Find(&archived).Error)
	for _, r := range archived {
		suite.Assert().True(r.Archived)
		suite.Require().NotNil(r.ArchivedAt)
		suite.Assert().True(suite.now.Equal(*r.ArchivedAt), "all records share the same timestamp")
		suite.Assert().Equal(2, r.Version)
	}

	var audits int64
	suite.Require().Nil(suite.db.Model(&models.AuditLog{}).Where("operation = ?", models.OperationArchive).Count(&audits).Error)
	suite.Assert().Equal(int64(1), audits)

	// Archived records cannot be changed
	records[0].Version = 2
	_, err = suite.guard.BatchSave(ctx, records, "admin")
	suite.Assert().ErrorIs(err, models.ErrRecordArchived)

	count, err = suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal(0, count)
}

func (suite *TestSuiteStandard) TestArchivedNewestFirst() {
	ctx := context.Background()
	records := suite.allocated()

	_, err := suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)

	suite.now = time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)
	_, err = suite.engine.Allocate(ctx)
	suite.Require().Nil(err)
	_, err = suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)

	history, err := suite.guard.Archived(ctx, records[0].UserID)
	suite.Require().Nil(err)
	suite.Require().Len(history, 2)
	suite.Assert().Equal("2024-06", history[0].Period.String())
	suite.Assert().Equal("2024-05", history[1].Period.String())
}

func (suite *TestSuiteStandard) TestReport() {
	ctx := context.Background()

	_, err := suite.guard.Report(ctx)
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)

	suite.allocated()

	report, err := suite.guard.Report(ctx)
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(2000), report.Budget)
	suite.Assert().Equal(int64(2000), report.Allocated)
	suite.Assert().Equal(int64(0), report.Remaining)
	suite.Assert().Equal("CNY", report.Currency)
	suite.Assert().Equal("2000", report.Amount.String())
	suite.Assert().Len(report.Records, 5)
}

func (suite *TestSuiteStandard) TestBatchSaveRejectsNonHolders() {
	suite.allocated()

	batch := make([]models.AllocationRecord, 5)
	for i := range batch {
		intern := suite.createUser(6+i, models.RoleIntern)
		batch[i] = models.AllocationRecord{UserID: intern.ID, Units: 400}
	}

	result, err := suite.guard.BatchSave(context.Background(), batch, "admin")
	suite.Require().ErrorIs(err, models.ErrValidation)
	suite.Assert().False(result.Success)
	suite.Require().Len(result.ViolatingUserIDs, 5)
	suite.Assert().Equal(batch[0].UserID, result.ViolatingUserIDs[0])
	suite.Assert().Equal("userId", result.Errors[0].Field)

	count, units := suite.active()
	suite.Assert().Equal(5, count)
	suite.Assert().Equal(int64(2000), units)
}

func (suite *TestSuiteStandard) TestBatchSaveRecordOfAnotherUser() {
	tests := []struct {
		name   string
		modify func([]models.AllocationRecord, models.User)
	}{
		{
			"Record assigned to an intern",
			func(r []models.AllocationRecord, intern models.User) {
				r[0].UserID = intern.ID
				r[0].Units = 300
			},
		},
		{
			"Records of two holders exchanged",
			func(r []models.AllocationRecord, _ models.User) {
				r[0].ID, r[1].ID = r[1].ID, r[0].ID
				r[0].Units = 300
				r[1].Units = 300
			},
		},
	}

	records := suite.allocated()
	intern := suite.createUser(6, models.RoleIntern)

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			batch := make([]models.AllocationRecord, len(records))
			copy(batch, records)
			tt.modify(batch, intern)

			result, err := suite.guard.BatchSave(context.Background(), batch, "admin")
			suite.Assert().ErrorIs(err, models.ErrValidation)
			suite.Assert().False(result.Success)
			suite.Assert().Contains(result.ViolatingUserIDs, batch[0].UserID)

			var stored models.AllocationRecord
			suite.Require().Nil(suite.db.First(&stored, "id = ?", records[0].ID).Error)
			suite.Assert().Equal(records[0].UserID, stored.UserID)
			suite.Assert().Equal(int64(400), stored.Units)
			suite.Assert().Equal(1, stored.Version)

			var audits int64
			suite.Require().Nil(suite.db.Model(&models.AuditLog{}).Where("operation = ?", models.OperationBatchSave).Count(&audits).Error)
			suite.Assert().Equal(int64(0), audits)
		})
	}
}

func (suite *TestSuiteStandard) TestBatchSaveKeepsPeriodWithinBudget() {
	records := suite.allocated()

	// Member 1 lost the seat, the new member has no record yet
	newcomer := suite.createUser(6, models.RoleIntern)
	suite.swapRoles(records[0].UserID, newcomer.ID)

	batch := append([]models.AllocationRecord{}, records[1:]...)
	batch = append(batch, models.AllocationRecord{UserID: newcomer.ID, Units: 400})

	result, err := suite.guard.BatchSave(context.Background(), batch, "admin")
	suite.Require().ErrorIs(err, models.ErrValidation)
	suite.Assert().False(result.Success)
	suite.Assert().Contains(result.GlobalError, "2400 units, but the budget is 2000")

	count, units := suite.active()
	suite.Assert().Equal(5, count)
	suite.Assert().Equal(int64(2000), units)

	// After a recalculation the batch of the new holders is accepted
	records, err = suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)

	result, err = suite.guard.BatchSave(context.Background(), records, "admin")
	suite.Require().Nil(err)
	suite.Assert().True(result.Success)
}
