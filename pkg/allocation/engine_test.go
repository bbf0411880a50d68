package allocation_test

import (
	"context"
	"time"

	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/settings"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) TestAllocateEvenSplit() {
	suite.createHolders(5)

	records, err := suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)
	suite.Require().Len(records, 5)

	for _, r := range records {
		suite.Assert().Equal(int64(400), r.Units)
		suite.Assert().True(decimal.NewFromInt(400).Equal(r.CurrencyAmount))
		suite.Assert().Equal("2024-05", r.Period.String())
		suite.Assert().Equal(1, r.Version)
	}
}

func (suite *TestSuiteStandard) TestAllocateLowBudgetEdgeCase() {
	users := suite.createHolders(5)

	// With a ratio of 2, these become raw amounts of 100, 100, 100, 100 and 3600
	for i, p := range []int64{50, 50, 50, 50, 1800} {
		suite.points(users[i].ID, p, suite.now)
	}

	// Points from other months are ignored
	suite.points(users[0].ID, 5000, suite.now.AddDate(0, -1, 0))

	records, err := suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)

	var total int64
	for i, r := range records {
		suite.Assert().Equal(users[i].ID, r.UserID, "records are in holder order")
		suite.Assert().Equal(int64(400), r.Units)
		total += r.Units
	}
	suite.Assert().Equal(int64(2000), total)
	suite.Assert().Equal(int64(1800), records[4].TotalPoints)
}

func (suite *TestSuiteStandard) TestAllocateBreakdown() {
	users := suite.createHolders(5)

	suite.points(users[0].ID, 80, suite.now)
	suite.points(users[0].ID, -20, suite.now)
	suite.Require().Nil(suite.db.Create(&models.PointsEntry{UserID: users[0].ID, Category: "birthday_bonus", Amount: 25, OccurredAt: suite.now}).Error)

	records, err := suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)

	suite.Assert().Equal(int64(80), records[0].BasePoints)
	suite.Assert().Equal(int64(25), records[0].BonusPoints)
	suite.Assert().Equal(int64(20), records[0].Deductions)
	suite.Assert().Equal(int64(85), records[0].TotalPoints)
	suite.Assert().Equal(int64(400), records[0].Units, "only one holder has points, bounded at the maximum")
	suite.Assert().Equal(int64(400), records[1].Units)
}

func (suite *TestSuiteStandard) TestAllocateProportional() {
	users := suite.createHolders(5)
	ctx := context.Background()

	suite.Require().Nil(suite.settings.Save(ctx, map[string]string{
		settings.KeyUnitMax:   "800",
		settings.KeyUnitValue: "0.5",
	}))

	for i, p := range []int64{100, 100, 100, 100, 600} {
		suite.points(users[i].ID, p, suite.now)
	}

	records, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	// Proportional shares are 166 and 1336, the maximum moves the surplus to the others
	want := []int64{300, 300, 300, 300, 800}
	for i, r := range records {
		suite.Assert().Equal(want[i], r.Units)
		suite.Assert().True(decimal.NewFromInt(want[i]).Mul(decimal.RequireFromString("0.5")).Equal(r.CurrencyAmount))
	}
}

func (suite *TestSuiteStandard) TestAllocateSeatMismatch() {
	suite.createHolders(4)

	_, err := suite.engine.Allocate(context.Background())
	suite.Require().ErrorIs(err, models.ErrConfiguration)
	suite.Assert().Contains(err.Error(), "4 formal seat holders, but 5 seats are configured")

	var count int64
	suite.Require().Nil(suite.db.Model(&models.AllocationRecord{}).Count(&count).Error)
	suite.Assert().Equal(int64(0), count)
}

func (suite *TestSuiteStandard) TestAllocateInfeasible() {
	suite.createHolders(5)

	// Bypass the store validation to simulate a configuration written by an older version
	suite.Require().Nil(suite.db.Create(&models.ConfigEntry{Key: settings.KeyUnitMax, Value: "350"}).Error)
	suite.settings.Invalidate()

	_, err := suite.engine.Allocate(context.Background())
	suite.Assert().ErrorIs(err, models.ErrConfiguration)
}

func (suite *TestSuiteStandard) TestAllocateUpdatesExisting() {
	users := suite.createHolders(5)
	ctx := context.Background()

	first, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	suite.points(users[0].ID, 100, suite.now)
	second, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	for i := range second {
		suite.Assert().Equal(first[i].ID, second[i].ID, "the active record is updated, not duplicated")
		suite.Assert().Equal(2, second[i].Version)
	}
	suite.Assert().Equal(int64(100), second[0].TotalPoints)

	var count int64
	suite.Require().Nil(suite.db.Model(&models.AllocationRecord{}).Count(&count).Error)
	suite.Assert().Equal(int64(5), count)
}

func (suite *TestSuiteStandard) TestAllocateAfterArchive() {
	suite.createHolders(5)
	ctx := context.Background()

	_, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	archived, err := suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)
	suite.Assert().Equal(5, archived)

	// The next month creates new records, the archived ones stay untouched
	suite.now = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	records, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)
	suite.Assert().Equal("2024-06", records[0].Period.String())
	suite.Assert().Equal(1, records[0].Version)

	var count int64
	suite.Require().Nil(suite.db.Model(&models.AllocationRecord{}).Count(&count).Error)
	suite.Assert().Equal(int64(10), count)
}

func (suite *TestSuiteStandard) TestAllocateDeterministic() {
	users := suite.createHolders(5)
	ctx := context.Background()

	for i, p := range []int64{13, 7, 0, 29, 51} {
		suite.points(users[i].ID, p, suite.now)
	}

	first, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)
	second, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	for i := range first {
		suite.Assert().Equal(first[i].Units, second[i].Units)
	}
}

func (suite *TestSuiteStandard) TestAllocateWritesAuditLog() {
	suite.createHolders(5)

	_, err := suite.engine.Allocate(context.Background())
	suite.Require().Nil(err)

	var entry models.AuditLog
	suite.Require().Nil(suite.db.First(&entry, "operation = ?", models.OperationAllocate).Error)
	suite.Assert().Contains(entry.Detail, "period 2024-05")
	suite.Assert().True(suite.now.Equal(entry.OccurredAt))
}

func (suite *TestSuiteStandard) TestAllocateAfterRoleChange() {
	users := suite.createHolders(5)
	ctx := context.Background()

	_, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	newcomer := suite.createUser(6, models.RoleIntern)
	suite.swapRoles(users[0].ID, newcomer.ID)

	records, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)
	suite.Require().Len(records, 5)
	suite.Assert().Equal(newcomer.ID, records[4].UserID)

	count, units := suite.active()
	suite.Assert().Equal(5, count, "the record of the former holder is superseded")
	suite.Assert().Equal(int64(2000), units)

	var stale int64
	suite.Require().Nil(suite.db.Model(&models.AllocationRecord{}).Where("user_id = ?", users[0].ID).Count(&stale).Error)
	suite.Assert().Equal(int64(0), stale)

	var audits int64
	suite.Require().Nil(suite.db.Model(&models.AuditLog{}).Where("operation = ? AND detail LIKE ?", models.OperationAllocate, "%1 superseded").Count(&audits).Error)
	suite.Assert().Equal(int64(1), audits)
}

func (suite *TestSuiteStandard) TestAllocateKeepsArchivedRecordsOfFormerHolders() {
	users := suite.createHolders(5)
	ctx := context.Background()

	_, err := suite.engine.Allocate(ctx)
	suite.Require().Nil(err)
	_, err = suite.guard.Archive(ctx, "admin")
	suite.Require().Nil(err)

	newcomer := suite.createUser(6, models.RoleIntern)
	suite.swapRoles(users[0].ID, newcomer.ID)

	_, err = suite.engine.Allocate(ctx)
	suite.Require().Nil(err)

	archived, err := suite.guard.Archived(ctx, users[0].ID)
	suite.Require().Nil(err)
	suite.Assert().Len(archived, 1)
}

func (suite *TestSuiteStandard) TestAllocatePointsOutOfRange() {
	users := suite.createHolders(5)

	suite.points(users[0].ID, 1<<62, suite.now)

	_, err := suite.engine.Allocate(context.Background())
	suite.Assert().ErrorIs(err, models.ErrConfiguration)
}
