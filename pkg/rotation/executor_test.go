package rotation_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/settings"
)

func (suite *TestSuiteStandard) role(id uuid.UUID) models.User {
	var user models.User
	suite.Require().Nil(suite.db.First(&user, "id = ?", id).Error)
	return user
}

func (suite *TestSuiteStandard) seats() int64 {
	count, err := models.CountFormalSeats(suite.db)
	suite.Require().Nil(err)
	return count
}

func (suite *TestSuiteStandard) TestSwap() {
	members, interns := suite.roster(1)
	ctx := context.Background()

	suite.Require().Nil(suite.db.Model(&models.User{}).Where("id = ?", members[1].ID).Update("role", models.RoleViceLeader).Error)
	suite.Require().Nil(suite.db.Model(&models.User{}).Where("id = ?", interns[0].ID).Update("pending_dismissal", true).Error)
	suite.Assert().Equal(int64(5), suite.seats())

	err := suite.executor.Swap(ctx, interns[0].ID, members[1].ID, "admin")
	suite.Require().Nil(err)

	promoted := suite.role(interns[0].ID)
	suite.Assert().Equal(models.RoleMember, promoted.Role)
	suite.Assert().False(promoted.PendingDismissal, "promotion clears the dismissal mark")
	suite.Assert().Equal(models.RoleIntern, suite.role(members[1].ID).Role)
	suite.Assert().Equal(int64(5), suite.seats())

	history, err := suite.executor.History(ctx, members[1].ID)
	suite.Require().Nil(err)
	suite.Require().Len(history, 1)
	suite.Assert().Equal(models.RoleViceLeader, history[0].OldRole)
	suite.Assert().Equal(models.RoleIntern, history[0].NewRole)
	suite.Assert().Equal("admin", history[0].ChangedBy)

	var entries int64
	suite.Require().Nil(suite.db.Model(&models.RoleChangeEntry{}).Count(&entries).Error)
	suite.Assert().Equal(int64(2), entries)

	suite.Eventually(func() bool { return suite.notifier.count() == 2 }, time.Second, 10*time.Millisecond)
}

func (suite *TestSuiteStandard) TestSwapRejected() {
	members, interns := suite.roster(2)
	leader := suite.createUser(200, models.RoleLeader)

	tests := []struct {
		name   string
		intern uuid.UUID
		member uuid.UUID
		err    error
	}{
		{"Intern is a member", members[0].ID, members[1].ID, models.ErrRoleMismatch},
		{"Counterpart is an intern", interns[0].ID, interns[1].ID, models.ErrRoleMismatch},
		{"Counterpart is the leader", interns[0].ID, leader.ID, models.ErrRoleMismatch},
		{"Unknown intern", uuid.New(), members[0].ID, models.ErrResourceNotFound},
		{"Unknown member", interns[0].ID, uuid.New(), models.ErrResourceNotFound},
		{"Same user", interns[0].ID, interns[0].ID, models.ErrValidation},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			err := suite.executor.Swap(context.Background(), tt.intern, tt.member, "admin")
			suite.Assert().ErrorIs(err, tt.err)
			suite.Assert().Equal(int64(5), suite.seats())
		})
	}

	var entries int64
	suite.Require().Nil(suite.db.Model(&models.RoleChangeEntry{}).Count(&entries).Error)
	suite.Assert().Equal(int64(0), entries)
	suite.Assert().Equal(0, suite.notifier.count())
}

func (suite *TestSuiteStandard) TestSwapConsistencyFailure() {
	members, interns := suite.roster(1)
	ctx := context.Background()

	// The organization has 5 seat holders but 4 seats are configured
	suite.Require().Nil(suite.settings.Save(ctx, map[string]string{
		settings.KeyFormalSeatCount: "4",
		settings.KeyUnitMax:         "500",
	}))

	err := suite.executor.Swap(ctx, interns[0].ID, members[0].ID, "admin")
	suite.Require().ErrorIs(err, models.ErrConsistency)

	// Rolled back
	suite.Assert().Equal(models.RoleIntern, suite.role(interns[0].ID).Role)
	suite.Assert().Equal(models.RoleMember, suite.role(members[0].ID).Role)

	var entries int64
	suite.Require().Nil(suite.db.Model(&models.RoleChangeEntry{}).Count(&entries).Error)
	suite.Assert().Equal(int64(0), entries)
}
