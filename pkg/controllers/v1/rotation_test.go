package v1_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	v1 "github.com/pollen-club/backoffice/pkg/controllers/v1"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/rotation"
	"github.com/pollen-club/backoffice/pkg/test"
	"github.com/stretchr/testify/assert"
)

func (suite *TestSuiteStandard) TestCreateSwap() {
	members := suite.createUsers(models.RoleMember, 1, 5)
	intern := suite.createUsers(models.RoleIntern, 101, 1)[0]

	recorder := suite.request(http.MethodPost, "/v1/rotation/swaps", v1.SwapCreate{InternID: intern.ID, MemberID: members[2].ID}, map[string]string{v1.ActorHeader: "robin"})
	test.AssertHTTPStatus(suite.T(), http.StatusNoContent, recorder)

	var promoted models.User
	suite.Require().Nil(suite.controller.DB.First(&promoted, "id = ?", intern.ID).Error)
	suite.Assert().Equal(models.RoleMember, promoted.Role)

	recorder = suite.request(http.MethodGet, fmt.Sprintf("/v1/users/%s/role-changes", members[2].ID), nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, recorder)

	var history v1.Response[[]models.RoleChangeEntry]
	test.DecodeResponse(suite.T(), recorder, &history)
	suite.Require().Len(history.Data, 1)
	suite.Assert().Equal(models.RoleIntern, history.Data[0].NewRole)
	suite.Assert().Equal("robin", history.Data[0].ChangedBy)
}

func (suite *TestSuiteStandard) TestCreateSwapRejected() {
	members := suite.createUsers(models.RoleMember, 1, 5)
	intern := suite.createUsers(models.RoleIntern, 101, 1)[0]

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"Roles reversed", v1.SwapCreate{InternID: members[0].ID, MemberID: intern.ID}, http.StatusBadRequest},
		{"Same user", v1.SwapCreate{InternID: intern.ID, MemberID: intern.ID}, http.StatusBadRequest},
		{"Unknown intern", v1.SwapCreate{InternID: uuid.New(), MemberID: members[0].ID}, http.StatusNotFound},
		{"Missing member", map[string]string{"internId": intern.ID.String()}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			recorder := suite.request(http.MethodPost, "/v1/rotation/swaps", tt.body)
			test.AssertHTTPStatus(t, tt.status, recorder)
		})
	}

	count, err := models.CountFormalSeats(suite.controller.DB)
	suite.Require().Nil(err)
	suite.Assert().Equal(int64(5), count)
}

func (suite *TestSuiteStandard) TestReview() {
	suite.createUsers(models.RoleMember, 1, 5)
	interns := suite.createUsers(models.RoleIntern, 101, 2)

	suite.request(http.MethodPost, "/v1/points", v1.PointsCreate{UserID: interns[0].ID, Category: "community_activity", Amount: 100})

	recorder := suite.request(http.MethodGet, "/v1/rotation/promotion-candidates", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, recorder)

	var users v1.Response[[]models.User]
	test.DecodeResponse(suite.T(), recorder, &users)
	suite.Require().Len(users.Data, 1)
	suite.Assert().Equal(interns[0].ID, users.Data[0].ID)

	// Nobody has an archived history yet, so there is no seat to fill
	recorder = suite.request(http.MethodGet, "/v1/rotation/review", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, recorder)

	var review v1.Response[rotation.Review]
	test.DecodeResponse(suite.T(), recorder, &review)
	suite.Assert().Len(review.Data.Eligible, 1)
	suite.Assert().Empty(review.Data.Candidates)
	suite.Assert().False(review.Data.Triggerable)

	recorder = suite.request(http.MethodPost, "/v1/rotation/review", nil)
	var triggered v1.Response[v1.Triggered]
	test.DecodeResponse(suite.T(), recorder, &triggered)
	suite.Assert().False(triggered.Data.Triggerable)
}

func (suite *TestSuiteStandard) TestDismissals() {
	suite.createUsers(models.RoleMember, 1, 5)
	interns := suite.createUsers(models.RoleIntern, 101, 2)

	// The second intern was active in both previous months
	for _, month := range []int{3, 4} {
		suite.Require().Nil(suite.controller.DB.Create(&models.PointsEntry{
			UserID:     interns[1].ID,
			Category:   "community_activity",
			Amount:     100,
			OccurredAt: suite.now.AddDate(0, month-5, 0),
		}).Error)
	}

	recorder := suite.request(http.MethodPost, "/v1/rotation/dismissal-marks", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, recorder)

	var marked v1.Response[[]models.User]
	test.DecodeResponse(suite.T(), recorder, &marked)
	suite.Require().Len(marked.Data, 1)
	suite.Assert().Equal(interns[0].ID, marked.Data[0].ID)

	recorder = suite.request(http.MethodGet, "/v1/rotation/pending-dismissals", nil)
	test.AssertHTTPStatus(suite.T(), http.StatusOK, recorder)

	var pending v1.Response[[]models.User]
	test.DecodeResponse(suite.T(), recorder, &pending)
	assert.Len(suite.T(), pending.Data, 1)
	assert.True(suite.T(), pending.Data[0].PendingDismissal)
}
