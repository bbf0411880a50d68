package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/internal/types"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/models"
)

func (co Controller) RegisterPointsRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsPost)
	r.POST("", co.CreatePoints)

	r.OPTIONS("/checkins", httputil.OptionsPost)
	r.POST("/checkins", co.CreateCheckins)
}

// CreatePoints appends an entry to the ledger. A negative amount is a deduction.
func (co Controller) CreatePoints(c *gin.Context) {
	var create PointsCreate
	if err := httputil.BindData(c, &create); err != nil {
		abort(c, err)
		return
	}

	var entry models.PointsEntry
	var err error
	if create.Amount < 0 {
		entry, err = co.Ledger.Deduct(c.Request.Context(), create.UserID, create.Category, -create.Amount, create.Description)
	} else {
		entry, err = co.Ledger.Award(c.Request.Context(), create.UserID, create.Category, create.Amount, create.Description)
	}
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response[models.PointsEntry]{Data: entry})
}

// CreateCheckins records the monthly check-in count of a user as points.
func (co Controller) CreateCheckins(c *gin.Context) {
	var create CheckinsCreate
	if err := httputil.BindData(c, &create); err != nil {
		abort(c, err)
		return
	}

	entry, created, err := co.Ledger.RecordCheckins(c.Request.Context(), create.UserID, create.Count)
	if err != nil {
		abort(c, err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, Response[Checkins]{Data: Checkins{}})
		return
	}

	c.JSON(http.StatusCreated, Response[Checkins]{Data: Checkins{Created: true, Entry: &entry}})
}

// month parses the month query parameter. It defaults to the current month.
func (co Controller) month(c *gin.Context) (types.Month, error) {
	raw, ok := c.GetQuery("month")
	if !ok || raw == "" {
		return co.Engine.Period(), nil
	}

	m, err := types.ParseMonth(raw)
	if err != nil {
		return types.Month{}, fmt.Errorf("%w, got %q", errMonthQuery, raw)
	}
	return m, nil
}
