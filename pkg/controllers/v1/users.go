package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/models"
)

func (co Controller) RegisterUserRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/:id/points", httputil.OptionsGet)
	r.GET("/:id/points", co.GetUserPoints)

	r.OPTIONS("/:id/allocations", httputil.OptionsGet)
	r.GET("/:id/allocations", co.GetUserAllocations)

	r.OPTIONS("/:id/role-changes", httputil.OptionsGet)
	r.GET("/:id/role-changes", co.GetUserRoleChanges)
}

// user parses the ID path parameter and checks that the user exists.
func (co Controller) user(c *gin.Context) (uuid.UUID, error) {
	id, err := httputil.UUIDFromString(c.Param("id"))
	if err != nil {
		return uuid.Nil, err
	}

	var u models.User
	if err := co.DB.WithContext(c.Request.Context()).First(&u, "id = ?", id).Error; err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

// GetUserPoints returns the points breakdown of the user for a month
// and all ledger entries of the user.
func (co Controller) GetUserPoints(c *gin.Context) {
	id, err := co.user(c)
	if err != nil {
		abort(c, err)
		return
	}

	month, err := co.month(c)
	if err != nil {
		abort(c, err)
		return
	}

	breakdown, err := co.Ledger.Breakdown(c.Request.Context(), id, month)
	if err != nil {
		abort(c, err)
		return
	}

	entries, err := co.Ledger.Entries(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[UserPoints]{Data: UserPoints{
		Month:     month,
		Breakdown: breakdown,
		Entries:   entries,
	}})
}

// GetUserAllocations returns the archived allocation records of the user, newest first.
func (co Controller) GetUserAllocations(c *gin.Context) {
	id, err := co.user(c)
	if err != nil {
		abort(c, err)
		return
	}

	records, err := co.Guard.Archived(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.AllocationRecord]{Data: records})
}

func (co Controller) GetUserRoleChanges(c *gin.Context) {
	id, err := co.user(c)
	if err != nil {
		abort(c, err)
		return
	}

	entries, err := co.Executor.History(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.RoleChangeEntry]{Data: entries})
}
