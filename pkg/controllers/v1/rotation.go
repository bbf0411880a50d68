package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/pollen-club/backoffice/pkg/rotation"
)

func (co Controller) RegisterRotationRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/promotion-candidates", httputil.OptionsGet)
	r.GET("/promotion-candidates", co.GetPromotionCandidates)

	r.OPTIONS("/demotion-candidates", httputil.OptionsGet)
	r.GET("/demotion-candidates", co.GetDemotionCandidates)

	r.OPTIONS("/review", httputil.OptionsGetPost)
	r.GET("/review", co.GetReview)
	r.POST("/review", co.TriggerReview)

	r.OPTIONS("/dismissal-marks", httputil.OptionsPost)
	r.POST("/dismissal-marks", co.MarkDismissals)

	r.OPTIONS("/pending-dismissals", httputil.OptionsGet)
	r.GET("/pending-dismissals", co.GetPendingDismissals)

	r.OPTIONS("/swaps", httputil.OptionsPost)
	r.POST("/swaps", co.CreateSwap)
}

func (co Controller) users(c *gin.Context, users []models.User, err error) {
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.User]{Data: users})
}

// GetPromotionCandidates returns the interns eligible for promotion.
func (co Controller) GetPromotionCandidates(c *gin.Context) {
	users, err := co.Evaluator.PromotionEligible(c.Request.Context())
	co.users(c, users, err)
}

// GetDemotionCandidates returns the formal members that can be demoted.
func (co Controller) GetDemotionCandidates(c *gin.Context) {
	users, err := co.Evaluator.DemotionCandidates(c.Request.Context())
	co.users(c, users, err)
}

// GetPendingDismissals returns the interns marked for dismissal.
func (co Controller) GetPendingDismissals(c *gin.Context) {
	users, err := co.Evaluator.PendingDismissals(c.Request.Context())
	co.users(c, users, err)
}

// MarkDismissals marks the interns below the dismissal threshold and returns the newly marked ones.
func (co Controller) MarkDismissals(c *gin.Context) {
	users, err := co.Evaluator.MarkDismissalCandidates(c.Request.Context())
	co.users(c, users, err)
}

// GetReview returns both candidate lists of a promotion review.
func (co Controller) GetReview(c *gin.Context) {
	review, err := co.Evaluator.Review(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[rotation.Review]{Data: review})
}

// TriggerReview reports whether a promotion review can take place.
func (co Controller) TriggerReview(c *gin.Context) {
	ok, err := co.Evaluator.TriggerPromotionReview(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[Triggered]{Data: Triggered{Triggerable: ok}})
}

// CreateSwap promotes an intern and demotes a formal member in one step.
func (co Controller) CreateSwap(c *gin.Context) {
	var swap SwapCreate
	if err := httputil.BindData(c, &swap); err != nil {
		abort(c, err)
		return
	}

	err := co.Executor.Swap(c.Request.Context(), swap.InternID, swap.MemberID, actor(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
