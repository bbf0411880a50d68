// Package v1 is the HTTP adapter of the back office.
package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/allocation"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/ledger"
	"github.com/pollen-club/backoffice/pkg/notify"
	"github.com/pollen-club/backoffice/pkg/rotation"
	"github.com/pollen-club/backoffice/pkg/settings"
	"gorm.io/gorm"
)

// ActorHeader identifies the administrator making a change. It is recorded in
// the audit log and the role history.
const ActorHeader = "X-Actor"

// Controller holds the services the handlers use.
type Controller struct {
	DB        *gorm.DB
	Settings  *settings.Store
	Ledger    *ledger.Ledger
	Engine    *allocation.Engine
	Guard     *allocation.Guard
	Evaluator *rotation.Evaluator
	Executor  *rotation.Executor
}

// New wires all services on top of the database.
func New(db *gorm.DB, n notify.Notifier) Controller {
	store := settings.New(db)
	l := ledger.New(db, store)
	guard := allocation.NewGuard(db, store)

	return Controller{
		DB:        db,
		Settings:  store,
		Ledger:    l,
		Engine:    allocation.NewEngine(db, l, store),
		Guard:     guard,
		Evaluator: rotation.NewEvaluator(db, l, guard, store),
		Executor:  rotation.NewExecutor(db, store, n),
	}
}

// RegisterRoutes registers all v1 routes with the group.
func (co Controller) RegisterRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGet)
	r.GET("", Get)

	co.RegisterSettingsRoutes(r.Group("/settings"))
	co.RegisterPointsRoutes(r.Group("/points"))
	co.RegisterUserRoutes(r.Group("/users"))
	co.RegisterAllocationRoutes(r.Group("/allocations"))
	co.RegisterRotationRoutes(r.Group("/rotation"))
}

type Links struct {
	Settings    string `json:"settings" example:"https://example.com/api/v1/settings"`       // Business settings
	Points      string `json:"points" example:"https://example.com/api/v1/points"`           // Points ledger
	Allocations string `json:"allocations" example:"https://example.com/api/v1/allocations"` // Allocation records of the current period
	Rotation    string `json:"rotation" example:"https://example.com/api/v1/rotation"`       // Promotion, demotion and dismissal
}

type RootResponse struct {
	Links Links `json:"links"`
}

// Get returns the link list for v1.
func Get(c *gin.Context) {
	url := c.GetString(httputil.ContextURL) + "/v1"

	c.JSON(http.StatusOK, RootResponse{
		Links: Links{
			Settings:    url + "/settings",
			Points:      url + "/points",
			Allocations: url + "/allocations",
			Rotation:    url + "/rotation",
		},
	})
}

// actor returns the administrator named in the request header.
func actor(c *gin.Context) string {
	a := strings.TrimSpace(c.GetHeader(ActorHeader))
	if a == "" {
		return "api"
	}
	return a
}
