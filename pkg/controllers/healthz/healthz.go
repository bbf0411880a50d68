package healthz

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"gorm.io/gorm"
)

type Response struct {
	Error string `json:"error,omitempty"`
}

func RegisterRoutes(r *gin.RouterGroup, db *gorm.DB) {
	r.OPTIONS("", httputil.OptionsGet)
	r.GET("", Get(db))
}

// Get returns 204 when the database is reachable and 500 with the error otherwise.
func Get(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
			return
		}

		err = sqlDB.PingContext(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
