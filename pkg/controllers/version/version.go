package version

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/httputil"
)

type Response struct {
	Data Object `json:"data"`
}

type Object struct {
	Version string `json:"version" example:"1.1.0"` // the running version of the back office
}

func RegisterRoutes(r *gin.RouterGroup, version string) {
	r.OPTIONS("", httputil.OptionsGet)
	r.GET("", Get(version))
}

// Get returns the software version of the API.
func Get(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{Data: Object{Version: version}})
	}
}
