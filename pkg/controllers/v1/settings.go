package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/models"
)

func (co Controller) RegisterSettingsRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGetPatch)
	r.GET("", co.GetSettings)
	r.PATCH("", co.UpdateSettings)
}

// GetSettings returns the effective settings. The optional pattern query
// parameter filters the keys with a glob, e.g. "unit_*".
func (co Controller) GetSettings(c *gin.Context) {
	pattern := c.DefaultQuery("pattern", "*")

	entries, err := co.Settings.All(c.Request.Context(), pattern)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.ConfigEntry]{Data: entries})
}

// UpdateSettings validates and saves a batch of settings. Either all
// values are saved or none.
func (co Controller) UpdateSettings(c *gin.Context) {
	var batch SettingsUpdate
	if err := httputil.BindData(c, &batch); err != nil {
		abort(c, err)
		return
	}

	err := co.Settings.Save(c.Request.Context(), batch)
	if err != nil {
		abort(c, err)
		return
	}

	entries, err := co.Settings.All(c.Request.Context(), "*")
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.ConfigEntry]{Data: entries})
}
