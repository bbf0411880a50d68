package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/allocation"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/models"
)

func (co Controller) RegisterAllocationRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGetPatch)
	r.GET("", co.GetAllocations)
	r.PATCH("", co.UpdateAllocations)

	r.OPTIONS("/calculate", httputil.OptionsPost)
	r.POST("/calculate", co.CalculateAllocations)

	r.OPTIONS("/archive", httputil.OptionsPost)
	r.POST("/archive", co.ArchiveAllocations)

	r.OPTIONS("/report", httputil.OptionsGet)
	r.GET("/report", co.GetAllocationReport)
}

// GetAllocations returns the unarchived allocation records.
func (co Controller) GetAllocations(c *gin.Context) {
	records, err := co.Guard.Current(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.AllocationRecord]{Data: records})
}

// CalculateAllocations calculates the allocation of the current period from the ledger.
func (co Controller) CalculateAllocations(c *gin.Context) {
	records, err := co.Engine.Allocate(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[[]models.AllocationRecord]{Data: records})
}

// UpdateAllocations saves a batch of allocation records. The response always
// contains the batch result so that clients can show errors per user.
func (co Controller) UpdateAllocations(c *gin.Context) {
	var editables []AllocationEditable
	if err := httputil.BindData(c, &editables); err != nil {
		abort(c, err)
		return
	}

	records := make([]models.AllocationRecord, len(editables))
	for i, e := range editables {
		records[i] = e.model()
	}

	result, err := co.Guard.BatchSave(c.Request.Context(), records, actor(c))
	if err != nil {
		if result.GlobalError == "" && len(result.Errors) == 0 {
			result.GlobalError = err.Error()
		}
		c.JSON(status(err), Response[allocation.BatchResult]{Data: result})
		return
	}

	c.JSON(http.StatusOK, Response[allocation.BatchResult]{Data: result})
}

// ArchiveAllocations archives all unarchived records and returns their number.
func (co Controller) ArchiveAllocations(c *gin.Context) {
	count, err := co.Guard.Archive(c.Request.Context(), actor(c))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[Archived]{Data: Archived{Count: count}})
}

func (co Controller) GetAllocationReport(c *gin.Context) {
	report, err := co.Guard.Report(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[allocation.Report]{Data: report})
}
