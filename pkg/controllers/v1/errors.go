package v1

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/pollen-club/backoffice/pkg/httputil"
	"github.com/pollen-club/backoffice/pkg/models"
	"github.com/rs/zerolog/log"
)

type httpError struct {
	Error string `json:"error" example:"there is no user with ID 0f1e4b47-7f8a-4c7a-9f06-52a1e28c9f1c"`
}

var errMonthQuery = errors.New("the month query parameter must be in YYYY-MM format")

// status returns the HTTP status for an error.
func status(err error) int {
	switch {
	case httputil.IsRequestError(err),
		errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrConfiguration),
		errors.Is(err, errMonthQuery):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrResourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abort writes the error response. Server errors are logged with the request ID.
func abort(c *gin.Context, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		log.Error().Str("request-id", requestid.Get(c)).Msgf("%T: %v", err, err.Error())
	}

	c.JSON(code, httpError{Error: err.Error()})
}
