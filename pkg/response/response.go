package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mhp-app/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    apperr.Kind `json:"kind,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with a ValidationError kind.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Kind: apperr.ValidationError})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err, Kind: apperr.NotAuthenticated})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err, Kind: apperr.PermissionDenied})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err, Kind: apperr.NotFound})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err, Kind: apperr.Conflict})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err, Kind: apperr.TransientStoreError})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err, Kind: apperr.Internal})
}

// Error maps err's kind to an HTTP status and writes the envelope.
// Errors without a kind are reported as 500 with a generic message.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		_ = c.Error(err)
		Internal(c, "internal error")
		return
	}
	c.JSON(Status(kind), Body{Success: false, Error: apperr.Message(err), Kind: kind})
}

// Status returns the HTTP status for an error kind.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.PermissionDenied, apperr.CutoffPassed, apperr.DayBlocked:
		return http.StatusForbidden
	case apperr.UnknownMealType, apperr.MealTypeDisabled, apperr.ValidationError:
		return http.StatusBadRequest
	case apperr.UserInactive, apperr.Conflict:
		return http.StatusConflict
	case apperr.UserNotFound, apperr.NotFound:
		return http.StatusNotFound
	case apperr.NotAuthenticated:
		return http.StatusUnauthorized
	case apperr.TransientStoreError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
