package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SendSuccessWithMeta(c *gin.Context, data interface{}, meta *Meta) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func SendError(c *gin.Context, statusCode int, err *AppError) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
	})
}

func SendValidationError(c *gin.Context, message string, details string) {
	SendError(c, http.StatusBadRequest, NewAppError(ErrCodeValidation, message, details))
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, NewAppError(ErrCodeNotFound, message))
}

func SendUnauthorized(c *gin.Context, message string) {
	SendError(c, http.StatusUnauthorized, NewAppError(ErrCodeUnauthorized, message))
}

func SendForbidden(c *gin.Context, message string) {
	SendError(c, http.StatusForbidden, NewAppError(ErrCodeForbidden, message))
}

func SendInternalError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, NewAppError(ErrCodeInternal, message))
}

func SendConflict(c *gin.Context, message string) {
	SendError(c, http.StatusConflict, NewAppError(ErrCodeConflict, message))
}

// SendPickError maps pick/override errors onto the response envelope.
// Validation problems come back 400, missing entities 404, duplicate
// picks and point collisions 409, lock-state violations 422. Anything
// unrecognized is treated as internal.
func SendPickError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGameNotFound):
		SendError(c, http.StatusNotFound, NewAppError(ErrCodeGameNotFound, "game not found", err.Error()))
	case errors.Is(err, ErrPickNotFound):
		SendError(c, http.StatusNotFound, NewAppError(ErrCodePickNotFound, "pick not found", err.Error()))
	case errors.Is(err, ErrPickAlreadyExists):
		SendError(c, http.StatusConflict, NewAppError(ErrCodePickExists, "a pick already exists for this game", err.Error()))
	case errors.Is(err, ErrPointsConflict):
		SendError(c, http.StatusConflict, NewAppError(ErrCodePointsConflict, "confidence points already used by another pick", err.Error()))
	case errors.Is(err, ErrGameNotLocked):
		SendError(c, http.StatusUnprocessableEntity, NewAppError(ErrCodeGameNotLocked, "game has not locked yet", err.Error()))
	case errors.Is(err, ErrPointsOutOfRange):
		SendError(c, http.StatusBadRequest, NewAppError(ErrCodePointsRange, "confidence points out of range", err.Error()))
	case errors.Is(err, ErrNotFound):
		SendNotFound(c, err.Error())
	default:
		SendInternalError(c, err.Error())
	}
}
