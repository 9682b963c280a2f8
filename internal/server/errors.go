package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
)

func errorBody(code, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

// httpStatus maps an error chain onto a status code and public error code.
func httpStatus(err error) (int, string) {
	code := common.ErrorCode(err)
	switch {
	case code == common.CodeNotFound || errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, common.CodeNotFound
	case code == common.CodeValidation || errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, common.CodeValidation
	case code == common.CodeInvalidInput || errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, common.CodeInvalidInput
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	status, code := httpStatus(err)
	logger := common.LoggerWithRequest(c.Request.Context(), h.Logger)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("http.request.failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	} else {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
	}
	c.AbortWithStatusJSON(status, errorBody(code, msg))
}

func badRequest(message string) error {
	return common.InvalidInput(message)
}
