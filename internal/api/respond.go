package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"investorradar/domain/core"
	apperrors "investorradar/internal/errors"
)

// errorBody is the JSON envelope for every failed request.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error to its HTTP status, wire code, and message.
// Application errors carry their own code; bare domain sentinels are
// translated here. Anything unrecognized is an internal error and the
// message is withheld from the response.
func statusFor(err error) (int, string, string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.CodeInvalidInput, apperrors.CodeValidationError:
			return http.StatusBadRequest, appErr.Code, appErr.Message
		case apperrors.CodeUnauthorized:
			return http.StatusUnauthorized, appErr.Code, appErr.Message
		case apperrors.CodeForbidden:
			return http.StatusForbidden, appErr.Code, appErr.Message
		case apperrors.CodeNotFound:
			return http.StatusNotFound, appErr.Code, appErr.Message
		case apperrors.CodeSyncConflict:
			return http.StatusConflict, appErr.Code, appErr.Message
		case apperrors.CodeCatalogUnavailable:
			return http.StatusServiceUnavailable, appErr.Code, appErr.Message
		case apperrors.CodeExternalService:
			return http.StatusBadGateway, appErr.Code, appErr.Message
		}
		return http.StatusInternalServerError, appErr.Code, "internal error"
	}

	switch {
	case errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, apperrors.CodeUnauthorized, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, apperrors.CodeNotFound, err.Error()
	case errors.Is(err, core.ErrRunInProgress):
		return http.StatusConflict, apperrors.CodeSyncConflict, err.Error()
	case errors.Is(err, core.ErrDuplicateExternalID):
		return http.StatusConflict, apperrors.CodeSyncConflict, err.Error()
	}
	return http.StatusInternalServerError, apperrors.CodeInternalError, "internal error"
}

// respondError writes the mapped error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code, message := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, errorBody{Error: message, Code: code})
}

// badRequest is the shortcut for malformed input.
func (s *Server) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: message, Code: apperrors.CodeInvalidInput})
}
