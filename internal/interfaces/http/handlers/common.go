// Package handlers implements the gin handlers of the molmatch HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/molmatch/internal/interfaces/http/middleware"
	"github.com/turtacn/molmatch/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeAppError maps err to a status through its error code and writes an
// ErrorResponse.  Internal failures are masked.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)

	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	resp := ErrorResponse{
		Code:      code.String(),
		Message:   errors.DefaultMessageForCode(code),
		RequestID: middleware.GetRequestID(c),
	}

	var ae *errors.AppError
	if errors.As(err, &ae) && (errors.IsClientError(code) || code == errors.CodeSearchAborted) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	if status >= http.StatusInternalServerError && code != errors.CodeSearchAborted {
		resp.Code = errors.CodeInternal.String()
		resp.Message = "internal server error"
	}
	c.AbortWithStatusJSON(status, resp)
}
