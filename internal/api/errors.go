package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/models"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string      `json:"error"`
	Code  apperr.Code `json:"code"`
}

// respondError writes err with the status its code maps to. Server-side
// failures are logged with their cause; the client only sees the message.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}
	c.JSON(status, errorResponse{Error: apperr.MessageOf(err), Code: code})
}

// bindJSON decodes the request body into req, answering 400 on failure.
func bindJSON(c *gin.Context, logger *zap.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		msg := "invalid request body"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msg = models.ValidationMessage(err)
		}
		respondError(c, logger, apperr.Wrap(apperr.CodeInvalidInput, msg, err))
		return false
	}
	return true
}
