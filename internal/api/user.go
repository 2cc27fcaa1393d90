package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/middleware"
	"github.com/lalith-99/familyhub/internal/models"
	"github.com/lalith-99/familyhub/internal/repository"
	"go.uber.org/zap"
)

type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

type userResponse struct {
	*models.UserRecord
	DisplayName string `json:"display_name"`
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.repo.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, apperr.Storage("could not load your profile, please try again", err))
		return
	}
	// The session outlived its profile; signing in again recreates it.
	if user == nil {
		respondError(c, h.logger, apperr.New(apperr.CodeNotFound, "user not found"))
		return
	}

	c.JSON(http.StatusOK, userResponse{UserRecord: user, DisplayName: user.DisplayName()})
}
