package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/identity"
	"github.com/lalith-99/familyhub/internal/middleware"
	"go.uber.org/zap"
)

// AuthHandler serves sign-up, login and logout. Sign-up and login are the
// only endpoints reachable without a session.
type AuthHandler struct {
	provider *identity.Provider
	logger   *zap.Logger
}

func NewAuthHandler(provider *identity.Provider, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, logger: logger}
}

// Password rules live in the identity provider so the CLI and the API
// report the same message.
type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	session, err := h.provider.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	session, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Logout handles POST /v1/auth/logout. It ends only the session the
// request was made with; live connections on that session close.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.provider.SignOut(c.Request.Context(), middleware.GetToken(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
