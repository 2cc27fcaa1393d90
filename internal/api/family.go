package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/membership"
	"github.com/lalith-99/familyhub/internal/middleware"
	"github.com/lalith-99/familyhub/internal/models"
	"go.uber.org/zap"
)

// FamilyHandler exposes the membership operations. The acting user always
// comes from the session, never from the request body.
type FamilyHandler struct {
	svc    *membership.Service
	logger *zap.Logger
}

func NewFamilyHandler(svc *membership.Service, logger *zap.Logger) *FamilyHandler {
	return &FamilyHandler{svc: svc, logger: logger}
}

type createFamilyRequest struct {
	Name string `json:"name"`
}

type createFamilyResponse struct {
	InviteCode string               `json:"invite_code"`
	Family     *models.FamilyRecord `json:"family"`
}

type joinFamilyRequest struct {
	InviteCode string `json:"invite_code"`
}

type memberResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsHead      bool   `json:"is_head"`
}

// Create handles POST /v1/families
//
// The body is optional; without a name the family is named after its
// creator.
func (h *FamilyHandler) Create(c *gin.Context) {
	var req createFamilyRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, h.logger, &req) {
		return
	}

	code, family, err := h.svc.CreateFamily(c.Request.Context(), middleware.GetUserID(c), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, createFamilyResponse{InviteCode: code, Family: family})
}

// Join handles POST /v1/families/join
func (h *FamilyHandler) Join(c *gin.Context) {
	var req joinFamilyRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	family, err := h.svc.JoinFamily(c.Request.Context(), middleware.GetUserID(c), req.InviteCode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, family)
}

// Leave handles POST /v1/families/leave
func (h *FamilyHandler) Leave(c *gin.Context) {
	if err := h.svc.LeaveFamily(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get handles GET /v1/families/me
func (h *FamilyHandler) Get(c *gin.Context) {
	family, err := h.svc.GetFamily(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, family)
}

// ListMembers handles GET /v1/families/me/members
func (h *FamilyHandler) ListMembers(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.GetUserID(c)

	family, users, err := h.svc.ListMembers(ctx, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	members := make([]memberResponse, 0, len(users))
	for _, u := range users {
		members = append(members, memberResponse{
			UID:         u.UID,
			Email:       u.Email,
			DisplayName: u.DisplayName(),
			IsHead:      u.UID == family.Head,
		})
	}
	c.JSON(http.StatusOK, members)
}

// RemoveMember handles DELETE /v1/families/:id/members/:uid
func (h *FamilyHandler) RemoveMember(c *gin.Context) {
	err := h.svc.RemoveMember(c.Request.Context(), middleware.GetUserID(c), c.Param("uid"), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
