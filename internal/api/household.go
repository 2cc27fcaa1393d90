package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/household"
	"github.com/lalith-99/familyhub/internal/middleware"
	"go.uber.org/zap"
)

// HouseholdHandler serves the tasks, inventory and shopping collections
// of the caller's family.
type HouseholdHandler struct {
	svc    *household.Service
	logger *zap.Logger
}

func NewHouseholdHandler(svc *household.Service, logger *zap.Logger) *HouseholdHandler {
	return &HouseholdHandler{svc: svc, logger: logger}
}

type setCompletedRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// ListTasks handles GET /v1/tasks?completed=true|false
func (h *HouseholdHandler) ListTasks(c *gin.Context) {
	var completed *bool
	if raw, ok := c.GetQuery("completed"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, h.logger, apperr.New(apperr.CodeInvalidInput, "completed must be true or false"))
			return
		}
		completed = &v
	}

	tasks, err := h.svc.ListTasks(c.Request.Context(), middleware.GetUserID(c), completed)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// AddTask handles POST /v1/tasks
func (h *HouseholdHandler) AddTask(c *gin.Context) {
	var req household.NewTask
	if !bindJSON(c, h.logger, &req) {
		return
	}

	task, err := h.svc.AddTask(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// SetTaskCompleted handles PATCH /v1/tasks/:id
func (h *HouseholdHandler) SetTaskCompleted(c *gin.Context) {
	var req setCompletedRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	task, err := h.svc.SetTaskCompleted(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), *req.Completed)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /v1/tasks/:id
func (h *HouseholdHandler) DeleteTask(c *gin.Context) {
	if err := h.svc.DeleteTask(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListInventory handles GET /v1/inventory?low_stock=true
func (h *HouseholdHandler) ListInventory(c *gin.Context) {
	lowStock, _ := strconv.ParseBool(c.Query("low_stock"))

	items, err := h.svc.ListInventory(c.Request.Context(), middleware.GetUserID(c), lowStock)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddInventoryItem handles POST /v1/inventory
func (h *HouseholdHandler) AddInventoryItem(c *gin.Context) {
	var req household.NewInventoryItem
	if !bindJSON(c, h.logger, &req) {
		return
	}

	item, err := h.svc.AddInventoryItem(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateInventoryItem handles PUT /v1/inventory/:id
func (h *HouseholdHandler) UpdateInventoryItem(c *gin.Context) {
	var req household.InventoryUpdate
	if !bindJSON(c, h.logger, &req) {
		return
	}

	item, err := h.svc.UpdateInventoryItem(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteInventoryItem handles DELETE /v1/inventory/:id
func (h *HouseholdHandler) DeleteInventoryItem(c *gin.Context) {
	if err := h.svc.DeleteInventoryItem(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListShopping handles GET /v1/shopping
func (h *HouseholdHandler) ListShopping(c *gin.Context) {
	items, err := h.svc.ListShopping(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// AddShoppingItem handles POST /v1/shopping
func (h *HouseholdHandler) AddShoppingItem(c *gin.Context) {
	var req household.NewShoppingItem
	if !bindJSON(c, h.logger, &req) {
		return
	}

	item, err := h.svc.AddShoppingItem(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// DeleteShoppingItem handles DELETE /v1/shopping/:id
func (h *HouseholdHandler) DeleteShoppingItem(c *gin.Context) {
	if err := h.svc.DeleteShoppingItem(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Overview handles GET /v1/overview
func (h *HouseholdHandler) Overview(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
