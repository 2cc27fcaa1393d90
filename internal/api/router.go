package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/familyhub/internal/middleware"
	"github.com/lalith-99/familyhub/internal/observ"
	"go.uber.org/zap"
)

// Router holds everything the HTTP routes are built from.
type Router struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Families  *FamilyHandler
	Household *HouseholdHandler
	Live      *LiveHandler

	Verifier middleware.TokenVerifier
	// Health reports whether the backing stores are reachable. Nil means
	// always healthy.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

// Engine builds the gin engine with every /v1 route registered.
func (r Router) Engine() *gin.Engine {
	srv := gin.New()
	srv.Use(observ.GinLogger(r.Logger), observ.GinRecovery(r.Logger))

	// Health and the auth entry points are public: load balancers and
	// signed-out clients have no token.
	srv.GET("/v1/health", r.health)
	public := srv.Group("/v1/auth")
	public.POST("/signup", r.Auth.Signup)
	public.POST("/login", r.Auth.Login)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(r.Verifier))

	v1.POST("/auth/logout", r.Auth.Logout)
	v1.GET("/users/me", r.Users.GetMe)

	v1.POST("/families", r.Families.Create)
	v1.POST("/families/join", r.Families.Join)
	v1.POST("/families/leave", r.Families.Leave)
	v1.GET("/families/me", r.Families.Get)
	v1.GET("/families/me/members", r.Families.ListMembers)
	v1.DELETE("/families/:id/members/:uid", r.Families.RemoveMember)

	v1.GET("/tasks", r.Household.ListTasks)
	v1.POST("/tasks", r.Household.AddTask)
	v1.PATCH("/tasks/:id", r.Household.SetTaskCompleted)
	v1.DELETE("/tasks/:id", r.Household.DeleteTask)

	v1.GET("/inventory", r.Household.ListInventory)
	v1.POST("/inventory", r.Household.AddInventoryItem)
	v1.PUT("/inventory/:id", r.Household.UpdateInventoryItem)
	v1.DELETE("/inventory/:id", r.Household.DeleteInventoryItem)

	v1.GET("/shopping", r.Household.ListShopping)
	v1.POST("/shopping", r.Household.AddShoppingItem)
	v1.DELETE("/shopping/:id", r.Household.DeleteShoppingItem)

	v1.GET("/overview", r.Household.Overview)
	v1.GET("/live", r.Live.Serve)

	return srv
}

func (r Router) health(c *gin.Context) {
	if r.Health != nil {
		if err := r.Health(c.Request.Context()); err != nil {
			r.Logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
