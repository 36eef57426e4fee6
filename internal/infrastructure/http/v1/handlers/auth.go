package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// AuthHandler handles authentication and account management endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(ctx, req.ToAuthRequest())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromUser(user))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, user, err := h.service.Login(ctx, req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token: dto.FromToken(token),
		User:  dto.FromUser(user),
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()

	userCtx := appctx.GetUser(ctx)
	if userCtx == nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return
	}

	userID, err := id.Parse(userCtx.UserID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid user id"))
		return
	}

	user, err := h.service.GetUser(ctx, userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromUser(user))
}

// ListUsers handles GET /auth/users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.UserResponse, len(users))
	for i := range users {
		items[i] = dto.FromUser(&users[i])
	}
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}

// Approve handles POST /auth/users/:id/approve
func (h *AuthHandler) Approve(c *gin.Context) {
	userID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid user id"))
		return
	}

	if err := h.service.Approve(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "user approved")
}

// SetRole handles PUT /auth/users/:id/role
func (h *AuthHandler) SetRole(c *gin.Context) {
	userID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid user id"))
		return
	}

	var req dto.SetRoleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.SetRole(c.Request.Context(), userID, req.Role); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "role updated")
}

// DeleteUser handles DELETE /auth/users/:id
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	userID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid user id"))
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	// Public routes (no auth required)
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)

	// Protected routes (auth required)
	protected.GET("/me", h.Me)
	protected.GET("/users", middleware.RequireRole(appctx.RoleAdmin), h.ListUsers)
	protected.POST("/users/:id/approve", middleware.RequireRole(appctx.RoleAdmin), h.Approve)
	protected.PUT("/users/:id/role", middleware.RequireRole(appctx.RoleOwner), h.SetRole)
	protected.DELETE("/users/:id", middleware.RequireRole(appctx.RoleOwner), h.DeleteUser)
}
