// Package users exposes tenant-scoped user listing for the admin console.
package users

import (
	"github.com/gin-gonic/gin"

	"github.com/nexiom/backend/internal/identity"
	"github.com/nexiom/backend/internal/middleware"
	"github.com/nexiom/backend/pkg/response"
)

// Handler handles user HTTP endpoints.
type Handler struct {
	provider identity.Provider
}

// NewHandler creates a users handler.
func NewHandler(provider identity.Provider) *Handler {
	return &Handler{provider: provider}
}

// List handles GET /users. Returns the users of the caller's tenant; callers
// without a tenant get an empty list rather than the whole user table.
func (h *Handler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	tenantID := ""
	if user.Tenant != nil {
		tenantID = user.Tenant.OrganizationID
	}
	list, err := h.provider.ListUsers(c.Request.Context(), tenantID)
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /users/:id. Only users within the caller's tenant are
// visible.
func (h *Handler) GetByID(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Tenant == nil {
		response.NotFound(c, "user not found")
		return
	}
	list, err := h.provider.ListUsers(c.Request.Context(), user.Tenant.OrganizationID)
	if err != nil {
		response.Internal(c, "failed to load user")
		return
	}
	id := c.Param("id")
	for _, u := range list {
		if u.ID == id {
			response.OK(c, u)
			return
		}
	}
	response.NotFound(c, "user not found")
}
