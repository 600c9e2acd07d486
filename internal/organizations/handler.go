// Package organizations exposes the caller's tenant to the console.
package organizations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexiom/backend/internal/middleware"
	"github.com/nexiom/backend/pkg/response"
)

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// GetMine handles GET /organizations. Returns the caller's organization.
// Requires a tenant (RequireTenant runs before this).
func (h *Handler) GetMine(c *gin.Context) {
	user := middleware.CurrentUser(c)
	orgID, err := uuid.Parse(user.Tenant.OrganizationID)
	if err != nil {
		response.Internal(c, "invalid organization id in session")
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil || org == nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// ListMembers handles GET /organizations/:id/members. Callers only see their
// own organization's members.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	user := middleware.CurrentUser(c)
	if user.Tenant == nil || user.Tenant.OrganizationID != orgID.String() {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}
