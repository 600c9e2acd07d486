package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexiom/backend/internal/models"
	"github.com/nexiom/backend/pkg/response"
)

const (
	// ContextUser is the key for the enriched user in gin context.
	ContextUser = "auth_user"
	// ContextSession is the key for the validated session in gin context.
	ContextSession = "auth_session"
	// ContextUserID is the key for the user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the membership role in gin context.
	ContextUserRole = "user_role"
	// ContextTenantID is the key for the organization ID in gin context.
	ContextTenantID = "tenant_id"
)

// Enricher resolves a token to an enriched session.
type Enricher interface {
	Enrich(ctx context.Context, token string) (*models.EnrichedSession, error)
}

// Auth returns the request authentication gate. It extracts the session
// token (cookie preferred over Authorization bearer), enriches it and
// attaches user, session and tenant context for downstream handlers. Each
// request is evaluated independently; there is no retry.
func Auth(enricher Enricher, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, cookieName)
		if token == "" {
			response.Unauthorized(c, "no session token provided")
			c.Abort()
			return
		}

		enriched, err := enricher.Enrich(c.Request.Context(), token)
		if err != nil {
			response.Internal(c, "session validation failed")
			c.Abort()
			return
		}
		if enriched == nil {
			response.Unauthorized(c, "invalid session")
			c.Abort()
			return
		}

		c.Set(ContextUser, enriched.User)
		c.Set(ContextSession, enriched.Session)
		c.Set(ContextUserID, enriched.User.ID)
		c.Set(ContextUserRole, enriched.User.Role)
		if enriched.User.Tenant != nil {
			c.Set(ContextTenantID, enriched.User.Tenant.OrganizationID)
		}
		c.Next()
	}
}

// ExtractToken returns the session token from the named cookie, falling back
// to the Authorization bearer header. The cookie wins when both are present
// because it carries the signed form.
func ExtractToken(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// CurrentUser returns the enriched user set by Auth.
func CurrentUser(c *gin.Context) models.EnrichedUser {
	return c.MustGet(ContextUser).(models.EnrichedUser)
}
