package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/identity/internal/observability/context"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
)

const (
	// HeaderUserID carries the authenticated subject set by the API gateway
	// after token verification.
	HeaderUserID     = "X-User-ID"
	contextUserIDKey = "user_id"
)

// ActorRequired resolves the calling user from the gateway header.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := organizationdomain.ParseUserID(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		ctx := obscontext.WithActor(c.Request.Context(), obscontext.ActorTypeUser, userID.String())
		if orgID := strings.TrimSpace(c.Param("id")); orgID != "" {
			ctx = obscontext.WithOrgID(ctx, orgID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (organizationdomain.UserID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return organizationdomain.UserID{}, false
	}
	userID, ok := value.(organizationdomain.UserID)
	if !ok || userID.IsZero() {
		return organizationdomain.UserID{}, false
	}
	return userID, true
}

// actor is shorthand for handlers mounted behind ActorRequired.
func actor(c *gin.Context) (organizationdomain.UserID, bool) {
	userID, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
	}
	return userID, ok
}
