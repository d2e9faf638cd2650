package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
)

func (s *Server) ListPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.organizationSvc.PermissionCatalog(c.Request.Context())})
}

// GetMyAccess returns the caller's memberships with effective permissions.
func (s *Server) GetMyAccess(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	facts, err := s.organizationSvc.AccessFacts(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": facts})
}

// CheckPermission answers whether the caller holds ?permission= in the
// organization. Without a permission it reports plain membership.
func (s *Server) CheckPermission(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	permission := strings.TrimSpace(c.Query("permission"))
	if permission == "" {
		allowed, err := s.organizationSvc.HasAccess(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"allowed": allowed})
		return
	}

	if s.authzSvc == nil {
		AbortWithError(c, ErrInternal)
		return
	}
	orgID, err := organizationdomain.ParseOrganizationID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	err = s.authzSvc.Authorize(c.Request.Context(), userID, orgID, permission)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"allowed": true, "permission": permission})
	case isValidationError(err):
		AbortWithError(c, err)
	case isForbidden(err):
		c.JSON(http.StatusOK, gin.H{"allowed": false, "permission": permission})
	default:
		AbortWithError(c, err)
	}
}

func isForbidden(err error) bool {
	status, _ := mapError(err)
	return status == http.StatusForbidden
}
