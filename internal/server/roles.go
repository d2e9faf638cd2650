package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
)

type roleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (r roleRequest) toDomain() organizationdomain.RoleRequest {
	return organizationdomain.RoleRequest{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Color:       strings.TrimSpace(r.Color),
	}
}

func (s *Server) ListRoles(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	roles, err := s.organizationSvc.ListRoles(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": roles})
}

func (s *Server) CreateRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.CreateRole(c.Request.Context(), userID, c.Param("id"), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	resp, err := s.organizationSvc.GetRole(c.Request.Context(), userID, c.Param("id"), c.Param("role_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.UpdateRole(c.Request.Context(), userID, c.Param("id"), c.Param("role_id"), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	if err := s.organizationSvc.DeleteRole(c.Request.Context(), userID, c.Param("id"), c.Param("role_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateRolePermissions replaces the role's permission set.
func (s *Server) UpdateRolePermissions(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var req rolePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.UpdateRolePermissions(c.Request.Context(), userID, c.Param("id"), c.Param("role_id"), req.Permissions)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
