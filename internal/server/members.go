package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/db/pagination"
)

type addMemberRequest struct {
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (s *Server) ListMembers(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page size"))
		return
	}

	resp, err := s.organizationSvc.ListMembers(c.Request.Context(), userID, c.Param("id"), organizationdomain.ListMembersRequest{
		PageToken: strings.TrimSpace(page.PageToken),
		PageSize:  page.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Members, "page_info": resp.PageInfo})
}

func (s *Server) AddMember(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.AddMember(c.Request.Context(), userID, c.Param("id"), organizationdomain.AddMemberRequest{
		UserID: strings.TrimSpace(req.UserID),
		RoleID: strings.TrimSpace(req.RoleID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetMember(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	resp, err := s.organizationSvc.GetMember(c.Request.Context(), userID, c.Param("id"), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RemoveMember(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), userID, c.Param("id"), c.Param("user_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AssignRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.organizationSvc.AssignRole(c.Request.Context(), userID, c.Param("id"), c.Param("user_id"), strings.TrimSpace(req.RoleID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RevokeRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	err := s.organizationSvc.RevokeRole(c.Request.Context(), userID, c.Param("id"), c.Param("user_id"), c.Param("role_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
