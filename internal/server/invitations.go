package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"go.uber.org/zap"
)

type createInvitationRequest struct {
	Email     string     `json:"email"`
	RoleID    string     `json:"role_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type acceptInvitationByTokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) ListInvitations(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	items, err := s.organizationSvc.ListInvitations(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateInvitation(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.CreateInvitation(c.Request.Context(), userID, c.Param("id"), organizationdomain.InvitationRequest{
		Email:     strings.TrimSpace(req.Email),
		RoleID:    strings.TrimSpace(req.RoleID),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) GetInvitation(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	resp, err := s.organizationSvc.GetInvitation(c.Request.Context(), userID, c.Param("id"), c.Param("invitation_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	resp, err := s.organizationSvc.AcceptInvitation(c.Request.Context(), userID, c.Param("id"), c.Param("invitation_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RejectInvitation(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	if err := s.organizationSvc.RejectInvitation(c.Request.Context(), userID, c.Param("id"), c.Param("invitation_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AcceptInvitationByToken redeems the emailed link. Calls are throttled per
// user since the token is the only secret.
func (s *Server) AcceptInvitationByToken(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}

	result, err := s.acceptLimiter.AllowAccept(c.Request.Context(), userID.String())
	if err != nil {
		// Fail open; the limiter is best effort.
		s.log.Warn("invitation accept rate limit unavailable", zap.Error(err))
	} else if !result.Allowed {
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
		}
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	var req acceptInvitationByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.AcceptInvitationByToken(c.Request.Context(), userID, strings.TrimSpace(req.Token))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
