package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/identity/internal/audit"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	auditrepository "github.com/smallbiznis/identity/internal/audit/repository"
	auditservice "github.com/smallbiznis/identity/internal/audit/service"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/observability"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"github.com/smallbiznis/identity/internal/organization/repository"
	"github.com/smallbiznis/identity/internal/organization/service"
	"github.com/smallbiznis/identity/internal/ratelimit"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testServer struct {
	engine *gin.Engine
	authz  authorization.Service
	relay  *event.Relay
}

func newTestServer(t *testing.T, limiter *ratelimit.InvitationLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(repository.Models()...))
	require.NoError(t, conn.AutoMigrate(event.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.NewRepository(conn)
	svc := service.NewService(service.Params{
		DB:        conn,
		Repo:      repo,
		Publisher: event.NewOutboxPublisher(conn, node, nil),
		Clock:     clock.NewFakeClock(testNow),
		Log:       zap.NewNop(),
		Config:    config.Config{MaxConflictRetries: 3},
	})

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer, Repo: repo})

	require.NoError(t, conn.AutoMigrate(auditdomain.Models()...))
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(testNow),
		Repo:  auditrepository.Provide(),
	})
	relay := event.NewRelay(event.RelayParams{
		DB:       conn,
		Clock:    clock.NewFakeClock(testNow),
		Log:      zap.NewNop(),
		Handlers: []event.Handler{audit.NewRecorder(auditSvc)},
	})

	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:             engine,
		Log:             zap.NewNop(),
		OrganizationSvc: svc,
		AuthzSvc:        authz,
		AuditSvc:        auditSvc,
		AcceptLimiter:   limiter,
	})
	return &testServer{engine: engine, authz: authz, relay: relay}
}

func (s *testServer) do(t *testing.T, method, path string, user organizationdomain.UserID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if !user.IsZero() {
		req.Header.Set(HeaderUserID, user.String())
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func newUser() organizationdomain.UserID {
	return organizationdomain.UserID{UUID: uuid.New()}
}

func (s *testServer) createOrg(t *testing.T, owner organizationdomain.UserID, name string) organizationdomain.OrganizationResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/organizations", owner, gin.H{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[organizationdomain.OrganizationResponse](t, rec)
}

func (s *testServer) roleByName(t *testing.T, owner organizationdomain.UserID, orgID, name string) organizationdomain.RoleResponse {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/organizations/"+orgID+"/roles", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roles := decode[struct {
		Data []organizationdomain.RoleResponse `json:"data"`
	}](t, rec)
	for _, r := range roles.Data {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("role %q not found", name)
	return organizationdomain.RoleResponse{}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", organizationdomain.UserID{}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActorRequired(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/organizations", organizationdomain.UserID{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorResponse](t, rec).Error.Type)

	req := httptest.NewRequest(http.MethodGet, "/api/organizations", nil)
	req.Header.Set(HeaderUserID, "not-a-uuid")
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrganizationLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	owner := newUser()

	org := s.createOrg(t, owner, "Acme")
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, owner.String(), org.OwnerUserID)
	assert.True(t, org.IsActive)

	rec := s.do(t, http.MethodGet, "/api/organizations", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Data []organizationdomain.OrganizationListResponseItem `json:"data"`
	}](t, rec)
	require.Len(t, list.Data, 1)
	assert.True(t, list.Data[0].IsOwner)

	logo := "https://cdn.example.com/acme.png"
	rec = s.do(t, http.MethodPatch, "/api/organizations/"+org.ID, owner, gin.H{"name": "Acme Corp", "logo_url": logo})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[organizationdomain.OrganizationResponse](t, rec)
	assert.Equal(t, "Acme Corp", updated.Name)
	assert.Equal(t, logo, updated.LogoURL)

	rec = s.do(t, http.MethodPost, "/api/organizations/"+org.ID+"/deactivate", owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/organizations/"+org.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[organizationdomain.OrganizationResponse](t, rec).IsActive)

	rec = s.do(t, http.MethodPost, "/api/organizations/"+org.ID+"/activate", owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOrganizationErrors(t *testing.T) {
	s := newTestServer(t, nil)
	owner := newUser()
	org := s.createOrg(t, owner, "Acme")

	rec := s.do(t, http.MethodPost, "/api/organizations", owner, gin.H{"name": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decode[errorResponse](t, rec).Error
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "name", payload.Errors[0].Field)
	assert.Equal(t, "invalid_name", payload.Errors[0].Code)

	req := httptest.NewRequest(http.MethodPost, "/api/organizations", bytes.NewBufferString("{"))
	req.Header.Set(HeaderUserID, owner.String())
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/organizations/"+org.ID, newUser(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/organizations/"+uuid.NewString(), owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "organization_not_found", decode[errorResponse](t, rec).Error.Type)

	rec = s.do(t, http.MethodGet, "/api/organizations/nope", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRolesAndMembers(t *testing.T) {
	s := newTestServer(t, nil)
	owner := newUser()
	org := s.createOrg(t, owner, "Acme")
	base := "/api/organizations/" + org.ID

	rec := s.do(t, http.MethodPost, base+"/roles", owner, gin.H{"name": "Support", "color": "#ff8800"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	support := decode[organizationdomain.RoleResponse](t, rec)
	assert.False(t, support.IsSystem)

	rec = s.do(t, http.MethodPost, base+"/roles", owner, gin.H{"name": "Support"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_role_name", decode[errorResponse](t, rec).Error.Type)

	rec = s.do(t, http.MethodPut, base+"/roles/"+support.ID+"/permissions", owner, gin.H{
		"permissions": []string{organizationdomain.PermissionMembersView},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{organizationdomain.PermissionMembersView}, decode[organizationdomain.RoleResponse](t, rec).Permissions)

	memberRole := s.roleByName(t, owner, org.ID, organizationdomain.RoleMember)
	assert.True(t, memberRole.IsSystem)
	rec = s.do(t, http.MethodDelete, base+"/roles/"+memberRole.ID, owner, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "system_role_immutable", decode[errorResponse](t, rec).Error.Type)

	agent := newUser()
	rec = s.do(t, http.MethodPost, base+"/members", owner, gin.H{"user_id": agent.String(), "role_id": support.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	member := decode[organizationdomain.MemberResponse](t, rec)
	assert.Equal(t, agent.String(), member.UserID)
	require.Len(t, member.Roles, 1)

	rec = s.do(t, http.MethodDelete, base+"/roles/"+support.ID, owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "role_in_use", decode[errorResponse](t, rec).Error.Type)

	rec = s.do(t, http.MethodPost, base+"/members/"+agent.String()+"/roles", owner, gin.H{"role_id": memberRole.ID})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, base+"/members/"+agent.String()+"/roles/"+support.ID, owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/members/"+agent.String(), agent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[organizationdomain.MemberResponse](t, rec)
	require.Len(t, got.Roles, 1)
	assert.Equal(t, organizationdomain.RoleMember, got.Roles[0].Name)

	rec = s.do(t, http.MethodGet, base+"/members?page_size=1", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Data []organizationdomain.MemberResponse `json:"data"`
	}](t, rec)
	assert.Len(t, page.Data, 1)

	rec = s.do(t, http.MethodGet, base+"/members?page_token=!!!", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, base+"/members/"+owner.String(), owner, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "owner_cannot_be_removed", decode[errorResponse](t, rec).Error.Type)

	rec = s.do(t, http.MethodDelete, base+"/members/"+agent.String(), owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, base+"/members/"+agent.String(), owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvitations(t *testing.T) {
	s := newTestServer(t, nil)
	owner := newUser()
	org := s.createOrg(t, owner, "Acme")
	base := "/api/organizations/" + org.ID
	memberRole := s.roleByName(t, owner, org.ID, organizationdomain.RoleMember)

	rec := s.do(t, http.MethodPost, base+"/invitations", owner, gin.H{"email": "Dana@Example.com", "role_id": memberRole.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[organizationdomain.InvitationResponse](t, rec)
	assert.Equal(t, string(organizationdomain.InvitationStatusPending), inv.Status)

	rec = s.do(t, http.MethodPost, base+"/invitations", owner, gin.H{"email": "dana@example.com", "role_id": memberRole.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/invitations", owner, gin.H{"email": "not-an-email", "role_id": memberRole.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/invitations", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Data []organizationdomain.InvitationResponse `json:"data"`
	}](t, rec)
	assert.Len(t, list.Data, 1)

	rec = s.do(t, http.MethodPost, base+"/invitations/"+inv.ID+"/reject", owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/invitations/"+inv.ID+"/reject", owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invitation_already_resolved", decode[errorResponse](t, rec).Error.Type)

	rec = s.do(t, http.MethodGet, base+"/invitations/"+inv.ID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(organizationdomain.InvitationStatusRejected), decode[organizationdomain.InvitationResponse](t, rec).Status)
}

func TestAcceptInvitationByTokenIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := ratelimit.NewInvitationLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:               true,
		InvitationAcceptRate:  0.01,
		InvitationAcceptBurst: 1,
	}}, client)
	require.NoError(t, err)

	s := newTestServer(t, limiter)
	user := newUser()

	rec := s.do(t, http.MethodPost, "/api/invitations/accept", user, gin.H{"token": "unknown"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/invitations/accept", user, gin.H{"token": "unknown"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Buckets are per caller.
	rec = s.do(t, http.MethodPost, "/api/invitations/accept", newUser(), gin.H{"token": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccessEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	owner := newUser()
	org := s.createOrg(t, owner, "Acme")
	base := "/api/organizations/" + org.ID

	orgID, err := organizationdomain.ParseOrganizationID(org.ID)
	require.NoError(t, err)
	require.NoError(t, s.authz.Sync(t.Context(), orgID))

	type check struct {
		Allowed bool `json:"allowed"`
	}

	rec := s.do(t, http.MethodGet, base+"/access?permission="+organizationdomain.PermissionMembersManage, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[check](t, rec).Allowed)

	stranger := newUser()
	rec = s.do(t, http.MethodGet, base+"/access?permission="+organizationdomain.PermissionMembersManage, stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[check](t, rec).Allowed)

	rec = s.do(t, http.MethodGet, base+"/access", stranger, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[check](t, rec).Allowed)

	rec = s.do(t, http.MethodGet, base+"/access", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[check](t, rec).Allowed)

	rec = s.do(t, http.MethodGet, "/api/me/access", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	facts := decode[struct {
		Data []organizationdomain.AccessFacts `json:"data"`
	}](t, rec)
	require.Len(t, facts.Data, 1)
	assert.True(t, facts.Data[0].IsOwner)
	assert.Equal(t, "Acme", facts.Data[0].OrganizationName)

	rec = s.do(t, http.MethodGet, "/api/permissions", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decode[struct {
		Data []organizationdomain.Permission `json:"data"`
	}](t, rec)
	assert.NotEmpty(t, catalog.Data)
}

func TestMapErrorClassification(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{organizationdomain.ErrInvalidEmail, http.StatusBadRequest, "validation"},
		{organizationdomain.ErrConcurrencyConflict, http.StatusConflict, "domain"},
		{organizationdomain.ErrLastRoleCannotBeRevoked, http.StatusUnprocessableEntity, "domain"},
		{authorization.ErrForbidden, http.StatusForbidden, "auth"},
		{ErrTooManyRequests, http.StatusTooManyRequests, "domain"},
		{assert.AnError, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		kind, code := classifyErrorForLog(tc.err)
		assert.Equal(t, tc.kind, kind, tc.err.Error())
		assert.Equal(t, payload.Type, code)
	}
}

func TestAuditLogs(t *testing.T) {
	s := newTestServer(t, nil)
	owner := newUser()
	org := s.createOrg(t, owner, "Acme")
	base := "/api/organizations/" + org.ID

	plain := newUser()
	memberRole := s.roleByName(t, owner, org.ID, organizationdomain.RoleMember)
	rec := s.do(t, http.MethodPost, base+"/members", owner, gin.H{"user_id": plain.String(), "role_id": memberRole.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	delivered, err := s.relay.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	rec = s.do(t, http.MethodGet, base+"/audit-logs", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logs := decode[struct {
		Data []auditdomain.AuditLog `json:"data"`
	}](t, rec)
	require.Len(t, logs.Data, 2)
	actions := []string{logs.Data[0].Action, logs.Data[1].Action}
	assert.ElementsMatch(t, []string{organizationdomain.EventOrganizationCreated, organizationdomain.EventMemberAdded}, actions)
	for _, entry := range logs.Data {
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, owner.String(), *entry.ActorID)
	}

	rec = s.do(t, http.MethodGet, base+"/audit-logs?action="+organizationdomain.EventMemberAdded, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Data []auditdomain.AuditLog `json:"data"`
	}](t, rec).Data, 1)

	rec = s.do(t, http.MethodGet, base+"/audit-logs", plain, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/audit-logs?start_at=yesterday", owner, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
