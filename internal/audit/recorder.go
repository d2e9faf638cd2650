package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
)

const (
	TargetOrganization = "organization"
	TargetMember       = "member"
	TargetRole         = "role"
	TargetInvitation   = "invitation"
)

// Recorder writes every delivered organization event to the audit trail.
// Entries reuse the outbox id, so redelivery does not duplicate them.
type Recorder struct {
	svc auditdomain.Service
}

func NewRecorder(svc auditdomain.Service) *Recorder {
	return &Recorder{svc: svc}
}

func (r *Recorder) Name() string { return "audit.recorder" }

func (r *Recorder) Handle(ctx context.Context, msg event.Message) error {
	if msg.Event == nil {
		return nil
	}
	metadata, err := eventMetadata(msg.Event)
	if err != nil {
		return err
	}
	targetType, targetID := target(msg.Event)

	return r.svc.Record(ctx, auditdomain.RecordRequest{
		ID:         snowflake.ID(msg.ID),
		OrgID:      msg.OrganizationID,
		Action:     msg.Topic,
		TargetType: targetType,
		TargetID:   &targetID,
		Metadata:   metadata,
		OccurredAt: msg.Event.OccurredAt(),
	})
}

func target(evt orgdomain.Event) (string, string) {
	switch e := evt.(type) {
	case orgdomain.MemberAdded:
		return TargetMember, e.UserID.String()
	case orgdomain.MemberRemoved:
		return TargetMember, e.UserID.String()
	case orgdomain.MemberRoleAssigned:
		return TargetMember, e.UserID.String()
	case orgdomain.MemberRoleRevoked:
		return TargetMember, e.UserID.String()
	case orgdomain.RoleCreated:
		return TargetRole, e.RoleID.String()
	case orgdomain.RoleUpdated:
		return TargetRole, e.RoleID.String()
	case orgdomain.RoleDeleted:
		return TargetRole, e.RoleID.String()
	case orgdomain.RolePermissionsUpdated:
		return TargetRole, e.RoleID.String()
	case orgdomain.InvitationCreated:
		return TargetInvitation, e.InvitationID.String()
	case orgdomain.InvitationAccepted:
		return TargetInvitation, e.InvitationID.String()
	case orgdomain.InvitationRejected:
		return TargetInvitation, e.InvitationID.String()
	case orgdomain.InvitationExpired:
		return TargetInvitation, e.InvitationID.String()
	default:
		return TargetOrganization, evt.AggregateID().String()
	}
}

// eventMetadata flattens the event body without the shared header fields.
func eventMetadata(evt orgdomain.Event) (map[string]any, error) {
	raw, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode audit metadata: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode audit metadata: %w", err)
	}
	delete(out, "organization_id")
	delete(out, "occurred_at")
	return out, nil
}
