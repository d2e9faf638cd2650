package authorization

import (
	"context"

	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
)

// topicsWithoutAccessChange never alter who may do what.
var topicsWithoutAccessChange = map[string]struct{}{
	orgdomain.EventOrganizationUpdated:       {},
	orgdomain.EventOrganizationLogoUpdated:   {},
	orgdomain.EventOrganizationBannerUpdated: {},
	orgdomain.EventInvitationCreated:         {},
	orgdomain.EventInvitationRejected:        {},
	orgdomain.EventInvitationExpired:         {},
}

// ProjectionHandler keeps the policy projection in step with organization
// events. It rebuilds from current state, so order and repeats do not matter.
type ProjectionHandler struct {
	svc Service
}

func NewProjectionHandler(svc Service) *ProjectionHandler {
	return &ProjectionHandler{svc: svc}
}

func (h *ProjectionHandler) Name() string { return "authorization.projection" }

func (h *ProjectionHandler) Handle(ctx context.Context, msg event.Message) error {
	if _, skip := topicsWithoutAccessChange[msg.Topic]; skip {
		return nil
	}
	return h.svc.Sync(ctx, msg.OrganizationID)
}
