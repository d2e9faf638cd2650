package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smallbiznis/identity/internal/organization/domain"
)

var ErrUnknownTopic = errors.New("unknown_event_topic")

type decoder func(payload []byte) (domain.Event, error)

func decodeAs[T domain.Event](payload []byte) (domain.Event, error) {
	var evt T
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, err
	}
	return evt, nil
}

// Topics are the event type names, one per domain event.
var decoders = map[string]decoder{
	domain.EventOrganizationCreated:       decodeAs[domain.OrganizationCreated],
	domain.EventOrganizationUpdated:       decodeAs[domain.OrganizationUpdated],
	domain.EventOrganizationActivated:     decodeAs[domain.OrganizationActivated],
	domain.EventOrganizationDeactivated:   decodeAs[domain.OrganizationDeactivated],
	domain.EventOrganizationLogoUpdated:   decodeAs[domain.OrganizationLogoUpdated],
	domain.EventOrganizationBannerUpdated: decodeAs[domain.OrganizationBannerUpdated],
	domain.EventMemberAdded:               decodeAs[domain.MemberAdded],
	domain.EventMemberRemoved:             decodeAs[domain.MemberRemoved],
	domain.EventMemberRoleAssigned:        decodeAs[domain.MemberRoleAssigned],
	domain.EventMemberRoleRevoked:         decodeAs[domain.MemberRoleRevoked],
	domain.EventRoleCreated:               decodeAs[domain.RoleCreated],
	domain.EventRoleUpdated:               decodeAs[domain.RoleUpdated],
	domain.EventRoleDeleted:               decodeAs[domain.RoleDeleted],
	domain.EventRolePermissionsUpdated:    decodeAs[domain.RolePermissionsUpdated],
	domain.EventInvitationCreated:         decodeAs[domain.InvitationCreated],
	domain.EventInvitationAccepted:        decodeAs[domain.InvitationAccepted],
	domain.EventInvitationRejected:        decodeAs[domain.InvitationRejected],
	domain.EventInvitationExpired:         decodeAs[domain.InvitationExpired],
}

// Encode serializes an event for the outbox. The topic is the event type.
func Encode(evt domain.Event) (string, []byte, error) {
	if evt == nil {
		return "", nil, errors.New("nil event")
	}
	topic := evt.EventType()
	if _, ok := decoders[topic]; !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return "", nil, err
	}
	return topic, payload, nil
}

// Decode restores the concrete event stored under topic.
func Decode(topic string, payload []byte) (domain.Event, error) {
	dec, ok := decoders[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	evt, err := dec(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", topic, err)
	}
	return evt, nil
}
