// Package usersink forwards grid activity events to a go-users ActivitySink.
package usersink

import (
	"context"
	"slices"
	"time"

	"github.com/goliatone/go-grid/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook adapts activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// Tenant is used when an event carries no tenant id.
	Tenant uuid.UUID
	// Verbs limits forwarding to the listed verbs. Empty forwards all.
	Verbs []string
	// Now stamps records whose event has no timestamp.
	Now func() time.Time
}

var _ activity.Hook = Hook{}

// Notify forwards the event to the sink when it is valid and its verb is
// allowed.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	now := h.Now
	if now == nil {
		now = time.Now
	}
	event = activity.Normalize(event, now)
	if !event.Valid() {
		return nil
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event, h.Tenant))
}

// Record maps a normalized event into an ActivityRecord. Identity fields
// that are not UUIDs land in the record data under "<field>_ref"; tenant
// replaces a missing tenant id.
func Record(event activity.Event, tenant uuid.UUID) usertypes.ActivityRecord {
	data := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		data[key] = value
	}

	record := usertypes.ActivityRecord{
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	identities := []struct {
		raw string
		ref string
		dst *uuid.UUID
	}{
		{event.ActorID, "actor_ref", &record.ActorID},
		{event.UserID, "user_ref", &record.UserID},
		{event.TenantID, "tenant_ref", &record.TenantID},
	}
	for _, identity := range identities {
		if identity.raw == "" {
			continue
		}
		if id, err := uuid.Parse(identity.raw); err == nil {
			*identity.dst = id
			continue
		}
		data[identity.ref] = identity.raw
	}
	if record.TenantID == uuid.Nil {
		record.TenantID = tenant
	}

	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = slices.Clone(event.Recipients)
	}
	if len(data) > 0 {
		record.Data = data
	}
	return record
}
