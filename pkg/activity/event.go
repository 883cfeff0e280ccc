// Package activity describes grid interaction events and fans them out to
// hooks such as audit sinks and analytics pipelines.
package activity

import (
	"strings"
	"time"
)

// Event is one interaction. Identity fields are plain strings so hooks
// decide how to parse them.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Valid reports whether the event names a verb and an object.
func (e Event) Valid() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// verb returns the trimmed verb.
func (e Event) verb() string {
	return strings.TrimSpace(e.Verb)
}

// NormalizeEvent is Normalize with the wall clock.
func NormalizeEvent(event Event) Event {
	return Normalize(event, time.Now)
}

// Normalize trims string fields, copies metadata and recipients, and stamps
// OccurredAt from now when it is zero.
func Normalize(event Event, now func() time.Time) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID,
		&out.ObjectType, &out.ObjectID, &out.Channel, &out.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}
	out.Metadata = cloneMap(event.Metadata)
	out.Recipients = nil
	if len(event.Recipients) > 0 {
		out.Recipients = append([]string(nil), event.Recipients...)
	}
	if out.OccurredAt.IsZero() && now != nil {
		out.OccurredAt = now()
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
