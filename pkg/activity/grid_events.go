package activity

import (
	"strings"
	"time"
)

// ObjectTypeTable is the object type of every grid event.
const ObjectTypeTable = "grid.table"

// Verbs emitted for grid interactions.
const (
	VerbPageChanged      = "grid.page.changed"
	VerbPageSizeChanged  = "grid.page_size.changed"
	VerbSortChanged      = "grid.sort.changed"
	VerbFiltersChanged   = "grid.filters.changed"
	VerbReset            = "grid.reset"
	VerbRowSelected      = "grid.selection.row"
	VerbPageSelected     = "grid.selection.page"
	VerbAllSelected      = "grid.selection.all_matching"
	VerbSelectionCleared = "grid.selection.cleared"
	VerbColumnVisibility = "grid.column.visibility.changed"
	VerbColumnResized    = "grid.column.resized"
	VerbDensityChanged   = "grid.density.changed"
	VerbRowMoved         = "grid.row.moved"
	VerbRowExpanded      = "grid.row.expanded"
	VerbNoticeDismissed  = "grid.notice.dismissed"
	VerbRefetchRequested = "grid.refetch.requested"
)

// GridEventInput describes the common fields of grid interaction events.
type GridEventInput struct {
	ActorID  string
	UserID   string
	TenantID string
	// Table names the grid; it becomes the event object id.
	Table          string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	// Target is the row, column or notice the interaction acted on.
	Target   string
	OldValue any
	NewValue any
	// Fingerprint is the snapshot the interaction started from.
	Fingerprint string
	OccurredAt  time.Time
}

// BuildGridEvent constructs the event for verb on input.Table. The table
// name defaults to ObjectTypeTable. Target, Fingerprint and the old and new
// values are recorded in the metadata under "target", "snapshot",
// "old_value" and "new_value" when set.
func BuildGridEvent(verb string, input GridEventInput) Event {
	event := Normalize(Event{
		Verb:           verb,
		ActorID:        input.ActorID,
		UserID:         input.UserID,
		TenantID:       input.TenantID,
		ObjectType:     ObjectTypeTable,
		ObjectID:       input.Table,
		Channel:        input.Channel,
		DefinitionCode: input.DefinitionCode,
		Recipients:     input.Recipients,
		Metadata:       input.Metadata,
		OccurredAt:     input.OccurredAt,
	}, nil)
	if event.ObjectID == "" {
		event.ObjectID = ObjectTypeTable
	}

	set := func(key string, value any) {
		if event.Metadata == nil {
			event.Metadata = map[string]any{}
		}
		event.Metadata[key] = value
	}
	if target := strings.TrimSpace(input.Target); target != "" {
		set("target", target)
	}
	if input.Fingerprint != "" {
		set("snapshot", input.Fingerprint)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}
	return event
}
