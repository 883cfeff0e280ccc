package grid

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity classifies how a failure affects the grid.
type Severity string

const (
	// SeverityBlocking means no data can be shown; the consumer renders an
	// error state with retry.
	SeverityBlocking Severity = "blocking"
	// SeverityNonBlocking means the grid stays usable and the notice is
	// dismissible.
	SeverityNonBlocking Severity = "non-blocking"
)

// Notice is a reported failure or advisory surfaced on the table.
type Notice struct {
	ID       string         `json:"id"`
	Severity Severity       `json:"severity"`
	Source   string         `json:"source"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Err      error          `json:"-"`
	At       time.Time      `json:"at"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// Blocking reports whether the notice prevents rendering rows.
func (n Notice) Blocking() bool {
	return n.Severity == SeverityBlocking
}

func (n Notice) Error() string {
	if n.Err != nil {
		return fmt.Sprintf("grid: %s %s: %s: %v", n.Source, n.Code, n.Message, n.Err)
	}
	return fmt.Sprintf("grid: %s %s: %s", n.Source, n.Code, n.Message)
}

func (n Notice) Unwrap() error {
	return n.Err
}

// NewNotice builds a non-blocking notice with a fresh id.
func NewNotice(source, code, message string, err error) Notice {
	return Notice{
		ID:       uuid.NewString(),
		Severity: SeverityNonBlocking,
		Source:   source,
		Code:     code,
		Message:  message,
		Err:      err,
		At:       time.Now().UTC(),
	}
}

// Notices is the ordered set of active notices.
type Notices struct {
	mu    sync.Mutex
	items []Notice
}

// Add appends notice, assigning an id and timestamp when missing, and returns
// the stored copy.
func (n *Notices) Add(notice Notice) Notice {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	if notice.At.IsZero() {
		notice.At = time.Now().UTC()
	}
	if notice.Severity == "" {
		notice.Severity = SeverityNonBlocking
	}
	n.mu.Lock()
	n.items = append(n.items, notice)
	n.mu.Unlock()
	return notice
}

// Dismiss removes the notice with id. It reports whether one was removed.
func (n *Notices) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}

// DismissSource removes every notice raised by source with the given code.
// An empty code matches all codes.
func (n *Notices) DismissSource(source, code string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.items[:0]
	removed := 0
	for _, item := range n.items {
		if item.Source == source && (code == "" || item.Code == code) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	n.items = kept
	return removed
}

// List returns a copy of the active notices in report order.
func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.items))
	copy(out, n.items)
	return out
}

// Clear drops every notice.
func (n *Notices) Clear() {
	n.mu.Lock()
	n.items = nil
	n.mu.Unlock()
}
