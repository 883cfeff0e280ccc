package activity

import (
	"context"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "grid"

// Config controls emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// Verbs limits emission to the listed verbs. Empty emits every verb.
	Verbs []string
	// Now stamps events without OccurredAt. Defaults to time.Now.
	Now func() time.Time
}

// Emitter applies defaults and forwards events to hooks.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
	now     func() time.Time
}

// NewEmitter builds an emitter. It is enabled only when cfg.Enabled is set
// and at least one hook is non-nil.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	e := &Emitter{
		hooks:   hooks.compact(),
		channel: strings.TrimSpace(cfg.Channel),
		now:     cfg.Now,
	}
	e.enabled = cfg.Enabled && len(e.hooks) > 0
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	if e.now == nil {
		e.now = time.Now
	}
	if len(cfg.Verbs) > 0 {
		e.verbs = make(map[string]struct{}, len(cfg.Verbs))
		for _, verb := range cfg.Verbs {
			e.verbs[strings.TrimSpace(verb)] = struct{}{}
		}
	}
	return e
}

// Enabled reports whether Emit forwards anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emits reports whether an event with verb would be forwarded.
func (e *Emitter) Emits(verb string) bool {
	if !e.Enabled() {
		return false
	}
	if e.verbs == nil {
		return true
	}
	_, ok := e.verbs[strings.TrimSpace(verb)]
	return ok
}

// Emit forwards event, filling the channel and timestamp when missing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Emits(event.verb()) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, Normalize(event, e.now))
}
