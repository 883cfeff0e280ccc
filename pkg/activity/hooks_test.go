package activity

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func pageEvent() Event {
	return Event{Verb: VerbPageChanged, ObjectType: ObjectTypeTable, ObjectID: "orders"}
}

func TestNormalizeTrimsCopiesAndStamps(t *testing.T) {
	meta := map[string]any{"target": "amount"}
	recipients := []string{" ops ", "audit"}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Event{
		Verb:       " grid.sort.changed ",
		ActorID:    " admin-7 ",
		ObjectType: " grid.table ",
		ObjectID:   " orders ",
		Channel:    " grid ",
		Recipients: recipients,
		Metadata:   meta,
	}

	got := Normalize(in, func() time.Time { return at })

	if got.Verb != VerbSortChanged || got.ObjectType != ObjectTypeTable || got.ObjectID != "orders" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "admin-7" || got.Channel != "grid" || !got.OccurredAt.Equal(at) {
		t.Fatalf("unexpected trimming or stamp: %+v", got)
	}
	got.Metadata["target"] = "changed"
	got.Recipients[0] = "changed"
	if meta["target"] != "amount" || recipients[0] != " ops " {
		t.Fatalf("normalize must copy metadata and recipients")
	}

	earlier := at.Add(-time.Hour)
	in.OccurredAt = earlier
	if stamped := Normalize(in, time.Now); !stamped.OccurredAt.Equal(earlier) {
		t.Fatalf("expected explicit timestamp kept, got %v", stamped.OccurredAt)
	}
}

func TestHooksDropInvalidEvents(t *testing.T) {
	capture := &CaptureHook{}
	cases := []Event{
		{},
		{Verb: VerbReset, ObjectType: ObjectTypeTable},
		{Verb: " ", ObjectType: ObjectTypeTable, ObjectID: "orders"},
	}
	for _, event := range cases {
		if err := (Hooks{capture}).Notify(context.Background(), event); err != nil {
			t.Fatalf("notify %+v: %v", event, err)
		}
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected invalid events dropped, got %d", len(capture.Events))
	}
}

func TestHooksRunAllAndReportFailures(t *testing.T) {
	capture := &CaptureHook{}
	sinkDown := errors.New("sink down")
	var sawContext bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			sawContext = ctx != nil
			return nil
		}),
		HookFunc(func(context.Context, Event) error { return sinkDown }),
		nil,
		capture,
	}

	//nolint:staticcheck // a nil context falls back to Background
	err := hooks.Notify(nil, pageEvent())
	if !errors.Is(err, sinkDown) {
		t.Fatalf("expected sink failure, got %v", err)
	}
	var hookErr *HookError
	if !errors.As(err, &hookErr) || hookErr.Index != 1 || hookErr.Verb != VerbPageChanged {
		t.Fatalf("expected hook error for index 1, got %v", err)
	}
	if !sawContext || len(capture.Events) != 1 {
		t.Fatalf("expected every hook to run, context=%v captured=%d", sawContext, len(capture.Events))
	}
	if (Hooks{nil}).Enabled() {
		t.Fatalf("hooks holding only nil must be disabled")
	}
}

func TestEmitterDefaults(t *testing.T) {
	capture := &CaptureHook{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if NewEmitter(Hooks{capture}, Config{}).Enabled() {
		t.Fatalf("expected emitter disabled without Enabled")
	}
	if NewEmitter(Hooks{nil}, Config{Enabled: true}).Enabled() {
		t.Fatalf("expected emitter disabled without hooks")
	}

	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Now: func() time.Time { return at }})
	if err := emitter.Emit(context.Background(), pageEvent()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	explicit := pageEvent()
	explicit.Channel = "audit"
	if err := emitter.Emit(context.Background(), explicit); err != nil {
		t.Fatalf("emit: %v", err)
	}

	if len(capture.Events) != 2 {
		t.Fatalf("expected two events, got %d", len(capture.Events))
	}
	if capture.Events[0].Channel != DefaultChannel || !capture.Events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected default channel and clock, got %+v", capture.Events[0])
	}
	if capture.Events[1].Channel != "audit" {
		t.Fatalf("expected explicit channel kept, got %q", capture.Events[1].Channel)
	}
}

func TestEmitterVerbFilter(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Verbs: []string{VerbSortChanged, VerbReset}})

	if emitter.Emits(VerbPageChanged) || !emitter.Emits(VerbReset) {
		t.Fatalf("unexpected verb filter")
	}
	for _, verb := range []string{VerbPageChanged, VerbSortChanged, VerbReset} {
		event := pageEvent()
		event.Verb = verb
		if err := emitter.Emit(context.Background(), event); err != nil {
			t.Fatalf("emit %s: %v", verb, err)
		}
	}
	if got := capture.Verbs(); !reflect.DeepEqual(got, []string{VerbSortChanged, VerbReset}) {
		t.Fatalf("unexpected verbs %v", got)
	}
	capture.Reset()
	if len(capture.Verbs()) != 0 {
		t.Fatalf("expected capture reset")
	}
}
