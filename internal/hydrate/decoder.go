// Package hydrate turns stored preference values back into typed values.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrEmpty is returned for blank payloads.
var ErrEmpty = errors.New("hydrate: empty payload")

// Decode stages reported in Error.Stage.
const (
	StageParse  = "parse"
	StageDecode = "decode"
	StageCheck  = "check"
)

// Context identifies the stored preference being decoded.
type Context struct {
	Key     string
	Kind    string
	Version int
}

// Error reports where decoding a key failed.
type Error struct {
	Key   string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hydrate: %s %q: %v", e.Stage, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Decoder decodes JSON values into V. The zero value decodes leniently.
type Decoder[V any] struct {
	strict bool
	checks []func(Context, V) error
}

// NewDecoder returns a lenient decoder.
func NewDecoder[V any]() *Decoder[V] {
	return &Decoder[V]{}
}

// Strict rejects object fields V does not declare.
func (d *Decoder[V]) Strict() *Decoder[V] {
	d.strict = true
	return d
}

// Check adds a validation run on every decoded value, in order.
func (d *Decoder[V]) Check(check func(Context, V) error) *Decoder[V] {
	if check != nil {
		d.checks = append(d.checks, check)
	}
	return d
}

// Decode parses raw into V and runs the checks.
func (d *Decoder[V]) Decode(ctx Context, raw []byte) (V, error) {
	var value V
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return value, &Error{Key: ctx.Key, Stage: StageParse, Err: ErrEmpty}
	}
	if !gjson.ValidBytes(raw) {
		return value, &Error{Key: ctx.Key, Stage: StageParse, Err: errors.New("invalid json")}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if d.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&value); err != nil {
		var zero V
		return zero, &Error{Key: ctx.Key, Stage: StageDecode, Err: err}
	}
	for _, check := range d.checks {
		if err := check(ctx, value); err != nil {
			var zero V
			return zero, &Error{Key: ctx.Key, Stage: StageCheck, Err: err}
		}
	}
	return value, nil
}
