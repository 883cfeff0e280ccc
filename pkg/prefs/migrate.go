package prefs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Step rewrites a raw JSON value.
type Step func(raw []byte, schema Schema) ([]byte, error)

// Migration upgrades a value from one schema version to the next.
type Migration struct {
	From        int
	To          int
	Description string
	Steps       []Step
}

// Migrator applies an ordered chain of migrations.
type Migrator struct {
	migrations []Migration
}

// NewMigrator registers migrations.
func NewMigrator(migrations ...Migration) *Migrator {
	m := &Migrator{}
	for _, migration := range migrations {
		m.Register(migration)
	}
	return m
}

// Register adds a migration, keeping the chain sorted by source version.
func (m *Migrator) Register(migration Migration) {
	m.migrations = append(m.migrations, migration)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].From < m.migrations[j].From
	})
}

// Migrate runs every migration whose range lies within [from, to]. Running it
// with from == to is a no-op.
func (m *Migrator) Migrate(from, to int, raw json.RawMessage, schema Schema) (json.RawMessage, error) {
	if from >= to {
		return raw, nil
	}
	current := from
	data := []byte(raw)
	for _, migration := range m.migrations {
		if migration.From < current || migration.To > to || migration.To <= migration.From {
			continue
		}
		if migration.From != current {
			return nil, fmt.Errorf("prefs: no migration from version %d", current)
		}
		for _, step := range migration.Steps {
			if step == nil {
				continue
			}
			next, err := step(data, schema)
			if err != nil {
				return nil, fmt.Errorf("prefs: migration %d->%d (%s): %w", migration.From, migration.To, migration.Description, err)
			}
			data = next
		}
		current = migration.To
	}
	return json.RawMessage(data), nil
}

// Func exposes the chain as a Definition.Migrate.
func (m *Migrator) Func() MigrateFunc {
	return m.Migrate
}

// RenameKey moves the value at oldKey to newKey when present.
func RenameKey(oldKey, newKey string) Step {
	return func(raw []byte, _ Schema) ([]byte, error) {
		value := gjson.GetBytes(raw, escapeKey(oldKey))
		if !value.Exists() {
			return raw, nil
		}
		out, err := sjson.SetRawBytes(raw, escapeKey(newKey), []byte(value.Raw))
		if err != nil {
			return nil, err
		}
		return sjson.DeleteBytes(out, escapeKey(oldKey))
	}
}

// DeleteKey removes key when present.
func DeleteKey(key string) Step {
	return func(raw []byte, _ Schema) ([]byte, error) {
		if !gjson.GetBytes(raw, escapeKey(key)).Exists() {
			return raw, nil
		}
		return sjson.DeleteBytes(raw, escapeKey(key))
	}
}

// SetDefault assigns value to key only when the key is absent.
func SetDefault(key string, value any) Step {
	return func(raw []byte, _ Schema) ([]byte, error) {
		if gjson.GetBytes(raw, escapeKey(key)).Exists() {
			return raw, nil
		}
		return sjson.SetBytes(raw, escapeKey(key), value)
	}
}

// DropUnknownColumns removes object keys that are not known column ids.
// Non-object values pass through untouched.
func DropUnknownColumns() Step {
	return func(raw []byte, schema Schema) ([]byte, error) {
		parsed := gjson.ParseBytes(raw)
		if !parsed.IsObject() {
			return raw, nil
		}
		var unknown []string
		parsed.ForEach(func(key, _ gjson.Result) bool {
			if !schema.Known(key.String()) {
				unknown = append(unknown, key.String())
			}
			return true
		})
		out := raw
		for _, key := range unknown {
			next, err := sjson.DeleteBytes(out, escapeKey(key))
			if err != nil {
				return nil, err
			}
			out = next
		}
		return out, nil
	}
}

// WrapValue turns a bare value into an object under key, e.g. a stored
// "compact" into {"density":"compact"}. Objects pass through.
func WrapValue(key string) Step {
	return func(raw []byte, _ Schema) ([]byte, error) {
		parsed := gjson.ParseBytes(raw)
		if parsed.IsObject() {
			return raw, nil
		}
		return sjson.SetRawBytes([]byte(`{}`), escapeKey(key), []byte(parsed.Raw))
	}
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`:`, `\:`,
)

func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}
