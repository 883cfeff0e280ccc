package grid

// Pin is the side a column is pinned to. The empty value means unpinned.
type Pin string

const (
	PinNone  Pin = ""
	PinLeft  Pin = "left"
	PinRight Pin = "right"
)

// Valid reports whether p is a known pin side.
func (p Pin) Valid() bool {
	return p == PinNone || p == PinLeft || p == PinRight
}

// Column describes one known column. Column ids are the structural key for
// every column preference.
type Column struct {
	ID            string `json:"id" toml:"id" yaml:"id"`
	Header        string `json:"header,omitempty" toml:"header" yaml:"header"`
	Size          int    `json:"size,omitempty" toml:"size" yaml:"size"`
	MinSize       int    `json:"minSize,omitempty" toml:"min_size" yaml:"min_size"`
	MaxSize       int    `json:"maxSize,omitempty" toml:"max_size" yaml:"max_size"`
	DefaultHidden bool   `json:"defaultHidden,omitempty" toml:"default_hidden" yaml:"default_hidden"`
	AlwaysVisible bool   `json:"alwaysVisible,omitempty" toml:"always_visible" yaml:"always_visible"`
	DefaultPin    Pin    `json:"defaultPin,omitempty" toml:"default_pin" yaml:"default_pin"`
	Sortable      bool   `json:"sortable,omitempty" toml:"sortable" yaml:"sortable"`
}

// ColumnIDs returns the ids of columns in declaration order.
func ColumnIDs(columns []Column) []string {
	ids := make([]string, 0, len(columns))
	for _, column := range columns {
		if column.ID != "" {
			ids = append(ids, column.ID)
		}
	}
	return ids
}

// FindColumn returns the column with id.
func FindColumn(columns []Column, id string) (Column, bool) {
	for _, column := range columns {
		if column.ID == id {
			return column, true
		}
	}
	return Column{}, false
}
