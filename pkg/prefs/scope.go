package prefs

// Scope locates the preferences of one table for one user. Features take a
// Scope and build their own Store per preference kind.
type Scope struct {
	Backend Backend
	Table   string
	// User is optional; empty scopes are shared by every user of the table.
	User    string
	Options []Option
}

// Enabled reports whether the scope can persist anything.
func (s Scope) Enabled() bool {
	return s.Backend != nil && s.Table != ""
}

// Key returns the storage key of kind within the scope.
func (s Scope) Key(kind string) (string, error) {
	return Key{Table: s.Table, Kind: kind, User: s.User}.Identifier()
}
