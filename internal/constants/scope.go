package constants

// Scope selects where the run store lives: next to the project or in the
// user's home directory.
type Scope string

const (
	// ScopeLocal keeps runs in <root>/.lifnet
	ScopeLocal Scope = "local"

	// ScopeGlobal keeps runs in ~/.lifnet
	ScopeGlobal Scope = "global"
)

// Valid returns true if the scope is a recognized value.
func (s Scope) Valid() bool {
	switch s {
	case ScopeLocal, ScopeGlobal:
		return true
	}
	return false
}

// String returns the string representation of the scope.
func (s Scope) String() string {
	return string(s)
}
