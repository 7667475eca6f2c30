package neuron

import (
	"fmt"
	"strings"
)

// Mode selects the synaptic model used by every neuron in a run.
type Mode int

const (
	// ConductanceBased synapses open a conductance that drives the membrane
	// toward the reversal potential.
	ConductanceBased Mode = iota

	// CurrentBased synapses inject a current independent of the membrane
	// potential.
	CurrentBased
)

// String returns the config spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ConductanceBased:
		return "conductance"
	case CurrentBased:
		return "current"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "conductance" or "current" (case-insensitive, an optional
// "-based" suffix is allowed).
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "-based") {
	case "conductance", "cond", "":
		return ConductanceBased, nil
	case "current", "cur":
		return CurrentBased, nil
	default:
		return 0, fmt.Errorf("unknown synapse mode %q (valid: conductance, current)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ConductanceBased, CurrentBased:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("invalid synapse mode %d", int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
