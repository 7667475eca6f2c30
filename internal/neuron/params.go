package neuron

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/lifnet/internal/constants"
)

// Params are the simulation-wide constants shared by every neuron.
// Potentials are in mV, times in ms.
type Params struct {
	VRest      float64 `json:"v_rest"`
	VThreshold float64 `json:"v_threshold"`
	ERev       float64 `json:"e_rev"`

	// RM is the membrane resistance.
	RM float64 `json:"r_m"`

	TauM   float64 `json:"tau_m"`
	TauS   float64 `json:"tau_s"`
	TauRef float64 `json:"tau_ref"`

	// GStep is added to the conductance per received spike (conductance mode).
	GStep float64 `json:"g_s"`

	// IStep is added to the synaptic current per received spike (current mode).
	IStep float64 `json:"i_s"`

	// SpontaneousProb is the chance per step that an active neuron fires
	// without integrating.
	SpontaneousProb float64 `json:"p_s"`

	Dt      float64 `json:"dt"`
	Synapse Mode    `json:"synapse"`

	// derived, set by Update
	DtOverTauM      float64 `json:"-"`
	DtOverTauS      float64 `json:"-"`
	RefractorySteps int     `json:"-"`
}

// Defaults sets the reference population parameters.
func (p *Params) Defaults() {
	p.VRest = constants.DefaultVRest
	p.VThreshold = constants.DefaultVThreshold
	p.ERev = constants.DefaultERev
	p.RM = constants.DefaultRM
	p.TauM = constants.DefaultTauM
	p.TauS = constants.DefaultTauS
	p.TauRef = constants.DefaultTauRef
	p.GStep = constants.DefaultGStep
	p.IStep = constants.DefaultIStep
	p.SpontaneousProb = constants.DefaultSpontaneousProb
	p.Dt = constants.DefaultDt
	p.Synapse = ConductanceBased
	p.Update()
}

// Update recomputes the derived rate constants. Call it after changing
// any time constant or the timestep.
func (p *Params) Update() {
	if p.TauM > 0 {
		p.DtOverTauM = p.Dt / p.TauM
	}
	if p.TauS > 0 {
		p.DtOverTauS = p.Dt / p.TauS
	}
	p.RefractorySteps = StepsFor(p.TauRef, p.Dt)
}

// StepsFor converts a duration to a whole number of timesteps, truncating.
func StepsFor(duration, dt float64) int {
	if dt <= 0 || duration <= 0 {
		return 0
	}
	return int(math.Floor(duration/dt + constants.StepEpsilon))
}

// Validate reports every out-of-range parameter, joined into one error.
func (p *Params) Validate() error {
	var errs []error
	if !(p.Dt > 0) {
		errs = append(errs, fmt.Errorf("dt must be positive, got %v", p.Dt))
	}
	if !(p.TauM > 0) {
		errs = append(errs, fmt.Errorf("tau_m must be positive, got %v", p.TauM))
	}
	if !(p.TauS > 0) {
		errs = append(errs, fmt.Errorf("tau_s must be positive, got %v", p.TauS))
	}
	if p.TauRef < 0 {
		errs = append(errs, fmt.Errorf("tau_ref must be non-negative, got %v", p.TauRef))
	}
	if p.SpontaneousProb < 0 || p.SpontaneousProb > 1 || math.IsNaN(p.SpontaneousProb) {
		errs = append(errs, fmt.Errorf("p_s must be between 0 and 1, got %v", p.SpontaneousProb))
	}
	if !(p.VThreshold > p.VRest) {
		errs = append(errs, fmt.Errorf("v_threshold (%v) must be above v_rest (%v)", p.VThreshold, p.VRest))
	}
	if p.GStep < 0 {
		errs = append(errs, fmt.Errorf("g_s must be non-negative, got %v", p.GStep))
	}
	if p.IStep < 0 {
		errs = append(errs, fmt.Errorf("i_s must be non-negative, got %v", p.IStep))
	}
	if p.Synapse != ConductanceBased && p.Synapse != CurrentBased {
		errs = append(errs, fmt.Errorf("invalid synapse mode %d", int(p.Synapse)))
	}
	return errors.Join(errs...)
}
