package randsrc

// Scripted is a Source that replays a fixed list of uniform draws, then
// returns Fallback forever. Bernoulli(p) consumes one draw and succeeds when
// it is below p, matching Rand.
//
// It exists so tests can force a specific neuron to fire at a specific step.
type Scripted struct {
	Values   []float64
	Fallback float64

	draws int
}

// NewScripted returns a Scripted source.
func NewScripted(fallback float64, values ...float64) *Scripted {
	return &Scripted{Values: values, Fallback: fallback}
}

// Uniform returns the next scripted value.
func (s *Scripted) Uniform() float64 {
	i := s.draws
	s.draws++
	if i < len(s.Values) {
		return s.Values[i]
	}
	return s.Fallback
}

// Bernoulli consumes one scripted value.
func (s *Scripted) Bernoulli(p float64) bool {
	return s.Uniform() < p
}

// Draws reports how many values have been consumed.
func (s *Scripted) Draws() int {
	return s.draws
}
