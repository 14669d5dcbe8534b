package teleop

// DefaultAlpha is the smoothing factor used when none is configured.
// The hand-tuned sweet spot sits between 0.2 (heavy smoothing, visible
// lag) and 0.3 (light smoothing, jitter leaks through).
const DefaultAlpha = 0.25

// Smoother applies a per-channel exponential moving average to position
// samples: smoothed = alpha*current + (1-alpha)*smoothed. It filters the
// sensor jitter a hand-held leader arm picks up before the positions are
// replayed on the follower.
type Smoother[K comparable] struct {
	alpha float64
	state map[K]float64
}

// NewSmoother creates a smoother with the given alpha in (0, 1].
// Alpha 1 disables smoothing. Out-of-range values fall back to DefaultAlpha.
func NewSmoother[K comparable](alpha float64) *Smoother[K] {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Smoother[K]{
		alpha: alpha,
		state: make(map[K]float64),
	}
}

// Alpha returns the configured smoothing factor.
func (s *Smoother[K]) Alpha() float64 {
	return s.alpha
}

// Apply folds one sample set into the filter state and returns the
// smoothed values. The first sample for a channel passes through
// unchanged to avoid a slow ramp from zero.
func (s *Smoother[K]) Apply(sample map[K]float64) map[K]float64 {
	out := make(map[K]float64, len(sample))
	for k, v := range sample {
		prev, seen := s.state[k]
		if !seen {
			s.state[k] = v
			out[k] = v
			continue
		}
		smoothed := s.alpha*v + (1-s.alpha)*prev
		s.state[k] = smoothed
		out[k] = smoothed
	}
	return out
}

// Reset clears the filter state, so the next sample passes through.
func (s *Smoother[K]) Reset() {
	clear(s.state)
}
