package feed

// lowCountCutoff is the listener count below which spike detection becomes
// progressively less sensitive, suppressing noise from tiny populations.
const lowCountCutoff = 50

// thresholdFloor is the lowest value the adaptive threshold may decay to for
// fast-rising feeds.
const thresholdFloor = 0.01

// Params holds the tuning constants for spike detection and baseline
// correction. The zero value is not usable; the config package supplies
// working defaults.
type Params struct {
	// SpikeBase is the base fraction of the raw value that the jump over the
	// moving average must reach to count as a spike.
	SpikeBase float64

	// LowValueSensitivity raises the threshold for feeds below lowCountCutoff
	// listeners, per listener of shortfall.
	LowValueSensitivity float64

	// DecayRate and DecayPeriod lower the threshold for feeds whose count is
	// rising quickly: the threshold drops by DecayRate for every DecayPeriod
	// of baseline delta, clamped at thresholdFloor.
	DecayRate   float64
	DecayPeriod float64

	// ResetFraction ends a correction once the live average is back within
	// this fraction of the corrective baseline.
	ResetFraction float64

	// AdjustFraction is the per-cycle interpolation step that walks the
	// corrective baseline toward the live average.
	AdjustFraction float64

	// RequiredStreak is the consecutive-spike count that must be exceeded
	// before a correction starts.
	RequiredStreak uint8
}

// State tracks one feed's listener statistics across polling cycles. It is
// in one of two modes: tracking, where the hourly baseline follows the moving
// average directly, and correcting, where a recently detected spike has been
// captured in a corrective baseline that decays back toward the live average
// so the spike does not permanently distort stored baselines.
type State struct {
	// Avg is the bounded moving average of raw listener counts.
	Avg Average

	hourly     [24]float64
	unskewed   float64
	correcting bool
	streak     uint8
}

// NewState returns a State whose average is seeded with the given value.
// Feeds sighted for the first time start with a zero seed and rely on the
// zero-average guard in the spike check until the window fills.
func NewState(seed float64) *State {
	return &State{Avg: NewAverage(seed)}
}

// newStateWithHourly restores a State from a persisted hourly baseline row.
func newStateWithHourly(seed float64, hourly [24]float64) *State {
	st := NewState(seed)
	st.hourly = hourly
	return st
}

// Step advances the feed by one polling cycle and reports whether listeners
// constitutes a spike. The order is load-bearing: the spike check reads the
// average as it stood after the previous cycle, while the baseline
// bookkeeping reads the freshly updated one.
func (s *State) Step(p Params, hour int, listeners float64) bool {
	spiked := s.hasSpiked(p, listeners)

	s.Avg.Update(listeners)
	s.updateHourly(p, hour, spiked)

	return spiked
}

// hasSpiked reports whether listeners sits anomalously far above the moving
// average. A zero average means there is no history to compare against yet.
func (s *State) hasSpiked(p Params, listeners float64) bool {
	if s.Avg.Current == 0 {
		return false
	}
	return listeners-s.Avg.Current >= listeners*s.threshold(p, listeners)
}

// threshold returns the adaptive spike threshold for the given raw value as a
// fraction of that value.
func (s *State) threshold(p Params, listeners float64) float64 {
	if listeners < lowCountCutoff {
		// Small feeds need a proportionally larger relative jump so
		// single-listener noise does not register.
		return p.SpikeBase + (lowCountCutoff-listeners)*p.LowValueSensitivity
	}

	// Fast-rising feeds get a lower bar so sustained climbs keep surfacing.
	// Only the decrease is clamped.
	dec := s.AverageDelta(listeners) / p.DecayPeriod * p.DecayRate
	if limit := p.SpikeBase - thresholdFloor; dec > limit {
		dec = limit
	}
	return p.SpikeBase - dec
}

// AverageDelta returns how far listeners sits above the feed's baseline: the
// corrective baseline while a correction is active, the moving average
// otherwise. Callers report this alongside a spike as its magnitude.
func (s *State) AverageDelta(listeners float64) float64 {
	if s.correcting {
		return listeners - s.unskewed
	}
	return listeners - s.Avg.Current
}

// updateHourly advances the spike streak, the corrective baseline and the
// stored baseline for the given hour. Runs after the average update.
func (s *State) updateHourly(p Params, hour int, spiked bool) {
	if spiked {
		s.streak++
	} else {
		s.streak = 0
	}

	cur := s.Avg.Current

	if s.correcting {
		// Drop the correction once the live average has caught back up.
		if cur-s.unskewed < s.unskewed*p.ResetFraction {
			s.correcting = false
			s.hourly[hour] = cur
			return
		}

		// Walk the corrective baseline toward the live average so genuine
		// listener growth is not suppressed indefinitely.
		v := lerp(s.unskewed, cur, p.AdjustFraction)
		s.unskewed = v
		s.hourly[hour] = v
		return
	}

	if spiked && s.streak > p.RequiredStreak && s.Avg.Prev > 0 {
		// The post-update average, not Prev, so the captured baseline still
		// follows natural listener changes.
		s.unskewed = cur
		s.correcting = true
	}

	s.hourly[hour] = cur
}

// Unskewed returns the corrective baseline and whether one is active.
func (s *State) Unskewed() (float64, bool) {
	if !s.correcting {
		return 0, false
	}
	return s.unskewed, true
}

// Streak returns the current run of consecutive spiked cycles.
func (s *State) Streak() uint8 {
	return s.streak
}

// Hourly returns a copy of the per-hour baseline table.
func (s *State) Hourly() [24]float64 {
	return s.hourly
}

// lerp linearly interpolates from a to b by fraction t.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
