package feed

// windowSize is the number of recent raw values the moving average keeps.
// Small enough to stay responsive to listener swings, large enough to damp
// single-cycle noise.
const windowSize = 5

// Average is a bounded moving average over the last windowSize raw values.
type Average struct {
	// Current is the arithmetic mean of the window.
	Current float64
	// Prev is the value Current held before the most recent Update.
	Prev float64

	window []float64
}

// NewAverage returns an Average seeded with the given value. A positive seed
// becomes the first window element; a zero or negative seed initialises
// Current and Prev only, leaving the window empty.
func NewAverage(seed float64) Average {
	a := Average{Current: seed, Prev: seed}
	if seed > 0 {
		a.window = append(make([]float64, 0, windowSize), seed)
	}
	return a
}

// Update appends v to the window, evicting the oldest value once the window
// is full, and recomputes the mean. Prev keeps the pre-update mean.
func (a *Average) Update(v float64) {
	if len(a.window) >= windowSize {
		copy(a.window, a.window[1:])
		a.window[len(a.window)-1] = v
	} else {
		a.window = append(a.window, v)
	}

	var sum float64
	for _, w := range a.window {
		sum += w
	}

	a.Prev = a.Current
	a.Current = sum / float64(len(a.window))
}
