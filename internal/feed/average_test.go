package feed

import (
	"math"
	"testing"
)

// almostEqual reports whether two floats are within tolerance of each other.
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// --- Seeding ---

func TestNewAverage_PositiveSeed(t *testing.T) {
	a := NewAverage(120)

	if a.Current != 120 || a.Prev != 120 {
		t.Errorf("Current/Prev = %.1f/%.1f, want 120/120", a.Current, a.Prev)
	}
	if len(a.window) != 1 || a.window[0] != 120 {
		t.Errorf("window = %v, want [120]", a.window)
	}
}

func TestNewAverage_ZeroSeed_EmptyWindow(t *testing.T) {
	a := NewAverage(0)

	if a.Current != 0 || a.Prev != 0 {
		t.Errorf("Current/Prev = %.1f/%.1f, want 0/0", a.Current, a.Prev)
	}
	if len(a.window) != 0 {
		t.Errorf("window = %v, want empty", a.window)
	}
}

func TestNewAverage_NegativeSeed_EmptyWindow(t *testing.T) {
	a := NewAverage(-3)

	if a.Current != -3 || a.Prev != -3 {
		t.Errorf("Current/Prev = %.1f/%.1f, want -3/-3", a.Current, a.Prev)
	}
	if len(a.window) != 0 {
		t.Errorf("window = %v, want empty", a.window)
	}
}

// --- Mean over the window ---

func TestAverage_Update_MeanOfWindow(t *testing.T) {
	a := NewAverage(0)

	a.Update(10)
	if a.Current != 10 {
		t.Errorf("after one update Current = %.2f, want 10", a.Current)
	}

	a.Update(20)
	if a.Current != 15 {
		t.Errorf("after two updates Current = %.2f, want 15", a.Current)
	}

	a.Update(30)
	// (10+20+30)/3
	if !almostEqual(a.Current, 20, 1e-9) {
		t.Errorf("after three updates Current = %.4f, want 20", a.Current)
	}
}

func TestAverage_Update_SeedCountsTowardMean(t *testing.T) {
	a := NewAverage(100)
	a.Update(200)

	// (100+200)/2
	if a.Current != 150 {
		t.Errorf("Current = %.2f, want 150", a.Current)
	}
}

func TestAverage_Update_EvictsOldest(t *testing.T) {
	a := NewAverage(0)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		a.Update(v)
	}
	// Window full: [1 2 3 4 5], mean 3.
	if a.Current != 3 {
		t.Fatalf("full window Current = %.2f, want 3", a.Current)
	}

	a.Update(11)
	// Oldest (1) evicted: [2 3 4 5 11], mean 5.
	if a.Current != 5 {
		t.Errorf("after eviction Current = %.2f, want 5", a.Current)
	}
	if len(a.window) != windowSize {
		t.Errorf("window len = %d, want %d", len(a.window), windowSize)
	}
}

func TestAverage_Update_PrevHoldsPreUpdateMean(t *testing.T) {
	a := NewAverage(50)

	a.Update(100)
	if a.Prev != 50 {
		t.Errorf("Prev = %.2f, want 50", a.Prev)
	}

	a.Update(100)
	if a.Prev != 75 {
		t.Errorf("Prev = %.2f, want 75", a.Prev)
	}
}

func TestAverage_Update_LongSequenceMatchesTail(t *testing.T) {
	a := NewAverage(0)
	vals := []float64{3, 9, 27, 81, 243, 729, 2187, 6561}
	for _, v := range vals {
		a.Update(v)
	}

	// Mean of the last windowSize values.
	var sum float64
	for _, v := range vals[len(vals)-windowSize:] {
		sum += v
	}
	want := sum / windowSize

	if !almostEqual(a.Current, want, 1e-9) {
		t.Errorf("Current = %.4f, want %.4f", a.Current, want)
	}
}
