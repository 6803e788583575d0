package audio

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParamLinearRamp(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)

	for _, tc := range []struct{ t, want float64 }{
		{0.5, 0}, {1, 0}, {1.25, 0.25}, {1.5, 0.5}, {2, 1}, {5, 1},
	} {
		if got := p.ValueAt(tc.t); !near(got, tc.want) {
			t.Errorf("ValueAt(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestParamExponentialRamp(t *testing.T) {
	p := NewParam(1)
	p.SetValueAtTime(1, 0)
	p.ExponentialRampToValueAtTime(0.01, 2)

	if got := p.ValueAt(1); !near(got, 0.1) {
		t.Errorf("midpoint = %v, want 0.1", got)
	}
	if got := p.ValueAt(2); !near(got, 0.01) {
		t.Errorf("end = %v, want 0.01", got)
	}
}

func TestParamExponentialToZeroHolds(t *testing.T) {
	p := NewParam(0.5)
	p.SetValueAtTime(0.5, 0)
	p.ExponentialRampToValueAtTime(0, 1)
	if got := p.ValueAt(0.5); got != 0.5 {
		t.Errorf("got %v, want start value held", got)
	}
	if got := p.ValueAt(1); got != 0 {
		t.Errorf("got %v at ramp end", got)
	}
}

func TestParamOutOfOrderScheduling(t *testing.T) {
	p := NewParam(0)
	p.LinearRampToValueAtTime(1, 2)
	p.SetValueAtTime(0.5, 1)
	if got := p.ValueAt(1.5); !near(got, 0.75) {
		t.Errorf("ValueAt(1.5) = %v, want 0.75", got)
	}
}

func TestParamCancelAndPin(t *testing.T) {
	p := NewParam(Floor)
	p.SetValueAtTime(Floor, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.LinearRampToValueAtTime(Floor, 2)

	now := 0.5
	cur := p.ValueAt(now)
	p.CancelScheduledValues(now)
	p.SetValueAtTime(cur, now)
	p.LinearRampToValueAtTime(Floor, now+0.1)

	if p.Pending() != 3 {
		t.Fatalf("Pending = %d, want 3", p.Pending())
	}
	if got := p.ValueAt(now); !near(got, cur) {
		t.Errorf("value jumped at cancel: %v -> %v", cur, got)
	}
	if got := p.ValueAt(now + 0.1); !near(got, Floor) {
		t.Errorf("forced release ends at %v", got)
	}
	if got := p.ValueAt(1); !near(got, Floor) {
		t.Errorf("cancelled ramp still applied: %v", got)
	}
}

func TestParamCancelTwice(t *testing.T) {
	p := NewParam(1)
	p.SetValueAtTime(1, 0)
	p.CancelScheduledValues(0.5)
	p.CancelScheduledValues(0.5)
	if got := p.ValueAt(1); got != 1 {
		t.Errorf("got %v", got)
	}
}

func TestParamPrune(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.SetValueAtTime(1, 2)
	p.LinearRampToValueAtTime(0, 3)

	before := p.ValueAt(2.5)
	p.prune(2.2)
	if p.Pending() != 2 {
		t.Errorf("Pending = %d after prune, want 2", p.Pending())
	}
	if got := p.ValueAt(2.5); !near(got, before) {
		t.Errorf("prune changed value: %v -> %v", before, got)
	}
}
