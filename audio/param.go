package audio

import "math"

type eventKind int

const (
	setValue eventKind = iota
	linearRamp
	exponentialRamp
)

type paramEvent struct {
	kind  eventKind
	time  float64
	value float64
}

// Param is a value automated along the graph clock. Scheduling mirrors the
// usual set/ramp/cancel model: a ramp runs from the previous event's time
// and value to its own. Param is not synchronized; the graph lock guards it.
type Param struct {
	value  float64
	events []paramEvent
}

func NewParam(value float64) *Param {
	return &Param{value: value}
}

func (p *Param) insert(e paramEvent) {
	i := len(p.events)
	for i > 0 && p.events[i-1].time > e.time {
		i--
	}
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: setValue, time: t, value: v})
}

// LinearRampToValueAtTime ramps from the preceding event to v, reaching it at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: linearRamp, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps geometrically to v at t. Both ends must
// be non-zero with the same sign; otherwise the start value is held until t.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: exponentialRamp, time: t, value: v})
}

// CancelScheduledValues drops every event at or after t. The value at t is
// whatever the remaining events produce, so callers pin it first.
func (p *Param) CancelScheduledValues(t float64) {
	for i, e := range p.events {
		if e.time >= t {
			p.events = p.events[:i]
			return
		}
	}
}

// ValueAt evaluates the automation at time t.
func (p *Param) ValueAt(t float64) float64 {
	startTime, startValue := 0.0, p.value
	for _, e := range p.events {
		if e.time <= t {
			startTime, startValue = e.time, e.value
			continue
		}
		switch e.kind {
		case linearRamp:
			span := e.time - startTime
			if span <= 0 {
				return e.value
			}
			return startValue + (e.value-startValue)*(t-startTime)/span
		case exponentialRamp:
			span := e.time - startTime
			if span <= 0 {
				return e.value
			}
			if startValue == 0 || e.value == 0 || (startValue < 0) != (e.value < 0) {
				return startValue
			}
			return startValue * math.Pow(e.value/startValue, (t-startTime)/span)
		}
		return startValue
	}
	return startValue
}

// prune discards events that can no longer affect values at or after t.
func (p *Param) prune(t float64) {
	n := 0
	for n+1 < len(p.events) && p.events[n+1].time <= t {
		n++
	}
	if n == 0 {
		return
	}
	p.value = p.events[n-1].value
	p.events = append(p.events[:0], p.events[n:]...)
}

// Pending returns the number of scheduled events.
func (p *Param) Pending() int { return len(p.events) }
