package haptic

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"brio/braille"
	"brio/log"
)

const DefaultDebounce = 40 * time.Millisecond

// Actuator drives a vibration motor for d. Implementations must not block
// for the length of the pulse.
type Actuator interface {
	Vibrate(d time.Duration) error
	Close() error
}

var patterns = [...]time.Duration{
	8 * time.Millisecond,
	12 * time.Millisecond,
	18 * time.Millisecond,
	22 * time.Millisecond,
	28 * time.Millisecond,
	34 * time.Millisecond,
}

const defaultPattern = 18 * time.Millisecond

// Pattern returns the pulse length for a dot. Higher dots pulse longer.
func Pattern(d braille.Dot) time.Duration {
	if d < 1 || int(d) > len(patterns) {
		return defaultPattern
	}
	return patterns[d-1]
}

// Dispatcher fires debounced pulses. A pulse arriving within the debounce
// interval of the last accepted one is dropped, not queued.
type Dispatcher struct {
	mu      sync.Mutex
	act     Actuator
	enabled bool
	limiter *rate.Limiter
	now     func() time.Time
}

// NewDispatcher returns a dispatcher over act. A nil act makes every pulse
// a no-op.
func NewDispatcher(act Actuator, debounce time.Duration) *Dispatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Dispatcher{
		act:     act,
		enabled: true,
		limiter: rate.NewLimiter(rate.Every(debounce), 1),
		now:     time.Now,
	}
}

func (d *Dispatcher) SetEnabled(on bool) {
	d.mu.Lock()
	d.enabled = on
	d.mu.Unlock()
}

func (d *Dispatcher) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled && d.act != nil
}

// Pulse vibrates for the dot's pattern. It reports whether the pulse was
// sent. Actuator errors are logged, never returned.
func (d *Dispatcher) Pulse(dot braille.Dot) bool {
	d.mu.Lock()
	act, on := d.act, d.enabled
	d.mu.Unlock()
	if !on || act == nil {
		return false
	}
	if !d.limiter.AllowN(d.now(), 1) {
		return false
	}
	if err := act.Vibrate(Pattern(dot)); err != nil {
		log.Warnf("haptic pulse: %v", err)
		return false
	}
	return true
}

func (d *Dispatcher) Close() error {
	d.mu.Lock()
	act := d.act
	d.act = nil
	d.mu.Unlock()
	if act == nil {
		return nil
	}
	return act.Close()
}
