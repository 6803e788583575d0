package haptic

import (
	"sync"
	"time"
)

// Fake records pulses instead of driving hardware.
type Fake struct {
	mu     sync.Mutex
	pulses []time.Duration
	err    error
	closed bool
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Vibrate(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pulses = append(f.pulses, d)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Fail makes subsequent Vibrate calls return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) Pulses() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.pulses...)
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
