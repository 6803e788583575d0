package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Source produces mono float32 samples on demand.
type Source interface {
	Render(buf []float32)
}

// Output pulls samples from a Source and plays them. Start returns once the
// device has acknowledged that playback is running.
type Output interface {
	Start(ctx context.Context, src Source) error
	Close() error
}

// Opener creates an output for the given sample rate.
type Opener func(sampleRate int) (Output, error)

// Unavailable is an Opener for hosts without audio.
func Unavailable(int) (Output, error) { return nil, ErrUnsupported }

var errOutputClosed = errors.New("audio: output closed")

type launch struct {
	done chan struct{}
	err  error
}

// starter brings a device up at most once per output. A Start that gives
// up on its context leaves the launch running: a later Start joins it or
// finds the device already playing, and a device that comes up after
// Close is stopped at once.
type starter struct {
	mu      sync.Mutex
	cur     *launch
	running bool
	closed  bool
	stop    func()
	release func()
}

// start runs open unless the device is already playing or a launch is in
// flight. open returns the function that stops what it started.
func (s *starter) start(ctx context.Context, open func() (stop func(), err error)) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return errOutputClosed
	case s.running:
		s.mu.Unlock()
		return nil
	}
	l := s.cur
	if l == nil {
		l = &launch{done: make(chan struct{})}
		s.cur = l
		go s.run(l, open)
	}
	s.mu.Unlock()

	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *starter) run(l *launch, open func() (func(), error)) {
	stop, err := open()

	s.mu.Lock()
	s.cur = nil
	closed, release := s.closed, s.release
	s.release = nil
	if err == nil && !closed {
		s.running, s.stop = true, stop
	}
	s.mu.Unlock()

	if closed {
		if err == nil {
			stop()
			err = errOutputClosed
		}
		if release != nil {
			release()
		}
	}
	l.err = err
	close(l.done)
}

// close stops a playing device and then calls release. With a launch in
// flight both are left to it.
func (s *starter) close(release func()) {
	s.mu.Lock()
	s.closed = true
	if s.cur != nil {
		s.release = release
		s.mu.Unlock()
		return
	}
	stop := s.stop
	s.stop, s.running = nil, false
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if release != nil {
		release()
	}
}

// ManualOutput renders only when the caller advances it. Its clock is the
// number of samples rendered, which makes envelopes deterministic in tests
// and offline renders.
type ManualOutput struct {
	mu       sync.Mutex
	rate     int
	src      Source
	started  bool
	closed   bool
	opened   int
	startErr error
}

func NewManualOutput() *ManualOutput {
	return &ManualOutput{}
}

// Opener returns an Opener that hands out this output.
func (m *ManualOutput) Opener() Opener {
	return func(rate int) (Output, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rate = rate
		m.src = nil
		m.started = false
		m.closed = false
		m.opened++
		return m, nil
	}
}

// FailStart makes subsequent Start calls return err.
func (m *ManualOutput) FailStart(err error) {
	m.mu.Lock()
	m.startErr = err
	m.mu.Unlock()
}

func (m *ManualOutput) Start(ctx context.Context, src Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.src = src
	m.started = true
	return nil
}

func (m *ManualOutput) Close() error {
	m.mu.Lock()
	m.closed = true
	m.src = nil
	m.mu.Unlock()
	return nil
}

// Opened returns how many times the output has been opened.
func (m *ManualOutput) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func (m *ManualOutput) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Advance renders d worth of samples and returns them. Nothing is rendered
// before Start or after Close.
func (m *ManualOutput) Advance(d time.Duration) []float32 {
	m.mu.Lock()
	src, rate := m.src, m.rate
	m.mu.Unlock()
	if src == nil || rate == 0 {
		return nil
	}
	n := int(d.Seconds() * float64(rate))
	buf := make([]float32, n)
	const block = 256
	for off := 0; off < n; off += block {
		src.Render(buf[off:min(off+block, n)])
	}
	return buf
}
