//go:build !linux && !darwin

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process; it is created on first open
// and reused after Shutdown.
var (
	otoOnce  sync.Once
	otoCtx   *oto.Context
	otoReady chan struct{}
	otoRate  int
	otoErr   error
)

type otoOutput struct {
	starter
}

func OpenDefault(rate int) (Output, error) {
	otoOnce.Do(func() {
		otoRate = rate
		otoCtx, otoReady, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 1,
			Format:       oto.FormatFloat32LE,
			BufferSize:   20 * time.Millisecond,
		})
	})
	if otoErr != nil {
		return nil, fmt.Errorf("oto context: %w", otoErr)
	}
	if rate != otoRate {
		return nil, fmt.Errorf("oto context already running at %d Hz", otoRate)
	}
	return &otoOutput{}, nil
}

// sourceReader adapts a Source to the little-endian float32 byte stream
// oto reads.
type sourceReader struct {
	src Source
	buf []float32
}

func (r *sourceReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	frames := r.buf[:n]
	r.src.Render(frames)
	for i, f := range frames {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(f))
	}
	return n * 4, nil
}

func (o *otoOutput) Start(ctx context.Context, src Source) error {
	select {
	case <-otoReady:
	case <-ctx.Done():
		return ctx.Err()
	}
	return o.start(ctx, func() (func(), error) {
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("oto resume: %w", err)
		}
		player := otoCtx.NewPlayer(&sourceReader{src: src})
		player.SetBufferSize(otoRate / 50 * 4)
		player.Play()
		return func() { _ = player.Close() }, nil
	})
}

func (o *otoOutput) Close() error {
	o.close(nil)
	return nil
}
