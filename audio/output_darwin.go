//go:build darwin

package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

type malgoOutput struct {
	rate   int
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	src    atomic.Pointer[sourceBox]
	frames []float32
	starter
}

type sourceBox struct{ Source }

func OpenDefault(rate int) (Output, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo context: %w", err)
	}
	o := &malgoOutput{rate: rate, ctx: mctx}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatF32
	config.Playback.Channels = 1
	config.SampleRate = uint32(rate)

	callbacks := malgo.DeviceCallbacks{
		Data: o.dataCallback,
	}
	o.device, err = malgo.InitDevice(mctx.Context, config, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("malgo device: %w", err)
	}
	return o, nil
}

func (o *malgoOutput) dataCallback(pOutput, _ []byte, frameCount uint32) {
	box := o.src.Load()
	if box == nil {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}
	if cap(o.frames) < int(frameCount) {
		o.frames = make([]float32, frameCount)
	}
	frames := o.frames[:frameCount]
	box.Render(frames)
	copy(pOutput, unsafe.Slice((*byte)(unsafe.Pointer(&frames[0])), len(frames)*4))
}

func (o *malgoOutput) Start(ctx context.Context, src Source) error {
	o.src.Store(&sourceBox{src})
	return o.start(ctx, func() (func(), error) {
		if err := o.device.Start(); err != nil {
			o.src.Store(nil)
			return nil, fmt.Errorf("malgo start: %w", err)
		}
		return func() { _ = o.device.Stop() }, nil
	})
}

func (o *malgoOutput) Close() error {
	o.src.Store(nil)
	o.close(func() {
		o.device.Uninit()
		_ = o.ctx.Uninit()
		o.ctx.Free()
	})
	return nil
}
