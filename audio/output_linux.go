//go:build linux

package audio

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseOutput struct {
	rate   int
	client *pulse.Client
	starter
}

// OpenDefault connects to the PulseAudio (or PipeWire) server. The stream
// itself is created on Start.
func OpenDefault(rate int) (Output, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("brio"))
	if err != nil {
		return nil, fmt.Errorf("pulse client: %w", err)
	}
	return &pulseOutput{rate: rate, client: c}, nil
}

func (p *pulseOutput) Start(ctx context.Context, src Source) error {
	reader := pulse.Float32Reader(func(buf []float32) (int, error) {
		src.Render(buf)
		return len(buf), nil
	})
	return p.start(ctx, func() (func(), error) {
		stream, err := p.client.NewPlayback(reader,
			pulse.PlaybackMono,
			pulse.PlaybackSampleRate(p.rate),
			pulse.PlaybackLatency(0.02),
			pulse.PlaybackRawOption(func(s *proto.CreatePlaybackStream) {
				s.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("pulse playback: %w", err)
		}
		stream.Start()
		return func() {
			stream.Stop()
			stream.Close()
		}, nil
	})
}

func (p *pulseOutput) Close() error {
	p.close(p.client.Close)
	return nil
}
