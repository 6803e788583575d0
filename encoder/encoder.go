// Package encoder writes rendered feedback audio as 16-bit mono FLAC.
package encoder

import (
	"io"
	"math"
	"os"
	"time"
)

const (
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// PCM16 converts float samples in [-1,1] to 16-bit PCM, clipping.
func PCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < -math.MaxInt16:
			v = -math.MaxInt16
		}
		out[i] = int16(v)
	}
	return out
}

// EncodeAll feeds samples to enc in BlockSize blocks and closes it.
func EncodeAll(enc Encoder, samples []float32) error {
	start := time.Now()
	pcm := PCM16(samples)
	for i := 0; i < len(pcm); i += BlockSize {
		end := min(i+BlockSize, len(pcm))
		if err := enc.EncodeBlock(pcm[i:end]); err != nil {
			return err
		}
	}
	enc.AddEncodeTime(time.Since(start))
	return enc.Close()
}

// WriteFile encodes samples at rate to path, or to stdout when path is "-".
func WriteFile(path string, rate int, samples []float32) (Encoder, error) {
	enc, err := NewFlac(rate)
	if err != nil {
		return nil, err
	}
	if err := EncodeAll(enc, samples); err != nil {
		return nil, err
	}
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(enc.Bytes()); err != nil {
		return nil, err
	}
	return enc, nil
}
