package encoder

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mewkiz/flac"
)

func sine(rate int, freq float64, d time.Duration, level float32) []float32 {
	n := int(d.Seconds() * float64(rate))
	out := make([]float32, n)
	for i := range out {
		out[i] = level * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestFlacEncoder(t *testing.T) {
	const rate = 44100
	samples := sine(rate, 440, 250*time.Millisecond, 0.5)

	enc, err := NewFlac(rate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := EncodeAll(enc, samples); err != nil {
		t.Fatalf("EncodeAll: %v", err)
	}

	if enc.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(samples))
	}
	if d := enc.Duration(); d < 249*time.Millisecond || d > 251*time.Millisecond {
		t.Errorf("Duration = %v", d)
	}

	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	stream, err := flac.New(bytes.NewReader(flacData))
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	defer stream.Close()
	if stream.Info.SampleRate != rate || stream.Info.NChannels != 1 {
		t.Errorf("stream info = %+v", stream.Info)
	}

	want := PCM16(samples)
	var got []int32
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ParseNext: %v", err)
		}
		got = append(got, f.Subframes[0].Samples...)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != int32(want[i]) {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac(44100)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderPartialBlock(t *testing.T) {
	enc, err := NewFlac(22050)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i % 1000)
	}

	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}
}

func TestNewFlacRejectsRate(t *testing.T) {
	if _, err := NewFlac(0); err == nil {
		t.Error("expected error for zero rate")
	}
}

func TestPCM16Clips(t *testing.T) {
	got := PCM16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, math.MaxInt16, -math.MaxInt16, math.MaxInt16, -math.MaxInt16, 16384}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PCM16[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.flac")
	if _, err := WriteFile(path, 8000, sine(8000, 300, 100*time.Millisecond, 0.2)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "fLaC" {
		t.Error("file is not FLAC")
	}
}
