package haptic

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const reportSize = 64

// rumbleFrames are amplitude frames ordered from weakest to strongest.
var rumbleFrames = [][5]byte{
	{0x75, 0x21, 0xb5, 0x5d, 0x13},
	{0xa8, 0x29, 0xc5, 0xdc, 0x0c},
	{0x93, 0x35, 0x36, 0x1c, 0x0d},
}

// HIDRaw drives a controller rumble motor through a /dev/hidraw node.
type HIDRaw struct {
	mu      sync.Mutex
	file    *os.File
	counter byte
	stop    *time.Timer
}

func OpenHIDRaw(path string) (*HIDRaw, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open hidraw: %w (try running as root or add a udev rule)", err)
	}
	return &HIDRaw{file: f}, nil
}

// FindHIDRaw returns the hidraw nodes present on the system.
func FindHIDRaw() []string {
	matches, _ := filepath.Glob("/dev/hidraw*")
	return matches
}

func (h *HIDRaw) report(frame *[5]byte) []byte {
	r := make([]byte, reportSize)
	r[0] = 0x02
	r[1] = 0x50 | (h.counter & 0x0F)
	r[17] = r[1]
	if frame != nil {
		copy(r[2:7], frame[:])
		copy(r[18:23], frame[:])
	}
	h.counter = (h.counter + 1) & 0x0F
	return r
}

func (h *HIDRaw) write(r []byte) error {
	n, err := h.file.Write(r)
	if err != nil {
		return err
	}
	if n != len(r) {
		return fmt.Errorf("short write: %d/%d bytes", n, len(r))
	}
	return nil
}

// Vibrate starts the motor and schedules the stop report after d. A new
// pulse replaces one still running.
func (h *HIDRaw) Vibrate(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return os.ErrClosed
	}

	idx := int(d / (12 * time.Millisecond))
	idx = min(idx, len(rumbleFrames)-1)
	if err := h.write(h.report(&rumbleFrames[idx])); err != nil {
		return fmt.Errorf("rumble frame: %w", err)
	}

	if h.stop != nil {
		h.stop.Stop()
	}
	h.stop = time.AfterFunc(d, h.silence)
	return nil
}

func (h *HIDRaw) silence() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return
	}
	_ = h.write(h.report(nil))
}

func (h *HIDRaw) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop.Stop()
		h.stop = nil
	}
	if h.file == nil {
		return nil
	}
	_ = h.write(h.report(nil))
	err := h.file.Close()
	h.file = nil
	return err
}
