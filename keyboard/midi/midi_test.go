package midi

import (
	"testing"
	"time"

	"brio/keyboard"
)

func TestMapKey(t *testing.T) {
	m := Map{Base: DefaultBase}
	want := map[int]rune{
		60: 'f', 62: 'e', 64: 'w', 65: 'j', 67: 'i', 69: 'o',
		72: keyboard.Space,
		59: keyboard.Backspace,
	}
	for note, k := range want {
		got, ok := m.Key(note)
		if !ok || got != k {
			t.Errorf("Key(%d) = %q, %v; want %q", note, got, ok, k)
		}
	}
	for _, note := range []int{61, 63, 66, 68, 70, 71, 48, 84} {
		if k, ok := m.Key(note); ok {
			t.Errorf("Key(%d) = %q, want unmapped", note, k)
		}
	}
}

func TestMapBaseShift(t *testing.T) {
	m := Map{Base: 48}
	if k, ok := m.Key(53); !ok || k != 'j' {
		t.Errorf("Key(53) = %q, %v", k, ok)
	}
}

func TestExcluded(t *testing.T) {
	if !excluded("Midi Through Port-0") {
		t.Error("through port should be excluded")
	}
	if excluded("Launchkey Mini MIDI 1") {
		t.Error("controller should not be excluded")
	}
}

func TestDeliverAfterUnregister(t *testing.T) {
	s := New("", 0)
	if s.keys.Base != DefaultBase {
		t.Fatalf("base = %d", s.keys.Base)
	}
	s.Unregister()
	for i := 0; i < 100; i++ {
		s.deliver(60, true)
	}
	if _, ok := <-s.Events(); ok {
		t.Error("events still open after Unregister")
	}
}

func TestUnregisterUnblocksDeliver(t *testing.T) {
	s := New("", 0)
	// fill the buffer so the next delivery blocks
	for i := 0; i < cap(s.events); i++ {
		s.deliver(60, true)
	}
	done := make(chan struct{})
	go func() {
		s.deliver(62, true)
		close(done)
	}()
	s.Unregister()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked after Unregister")
	}
	n := 0
	for range s.Events() {
		n++
	}
	if n < cap(s.events) {
		t.Errorf("drained %d buffered events, want at least %d", n, cap(s.events))
	}
}

func TestWatchWithoutDriverStops(t *testing.T) {
	s := New("", 0)
	done := make(chan struct{})
	go func() {
		s.watch("Launchkey Mini MIDI 1")
		close(done)
	}()
	s.Unregister()
	select {
	case <-done:
	case <-time.After(2 * portPoll):
		t.Fatal("watch kept running after Unregister")
	}
}

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through Port-0", "Launchkey Mini MIDI 1", "Digital Piano"}
	for port, want := range map[string]int{
		"launchkey": 1,
		"PIANO":     2,
		"lkmini":    1,
	} {
		if i, ok := matchPort(names, port); !ok || i != want {
			t.Errorf("matchPort(%q) = %d, %v, want %d", port, i, ok, want)
		}
	}
	if _, ok := matchPort(names, "zzz"); ok {
		t.Error("matchPort(zzz) matched")
	}
}
