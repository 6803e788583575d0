package keyboard

import (
	"encoding/binary"
	"io"
	"sync"

	"brio/log"
)

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2

	keyBackspace = 14
	keyW         = 17
	keyE         = 18
	keyI         = 23
	keyO         = 24
	keyF         = 33
	keyJ         = 36
	keySpace     = 57
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const inputEventSize = 24

var evdevKeys = map[uint16]rune{
	keyF:         'f',
	keyE:         'e',
	keyW:         'w',
	keyJ:         'j',
	keyI:         'i',
	keyO:         'o',
	keyBackspace: Backspace,
	keySpace:     Space,
}

// decodeEvents translates the complete input_event records in buf.
// Non-key events and keys outside the chord set are skipped.
func decodeEvents(buf []byte) []Event {
	var out []Event
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		evType := binary.LittleEndian.Uint16(buf[i+16:])
		evCode := binary.LittleEndian.Uint16(buf[i+18:])
		evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

		if evType != evKey {
			continue
		}
		k, ok := evdevKeys[evCode]
		if !ok {
			continue
		}
		switch evValue {
		case keyPress:
			out = append(out, Event{Key: k, Down: true})
		case keyRepeat:
			out = append(out, Event{Key: k, Down: true, Repeat: true})
		case keyRelease:
			out = append(out, Event{Key: k})
		}
	}
	return out
}

// fanIn merges the readers of every keyboard device into one event
// stream. The stream closes once the last reader has returned, whether
// its device went away or stop was closed.
type fanIn struct {
	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newFanIn() *fanIn {
	return &fanIn{
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
	}
}

func (f *fanIn) add(name string, r io.Reader) {
	f.wg.Add(1)
	go f.readEvents(name, r)
}

// seal closes events after the readers added so far have all returned.
// No reader may be added after it.
func (f *fanIn) seal() {
	go func() {
		f.wg.Wait()
		close(f.events)
	}()
}

func (f *fanIn) readEvents(name string, r io.Reader) {
	defer f.wg.Done()
	buf := make([]byte, inputEventSize*16)
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		n, err := r.Read(buf)
		for _, ev := range decodeEvents(buf[:n]) {
			if !emit(f.events, f.stop, ev) {
				return
			}
		}
		if err != nil {
			select {
			case <-f.stop:
			default:
				log.Warnf("keyboard: lost %s: %v", name, err)
			}
			return
		}
	}
}
