package keyboard

// Fake is a Source driven by the caller.
type Fake struct {
	events     chan Event
	registered bool
	err        error
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, eventBuffer)}
}

// FailRegister makes Register return err.
func (f *Fake) FailRegister(err error) { f.err = err }

func (f *Fake) Register() error {
	if f.err != nil {
		return f.err
	}
	f.registered = true
	return nil
}

func (f *Fake) Unregister() { f.registered = false }

func (f *Fake) Registered() bool { return f.registered }

func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Down(k rune) { f.events <- Event{Key: k, Down: true} }

func (f *Fake) Repeat(k rune) { f.events <- Event{Key: k, Down: true, Repeat: true} }

func (f *Fake) Up(k rune) { f.events <- Event{Key: k} }

// Tap presses every key in keys, then releases them in the same order.
func (f *Fake) Tap(keys string) {
	for _, k := range keys {
		f.Down(k)
	}
	for _, k := range keys {
		f.Up(k)
	}
}

// Close ends the event stream as if the device went away.
func (f *Fake) Close() { close(f.events) }
