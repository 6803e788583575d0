package main

import (
	"math"
	"strings"
	"testing"

	"brio/audio"
	"brio/braille"
	"brio/chord"
	"brio/feedback"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeControls struct {
	mode   feedback.Mode
	volume float64
	text   string
}

func (f *fakeControls) ToggleMode() feedback.Mode {
	if f.mode == feedback.Piano {
		f.mode = feedback.Mechanical
	} else {
		f.mode = feedback.Piano
	}
	return f.mode
}

func (f *fakeControls) AdjustVolume(delta float64) float64 {
	f.volume = min(max(f.volume+delta, 0), 1)
	return f.volume
}

func (f *fakeControls) Text() string { return f.text }

func update(t *testing.T, m tuiModel, msg tea.Msg) tuiModel {
	t.Helper()
	next, _ := m.Update(msg)
	tm, ok := next.(tuiModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return tm
}

func TestTUIKeys(t *testing.T) {
	ctl := &fakeControls{volume: 0.5}
	m := newTUIModel(ctl, "fake")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.mode != feedback.Mechanical {
		t.Errorf("mode = %v after tab", m.mode)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	if math.Abs(m.volume-0.52) > 1e-9 {
		t.Errorf("volume = %v after +", m.volume)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	if math.Abs(m.volume-0.48) > 1e-9 {
		t.Errorf("volume = %v after --", m.volume)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if !m.help.ShowAll {
		t.Error("? did not expand help")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c did not quit")
	}
}

func TestTUISessionMessages(t *testing.T) {
	m := newTUIModel(&fakeControls{}, "")
	held := braille.Of(1, 4)

	m = update(t, m, DotsMsg{Held: held, Pending: held})
	if m.held != held || m.pending != held {
		t.Errorf("dots = %v %v", m.held, m.pending)
	}
	m = update(t, m, CommitMsg{Commit: chord.Commit{Cell: held, Char: 'c'}, Text: "c"})
	if m.text != "c" || m.commits != 1 || m.last == nil || m.last.Char != 'c' {
		t.Errorf("after commit: text %q commits %d", m.text, m.commits)
	}
	m = update(t, m, TextMsg{Text: ""})
	m = update(t, m, ModeMsg{Mode: feedback.Mechanical})
	m = update(t, m, VolumeMsg{Volume: 0.3})
	m = update(t, m, AudioStateMsg{State: audio.StateUnsupported})
	m = update(t, m, NoticeMsg{Text: "hi"})
	if m.text != "" || m.mode != feedback.Mechanical || m.volume != 0.3 ||
		m.audioState != audio.StateUnsupported || m.notice != "hi" {
		t.Errorf("model = %+v", m)
	}
}

func TestTUIView(t *testing.T) {
	m := newTUIModel(&fakeControls{}, "evdev")
	if got := m.View(); got != "Loading..." {
		t.Errorf("View before size = %q", got)
	}
	m = update(t, m, tea.WindowSizeMsg{Width: 90, Height: 24})
	m = update(t, m, TextMsg{Text: "abc"})
	view := m.View()
	for _, want := range []string{"Text (3 chars)", "abc", "keys: evdev", "F E W  J I O"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRenderCell(t *testing.T) {
	out := renderCell(0, 0, false)
	if n := strings.Count(out, "\n") + 1; n != 11 {
		t.Errorf("renderCell has %d lines, want 11", n)
	}
	if !strings.Contains(out, "█") {
		t.Error("renderCell drew no dots")
	}
}

func TestVolumeBar(t *testing.T) {
	if got := volumeBar(0.3); got != "▮▮▮▯▯▯▯▯▯▯" {
		t.Errorf("volumeBar(0.3) = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("abc def ghi", 7)
	if len(got) != 2 || got[0] != "abc def" || got[1] != "ghi" {
		t.Errorf("wrapText = %q", got)
	}
}
