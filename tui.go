package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"brio/audio"
	"brio/braille"
	"brio/chord"
	"brio/clipboard"
	"brio/feedback"
	"brio/log"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type DotsMsg struct{ Held, Pending braille.Cell }
type CommitMsg struct {
	Commit chord.Commit
	Text   string
}
type TextMsg struct{ Text string }
type ModeMsg struct{ Mode feedback.Mode }
type VolumeMsg struct{ Volume float64 }
type AudioStateMsg struct{ State audio.State }
type NoticeMsg struct{ Text string }
type tickMsg time.Time

// controls is what the TUI can change on the session.
type controls interface {
	ToggleMode() feedback.Mode
	AdjustVolume(delta float64) float64
	Text() string
}

type keyMap struct {
	Quit     key.Binding
	Mode     key.Binding
	Copy     key.Binding
	VolUp    key.Binding
	VolDown  key.Binding
	ShowHelp key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Mode:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "piano/mechanical")),
		Copy:     key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy text")),
		VolUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "louder")),
		VolDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "softer")),
		ShowHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Mode, k.Copy, k.ShowHelp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Mode, k.VolUp, k.VolDown},
		{k.Copy, k.ShowHelp, k.Quit},
	}
}

type tuiModel struct {
	ctl           controls
	keys          keyMap
	help          help.Model
	frame         int
	width, height int
	held          braille.Cell
	pending       braille.Cell
	text          string
	last          *chord.Commit
	commitFrame   int
	commits       int
	mode          feedback.Mode
	volume        float64
	audioState    audio.State
	source        string
	notice        string
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

// Pixel palette: 0 empty, 1 idle dot, 2 pending dot, 3 held dot, 4 flash
var (
	pixelColors = []string{"", "238", "97", "212", "231"}
	pixelStyles [5]lipgloss.Style
	pixelBg     [5][5]lipgloss.Style
)

func init() {
	for i, c := range pixelColors {
		if c != "" {
			pixelStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		}
	}
	for i, fg := range pixelColors {
		for j, bg := range pixelColors {
			if fg != "" && bg != "" {
				pixelBg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(fg)).Background(lipgloss.Color(bg))
			}
		}
	}
}

func newTUIModel(ctl controls, source string) tuiModel {
	return tuiModel{
		ctl:    ctl,
		keys:   newKeyMap(),
		help:   help.New(),
		source: source,
	}
}

func NewTUIProgram(sess *Session, source string) *tea.Program {
	m := newTUIModel(sess, source)
	m.mode = sess.Mode()
	m.volume = sess.Engine().MasterVolume()
	m.audioState = sess.Engine().State()
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Mode):
			m.mode = m.ctl.ToggleMode()
		case key.Matches(msg, m.keys.VolUp):
			m.volume = m.ctl.AdjustVolume(volumeStep)
		case key.Matches(msg, m.keys.VolDown):
			m.volume = m.ctl.AdjustVolume(-volumeStep)
		case key.Matches(msg, m.keys.Copy):
			if err := clipboard.Copy(m.ctl.Text()); err != nil {
				log.Warnf("copy: %v", err)
				m.notice = err.Error()
			} else {
				m.notice = "copied to clipboard"
			}
		case key.Matches(msg, m.keys.ShowHelp):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case DotsMsg:
		m.held = msg.Held
		m.pending = msg.Pending

	case CommitMsg:
		c := msg.Commit
		m.last = &c
		m.text = msg.Text
		m.commits++
		m.commitFrame = m.frame

	case TextMsg:
		m.text = msg.Text

	case ModeMsg:
		m.mode = msg.Mode

	case VolumeMsg:
		m.volume = msg.Volume

	case AudioStateMsg:
		m.audioState = msg.State

	case NoticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

const cellPanelWidth = 28

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	flash := m.last != nil && m.frame-m.commitFrame < 4
	cell := renderCell(m.held, m.pending, flash)

	var info []string
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	if m.held.Empty() {
		info = append(info, dim.Render("○ ready"))
	} else {
		info = append(info, lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true).
			Render("● dots "+m.held.Pattern()))
	}
	info = append(info, lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render(fmt.Sprintf("[%s | vol %s]", m.mode, volumeBar(m.volume))))
	info = append(info, dim.Render(audioLine(m.audioState)))
	if m.source != "" {
		info = append(info, dim.Render("keys: "+m.source))
	}
	info = append(info, "", dim.Render("F E W  J I O"), dim.Render("1 2 3  4 5 6"))

	left := cell + "\n" + strings.Join(info, "\n")

	rightWidth := m.width - cellPanelWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	wrapWidth := rightWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var out strings.Builder
	out.WriteString(lipgloss.NewStyle().
		Foreground(lipgloss.Color("246")).
		Render(fmt.Sprintf("Text (%d chars)", len([]rune(m.text)))) + "\n\n")

	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	if m.text == "" {
		out.WriteString(dim.Render("Press a chord and release it to type a letter"))
	} else {
		lines := wrapText(m.text, wrapWidth)
		for i, line := range lines {
			out.WriteString(textStyle.Render(line))
			if i == len(lines)-1 {
				out.WriteString(dim.Render("▏"))
			}
			out.WriteString("\n")
		}
	}

	if m.last != nil {
		out.WriteString("\n")
		out.WriteString(commitLine(*m.last) + "\n")
	}
	if m.notice != "" {
		out.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render(m.notice) + "\n")
	}

	body := out.String()
	helpView := m.help.View(m.keys)
	bodyHeight := m.height - lipgloss.Height(helpView) - 1
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(bodyHeight).
		PaddingLeft(1).
		Render(body)
	leftPanel := lipgloss.NewStyle().
		Width(cellPanelWidth).
		Height(bodyHeight).
		Render(left)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel),
		"",
		helpView,
	)
}

func commitLine(c chord.Commit) string {
	glyph := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(c.Cell.String())
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	if !c.Mapped() {
		return glyph + dim.Render(fmt.Sprintf(" %s unmapped, typed %q", c.Cell.Pattern(), c.Char))
	}
	return glyph + dim.Render(fmt.Sprintf(" %s → %c", c.Cell.Pattern(), c.Char))
}

func audioLine(s audio.State) string {
	switch s {
	case audio.StateRunning:
		return "audio on"
	case audio.StateUnsupported:
		return "audio unavailable"
	case audio.StateLocked:
		return "audio starting"
	}
	return "audio idle"
}

func volumeBar(v float64) string {
	const width = 10
	n := int(math.Round(v * width))
	return strings.Repeat("▮", n) + strings.Repeat("▯", width-n)
}

// renderCell draws a large braille cell with half-block characters. Each
// character cell holds two vertical pixels.
func renderCell(held, pending braille.Cell, flash bool) string {
	const charsW = cellPanelWidth - 2
	const charsH = 11
	const pixW = charsW
	const pixH = charsH * 2
	const radius = 3.2

	// dot centers in pixel space, dots 1-3 down the left, 4-6 down the right
	cols := [2]float64{7.5, 18.5}
	rows := [3]float64{3.5, 10.5, 17.5}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	for d := braille.Dot(1); d <= 6; d++ {
		cx := cols[(d-1)/3]
		cy := rows[(d-1)%3]
		color := 1
		switch {
		case held.Has(d) && flash:
			color = 4
		case held.Has(d):
			color = 3
		case pending.Has(d):
			color = 2
		}
		for y := 0; y < pixH; y++ {
			for x := 0; x < pixW; x++ {
				// a half-block pixel is roughly square
				dx := float64(x) + 0.5 - cx
				dy := float64(y) + 0.5 - cy
				if dx*dx+dy*dy < radius*radius {
					pixels[y][x] = color
				}
			}
		}
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		result.WriteString(" ")
		for cx := 0; cx < charsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(pixelStyles[top].Render("█"))
			case bot == 0:
				result.WriteString(pixelStyles[top].Render("▀"))
			case top == 0:
				result.WriteString(pixelStyles[bot].Render("▄"))
			default:
				result.WriteString(pixelBg[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return strings.TrimSuffix(result.String(), "\n")
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards session events to the running program.
type tuiSink struct{}

func (tuiSink) Dots(held, pending braille.Cell) {
	tuiSend(DotsMsg{Held: held, Pending: pending})
}

func (tuiSink) Committed(c chord.Commit, text string) {
	tuiSend(CommitMsg{Commit: c, Text: text})
}

func (tuiSink) Text(text string)         { tuiSend(TextMsg{Text: text}) }
func (tuiSink) Mode(m feedback.Mode)     { tuiSend(ModeMsg{Mode: m}) }
func (tuiSink) Volume(v float64)         { tuiSend(VolumeMsg{Volume: v}) }
func (tuiSink) AudioState(s audio.State) { tuiSend(AudioStateMsg{State: s}) }
func (tuiSink) Notice(text string)       { tuiSend(NoticeMsg{Text: text}) }

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
