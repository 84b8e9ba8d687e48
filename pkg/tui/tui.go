// Package tui provides a terminal user interface for audio2midi
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/audio2midi/pkg/config"
	"github.com/james-see/audio2midi/pkg/converter"
	"github.com/james-see/audio2midi/pkg/converter/decoders"
)

// Waveform-inspired color scheme
var (
	waveCyan   = lipgloss.Color("#00E5FF")
	peakAmber  = lipgloss.Color("#FFB300")
	silverGray = lipgloss.Color("#C0C0C0")
	darkGray   = lipgloss.Color("#333333")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(waveCyan).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(waveCyan).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(peakAmber).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(peakAmber).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(waveCyan).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(waveCyan).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateConverting
	StateResult
)

// Action is what a menu item does with the picked file
type Action int

const (
	ActionConvert Action = iota
	ActionInspect
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
	Types       []string
}

var menuItems = []MenuItem{
	{Title: "AUDIO → MIDI", Description: "Convert an .mp3, .wav, .m4a or .aac recording to MIDI", Action: ActionConvert, Types: converter.AudioExtensions},
	{Title: "INSPECT MIDI", Description: "List the notes of a MIDI file", Action: ActionInspect, Types: []string{".mid", ".midi"}},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Model represents the TUI model
type Model struct {
	cfg          config.Config
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	progress     progress.Model
	stage        converter.Progress
	events       chan tea.Msg
	selectedFile string
	item         MenuItem
	result       *converter.Result
	info         *converter.MIDIInfo
	outputFile   string
	err          error
	width        int
	height       int
}

// progressMsg carries a converter progress event
type progressMsg converter.Progress

// conversionDoneMsg signals conversion completion
type conversionDoneMsg struct {
	result     *converter.Result
	info       *converter.MIDIInfo
	outputFile string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model
func New(cfg config.Config) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = converter.AudioExtensions
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(waveCyan)

	return Model{
		cfg:        cfg,
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
		progress:   progress.New(progress.WithDefaultGradient()),
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateConverting
			m.stage = converter.Progress{}
			m.events = make(chan tea.Msg, 8)
			reset := m.progress.SetPercent(0)
			return m, tea.Batch(m.spinner.Tick, reset, m.performAction(), waitForEvent(m.events))
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.Height = msg.Height - 10
		m.progress.Width = min(max(msg.Width-12, 20), 60)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		case StateConverting:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd

	case progressMsg:
		m.stage = converter.Progress(msg)
		animate := m.progress.SetPercent(float64(msg.Percent) / 100)
		return m, tea.Batch(animate, waitForEvent(m.events))

	case conversionDoneMsg:
		m.state = StateResult
		m.result = msg.result
		m.info = msg.info
		m.outputFile = msg.outputFile
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		m.item = menuItems[m.menuIndex]
		if m.item.Action == ActionExit {
			return m, tea.Quit
		}
		m.state = StateFilePicker
		m.filePicker.AllowedTypes = m.item.Types
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.result = nil
		m.info = nil
		m.selectedFile = ""
		m.outputFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// waitForEvent blocks on the next message from a running conversion
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) performAction() tea.Cmd {
	events := m.events
	path := m.selectedFile
	action := m.item.Action
	cfg := m.cfg

	return func() tea.Msg {
		var done conversionDoneMsg
		switch action {
		case ActionInspect:
			done.info, done.err = converter.InspectFile(path)
		default:
			done = convert(cfg, path, events)
		}
		events <- done
		close(events)
		return nil
	}
}

func convert(cfg config.Config, path string, events chan<- tea.Msg) conversionDoneMsg {
	opts := append(cfg.ConverterOptions(),
		converter.WithDecoder(decoders.NewAuto(cfg.FFmpegPath)),
		converter.WithObserver(converter.ObserverFunc(func(p converter.Progress) {
			events <- progressMsg(p)
		})),
	)

	result, err := converter.New(opts...).ConvertFile(context.Background(), path, "")
	if err != nil {
		return conversionDoneMsg{err: err}
	}
	return conversionDoneMsg{
		result:     result,
		outputFile: filepath.Join(filepath.Dir(path), result.Artifact.Filename),
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	header := asciiLogo()
	s.WriteString(header)
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateConverting:
		s.WriteString(m.viewConverting())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT ACTION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(peakAmber).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT FILE (%s) ", strings.Join(m.item.Types, " "))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewConverting() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" CONVERTING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(m.progress.View())
	if m.stage.Message != "" {
		s.WriteString(statusStyle.Render(fmt.Sprintf("\n  %s", m.stage.Message)))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	switch {
	case m.err != nil:
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Failed: %s", m.err.Error())))
	case m.info != nil:
		s.WriteString(titleStyle.Render(" MIDI FILE "))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("File:       %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Format:     %d (%d track)\n", m.info.Format, m.info.Tracks))
		s.WriteString(fmt.Sprintf("Resolution: %d ticks/quarter\n", m.info.Resolution))
		s.WriteString(fmt.Sprintf("Pitches:    %v", m.info.Pitches()))
	case m.result != nil:
		if m.result.UsedFallback {
			s.WriteString(titleStyle.Render(" FALLBACK "))
			s.WriteString("\n\n")
			s.WriteString(warnStyle.Render(fmt.Sprintf("! No notes detected (%s), wrote fallback notes", m.result.Reason)))
		} else {
			s.WriteString(titleStyle.Render(" SUCCESS "))
			s.WriteString("\n\n")
			s.WriteString(successStyle.Render("✓ Conversion complete!"))
		}
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:   %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output:  %s\n", filepath.Base(m.outputFile)))
		s.WriteString(fmt.Sprintf("Pitches: %v", m.result.Pitches))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
    _   _   _ ___ ___ ___    ___   __  __ ___ ___ ___
   /_\ | | | |   \_ _/ _ \  |_  ) |  \/  |_ _|   \_ _|
  / _ \| |_| | |) | | (_) |  / /  | |\/| || || |) | |
 /_/ \_\\___/|___/___\___/  /___| |_|  |_|___|___/___|
`
	return lipgloss.NewStyle().Foreground(waveCyan).Render(logo)
}

// Run starts the TUI application
func Run(cfg config.Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
