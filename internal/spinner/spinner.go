// Package spinner renders a terminal spinner next to the latest progress
// line while an instance is being rented and provisioned. Progress text is
// piped through Writer(), so anything that writes log lines can drive the
// display without touching the terminal directly.
package spinner

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Spinner displays a spinner with a single updating status line.
type Spinner struct {
	program *tea.Program
	reader  *io.PipeReader
	writer  *io.PipeWriter
	lineCh  chan string
	done    chan struct{}
	wg      sync.WaitGroup
	output  io.Writer
}

// New creates a Spinner writing to output, or os.Stderr when nil.
func New(output io.Writer) *Spinner {
	if output == nil {
		output = os.Stderr
	}

	reader, writer := io.Pipe()
	return &Spinner{
		reader: reader,
		writer: writer,
		lineCh: make(chan string, 100), // buffered so the pipe reader never blocks
		done:   make(chan struct{}),
		output: output,
	}
}

// Writer returns the writer driving the status line. Each line written
// replaces the previous one next to the spinner.
func (s *Spinner) Writer() io.Writer {
	return s.writer
}

// Start runs the spinner display. It blocks until Stop is called, so run
// it in a goroutine alongside the work being reported on.
func (s *Spinner) Start() error {
	s.wg.Add(1)
	go s.readLines()

	width := 80
	if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			width = w
		}
	}

	s.program = tea.NewProgram(newModel(s.lineCh, width),
		tea.WithOutput(s.output),
		tea.WithoutSignalHandler(), // parent handles signals
	)

	_, err := s.program.Run()
	s.wg.Wait()
	return err
}

// Stop stops the spinner and clears its line from the terminal.
func (s *Spinner) Stop() {
	_ = s.writer.Close()
	close(s.done)
	if s.program != nil {
		s.program.Quit()
	}
}

func (s *Spinner) readLines() {
	defer s.wg.Done()
	defer s.reader.Close() //nolint:errcheck

	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.lineCh <- line:
		case <-s.done:
			return
		}
	}
}

type model struct {
	spinner    spinner.Model
	statusLine string
	width      int
	lineCh     <-chan string
	quitting   bool
}

type lineMsg string

func newModel(lineCh <-chan string, width int) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner: s,
		width:   width,
		lineCh:  lineCh,
	}
}

//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForLine(m.lineCh),
	)
}

//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case lineMsg:
		m.statusLine = string(msg)
		return m, waitForLine(m.lineCh)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.QuitMsg:
		m.quitting = true
		return m, nil
	}

	return m, nil
}

//nolint:gocritic // hugeParam: tea.Model interface requires value receiver
func (m model) View() string {
	if m.quitting {
		return "" // clear the line on exit
	}

	maxLineWidth := m.width - 3 // spinner glyph plus a space
	if maxLineWidth < 10 {
		maxLineWidth = 10
	}

	return m.spinner.View() + " " + truncate(m.statusLine, maxLineWidth)
}

func waitForLine(lineCh <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-lineCh
		if !ok {
			return tea.Quit()
		}
		return lineMsg(line)
	}
}

func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	if width <= 3 {
		return s[:width]
	}
	return s[:width-3] + "..."
}
