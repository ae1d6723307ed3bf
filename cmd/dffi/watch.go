package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"dffi/internal/ffi"
	"dffi/internal/typedesc"
)

const watchDebounce = 100 * time.Millisecond

// watchFile sends on the returned channel each time path is written,
// created or renamed into place. Bursts within watchDebounce collapse into
// one notification. The directory is watched so editors that replace the
// file are still seen.
func watchFile(ctx context.Context, path string) (<-chan struct{}, <-chan error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	changes := make(chan struct{}, 1)
	errs := make(chan error, 1)
	go func() {
		defer w.Close()
		defer close(changes)
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()
	return changes, errs, nil
}

// watchLayout re-renders the layout on every change, as a terminal UI when
// stdout is a terminal and as a stream of reports otherwise.
func watchLayout(cmd *cobra.Command, s *session) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	changes, errs, err := watchFile(ctx, s.path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	if isTerminal(os.Stdout) {
		m := newWatchModel(s, cmd, changes, errs, outputWidth())
		_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	}
	return streamLayout(ctx, cmd, s, changes, errs)
}

func streamLayout(ctx context.Context, cmd *cobra.Command, s *session, changes <-chan struct{}, errs <-chan error) error {
	out := cmd.OutOrStdout()
	render := func() {
		if err := renderLayout(out, s.rt.Target().Triple, s.set, defaultWidth); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "render: %v\n", err)
		}
		fmt.Fprintln(out, strings.Repeat("-", 40))
	}
	render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.reload(cmd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", errorLabel.Sprint("error:"), err)
				continue
			}
			render()
		case err := <-errs:
			fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
		}
	}
}

type watchModel struct {
	s       *session
	cmd     *cobra.Command
	changes <-chan struct{}
	errs    <-chan error
	spinner spinner.Model
	width   int
	body    string
	err     error
	loading bool
	stamp   time.Time
}

type changedMsg struct{}
type watchClosedMsg struct{}
type watchErrMsg struct{ err error }
type reloadedMsg struct {
	rt   *ffi.Runtime
	set  *typedesc.Set
	body string
	err  error
}

func newWatchModel(s *session, cmd *cobra.Command, changes <-chan struct{}, errs <-chan error, width int) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	m := &watchModel{
		s:       s,
		cmd:     cmd,
		changes: changes,
		errs:    errs,
		spinner: sp,
		width:   width,
		stamp:   time.Now(),
	}
	m.body, m.err = renderString(s.rt.Target().Triple, s.set, width)
	return m
}

func renderString(triple string, set *typedesc.Set, width int) (string, error) {
	var sb strings.Builder
	err := renderLayout(&sb, triple, set, width)
	return sb.String(), err
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *watchModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case _, ok := <-m.changes:
			if !ok {
				return watchClosedMsg{}
			}
			return changedMsg{}
		case err := <-m.errs:
			return watchErrMsg{err: err}
		}
	}
}

// reload loads into a fresh runtime off the UI goroutine; Update swaps it
// in.
func (m *watchModel) reload() tea.Cmd {
	s, cmd, width := m.s, m.cmd, m.width
	return func() tea.Msg {
		rt, set, err := s.loadFresh(cmd)
		if err != nil {
			return reloadedMsg{err: err}
		}
		body, err := renderString(rt.Target().Triple, set, width)
		return reloadedMsg{rt: rt, set: set, body: body, err: err}
	}
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case changedMsg:
		m.loading = true
		return m, tea.Batch(m.reload(), m.listen())
	case reloadedMsg:
		m.loading = false
		m.stamp = time.Now()
		m.err = msg.err
		if msg.rt != nil {
			m.s.swap(msg.rt, msg.set)
			m.body = msg.body
		}
		return m, nil
	case watchErrMsg:
		m.err = msg.err
		return m, m.listen()
	case watchClosedMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			if body, err := renderString(m.s.rt.Target().Triple, m.s.set, m.width); err == nil {
				m.body = body
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *watchModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	status := "watching " + truncate(m.s.path, m.width-40)
	if m.loading {
		status = m.spinner.View() + " reloading " + m.s.path
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(status))
	sb.WriteString(dimStyle.Render("  (" + m.stamp.Format("15:04:05") + ", q to quit)"))
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(truncate(m.err.Error(), m.width)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.body)
	return sb.String()
}
