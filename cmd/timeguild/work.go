package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kazz187/timeguild/internal/access"
	"github.com/kazz187/timeguild/internal/camera"
	"github.com/kazz187/timeguild/internal/project"
	"github.com/kazz187/timeguild/internal/session"
	"github.com/kazz187/timeguild/internal/task"
	"github.com/kazz187/timeguild/internal/tracker"
	"github.com/kazz187/timeguild/internal/user"
	"github.com/kazz187/timeguild/pkg/cerr"
	"github.com/kazz187/timeguild/pkg/panicerr"
)

const historyRows = 5

const (
	watchInitialBackoff = time.Second
	watchMaxBackoff     = 30 * time.Second
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	taskStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Margin(1, 0)

	timerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle = lipgloss.NewStyle().Underline(true)
)

type phase int

const (
	phaseStarting phase = iota
	phaseRunning
	phaseStopping
	phaseStopped
)

type (
	tickMsg    time.Duration
	startedMsg struct{ res *tracker.StartResult }
	stoppedMsg struct {
		sess *session.Session
		err  error
	}
	completedMsg struct {
		task *task.Task
		err  error
	}
	historyMsg []*session.Session
	errMsg     struct{ err error }
)

// afterStop is what the view does once the running session is recorded.
type afterStop int

const (
	stayOpen afterStop = iota
	completeTask
	quit
)

// tickFeed keeps only the latest elapsed reading so the clock goroutine
// never blocks on the UI.
type tickFeed chan time.Duration

func newTickFeed() tickFeed { return make(tickFeed, 1) }

func (f tickFeed) push(d time.Duration) {
	select {
	case <-f:
	default:
	}
	select {
	case f <- d:
	default:
	}
}

func (f tickFeed) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case d := <-f:
			return tickMsg(d)
		case <-ctx.Done():
			return nil
		}
	}
}

type workModel struct {
	ctx     context.Context
	ctrl    *tracker.Controller
	sampler *tracker.Sampler
	ticks   tickFeed
	user    *user.User
	taskID  string

	phase   phase
	then    afterStop
	task    *task.Task
	project *project.Project
	elapsed time.Duration
	stats   tracker.Stats
	warning error
	err     error
	last    *session.Session
	history []*session.Session
	note    string
}

func newWorkModel(ctx context.Context, u *user.User, taskID string, ctrl *tracker.Controller, sampler *tracker.Sampler, ticks tickFeed) *workModel {
	return &workModel{
		ctx:     ctx,
		ctrl:    ctrl,
		sampler: sampler,
		ticks:   ticks,
		user:    u,
		taskID:  taskID,
	}
}

func (m *workModel) Init() tea.Cmd {
	return tea.Batch(m.start(), m.ticks.wait(m.ctx))
}

func (m *workModel) start() tea.Cmd {
	m.phase = phaseStarting
	m.then = stayOpen
	m.err = nil
	m.warning = nil
	m.elapsed = 0
	return func() tea.Msg {
		res, err := m.ctrl.Start(m.ctx, m.taskID)
		if err != nil {
			return errMsg{err}
		}
		return startedMsg{res}
	}
}

func (m *workModel) stop(then afterStop) tea.Cmd {
	m.phase = phaseStopping
	m.then = then
	return func() tea.Msg {
		// Recording must outlive the program's context.
		sess, err := m.ctrl.Stop(context.WithoutCancel(m.ctx))
		return stoppedMsg{sess: sess, err: err}
	}
}

func (m *workModel) markComplete() tea.Cmd {
	return func() tea.Msg {
		t, err := m.ctrl.MarkComplete(m.ctx, m.taskID)
		return completedMsg{task: t, err: err}
	}
}

func (m *workModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if m.phase == phaseRunning {
			m.elapsed = time.Duration(msg)
		}
		if m.sampler != nil {
			m.stats = m.sampler.Stats()
		}
		return m, m.ticks.wait(m.ctx)

	case startedMsg:
		m.phase = phaseRunning
		m.task = msg.res.Task
		m.project = msg.res.Project
		m.warning = msg.res.Warning
		if m.then == quit {
			return m, m.stop(quit)
		}
		return m, nil

	case stoppedMsg:
		m.phase = phaseStopped
		m.last = msg.sess
		m.err = msg.err
		if m.sampler != nil {
			m.stats = m.sampler.Stats()
		}
		switch m.then {
		case quit:
			return m, tea.Quit
		case completeTask:
			return m, m.markComplete()
		}
		return m, nil

	case completedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.task = msg.task
		m.note = "Task marked as completed"
		return m, tea.Quit

	case historyMsg:
		m.history = msg
		return m, nil

	case errMsg:
		m.err = msg.err
		if m.phase == phaseStarting {
			m.phase = phaseStopped
			if m.then == quit {
				return m, tea.Quit
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *workModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.phase == phaseRunning {
			return m, m.stop(quit)
		}
		// Start or Stop is in flight; quit once it lands.
		if m.phase == phaseStarting || m.phase == phaseStopping {
			m.then = quit
			return m, nil
		}
		return m, tea.Quit
	case "s":
		if m.phase == phaseRunning {
			return m, m.stop(stayOpen)
		}
	case "c":
		switch m.phase {
		case phaseRunning:
			return m, m.stop(completeTask)
		case phaseStopped:
			return m, m.markComplete()
		}
	case " ", "enter":
		if m.phase == phaseStopped {
			return m, m.start()
		}
	}
	return m, nil
}

func (m *workModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("TimeGuild | %s", m.user.Email)))
	b.WriteString("\n")

	if m.task != nil {
		info := m.task.Description
		if m.project != nil {
			info = fmt.Sprintf("%s\n%s", info, statusStyle.Render(fmt.Sprintf("%s for %s", m.project.Name, m.project.Client)))
		}
		b.WriteString(taskStyle.Render(info))
		b.WriteString("\n")
	}

	b.WriteString(timerStyle.Render(tracker.FormatElapsed(m.elapsed)))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.phaseLabel()))
	b.WriteString("\n\n")

	switch {
	case m.warning != nil:
		b.WriteString(warnStyle.Render(fmt.Sprintf("Tracking without verification: %v", m.warning)))
		b.WriteString("\n")
	case m.stats.Captures > 0:
		b.WriteString(statusStyle.Render(fmt.Sprintf("Captures %d, verified %d, failed %d", m.stats.Captures, m.stats.Verified, m.stats.Failures)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	if m.last != nil {
		b.WriteString(fmt.Sprintf("Recorded %s on %s\n", tracker.FormatElapsed(time.Duration(m.last.Duration)*time.Millisecond), m.last.Project))
	}
	if m.note != "" {
		b.WriteString(m.note)
		b.WriteString("\n")
	}

	if len(m.history) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Recent sessions"))
		b.WriteString("\n")
		for _, s := range m.history[:min(len(m.history), historyRows)] {
			b.WriteString(fmt.Sprintf("  %s  %s  %-10s %s\n",
				s.StartTime.Local().Format(timeLayout),
				tracker.FormatElapsed(time.Duration(s.Duration)*time.Millisecond),
				s.Project,
				s.TaskDescription,
			))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.helpView())
	return b.String()
}

func (m *workModel) phaseLabel() string {
	switch m.phase {
	case phaseStarting:
		return "starting"
	case phaseRunning:
		return "running"
	case phaseStopping:
		return "stopping"
	}
	return "stopped"
}

func (m *workModel) helpView() string {
	switch m.phase {
	case phaseRunning:
		return helpStyle.Render("s: stop • c: stop and complete • q: stop and quit")
	case phaseStopped:
		return helpStyle.Render("space: start again • c: complete • q: quit")
	}
	return helpStyle.Render("q: quit")
}

func (c *cli) work(ctx context.Context, taskID, cameraSpec string, every time.Duration) error {
	me, err := c.requireView(ctx, access.ViewOwnSessions)
	if err != nil {
		return err
	}
	if every <= 0 {
		return fmt.Errorf("sample interval must be positive, got %s", every)
	}
	cam, err := camera.Parse(cameraSpec)
	if err != nil {
		return err
	}

	ticks := newTickFeed()
	sampler := tracker.NewSampler(cam, c.client, c.client, c.client, tracker.WithSampleInterval(every))
	ctrl := tracker.NewController(me.User, c.client, c.client, sampler, tracker.NewRecorder(c.client),
		tracker.WithTickHandler(ticks.push))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newWorkModel(ctx, me.User, taskID, ctrl, sampler, ticks)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	go panicerr.Logged(ctx, "session history watch", func() {
		keepWatching(ctx, "session history", watchInitialBackoff, watchMaxBackoff, func(ctx context.Context) error {
			return c.client.WatchOwnSessions(ctx, func(s []*session.Session) {
				p.Send(historyMsg(s))
			})
		})
	})

	_, runErr := p.Run()
	// The program also ends on a signal; never leave the timer running.
	if sess, err := ctrl.Stop(context.WithoutCancel(ctx)); err != nil {
		return err
	} else if sess != nil {
		c.printf("Recorded %s on %s\n", tracker.FormatElapsed(time.Duration(sess.Duration)*time.Millisecond), sess.Project)
	}
	if m.note != "" {
		c.printf("%s\n", m.note)
	}
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return m.err
}

// keepWatching reruns watch until ctx is done, waiting between attempts with
// exponential backoff. A stream that stayed open for limit resets the backoff.
// Rejected credentials end the loop.
func keepWatching(ctx context.Context, name string, initial, limit time.Duration, watch func(context.Context) error) {
	backoff := initial
	for {
		opened := time.Now()
		err := watch(ctx)
		if ctx.Err() != nil {
			return
		}
		if cerr.IsCode(err, cerr.Unauthenticated) || cerr.IsCode(err, cerr.PermissionDenied) {
			slog.WarnContext(ctx, name+" stopped updating", "error", err)
			return
		}
		if time.Since(opened) >= limit {
			backoff = initial
		}
		slog.DebugContext(ctx, name+" stream ended, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > limit {
			backoff = limit
		}
	}
}
