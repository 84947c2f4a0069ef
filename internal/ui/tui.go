package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxRecentErrors is how many failures stay listed under the progress bar.
const maxRecentErrors = 3

// TUIRenderer draws indexing progress with bubbletea: a spinner, a bar of
// processed against queued files, and the most recent failures.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	model   *indexingModel
	program *tea.Program
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails when the output is not
// a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	return &TUIRenderer{
		cfg:   cfg,
		model: newIndexingModel(GetStyles(cfg.NoColor), cfg.Refresh),
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer. The program does not read stdin and leaves
// SIGINT to the caller, so interrupting cancels the indexing context.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		return nil
	}

	opts := []tea.ProgramOption{
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	program := r.program
	go func() {
		defer close(r.done)
		_, _ = program.Run()
	}()
	go func() {
		<-runCtx.Done()
		program.Quit()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.send(progressMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.send(errorMsg(event))
}

// Complete implements Renderer. The program renders the summary and exits.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program, cancel := r.program, r.cancel
	r.mu.Unlock()

	if program == nil {
		return nil
	}
	cancel()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		// The terminal stopped responding; do not hang the command on it.
		program.Kill()
	}
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

type progressMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats
type tickMsg time.Time

// indexingModel is the bubbletea model behind TUIRenderer.
type indexingModel struct {
	styles  Styles
	spinner spinner.Model
	bar     progress.Model
	refresh time.Duration
	started time.Time
	now     time.Time
	width   int

	current  ProgressEvent
	failed   int
	recent   []ErrorEvent
	complete bool
	stats    CompletionStats
}

func newIndexingModel(styles Styles, refresh time.Duration) *indexingModel {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Active

	now := time.Now()
	return &indexingModel{
		styles:  styles,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		refresh: refresh,
		started: now,
		now:     now,
		width:   80,
	}
}

// Init implements tea.Model.
func (m *indexingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m *indexingModel) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, min(60, msg.Width-30))

	case progressMsg:
		m.current = ProgressEvent(msg)
		m.failed = max(m.failed, msg.Failed)

	case errorMsg:
		m.failed++
		m.recent = append(m.recent, ErrorEvent(msg))
		if len(m.recent) > maxRecentErrors {
			m.recent = m.recent[len(m.recent)-maxRecentErrors:]
		}

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		if m.complete {
			return m, nil
		}
		return m, m.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// fraction is the share of known work done: processed files against
// processed plus still queued.
func (m *indexingModel) fraction() float64 {
	ev := m.current
	done := ev.Indexed + ev.Removed + m.failed
	if done+ev.Queued == 0 {
		return 0
	}
	return float64(done) / float64(done+ev.Queued)
}

// View implements tea.Model.
func (m *indexingModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	ev := m.current
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %s  %s",
		m.spinner.View(),
		m.styles.Stage.Render(ev.Stage.String()),
		m.styles.Dim.Render(formatDuration(m.now.Sub(m.started)))))

	lines = append(lines, fmt.Sprintf("%s  %s",
		m.bar.ViewAs(m.fraction()),
		m.styles.Active.Render(fmt.Sprintf("%3.0f%%", m.fraction()*100))))

	counts := []string{
		m.styles.Value.Render(fmt.Sprintf("%d", ev.Indexed)) + m.styles.Label.Render(" indexed"),
		m.styles.Value.Render(fmt.Sprintf("%d", ev.Removed)) + m.styles.Label.Render(" removed"),
		m.styles.Value.Render(fmt.Sprintf("%d", ev.Queued)) + m.styles.Label.Render(" queued"),
	}
	if m.failed > 0 {
		counts = append(counts, m.styles.Error.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	lines = append(lines, strings.Join(counts, m.styles.Dim.Render("  •  ")))

	if msg := ev.Message; msg != "" {
		lines = append(lines, m.styles.Label.Render(msg))
	} else if ev.Path != "" {
		lines = append(lines, m.styles.Dim.Render(truncatePath(ev.Path, m.width-4)))
	}

	for _, e := range m.recent {
		style, prefix := m.styles.Error, "✗"
		if e.IsWarn {
			style, prefix = m.styles.Warning, "⚠"
		}
		lines = append(lines, style.Render(truncatePath(fmt.Sprintf("%s %s: %v", prefix, e.Path, e.Err), m.width-4)))
	}

	return m.styles.Panel.Render(strings.Join(lines, "\n")) + "\n"
}

func (m *indexingModel) renderComplete() string {
	style := m.styles.Success
	if m.stats.Failed > 0 {
		style = m.styles.Warning
	}
	out := style.Render(summaryLine(m.stats)) + "\n"
	if m.stats.GraphsRemoved > 0 {
		out += m.styles.Label.Render(
			fmt.Sprintf("Maintenance: %d empty graphs removed", m.stats.GraphsRemoved)) + "\n"
	}
	return out
}

// formatDuration renders whole seconds as "42s", "3m 5s" or "1h 2m".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncatePath keeps the tail of p within width runes.
func truncatePath(p string, width int) string {
	width = max(width, 10)
	r := []rune(p)
	if len(r) <= width {
		return p
	}
	return "..." + string(r[len(r)-width+3:])
}

var _ Renderer = (*TUIRenderer)(nil)
