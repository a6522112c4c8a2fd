package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	m "snare.dev/pkg/snare/internal/model"
)

const headerTitle = "Snare - Static Analysis"

var (
	headerStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Width(64).
			Align(lipgloss.Center).
			Bold(true)
	sectionStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle    = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("8"))
	passStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	severityStyle = map[m.Severity]lipgloss.Style{
		m.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		m.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		m.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	mode    StartMode
	total   int
	scanned int
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start records the mode and resets progress.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := newStartConfig(options)

	p.mu.Lock()
	p.mode = cfg.Mode()
	p.total = 0
	p.scanned = 0
	p.mu.Unlock()

	return nil
}

// Close finalizes the UI.
func (p *TUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait returns immediately; pagers block inside the Display methods.
func (p *TUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplayRunInfo prints the header and the run size.
func (p *TUI) DisplayRunInfo(ctx context.Context, info RunInfo) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.mu.Lock()
	p.total = info.Units
	checking := p.mode == ModeCheck
	p.mu.Unlock()

	var b strings.Builder

	renderHeader(&b)

	verb := "Scanning"
	if checking {
		verb = "Checking"
	}

	fmt.Fprintf(&b, "  %s %s with %d worker(s)", verb, pluralUnits(info.Units), info.Threads)

	if checking {
		fmt.Fprintf(&b, " %s", faintStyle.Render("compare: "+string(info.Compare)))
	}

	b.WriteString("\n\n")

	_, _ = fmt.Fprint(p.output, b.String())
}

// DisplayUnitResult prints a progress line for a finished unit.
func (p *TUI) DisplayUnitResult(ctx context.Context, result m.UnitResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	p.mu.Lock()
	p.scanned++
	current, total := p.scanned, p.total
	p.mu.Unlock()

	count := fmt.Sprintf("%d finding(s)", result.Summary.Total)
	if result.Summary.Total == 0 {
		count = faintStyle.Render(count)
	}

	line := fmt.Sprintf("  [%d/%d] %s %s", current, total, result.Unit, count)
	if result.Verdict != nil {
		line += " " + styledVerdict(result)
	}

	_, _ = fmt.Fprintln(p.output, line)
}

// DisplayReport shows the findings of a run in a pager.
func (p *TUI) DisplayReport(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.show(newReportModel(report))
}

// DisplayRules shows the rule catalogue in a pager.
func (p *TUI) DisplayRules(ctx context.Context, rules []m.RuleInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.show(newRulesModel(rules))
}

// DisplayDiff shows a unified diff in a pager.
func (p *TUI) DisplayDiff(ctx context.Context, diff string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.show(newDiffModel(diff))
}

func (p *TUI) show(model pagerModel) error {
	if f, ok := p.output.(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			model.height = height
			model.width = width
		}
	}

	// If content is small, just print and exit
	if !model.needsPagination() {
		_, err := fmt.Fprint(p.output, model.View())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(p.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

func renderHeader(b *strings.Builder) {
	b.WriteString(headerStyle.Render(headerTitle))
	b.WriteString("\n")
}

func styledVerdict(result m.UnitResult) string {
	label := verdictLabel(result)

	switch label {
	case passLabel:
		return passStyle.Render(label)
	case failLabel:
		return failStyle.Render(label)
	default:
		return label
	}
}

func styledSeverity(s m.Severity) string {
	style, ok := severityStyle[s]
	if !ok {
		return string(s)
	}

	return style.Render(string(s))
}

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Top, k.Bottom, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.PageUp, k.PageDown}, {k.Top, k.Bottom, k.Quit}}
}

func newKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		PageUp:   key.NewBinding(key.WithKeys("u", "pgup"), key.WithHelp("u", "page up")),
		PageDown: key.NewBinding(key.WithKeys("d", "pgdown"), key.WithHelp("d", "page down")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// pagerModel scrolls a list of prepared lines below a fixed header and
// above a fixed summary.
type pagerModel struct {
	title   string
	empty   string
	lines   []string
	summary []string

	keys     keyMap
	help     help.Model
	height   int
	width    int
	offset   int
	quitting bool
}

func newPagerModel(title string) pagerModel {
	return pagerModel{title: title, keys: newKeyMap(), help: help.New()}
}

func newReportModel(report m.RunReport) pagerModel {
	model := newPagerModel(fmt.Sprintf("🔎 Run %s (%s)", report.ID, report.Mode))
	model.empty = "  ✨ No units scanned"

	for _, unit := range report.Units {
		head := fmt.Sprintf("  %s %s", unit.Unit, faintStyle.Render(string(unit.Dialect)))
		if unit.Verdict != nil {
			head += " " + styledVerdict(unit)
		}

		model.lines = append(model.lines, head)

		for _, f := range unit.Summary.Findings {
			model.lines = append(model.lines, fmt.Sprintf("    %-7s %s %s: %s",
				formatLocation(f), styledSeverity(f.Severity), f.RuleID, f.Message))
		}

		if unit.Verdict != nil {
			for _, mm := range unit.Verdict.Mismatches {
				model.lines = append(model.lines, "    "+failStyle.Render("✗")+" "+formatMismatch(mm))
			}
		}
	}

	totals := tallyReport(report)

	var counts []string

	for _, c := range m.Categories {
		text := fmt.Sprintf("%s: %d", c, totals.counts[c])
		if totals.counts[c] == 0 {
			text = faintStyle.Render(text)
		}

		counts = append(counts, text)
	}

	model.summary = []string{
		"  📊 Summary:",
		fmt.Sprintf("  Units: %d | Findings: %d | Failed: %d", totals.units, totals.findings, totals.failed),
		"  " + strings.Join(counts, " | "),
	}

	return model
}

func newRulesModel(rules []m.RuleInfo) pagerModel {
	model := newPagerModel("📚 Registered rules:")
	model.empty = "  📭 No rules registered"

	for _, r := range rules {
		model.lines = append(model.lines, fmt.Sprintf("  %-28s %-12s %s %s",
			r.ID, r.Category, styledSeverity(r.Severity), faintStyle.Render(r.Summary)))
	}

	model.summary = []string{fmt.Sprintf("  Total: %d rules", len(rules))}

	return model
}

func newDiffModel(diff string) pagerModel {
	model := newPagerModel("🔀 Report diff:")
	model.empty = "  ✨ No differences"

	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			line = passStyle.Render(line)
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			line = failStyle.Render(line)
		}

		model.lines = append(model.lines, "  "+line)
	}

	return model
}

func (pm pagerModel) Init() tea.Cmd {
	return nil
}

func (pm pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		pm.height = msg.Height
		pm.width = msg.Width
		pm.help.Width = msg.Width

		return pm, nil

	case tea.KeyMsg:
		return pm.handleKeyPress(msg)
	}

	return pm, nil
}

func (pm pagerModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, pm.keys.Quit):
		pm.quitting = true
		return pm, tea.Quit

	case key.Matches(msg, pm.keys.Down):
		return pm.scroll(1), nil

	case key.Matches(msg, pm.keys.Up):
		return pm.scroll(-1), nil

	case key.Matches(msg, pm.keys.Top):
		pm.offset = 0
		return pm, nil

	case key.Matches(msg, pm.keys.Bottom):
		pm.offset = pm.maxOffset()
		return pm, nil

	case key.Matches(msg, pm.keys.PageDown):
		return pm.scroll(pm.itemsPerPage()), nil

	case key.Matches(msg, pm.keys.PageUp):
		return pm.scroll(-pm.itemsPerPage()), nil
	}

	return pm, nil
}

func (pm pagerModel) scroll(delta int) pagerModel {
	pm.offset += delta

	if maxOffset := pm.maxOffset(); pm.offset > maxOffset {
		pm.offset = maxOffset
	}

	if pm.offset < 0 {
		pm.offset = 0
	}

	return pm
}

func (pm pagerModel) reserved() int {
	// Header box: 3 lines, title + blank: 2 lines,
	// blank + summary, footer (pagination): 3 lines.
	return 3 + 2 + 1 + len(pm.summary) + 3
}

func (pm pagerModel) itemsPerPage() int {
	if pm.height == 0 {
		return 10
	}

	available := pm.height - pm.reserved()
	if available < 1 {
		return 1
	}

	return available
}

func (pm pagerModel) maxOffset() int {
	available := pm.itemsPerPage()
	if len(pm.lines) <= available {
		return 0
	}

	return len(pm.lines) - available
}

func (pm pagerModel) needsPagination() bool {
	if len(pm.lines) == 0 || pm.height == 0 {
		return false
	}

	return len(pm.lines) > pm.height-pm.reserved()
}

func (pm pagerModel) View() string {
	if pm.quitting {
		return ""
	}

	var b strings.Builder

	renderHeader(&b)
	fmt.Fprintf(&b, "  %s\n\n", sectionStyle.Render(pm.title))

	if len(pm.lines) == 0 {
		b.WriteString(pm.empty + "\n")
		pm.writeSummary(&b)

		return b.String()
	}

	paginate := pm.needsPagination()

	for _, line := range pm.visibleLines(paginate) {
		fmt.Fprintf(&b, "%s\n", line)
	}

	pm.writeSummary(&b)
	pm.writeFooter(&b, paginate)

	return b.String()
}

func (pm pagerModel) visibleLines(paginate bool) []string {
	if !paginate {
		return pm.lines
	}

	start := pm.offset
	if start >= len(pm.lines) {
		start = len(pm.lines) - 1
	}

	if start < 0 {
		start = 0
	}

	end := start + pm.itemsPerPage()
	if end > len(pm.lines) {
		end = len(pm.lines)
	}

	return pm.lines[start:end]
}

func (pm pagerModel) writeSummary(b *strings.Builder) {
	if len(pm.summary) == 0 {
		return
	}

	b.WriteString("\n")

	for _, line := range pm.summary {
		fmt.Fprintf(b, "%s\n", line)
	}
}

func (pm pagerModel) writeFooter(b *strings.Builder, paginate bool) {
	if !paginate {
		return
	}

	b.WriteString("\n")

	first := pm.offset + 1
	last := pm.offset + pm.itemsPerPage()

	if last > len(pm.lines) {
		last = len(pm.lines)
	}

	fmt.Fprintf(b, "  Lines %d-%d of %d\n", first, last, len(pm.lines))
	fmt.Fprintf(b, "  %s\n", pm.help.View(pm.keys))
}
