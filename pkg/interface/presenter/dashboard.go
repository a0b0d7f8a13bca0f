package presenter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxDashboardTargets = 50

// Dashboard is a TUI dashboard for a running diagnostic server
type Dashboard struct {
	metrics       *entity.Metrics
	recentTargets []string
	listen        string
	successBar    progress.Model
	width         int
	height        int
	startTime     time.Time
	mu            sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard
func NewDashboard(listen string) *Dashboard {
	return &Dashboard{
		metrics:    &entity.Metrics{},
		listen:     listen,
		successBar: progress.New(progress.WithDefaultGradient()),
		startTime:  time.Now(),
	}
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.mu.Lock()
		d.width = msg.Width
		d.height = msg.Height
		d.successBar.Width = max(msg.Width/2-10, 10)
		d.mu.Unlock()
		return d, nil

	case tickMsg:
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.width == 0 {
		return "Initializing..."
	}

	header := d.renderHeader()
	footer := d.renderFooter()

	availableHeight := max(d.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	halfHeight := availableHeight / 2
	leftWidth := d.width / 2
	rightWidth := d.width - leftWidth

	row1 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderRequestStats(leftWidth, halfHeight),
		d.renderProbeStats(rightWidth, halfHeight),
	)

	remainingHeight := availableHeight - halfHeight
	row2 := lipgloss.JoinHorizontal(
		lipgloss.Top,
		d.renderRejections(leftWidth, remainingHeight),
		d.renderRecentTargets(rightWidth, remainingHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, row1, row2, footer)
}

// OnMetricsUpdate implements application.MetricsObserver
func (d *Dashboard) OnMetricsUpdate(metrics *entity.Metrics) {
	d.mu.Lock()
	d.metrics = metrics
	d.mu.Unlock()
}

// AddTarget implements application.MetricsObserver
func (d *Dashboard) AddTarget(target string) {
	d.mu.Lock()
	d.recentTargets = append(d.recentTargets, target)
	if len(d.recentTargets) > maxDashboardTargets {
		d.recentTargets = d.recentTargets[len(d.recentTargets)-maxDashboardTargets:]
	}
	d.mu.Unlock()
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)

	timeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#999999"))

	title := titleStyle.Render("📡 netcheck")
	info := timeStyle.Render(fmt.Sprintf(" Listening: %s | Uptime: %s | Time: %s",
		d.listen, formatUptime(time.Since(d.startTime)), time.Now().Format("15:04:05")))

	return title + info
}

func panelStyle(color string, width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(max(width-2, 0)).
		Height(max(height-2, 0))
}

func (d *Dashboard) renderRequestStats(width, height int) string {
	stats := []string{
		"📊 Requests",
		"",
		fmt.Sprintf("Total:             %d", d.metrics.Requests),
		fmt.Sprintf("Completed:         %d", d.metrics.Completed),
		fmt.Sprintf("Ping Runs:         %d", d.metrics.PingRuns),
		fmt.Sprintf("Unique Clients:    %d", d.metrics.UniqueClients),
	}

	if elapsed := time.Since(d.startTime).Minutes(); elapsed > 0 {
		stats = append(stats,
			"",
			fmt.Sprintf("Request Rate:      %.1f req/min", float64(d.metrics.Requests)/elapsed),
		)
	}

	return panelStyle("#874BFD", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderProbeStats(width, height int) string {
	total := d.metrics.ProbesSucceeded + d.metrics.ProbesFailed
	stats := []string{
		"🔌 TCP Probes",
		"",
		fmt.Sprintf("Attempts:          %d", total),
		fmt.Sprintf("Succeeded:         %d", d.metrics.ProbesSucceeded),
		fmt.Sprintf("Failed:            %d", d.metrics.ProbesFailed),
	}

	if total > 0 {
		ratio := float64(d.metrics.ProbesSucceeded) / float64(total)
		stats = append(stats, "", "Success Rate:", d.successBar.ViewAs(ratio))
	}

	return panelStyle("#FF6B6B", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderRejections(width, height int) string {
	stats := []string{
		"⛔ Rejections",
		"",
		fmt.Sprintf("Unauthorized:      %d", d.metrics.Unauthorized),
		fmt.Sprintf("Rate Limited:      %d", d.metrics.RateLimited),
		fmt.Sprintf("Invalid:           %d", d.metrics.Invalid),
		fmt.Sprintf("Limiter Failures:  %d", d.metrics.Unavailable),
	}

	return panelStyle("#4ECDC4", width, height).Render(strings.Join(stats, "\n"))
}

func (d *Dashboard) renderRecentTargets(width, height int) string {
	count := len(d.recentTargets)
	lines := []string{
		fmt.Sprintf("🎯 Recent Targets (Total: %d)", count),
		"",
	}

	if count == 0 {
		lines = append(lines, "No diagnostics yet...")
	} else {
		// border, padding, title and blank line
		maxLines := max(height-6, 0)
		start := max(count-maxLines, 0)
		for _, target := range d.recentTargets[start:] {
			lines = append(lines, fmt.Sprintf("  • %s", target))
		}
	}

	return panelStyle("#04B575", width, height).Render(strings.Join(lines, "\n"))
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	return footerStyle.Render("Press 'q' or 'Ctrl+C' to quit")
}

func formatUptime(elapsed time.Duration) string {
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the dashboard
func (d *Dashboard) Run() error {
	p := tea.NewProgram(d, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
