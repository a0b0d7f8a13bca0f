package presenter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).Padding(1, 2)
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// RenderReport writes a human readable diagnostic report
func RenderReport(w io.Writer, report *entity.DiagnosticReport, width int) {
	if width <= 0 || width > 100 {
		width = 70
	}
	divider := keyStyle.Render(strings.Repeat("─", width))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("📡 %s port %d", report.Host, report.Port)))
	b.WriteString("\n")
	b.WriteString(divider + "\n")

	b.WriteString("🔎 Resolved Addresses:\n")
	if len(report.ResolvedAddresses) == 0 {
		b.WriteString("  " + keyStyle.Render("(none)") + "\n")
	}
	for _, addr := range report.ResolvedAddresses {
		b.WriteString(fmt.Sprintf("  %s %-40s %s\n", keyStyle.Render("•"), valueStyle.Render(addr.IP), keyStyle.Render(string(addr.Family))))
	}

	b.WriteString(fmt.Sprintf("\n🔌 TCP Connectivity (timeout %ds):\n", report.TimeoutSeconds))
	for _, result := range report.ProbeResults {
		b.WriteString("  " + renderProbe(result) + "\n")
	}

	if report.PingOutput != nil {
		b.WriteString("\n📶 Ping:\n")
		if report.PingCommand != "" {
			b.WriteString("  " + keyStyle.Render("$ "+report.PingCommand) + "\n")
		}
		for _, line := range strings.Split(*report.PingOutput, "\n") {
			b.WriteString("  " + line + "\n")
		}
	}

	if len(report.Notes) > 0 {
		b.WriteString("\n📝 Notes:\n")
		for _, note := range report.Notes {
			b.WriteString("  " + noteStyle.Render(note) + "\n")
		}
	}

	b.WriteString(divider + "\n")
	b.WriteString(fmt.Sprintf("%s %d/%d succeeded in %s\n",
		keyStyle.Render("Summary:"),
		report.Succeeded(),
		len(report.ProbeResults),
		report.Duration.Round(time.Millisecond),
	))

	io.WriteString(w, b.String())
}

func renderProbe(result entity.ProbeResult) string {
	target := fmt.Sprintf("%-40s", result.Address.IP)
	elapsed := fmt.Sprintf("%.3fs", result.ElapsedSeconds)
	if result.Succeeded {
		return fmt.Sprintf("%s %s %s", okStyle.Render("✓"), target, elapsed)
	}

	reason := result.ErrorMessage
	if result.ErrorCode != nil {
		reason = fmt.Sprintf("[%d] %s", *result.ErrorCode, reason)
	}
	return fmt.Sprintf("%s %s %s %s", failStyle.Render("✗"), target, elapsed, failStyle.Render(reason))
}
