package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bdobrica/timemachine/internal/timemachine/app"
	"github.com/bdobrica/timemachine/internal/timemachine/session"
	"github.com/bdobrica/timemachine/internal/timemachine/usage"
)

var (
	personaStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	replyStyle = lipgloss.NewStyle().
			Padding(0, 2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	apologyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Padding(0, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	alertStyles = map[usage.Level]lipgloss.Style{
		usage.AlertNone:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		usage.AlertWarning:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		usage.AlertCritical:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		usage.AlertEmergency: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// renderResult formats one turn for the terminal.
func renderResult(persona string, res session.Result) string {
	var sb strings.Builder
	sb.WriteString(personaStyle.Render(persona) + "\n")
	if res.Failed {
		sb.WriteString(apologyStyle.Render(res.Text) + "\n")
		return sb.String()
	}
	sb.WriteString(replyStyle.Render(res.Text) + "\n")
	sb.WriteString(metaStyle.Render(metaLine(res)) + "\n")
	return sb.String()
}

func metaLine(res session.Result) string {
	g := res.Meta.Guidance
	parts := []string{
		fmt.Sprintf("%d chars (target %d-%d, %s)", res.Meta.TextLength, g.Min, g.Max, res.Meta.Source),
		fmt.Sprintf("$%.4f", res.Meta.EstimatedCost),
		fmt.Sprintf("value %.1f", res.Meta.CostBenefit),
	}
	if res.Meta.Shortened {
		parts = append(parts, "shortened")
	}
	audio := "audio " + string(res.Audio)
	if res.AudioPath != "" {
		audio += ": " + res.AudioPath
	}
	parts = append(parts, audio)
	return strings.Join(parts, " · ")
}

// renderUsage formats the usage report.
func renderUsage(rep app.Report) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Usage for "+rep.Period) + "\n\n")
	if len(rep.Trackers) == 0 {
		sb.WriteString("  no budget activity\n")
	}
	for _, t := range rep.Trackers {
		pct := 0.0
		if t.MaxChars > 0 {
			pct = 100 * float64(t.Used) / float64(t.MaxChars)
		}
		level := alertStyles[t.Level].Render(t.Level.String())
		fmt.Fprintf(&sb, "  %-20s %8d / %-8d chars  %5.1f%%  $%.4f left  %s\n",
			t.Tenant, t.Used, t.MaxChars, pct, t.RemainingCost, level)
	}
	s := rep.Turns
	fmt.Fprintf(&sb, "\n  turns %d · chars %d · cost $%.4f · synthesized %d · shortened %d · ai-sized %d\n",
		s.Turns, s.Chars, s.Cost, s.Synthesized, s.Shortened, s.AIPowered)
	return sb.String()
}
