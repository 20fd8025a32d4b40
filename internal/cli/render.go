package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"budgetcontrol/internal/core"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorAccent = lipgloss.Color("#3AA99F")
	colorRed    = lipgloss.Color("#D14D41")
	colorOrange = lipgloss.Color("#DA702C")
	colorMuted  = lipgloss.Color("#6F6E69")
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	borderStyle   = lipgloss.NewStyle().Foreground(colorBorder)
	exceededStyle = lipgloss.NewStyle().Foreground(colorRed)
	warnStyle     = lipgloss.NewStyle().Foreground(colorOrange)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
)

// table is a bordered text table. Columns after the first are right aligned.
type table struct {
	headers []string
	rows    [][]string
	styles  []lipgloss.Style // per row, optional
}

func (t table) render() string {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(left, mid, right string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return borderStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
	}
	cells := func(row []string, style lipgloss.Style) string {
		var b strings.Builder
		b.WriteString(borderStyle.Render("│"))
		for i, w := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pad := strings.Repeat(" ", w-lipgloss.Width(cell))
			if i == 0 {
				cell = cell + pad
			} else {
				cell = pad + cell
			}
			b.WriteString(style.Render(" " + cell + " "))
			b.WriteString(borderStyle.Render("│"))
		}
		return b.String() + "\n"
	}

	var b strings.Builder
	b.WriteString(line("╭", "┬", "╮"))
	b.WriteString(cells(t.headers, headerStyle))
	b.WriteString(line("├", "┼", "┤"))
	for i, row := range t.rows {
		style := lipgloss.NewStyle()
		if i < len(t.styles) {
			style = t.styles[i]
		}
		b.WriteString(cells(row, style))
	}
	b.WriteString(line("╰", "┴", "╯"))
	return b.String()
}

// RenderStats renders one row per budget. Exceeded budgets are highlighted.
func RenderStats(stats []core.Stats, now time.Time) string {
	t := table{headers: []string{"Budget", "Period", "Window", "Total", "Spent", "Remaining", "Spent %", "Thresholds", "State"}}
	for _, st := range stats {
		b := st.Budget()
		w := st.Window()
		t.rows = append(t.rows, []string{
			b.Name,
			string(b.Config.Period),
			w.Start.Format("2006-01-02") + " → " + w.End.Format("2006-01-02"),
			core.FormatAmount(st.Total()),
			core.FormatAmount(st.TotalSpent()),
			core.FormatAmount(st.TotalRemaining()),
			st.SpentPercentageLabel(),
			joinInts(st.ExceededThresholds()),
			stateLabel(st, now),
		})
		switch {
		case st.IsExceeded():
			t.styles = append(t.styles, exceededStyle)
		case len(st.ExceededThresholds()) > 0:
			t.styles = append(t.styles, warnStyle)
		default:
			t.styles = append(t.styles, lipgloss.NewStyle())
		}
	}
	return t.render()
}

// RenderEntries renders entries in the order given.
func RenderEntries(entries []core.Entry) string {
	t := table{headers: []string{"ID", "Date", "Type", "Account", "Category", "Tags", "Amount"}}
	for _, e := range entries {
		t.rows = append(t.rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.Format("2006-01-02 15:04"),
			e.Type,
			strconv.FormatInt(e.AccountID, 10),
			strconv.FormatInt(e.CategoryID, 10),
			joinInts64(e.Tags),
			core.FormatAmount(e.Amount),
		})
	}
	return t.render()
}

// RenderFailures lists the budgets a batch could not compute.
func RenderFailures(failures []core.BudgetFailure) string {
	if len(failures) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(warnStyle.Render(fmt.Sprintf("%d budget(s) could not be computed:", len(failures))))
	b.WriteString("\n")
	for _, f := range failures {
		b.WriteString(mutedStyle.Render("  " + f.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func stateLabel(st core.Stats, now time.Time) string {
	var parts []string
	if st.IsExceeded() {
		parts = append(parts, "exceeded")
	}
	if st.IsExpired(now) {
		parts = append(parts, "expired")
	}
	if len(parts) == 0 {
		return "ok"
	}
	return strings.Join(parts, ", ")
}

func joinInts(values []int) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v) + "%"
	}
	return strings.Join(parts, " ")
}

func joinInts64(values []int64) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}
