package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/homed/pkg/energy"
	"github.com/grovetools/homed/pkg/models"
)

// View renders the dashboard.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	t := m.theme

	var b strings.Builder
	header := t.Header.Render(m.Title)
	conn := t.Error.Render("● offline")
	if m.live {
		conn = t.Success.Render("● live")
	}
	b.WriteString(header + "  " + conn + "\n")

	if !m.loaded {
		b.WriteString(t.Muted.Render("Waiting for state...") + "\n")
		if m.lastErr != "" {
			b.WriteString(t.Error.Render(m.lastErr) + "\n")
		}
		return b.String()
	}

	devices := m.renderDevices()
	side := lipgloss.JoinVertical(lipgloss.Left, m.renderEnergy(), m.renderEfficiency(), m.renderSystem())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devices, " ", side))
	b.WriteString("\n")
	for _, w := range m.analysis.Warnings {
		b.WriteString(t.Warning.Render("! "+w) + "\n")
	}
	for _, r := range m.analysis.Recommendations {
		b.WriteString(t.Muted.Render("→ "+r) + "\n")
	}

	switch {
	case m.lastErr != "":
		b.WriteString(t.Error.Render(m.lastErr))
	case m.status != "":
		b.WriteString(t.Muted.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderDevices() string {
	t := m.theme
	lines := []string{t.Bold.Render("Devices")}
	for i, id := range m.ids {
		d := m.state.Devices[id]
		cursor := "  "
		if i == m.cursor {
			cursor = t.Highlight.Render("> ")
		}
		power := t.Off.Render("○")
		if d.On {
			power = t.On.Render("●")
		}
		lines = append(lines, fmt.Sprintf("%s%s %-20s %s", cursor, power, d.Name, t.Muted.Render(deviceDetail(d))))
	}
	return t.Focused.Render(strings.Join(lines, "\n"))
}

func deviceDetail(d models.Device) string {
	switch d.Kind {
	case models.KindLight:
		return fmt.Sprintf("%3d%% x%d", d.Brightness, d.Count)
	case models.KindThermostat:
		s := fmt.Sprintf("%.0f→%.0f°F", d.Current, d.Target)
		if d.EcoMode {
			s += " eco"
		}
		return s
	}
	return ""
}

func (m *Model) renderEnergy() string {
	t := m.theme
	env := m.state.Environment
	lines := []string{
		t.Bold.Render("Energy"),
		t.Highlight.Render(fmt.Sprintf("%.0f W", env.Energy.Current)),
		fmt.Sprintf("$%.4f/h  $%.2f/day", env.Energy.Costs.Hourly, env.Energy.Costs.Daily),
		fmt.Sprintf("$%.2f/month", env.Energy.Costs.Monthly),
		t.Success.Render(fmt.Sprintf("saving $%.4f/h", env.Energy.Costs.Savings)),
	}
	return t.Card.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderEfficiency() string {
	t := m.theme
	a := m.analysis
	score := t.Success
	if a.Efficiency.Overall < energy.LowEfficiency {
		score = t.Warning
	}
	lines := []string{
		t.Bold.Render("Efficiency"),
		score.Render(fmt.Sprintf("%d%%", a.Efficiency.Overall)),
		fmt.Sprintf("lighting %d%%  hvac %d%%", a.Efficiency.Lighting, a.Efficiency.HVAC),
		fmt.Sprintf("extra %.0f W", a.Consumption.Extra),
	}

	b := energy.CheckBudget(m.budget, m.state.Environment.Energy.Costs.Monthly)
	switch b.Level {
	case models.BudgetExceeded:
		lines = append(lines, t.Error.Render(fmt.Sprintf("budget %.0f%% of $%.2f", b.Percent, b.MonthlyBudget)))
	case models.BudgetWarning:
		lines = append(lines, t.Warning.Render(fmt.Sprintf("budget %.0f%% of $%.2f", b.Percent, b.MonthlyBudget)))
	case models.BudgetOK:
		lines = append(lines, t.Muted.Render(fmt.Sprintf("budget %.0f%% of $%.2f", b.Percent, b.MonthlyBudget)))
	}
	return t.Card.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderSystem() string {
	t := m.theme
	env := m.state.Environment
	armed := t.Muted.Render("disarmed")
	if m.state.System.Armed {
		armed = t.Warning.Render("armed")
	}
	lines := []string{
		t.Bold.Render("Home"),
		fmt.Sprintf("%.1f°F  %.0f%%  %s", env.Temperature, env.Humidity, env.Weather),
		fmt.Sprintf("%s  %s", m.state.System.HomeAway, armed),
	}
	return t.Card.Render(strings.Join(lines, "\n"))
}
