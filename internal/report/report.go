// Package report renders a terminal snapshot of the city's facilities.
package report

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/util"
)

// recentAlerts is how many alerts the city section lists.
const recentAlerts = 5

// Theme holds the styles used by the report.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Label       lipgloss.Style
	Value       lipgloss.Style
	Muted       lipgloss.Style
	Box         lipgloss.Style
	TableHeader lipgloss.Style
	Separator   lipgloss.Style

	Low      lipgloss.Style
	Medium   lipgloss.Style
	High     lipgloss.Style
	Critical lipgloss.Style
}

// DefaultTheme returns the standard report colors.
func DefaultTheme() *Theme {
	primary := lipgloss.Color("#7FDBFF")
	secondary := lipgloss.Color("#5F8FAF")
	muted := lipgloss.Color("#6C6C6C")

	return &Theme{
		Title: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		Subtitle: lipgloss.NewStyle().
			Foreground(primary).
			Underline(true),
		Label:       lipgloss.NewStyle().Foreground(secondary),
		Value:       lipgloss.NewStyle().Foreground(primary),
		Muted:       lipgloss.NewStyle().Foreground(muted),
		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(primary),
		Separator:   lipgloss.NewStyle().Foreground(secondary),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondary).
			Padding(0, 1),

		Low:      lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC40")),
		Medium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFDC00")),
		High:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF851B")),
		Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4136")).Bold(true),
	}
}

// Level styles a risk level.
func (t *Theme) Level(l models.RiskLevel) string {
	text := strings.ToUpper(string(l))
	switch l {
	case models.RiskCritical:
		return t.Critical.Render(text)
	case models.RiskHigh:
		return t.High.Render(text)
	case models.RiskMedium:
		return t.Medium.Render(text)
	default:
		return t.Low.Render(text)
	}
}

// Renderer builds the status report.
type Renderer struct {
	theme *Theme
}

// New creates a renderer. A nil theme uses DefaultTheme.
func New(theme *Theme) *Renderer {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Renderer{theme: theme}
}

// Render lays out one section per entity type, in city, hospital, lab,
// pharmacy, supplier order. Empty sections are omitted.
func (r *Renderer) Render(entities []*models.Entity, now time.Time) string {
	byType := make(map[models.EntityType][]*models.Entity)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e)
	}
	for _, list := range byType {
		slices.SortFunc(list, func(a, b *models.Entity) int {
			if c := strings.Compare(string(a.Zone), string(b.Zone)); c != 0 {
				return c
			}
			return strings.Compare(a.Name, b.Name)
		})
	}

	sections := []string{r.theme.Title.Render("HealSync status") + "  " + r.theme.Muted.Render(now.UTC().Format(time.RFC3339))}
	for _, c := range byType[models.EntityTypeCity] {
		sections = append(sections, r.city(c, now))
	}
	if s := r.hospitals(byType[models.EntityTypeHospital]); s != "" {
		sections = append(sections, s)
	}
	if s := r.labs(byType[models.EntityTypeLab]); s != "" {
		sections = append(sections, s)
	}
	if s := r.pharmacies(byType[models.EntityTypePharmacy]); s != "" {
		sections = append(sections, s)
	}
	if s := r.suppliers(byType[models.EntityTypeSupplier]); s != "" {
		sections = append(sections, s)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (r *Renderer) city(e *models.Entity, now time.Time) string {
	cs := e.City
	if cs == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(r.theme.Subtitle.Render(e.Name))
	b.WriteString("\n")
	b.WriteString(r.field("Overall risk", r.theme.Level(cs.Overall)))
	if c := cs.LastCrisis; c != nil {
		b.WriteString(r.field("Crisis", fmt.Sprintf("%s (score %.1f, %s)", c.Severity, c.Score, c.Source)))
	}

	rows := make([][]string, 0, len(models.AllZones))
	for _, z := range models.AllZones {
		zr, ok := cs.RiskZones[z]
		if !ok {
			rows = append(rows, []string{string(z), r.theme.Level(models.RiskLow), "-"})
			continue
		}
		var hot []string
		for d, l := range zr.Diseases {
			if l.AtLeast(models.RiskMedium) {
				hot = append(hot, fmt.Sprintf("%s:%s", d, l))
			}
		}
		slices.Sort(hot)
		rows = append(rows, []string{string(z), r.theme.Level(zr.Overall), orDash(strings.Join(hot, " "))})
	}
	b.WriteString(r.table([]column{{"Zone", 8}, {"Risk", 10}, {"Diseases", 40}}, rows))

	alerts := cs.Alerts.Items
	if n := len(alerts); n > 0 {
		b.WriteString("\n")
		b.WriteString(r.theme.Label.Render(fmt.Sprintf("Recent alerts (%d total)", n)))
		b.WriteString("\n")
		start := max(0, n-recentAlerts)
		for i := n - 1; i >= start; i-- {
			a := alerts[i]
			msg := a.Message
			if a.Status == models.AlertAcknowledged {
				msg = r.theme.Muted.Render(msg + " (ack)")
			}
			fmt.Fprintf(&b, "  %s %s %s %s\n",
				r.theme.Muted.Render(fmt.Sprintf("%-8s", util.ShortID(a.ID))),
				r.theme.Muted.Render(fmt.Sprintf("%-8s", util.RelativeTimeString(a.Timestamp, now))),
				r.theme.Level(a.Severity),
				msg,
			)
		}
	}
	return r.theme.Box.Render(strings.TrimRight(b.String(), "\n"))
}

func (r *Renderer) hospitals(list []*models.Entity) string {
	if len(list) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		hs := e.Hospital
		if hs == nil {
			continue
		}
		vent := hs.Equipment[models.EquipmentVentilators]
		ventilators := "-"
		if vent != nil {
			ventilators = fmt.Sprintf("%d/%d", vent.Available, vent.Total)
		}
		status := "-"
		if hs.Strain != nil {
			status = hs.Strain.Level
		}
		rows = append(rows, []string{
			e.Name,
			string(e.Zone),
			percent(hs.Occupancy()),
			percent(hs.ICUUtilization()),
			ventilators,
			fmt.Sprintf("%.0fm", hs.Flow.ERWaitMinutes),
			status,
		})
	}
	return r.section("Hospitals", []column{
		{"Name", 28}, {"Zone", 8}, {"Beds", 6}, {"ICU", 6}, {"Vents", 7}, {"ER wait", 8}, {"Strain", 10},
	}, rows)
}

func (r *Renderer) labs(list []*models.Entity) string {
	if len(list) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		ls := e.Lab
		if ls == nil {
			continue
		}
		var active []string
		for _, d := range slices.Sorted(maps.Keys(ls.Tests)) {
			if ls.Tests[d].OutbreakActive {
				active = append(active, string(d))
			}
		}
		rows = append(rows, []string{
			e.Name,
			string(e.Zone),
			percent(ls.Utilization()),
			orDash(strings.Join(active, " ")),
		})
	}
	return r.section("Labs", []column{{"Name", 28}, {"Zone", 8}, {"Load", 6}, {"Outbreaks", 30}}, rows)
}

func (r *Renderer) pharmacies(list []*models.Entity) string {
	if len(list) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		ps := e.Pharmacy
		if ps == nil {
			continue
		}
		var low []string
		for _, name := range slices.Sorted(maps.Keys(ps.Medicines)) {
			m := ps.Medicines[name]
			if m.NeedsReorder() {
				low = append(low, fmt.Sprintf("%s(%s)", name, days(m.DaysLeft())))
			}
		}
		rows = append(rows, []string{
			e.Name,
			string(e.Zone),
			orDash(strings.Join(low, " ")),
			fmt.Sprintf("%d", len(ps.PendingOrders)),
		})
	}
	return r.section("Pharmacies", []column{{"Name", 28}, {"Zone", 8}, {"Low stock", 36}, {"Pending", 8}}, rows)
}

func (r *Renderer) suppliers(list []*models.Entity) string {
	if len(list) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		ss := e.Supplier
		if ss == nil {
			continue
		}
		zones := make([]string, 0, len(ss.ServiceZones))
		for _, z := range ss.ServiceZones {
			zones = append(zones, string(z))
		}
		open := 0
		for _, o := range ss.ActiveOrders {
			if o.Status != models.OrderDelivered {
				open++
			}
		}
		rows = append(rows, []string{
			e.Name,
			strings.Join(zones, ","),
			fmt.Sprintf("%d/%d", ss.Fleet.Available, ss.Fleet.Vehicles),
			fmt.Sprintf("%d", open),
			orDash(strings.Join(ss.LowInventory(), " ")),
		})
	}
	return r.section("Suppliers", []column{{"Name", 28}, {"Zones", 16}, {"Fleet", 6}, {"Open", 5}, {"Low inventory", 30}}, rows)
}

func (r *Renderer) section(title string, cols []column, rows [][]string) string {
	return r.theme.Box.Render(r.theme.Subtitle.Render(title) + "\n" + strings.TrimRight(r.table(cols, rows), "\n"))
}

func (r *Renderer) field(label, value string) string {
	return r.theme.Label.Render(label+": ") + r.theme.Value.Render(value) + "\n"
}

type column struct {
	title string
	width int
}

func (r *Renderer) table(cols []column, rows [][]string) string {
	var b strings.Builder
	total := 0
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.title
		total += c.width + 1
	}
	b.WriteString(r.row(cols, headers, r.theme.TableHeader))
	b.WriteString(r.theme.Separator.Render(strings.Repeat("-", total)))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(r.row(cols, row, lipgloss.NewStyle()))
	}
	return b.String()
}

func (r *Renderer) row(cols []column, cells []string, style lipgloss.Style) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = style.Width(c.width).MaxWidth(c.width).Render(cell)
	}
	return strings.Join(parts, " ") + "\n"
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func days(v float64) string {
	if math.IsInf(v, 1) {
		return "-"
	}
	return fmt.Sprintf("%.1fd", v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
