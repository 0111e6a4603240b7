package main

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/pkg/viewshed"
)

const profileRows = 8

// profileMsg carries the outcome of an elevation profile run.
type profileMsg struct {
	points []viewshed.ProfilePoint
	err    error
}

// runProfile samples the terrain from the last analysed observer to
// (lat, lon) with the configured number of samples.
func (m *model) runProfile(lat, lon float64) tea.Cmd {
	if m.report == nil {
		return nil
	}
	res := m.report.Result
	req := analysis.ProfileRequest{
		FromLat: res.ObserverLat,
		FromLon: res.ObserverLon,
		ToLat:   lat,
		ToLon:   lon,
	}
	m.profiling = true
	m.profileErr = nil

	svc, ctx := m.svc, m.ctx
	return func() tea.Msg {
		points, err := svc.Profile(ctx, req)
		return profileMsg{points: points, err: err}
	}
}

// renderProfile draws the terrain between observer and target as columns,
// one per profile point, with the observer's eye level marked at the left.
func renderProfile(points []viewshed.ProfilePoint, eye float64, rows int) string {
	if len(points) == 0 {
		return ""
	}

	lo, hi := eye, eye
	for _, p := range points {
		lo = math.Min(lo, p.Elevation)
		hi = math.Max(hi, p.Elevation)
	}
	if hi == lo {
		hi = lo + 1
	}
	level := func(e float64) int {
		return int(math.Round((e - lo) / (hi - lo) * float64(rows-1)))
	}
	eyeRow := level(eye)

	terrainStyle := lipgloss.NewStyle().Foreground(colorGood)
	eyeStyle := lipgloss.NewStyle().Foreground(colorInput).Bold(true)

	var s strings.Builder
	for r := rows - 1; r >= 0; r-- {
		fmt.Fprintf(&s, "%7.0f ", lo+float64(r)/float64(rows-1)*(hi-lo))
		for i, p := range points {
			switch {
			case i == 0 && r == eyeRow:
				s.WriteString(eyeStyle.Render("◉"))
			case level(p.Elevation) >= r:
				s.WriteString(terrainStyle.Render("█"))
			case r == eyeRow:
				s.WriteString(helpStyle.Render("┄"))
			default:
				s.WriteString(" ")
			}
		}
		s.WriteString("\n")
	}

	last := points[len(points)-1]
	fmt.Fprintf(&s, "%7s 0 km%s%.1f km\n", "", strings.Repeat(" ", max(len(points)-10, 1)), last.Distance/1000)
	return s.String()
}

// profileView is the profile panel shown under the report.
func (m model) profileView() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(fmt.Sprintf("Profile to %.5f, %.5f", m.profileLat, m.profileLon)))
	s.WriteString("\n")

	switch {
	case m.profiling:
		s.WriteString(helpStyle.Render("Sampling…"))
		s.WriteString("\n")
	case m.profileErr != nil:
		s.WriteString(errStyle.Render(errorText(m.profileErr)))
		s.WriteString("\n")
	case m.profile != nil:
		s.WriteString(renderProfile(m.profile, m.report.Result.ObserverElevation(), profileRows))
	}
	return s.String()
}
