package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/pkg/score"
	"github.com/unklstewy/viewscout/pkg/viewshed"
	"github.com/unklstewy/viewscout/pkg/water"
)

const scoreBarWidth = 20

// Panel colours
var (
	colorGood    = lipgloss.Color("#00ff88")
	colorFair    = lipgloss.Color("#ffb300")
	colorPoor    = lipgloss.Color("#ff3d3d")
	colorWater   = lipgloss.Color("#3da5ff")
	colorDim     = lipgloss.Color("241")
	colorPrompt  = lipgloss.Color("39")
	colorInput   = lipgloss.Color("226")
	colorHeading = lipgloss.Color("86")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHeading).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrompt)
	helpStyle   = lipgloss.NewStyle().Foreground(colorDim)
	errStyle    = lipgloss.NewStyle().Foreground(colorPoor)
	waterStyle  = lipgloss.NewStyle().Foreground(colorWater)
)

func ratingColor(r analysis.Rating) lipgloss.Color {
	switch r {
	case analysis.RatingGood:
		return colorGood
	case analysis.RatingFair:
		return colorFair
	default:
		return colorPoor
	}
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("VIEWSCOUT"))
	s.WriteString("\n\n")

	if m.editing {
		prompt := "Enter coordinates (lat, lon):"
		if m.target {
			prompt = "Profile to (lat, lon):"
		}
		s.WriteString(headerStyle.Render(prompt))
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Foreground(colorInput).Render("> " + m.input + "_"))
		s.WriteString("\n\n")
		if m.err != nil {
			s.WriteString(errStyle.Render(m.err.Error()))
			s.WriteString("\n\n")
		}
		s.WriteString(helpStyle.Render("ENTER: Analyze  ESC: Cancel  CTRL+C: Quit"))
		return s.String()
	}

	fmt.Fprintf(&s, "Position  %.5f, %.5f\n", m.lat, m.lon)
	s.WriteString("Height    " + m.heightMenu() + "\n\n")

	switch {
	case m.running:
		s.WriteString(helpStyle.Render("Analyzing…"))
		s.WriteString("\n\n")
	case m.err != nil:
		s.WriteString(errStyle.Render(errorText(m.err)))
		s.WriteString("\n\n")
	}

	if m.report != nil {
		if m.showMap {
			s.WriteString(renderViewshedMap(m.report, m.width, m.height-12))
		} else {
			s.WriteString(renderReport(m.report))
		}
		s.WriteString("\n")
		if m.profiling || m.profile != nil || m.profileErr != nil {
			s.WriteString(m.profileView())
			s.WriteString("\n")
		}
	}

	s.WriteString(helpStyle.Render("←/→: Height  E: New point  P: Profile  M: Map  R: Rerun  Q: Quit"))
	return s.String()
}

// errorText is the message shown for a failed analysis.
func errorText(err error) string {
	if errors.Is(err, viewshed.ErrInvalidParams) {
		return err.Error()
	}
	return "Analysis failed — terrain data unavailable"
}

// heightMenu renders the observer height presets with the selection
// highlighted.
func (m model) heightMenu() string {
	selected := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(colorGood)
	parts := make([]string, len(m.heights))
	for i, h := range m.heights {
		label := fmt.Sprintf(" %s ", h.Label)
		if i == m.heightIdx {
			parts[i] = selected.Render(label)
		} else {
			parts[i] = helpStyle.Render(label)
		}
	}
	h := m.heights[m.heightIdx]
	return strings.Join(parts, "") + fmt.Sprintf("  %.1f m", h.Meters)
}

func renderReport(r *analysis.Report) string {
	var s strings.Builder

	total := lipgloss.NewStyle().Bold(true).Foreground(ratingColor(r.Rating))
	s.WriteString(headerStyle.Render("ViewScore "))
	s.WriteString(total.Render(fmt.Sprintf("%d", r.Score.Total)))
	s.WriteString(helpStyle.Render(" / 100"))
	s.WriteString("\n\n")

	b := r.Score.Breakdown
	for _, row := range []struct {
		label        string
		value, limit int
	}{
		{"Terrain", b.TerrainVisibility, score.MaxTerrainVisibility},
		{"Water", b.WaterBonus, score.MaxWaterBonus},
		{"Elevation", b.ElevationAdvantage, score.MaxElevationAdvantage},
		{"Distance", b.ViewDistance, score.MaxViewDistance},
	} {
		fmt.Fprintf(&s, "%-10s %s %2d/%d\n", row.label, scoreBar(row.value, row.limit, scoreBarWidth), row.value, row.limit)
	}
	s.WriteString("\n")

	w := r.Water
	s.WriteString(headerStyle.Render("Water"))
	s.WriteString("\n")
	fmt.Fprintf(&s, "  %-12s %s\n", "View", waterStyle.Render(string(w.Classification)))
	fmt.Fprintf(&s, "  %-12s %s\n", "Arc", formatArc(w.ArcDegrees))
	fmt.Fprintf(&s, "  %-12s %s\n", "Nearest", formatNearest(w))
	s.WriteString("\n")

	res := r.Result
	fmt.Fprintf(&s, "Visible   %d/%d samples (%.0f%%)  ground %.1f m\n",
		res.VisibleCount, res.TotalCount, res.VisibleFraction*100, res.TerrainHeight)
	s.WriteString(compassStrip(res, w))
	s.WriteString("\n")
	s.WriteString(compassLabels(len(res.Rays)))
	s.WriteString("\n")

	return s.String()
}

// scoreBar draws value/limit as a fixed-width bar.
func scoreBar(value, limit, width int) string {
	filled := 0
	if limit > 0 {
		filled = int(math.Round(float64(value) / float64(limit) * float64(width)))
	}
	filled = min(width, filled)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatArc(arc float64) string {
	if arc == 0 {
		return "--"
	}
	return fmt.Sprintf("%.0f°", arc)
}

func formatNearest(w water.Visibility) string {
	if w.NearestWaterDistance == nil || w.NearestWaterBearing == nil {
		return "--"
	}
	return fmt.Sprintf("%.1fkm @ %.0f°", *w.NearestWaterDistance/1000, *w.NearestWaterBearing)
}

// compassStrip draws one cell per ray: ≈ where the ray sees water,
// otherwise a shade for the fraction of the ray that is visible.
func compassStrip(res *viewshed.Result, w water.Visibility) string {
	shades := []rune(" ░▒▓█")

	var s strings.Builder
	for _, ray := range res.Rays {
		if rayInSegments(ray.Azimuth, w.Segments) {
			s.WriteString(waterStyle.Render("≈"))
			continue
		}
		visible := 0
		for _, smp := range ray.Samples {
			if smp.Visible {
				visible++
			}
		}
		idx := 0
		if len(ray.Samples) > 0 {
			idx = int(math.Round(float64(visible) / float64(len(ray.Samples)) * float64(len(shades)-1)))
		}
		s.WriteRune(shades[idx])
	}
	return s.String()
}

// rayInSegments reports whether a ray azimuth falls inside any water
// segment. Segments through north end at 360 or below their start.
func rayInSegments(azimuth float64, segs []water.Segment) bool {
	for _, seg := range segs {
		if seg.EndBearing > seg.StartBearing {
			if azimuth >= seg.StartBearing && azimuth < seg.EndBearing {
				return true
			}
			continue
		}
		if azimuth >= seg.StartBearing || azimuth < seg.EndBearing {
			return true
		}
	}
	return false
}

// compassLabels places N E S W under a strip of n cells.
func compassLabels(n int) string {
	if n < 4 {
		return ""
	}
	cells := []rune(strings.Repeat(" ", n))
	for i, label := range []rune("NESW") {
		cells[i*n/4] = label
	}
	return helpStyle.Render(string(cells))
}
