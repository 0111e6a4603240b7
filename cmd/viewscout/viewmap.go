package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/pkg/water"
)

// Terminal cells are about twice as tall as they are wide; x offsets are
// doubled so rings look round.
const aspectRatio = 0.5

const (
	minMapWidth  = 40
	minMapHeight = 15
)

type cell int

const (
	cellEmpty cell = iota
	cellHidden
	cellVisible
	cellWater
	cellObserver
)

// mapToScreen converts a sample's polar position (meters, compass bearing)
// to a cell of a width×height grid centered on the observer. It returns
// -1, -1 when the point falls outside the grid.
func mapToScreen(distance, bearing, radius float64, width, height int) (int, int) {
	if radius <= 0 || distance > radius {
		return -1, -1
	}

	centerX := width / 2
	centerY := height / 2

	// Fit the radius within the smaller dimension
	maxY := float64(height/2 - 1)
	maxX := float64(width/2-1) * aspectRatio
	scale := math.Min(maxX, maxY) / radius

	rad := bearing * math.Pi / 180.0
	d := distance * scale

	// Bearing 0° is up, 90° is right
	x := centerX + int(math.Round(d*math.Sin(rad)/aspectRatio))
	y := centerY - int(math.Round(d*math.Cos(rad)))

	if x < 0 || x >= width || y < 0 || y >= height {
		return -1, -1
	}
	return x, y
}

// plotViewshed places every sample of a report on a grid. Where samples
// share a cell, water wins over visible and visible over hidden.
func plotViewshed(r *analysis.Report, width, height int) [][]cell {
	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, width)
	}

	radius := 0.0
	for _, ray := range r.Result.Rays {
		for _, s := range ray.Samples {
			radius = math.Max(radius, s.Distance)
		}
	}

	for _, ray := range r.Result.Rays {
		for _, s := range ray.Samples {
			x, y := mapToScreen(s.Distance, ray.Azimuth, radius, width, height)
			if x < 0 {
				continue
			}
			c := cellHidden
			switch {
			case water.IsWater(s):
				c = cellWater
			case s.Visible:
				c = cellVisible
			}
			if c > grid[y][x] {
				grid[y][x] = c
			}
		}
	}

	grid[height/2][width/2] = cellObserver
	return grid
}

// renderViewshedMap draws the viewshed as a polar plot around the observer.
func renderViewshedMap(r *analysis.Report, width, height int) string {
	width = max(width-2, minMapWidth)
	height = max(height, minMapHeight)

	glyphs := map[cell]string{
		cellEmpty:    " ",
		cellHidden:   lipgloss.NewStyle().Foreground(colorPoor).Render("·"),
		cellVisible:  lipgloss.NewStyle().Foreground(colorGood).Render("•"),
		cellWater:    waterStyle.Render("≈"),
		cellObserver: lipgloss.NewStyle().Foreground(colorInput).Bold(true).Render("◉"),
	}

	var s strings.Builder
	for _, row := range plotViewshed(r, width, height) {
		for _, c := range row {
			s.WriteString(glyphs[c])
		}
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("• visible  · hidden  ≈ water  ◉ observer"))
	s.WriteString("\n")
	return s.String()
}
