package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/pkg/config"
	"github.com/unklstewy/viewscout/pkg/terrain"
	"github.com/unklstewy/viewscout/pkg/viewshed"
	"github.com/unklstewy/viewscout/pkg/water"
)

func testModel() model {
	cfg := config.DefaultConfig().Analysis
	cfg.NumAzimuths = 8
	cfg.NumSamplesPerRay = 10
	return newModel(context.Background(), analysis.NewService(terrain.Flat(0), cfg))
}

func typeString(m model, s string) model {
	for _, r := range s {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
		if r == ' ' {
			msg = tea.KeyMsg{Type: tea.KeySpace}
		}
		next, _ := m.Update(msg)
		m = next.(model)
	}
	return m
}

// runCmd executes a command synchronously and feeds its message back.
func runCmd(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(model)
}

func TestNewModelDefaults(t *testing.T) {
	m := testModel()
	if !m.editing {
		t.Error("Expected coordinate prompt on start")
	}
	if m.heights[m.heightIdx].Label != "GROUND" {
		t.Errorf("Expected GROUND preset selected, got %s", m.heights[m.heightIdx].Label)
	}
}

func TestCoordinateEntry(t *testing.T) {
	m := typeString(testModel(), "21.262, -157.806")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if m.editing || !m.hasPoint {
		t.Fatal("Expected prompt closed with a point set")
	}
	if m.lat != 21.262 || m.lon != -157.806 {
		t.Errorf("Expected (21.262, -157.806), got (%v, %v)", m.lat, m.lon)
	}
	if !m.running {
		t.Error("Expected analysis to be running")
	}

	m = runCmd(t, m, cmd)
	if m.running || m.report == nil {
		t.Fatal("Expected a report")
	}
	if m.report.Request.ObserverHeight != 1.7 {
		t.Errorf("Expected GROUND height, got %v", m.report.Request.ObserverHeight)
	}
}

func TestCoordinateEntryInvalid(t *testing.T) {
	m := typeString(testModel(), "somewhere")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	if cmd != nil {
		t.Error("Expected no analysis for invalid input")
	}
	if !m.editing || m.err == nil {
		t.Error("Expected prompt to stay open with an error")
	}
	if !strings.Contains(m.View(), m.err.Error()) {
		t.Error("Expected the error in the view")
	}
}

func TestHeightChangeReruns(t *testing.T) {
	m := typeString(testModel(), "0, 0")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = runCmd(t, next.(model), cmd)

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(model)
	if m.heights[m.heightIdx].Label != "1 STORY" {
		t.Fatalf("Expected 1 STORY, got %s", m.heights[m.heightIdx].Label)
	}
	m = runCmd(t, m, cmd)
	if m.report.Request.ObserverHeight != 4 {
		t.Errorf("Expected rerun at 4 m, got %v", m.report.Request.ObserverHeight)
	}

	// already at the lowest preset after two steps left
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	next, cmd = next.(model).Update(tea.KeyMsg{Type: tea.KeyLeft})
	if cmd != nil {
		t.Error("Expected no rerun past the first preset")
	}
	if next.(model).heightIdx != 0 {
		t.Errorf("Expected first preset, got %d", next.(model).heightIdx)
	}
}

func TestProfileToTarget(t *testing.T) {
	m := testModel()

	// no report yet: nothing to profile from
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	if m = next.(model); m.editing && m.target {
		t.Fatal("Expected no profile prompt before the first analysis")
	}

	m = typeString(m, "0, 0")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = runCmd(t, next.(model), cmd)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = next.(model)
	if !m.editing || !m.target {
		t.Fatal("Expected the profile prompt")
	}
	if !strings.Contains(m.View(), "Profile to") {
		t.Error("Expected the profile prompt in the view")
	}

	m = typeString(m, "0.05, 0")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if m.editing || !m.profiling {
		t.Fatal("Expected the prompt closed and a profile running")
	}
	if m.lat != 0 || m.lon != 0 {
		t.Errorf("Expected the observer unchanged, got (%v, %v)", m.lat, m.lon)
	}

	m = runCmd(t, m, cmd)
	if m.profiling || m.profileErr != nil {
		t.Fatalf("Expected a finished profile, got err %v", m.profileErr)
	}
	if want := m.svc.Config().ProfileSamples + 1; len(m.profile) != want {
		t.Errorf("Expected %d profile points, got %d", want, len(m.profile))
	}
	first, last := m.profile[0], m.profile[len(m.profile)-1]
	if first.Lat != 0 || first.Lon != 0 || last.Lat != 0.05 {
		t.Errorf("Expected profile from observer to target, got %+v .. %+v", first, last)
	}
	if !strings.Contains(m.View(), "Profile to 0.05000, 0.00000") {
		t.Error("Expected the profile panel in the view")
	}
}

func TestProfileDiscardedOnNewObserver(t *testing.T) {
	m := testModel()
	m = typeString(m, "0, 0")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = runCmd(t, next.(model), cmd)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = typeString(next.(model), "0.05, 0")
	next, profileCmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	// pick a new observer before the profile returns
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	m = typeString(next.(model), "1, 1")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	m = runCmd(t, m, profileCmd)
	if m.profile != nil {
		t.Error("Expected a profile from the old observer to be dropped")
	}
}

func TestRenderProfile(t *testing.T) {
	points := []viewshed.ProfilePoint{
		{Distance: 0, Elevation: 0},
		{Distance: 500, Elevation: 70},
		{Distance: 1000, Elevation: 35},
	}
	out := renderProfile(points, 10, 8)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 9 {
		t.Fatalf("Expected 8 rows and an axis, got %d lines:\n%s", len(lines), out)
	}
	if strings.Count(lines[0], "█") != 1 {
		t.Errorf("Expected only the peak in the top row, got %q", lines[0])
	}
	if strings.Count(lines[7], "█") != 3 {
		t.Errorf("Expected every column in the bottom row, got %q", lines[7])
	}
	if strings.Count(out, "◉") != 1 {
		t.Errorf("Expected one eye marker, got:\n%s", out)
	}
	if !strings.Contains(lines[8], "1.0 km") {
		t.Errorf("Expected the distance axis, got %q", lines[8])
	}
	if renderProfile(nil, 0, 8) != "" {
		t.Error("Expected nothing for an empty profile")
	}
}

func TestSupersededReportIgnored(t *testing.T) {
	m := testModel()
	m.running = true
	m.report = &analysis.Report{}

	next, _ := m.Update(reportMsg{err: analysis.ErrSuperseded})
	m = next.(model)
	if !m.running || m.err != nil || m.report == nil {
		t.Error("Expected superseded result to leave the model untouched")
	}

	next, _ = m.Update(reportMsg{err: errors.New("boom")})
	m = next.(model)
	if m.running || m.err == nil {
		t.Error("Expected failure to stop the run and record the error")
	}
}

func TestErrorText(t *testing.T) {
	if got := errorText(errors.New("timeout")); got != "Analysis failed — terrain data unavailable" {
		t.Errorf("Unexpected terrain failure text: %s", got)
	}
	invalid := errors.Join(viewshed.ErrInvalidParams, errors.New("radius too large"))
	if got := errorText(invalid); got != invalid.Error() {
		t.Errorf("Expected the validation message, got %s", got)
	}
}

func TestScoreBar(t *testing.T) {
	tests := []struct {
		value, limit int
		want         string
	}{
		{30, 30, "██████████"},
		{15, 30, "█████░░░░░"},
		{0, 20, "░░░░░░░░░░"},
		{5, 0, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		if got := scoreBar(tt.value, tt.limit, 10); got != tt.want {
			t.Errorf("scoreBar(%d, %d): expected %s, got %s", tt.value, tt.limit, tt.want, got)
		}
	}
}

func TestWaterFormatting(t *testing.T) {
	if got := formatArc(0); got != "--" {
		t.Errorf("Expected --, got %s", got)
	}
	if got := formatArc(95); got != "95°" {
		t.Errorf("Expected 95°, got %s", got)
	}

	if got := formatNearest(water.Visibility{}); got != "--" {
		t.Errorf("Expected --, got %s", got)
	}
	d, b := 2350.0, 45.0
	if got := formatNearest(water.Visibility{NearestWaterDistance: &d, NearestWaterBearing: &b}); got != "2.4km @ 45°" {
		t.Errorf("Expected 2.4km @ 45°, got %s", got)
	}
}

func TestRayInSegments(t *testing.T) {
	// 72 rays at 5°: sea at 180 and on both sides of north
	rays := make([]viewshed.RayResult, 72)
	for i := range rays {
		rays[i] = viewshed.RayResult{
			Azimuth: float64(i) * 5,
			Samples: []viewshed.RaySample{{Distance: 1000, Elevation: 50, Visible: true}},
		}
	}
	for _, i := range []int{36, 71, 0, 1} {
		rays[i].Samples[0].Elevation = 0
	}
	vis := water.Detect(&viewshed.Result{Rays: rays})

	if len(vis.Segments) != 2 || vis.Segments[1] != (water.Segment{StartBearing: 355, EndBearing: 10}) {
		t.Fatalf("Expected a merged segment through north, got %v", vis.Segments)
	}

	tests := map[float64]bool{
		355: true,
		0:   true,
		5:   true,
		10:  false,
		350: false,
		180: true,
		185: false,
		90:  false,
	}
	for az, want := range tests {
		if got := rayInSegments(az, vis.Segments); got != want {
			t.Errorf("rayInSegments(%v): expected %v, got %v", az, want, got)
		}
	}

	if !rayInSegments(355, []water.Segment{{StartBearing: 355, EndBearing: 360}}) {
		t.Error("Expected a segment ending at north to cover its last ray")
	}
}

func TestCompassLabels(t *testing.T) {
	if got := compassLabels(8); !strings.Contains(got, "N E S W ") {
		t.Errorf("Expected evenly spaced labels, got %q", got)
	}
	if got := compassLabels(2); got != "" {
		t.Errorf("Expected no labels for a short strip, got %q", got)
	}
}

func TestMapToScreen(t *testing.T) {
	const w, h = 41, 21

	x, y := mapToScreen(0, 0, 1000, w, h)
	if x != 20 || y != 10 {
		t.Errorf("Expected observer at center (20, 10), got (%d, %d)", x, y)
	}

	x, y = mapToScreen(1000, 0, 1000, w, h)
	if x != 20 || y >= 10 {
		t.Errorf("Expected north point above center, got (%d, %d)", x, y)
	}

	x, y = mapToScreen(1000, 90, 1000, w, h)
	if x <= 20 || y != 10 {
		t.Errorf("Expected east point right of center, got (%d, %d)", x, y)
	}

	if x, y = mapToScreen(1500, 0, 1000, w, h); x != -1 || y != -1 {
		t.Errorf("Expected point beyond radius to be dropped, got (%d, %d)", x, y)
	}
}

func TestRenderReport(t *testing.T) {
	svc := analysis.NewService(terrain.Flat(0), testModel().svc.Config())
	req := svc.NewRequest(0, 0)
	req.ObserverHeight = 10
	report, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	out := renderReport(report)
	for _, want := range []string{"82", "Panoramic", "360°", "1.0km @ 0°", "80/80"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in report view:\n%s", want, out)
		}
	}

	grid := plotViewshed(report, 41, 21)
	if grid[10][20] != cellObserver {
		t.Error("Expected observer at the grid center")
	}
	wet := 0
	for _, row := range grid {
		for _, c := range row {
			if c == cellWater {
				wet++
			}
		}
	}
	if wet == 0 {
		t.Error("Expected water cells on a sea-level plain")
	}
}
