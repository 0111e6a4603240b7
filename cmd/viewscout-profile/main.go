package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/pkg/config"
	"github.com/unklstewy/viewscout/pkg/terrain"
	"github.com/unklstewy/viewscout/pkg/viewshed"
)

// barWidth is the width of the widest elevation bar.
const barWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff88"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3da5ff"))
)

// main prints the terrain elevation profile between two points.
func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	from := flag.String("from", "", `Start point as "lat, lon"`)
	to := flag.String("to", "", `End point as "lat, lon"`)
	samples := flag.Int("samples", 0, "Number of profile intervals (default from config)")
	asJSON := flag.Bool("json", false, "Print the profile as JSON")
	flag.Parse()

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, `usage: viewscout-profile -from "lat, lon" -to "lat, lon" [-samples N] [-json]`)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	cfg.Logging.Format = "console"
	logging.Init(cfg.Logging)

	fromLat, fromLon, err := analysis.ParseCoordinates(*from)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid -from")
	}
	toLat, toLon, err := analysis.ParseCoordinates(*to)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid -to")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := analysis.NewService(terrain.NewSampler(cfg.Terrain, nil), cfg.Analysis)
	profile, err := svc.Profile(ctx, analysis.ProfileRequest{
		FromLat:    fromLat,
		FromLon:    fromLon,
		ToLat:      toLat,
		ToLon:      toLon,
		NumSamples: *samples,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("profile failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(profile); err != nil {
			logging.Fatal().Err(err).Msg("failed to encode profile")
		}
		return
	}

	fmt.Print(render(profile))
}

// render draws the profile as a table with one elevation bar per point.
func render(profile []viewshed.ProfilePoint) string {
	lo, hi := profile[0].Elevation, profile[0].Elevation
	for _, p := range profile {
		lo = min(lo, p.Elevation)
		hi = max(hi, p.Elevation)
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%9s  %9s  %10s  %11s", "DIST km", "ELEV m", "LAT", "LON")))
	b.WriteByte('\n')
	for _, p := range profile {
		n := 1
		if hi > lo {
			n += int((p.Elevation - lo) / (hi - lo) * (barWidth - 1))
		}
		fmt.Fprintf(&b, "%9.2f  %9.1f  %10.5f  %11.5f  %s\n",
			p.Distance/1000, p.Elevation, p.Lat, p.Lon, barStyle.Render(strings.Repeat("█", n)))
	}
	fmt.Fprintf(&b, "min %.1f m  max %.1f m  relief %.1f m\n", lo, hi, hi-lo)
	return b.String()
}
