package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/viewscout/internal/analysis"
	"github.com/unklstewy/viewscout/internal/logging"
	"github.com/unklstewy/viewscout/pkg/config"
	"github.com/unklstewy/viewscout/pkg/terrain"
	"github.com/unklstewy/viewscout/pkg/viewshed"
)

// reportMsg carries the outcome of one analysis run.
type reportMsg struct {
	report *analysis.Report
	err    error
}

type model struct {
	ctx     context.Context
	svc     *analysis.Service
	session *analysis.Session
	heights []config.HeightPreset

	heightIdx int
	lat, lon  float64
	hasPoint  bool

	// Coordinate entry; target selects the profile prompt
	editing bool
	target  bool
	input   string

	running bool
	report  *analysis.Report
	err     error

	// Elevation profile from the observer to a target point
	profiling              bool
	profile                []viewshed.ProfilePoint
	profileErr             error
	profileLat, profileLon float64

	showMap       bool
	width, height int
}

func newModel(ctx context.Context, svc *analysis.Service) model {
	cfg := svc.Config()
	m := model{
		ctx:     ctx,
		svc:     svc,
		session: analysis.NewSession(svc),
		heights: cfg.Heights,
		editing: true,
		width:   100,
		height:  40,
	}
	// Start on the preset matching the default height, if any
	for i, h := range cfg.Heights {
		if h.Meters == cfg.ObserverHeight {
			m.heightIdx = i
			break
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

// analyze starts a run for the current point and height. Earlier runs still
// in flight are superseded by the session.
func (m *model) analyze() tea.Cmd {
	if !m.hasPoint {
		return nil
	}
	req := m.svc.NewRequest(m.lat, m.lon)
	req.ObserverHeight = m.heights[m.heightIdx].Meters
	m.running = true
	m.err = nil

	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		report, err := session.Run(ctx, req)
		return reportMsg{report: report, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case reportMsg:
		if errors.Is(msg.err, analysis.ErrSuperseded) {
			// a newer run is on its way
			return m, nil
		}
		m.running = false
		if msg.err != nil {
			m.err = msg.err
			m.report = nil
			return m, nil
		}
		m.report = msg.report

	case profileMsg:
		if !m.profiling {
			// observer changed while sampling
			return m, nil
		}
		m.profiling = false
		m.profile, m.profileErr = msg.points, msg.err

	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			if m.heightIdx > 0 {
				m.heightIdx--
				return m, m.analyze()
			}
		case "right", "l":
			if m.heightIdx < len(m.heights)-1 {
				m.heightIdx++
				return m, m.analyze()
			}
		case "e", "/":
			m.editing = true
			m.target = false
			m.input = ""
			m.err = nil
		case "p":
			if m.report != nil {
				m.editing = true
				m.target = true
				m.input = ""
				m.err = nil
			}
		case "m":
			m.showMap = !m.showMap
		case "r":
			return m, m.analyze()
		}
	}

	return m, nil
}

// updateInput handles keys while the coordinate prompt is open.
func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		lat, lon, err := analysis.ParseCoordinates(m.input)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.editing = false
		m.input = ""
		if m.target {
			m.target = false
			m.profileLat, m.profileLon = lat, lon
			return m, m.runProfile(lat, lon)
		}
		m.lat, m.lon, m.hasPoint = lat, lon, true
		// a new observer invalidates the profile
		m.profile, m.profileErr, m.profiling = nil, nil, false
		return m, m.analyze()
	case "esc":
		if m.hasPoint {
			m.editing = false
		}
		m.target = false
		m.input = ""
		m.err = nil
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		case tea.KeySpace:
			m.input += " "
		}
	}
	return m, nil
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	point := flag.String("at", "", `Analyze this point on start, as "lat, lon"`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs would corrupt the terminal UI
	cfg.Logging.Output = io.Discard
	if os.Getenv("VIEWSCOUT_DEBUG_LOG") != "" {
		if f, err := tea.LogToFile(os.Getenv("VIEWSCOUT_DEBUG_LOG"), "viewscout"); err == nil {
			defer f.Close()
			cfg.Logging.Output = f
		}
	}
	logging.Init(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := analysis.NewService(terrain.NewSampler(cfg.Terrain, nil), cfg.Analysis)
	m := newModel(ctx, svc)

	var initial tea.Cmd
	if *point != "" {
		lat, lon, err := analysis.ParseCoordinates(*point)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -at: %v\n", err)
			os.Exit(1)
		}
		m.lat, m.lon, m.hasPoint, m.editing = lat, lon, true, false
		initial = m.analyze()
	}

	p := tea.NewProgram(startModel{model: m, initial: initial}, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startModel runs an initial command once, then behaves as model.
type startModel struct {
	model
	initial tea.Cmd
}

func (s startModel) Init() tea.Cmd {
	return s.initial
}
