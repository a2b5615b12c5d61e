package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/kass/go-map-viewpoint/pkg/config"
	"github.com/kass/go-map-viewpoint/pkg/models"
	"github.com/kass/go-map-viewpoint/pkg/surface"
	"github.com/kass/go-map-viewpoint/pkg/viewport"
)

const (
	mapWidth  = 72
	mapHeight = 22
	fps       = 30
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	mapStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

type frameMsg time.Time

type messageMsg string

type basemapReloadedMsg struct {
	count int
}

type model struct {
	surface *surface.Surface
	ctrl    *viewport.Controller
	cfg     config.Config

	progress progress.Model
	spring   harmonica.Spring

	// Rendered camera, spring-smoothed toward the surface viewpoint.
	// Scale is tracked in log space to match geometric zoom.
	camX, camY, camLogScale float64
	velX, velY, velLogScale float64
	camReady                bool

	active         viewport.Transition
	activeName     string
	activeStart    time.Time
	activeDuration time.Duration

	messages []string
	width    int
	height   int
}

func newModel(s *surface.Surface, ctrl *viewport.Controller, cfg config.Config) model {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = mapWidth

	return model{
		surface:  s,
		ctrl:     ctrl,
		cfg:      cfg,
		progress: p,
		spring:   harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.9),
		messages: []string{},
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.surface.Dispose()
			return m, tea.Quit
		case "l":
			return m.applyBookmark("london"), nil
		case "w":
			return m.applyBookmark("waterloo"), nil
		case "m":
			return m.applyBookmark("westminster"), nil
		}
		return m, nil

	case frameMsg:
		m.stepCamera()
		m.pollTransition()
		return m, tick()

	case messageMsg:
		return m.pushMessage(string(msg)), nil

	case basemapReloadedMsg:
		return m.pushMessage(fmt.Sprintf("basemap reloaded, %d features", msg.count)), nil
	}

	return m, nil
}

// applyBookmark issues the viewport request a bookmark describes. A new
// request supersedes the in-flight transition; the surface cancels it.
func (m model) applyBookmark(name string) model {
	bm, ok := m.cfg.Bookmark(name)
	if !ok {
		return m.pushMessage(errorStyle.Render(fmt.Sprintf("no bookmark %q", name)))
	}

	var (
		t   viewport.Transition
		err error
	)
	switch {
	case bm.IsFit():
		t, err = m.ctrl.FitTo(bm.Geometry(m.ctrl.SpatialReference()))
	case bm.IsAnimated():
		t, err = m.ctrl.AnimateTo(m.ctrl.Location(bm.X, bm.Y), models.Scale(bm.Scale),
			time.Duration(bm.DurationSeconds*float64(time.Second)))
	default:
		t, err = m.ctrl.CenterOn(m.ctrl.Location(bm.X, bm.Y), models.Scale(bm.Scale))
	}
	if err != nil {
		return m.pushMessage(errorStyle.Render(fmt.Sprintf("%s: %v", name, err)))
	}

	m.active = t
	m.activeName = name
	m.activeStart = time.Now()
	m.activeDuration = time.Duration(bm.DurationSeconds * float64(time.Second))
	return m.pushMessage(infoStyle.Render("→ " + name))
}

// stepCamera springs the rendered camera toward the surface viewpoint.
func (m *model) stepCamera() {
	vp := m.surface.Viewpoint()
	targetLog := math.Log(float64(vp.Scale))

	if !m.camReady {
		m.camX, m.camY, m.camLogScale = vp.Center.X, vp.Center.Y, targetLog
		m.camReady = true
		return
	}

	m.camX, m.velX = m.spring.Update(m.camX, m.velX, vp.Center.X)
	m.camY, m.velY = m.spring.Update(m.camY, m.velY, vp.Center.Y)
	m.camLogScale, m.velLogScale = m.spring.Update(m.camLogScale, m.velLogScale, targetLog)
}

// pollTransition notices a finished transition without blocking the
// render loop.
func (m *model) pollTransition() {
	if m.active == nil {
		return
	}
	select {
	case <-m.active.Done():
		if err := m.active.Err(); err != nil {
			m.messages = appendMessage(m.messages,
				dimStyle.Render(fmt.Sprintf("%s ended: %v", m.activeName, err)))
		} else {
			m.messages = appendMessage(m.messages,
				successStyle.Render(m.activeName+" ✓"))
		}
		m.active = nil
	default:
	}
}

func (m model) pushMessage(msg string) model {
	m.messages = appendMessage(m.messages, msg)
	return m
}

func appendMessage(messages []string, msg string) []string {
	messages = append(messages, msg)
	if len(messages) > 5 {
		messages = messages[1:]
	}
	return messages
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🗺  Map Viewpoint"))
	b.WriteString("\n")

	b.WriteString(mapStyle.Render(m.renderMap()))
	b.WriteString("\n")

	vp := m.surface.Viewpoint()
	visible, _ := m.surface.VisibleFeatures()
	b.WriteString(fmt.Sprintf("Center %s  Scale %s  Features %s\n",
		statStyle.Render(fmt.Sprintf("(%.0f, %.0f)", vp.Center.X, vp.Center.Y)),
		statStyle.Render(fmt.Sprintf("1:%.0f", float64(vp.Scale))),
		statStyle.Render(fmt.Sprintf("%d/%d", len(visible), m.surface.FeatureCount())),
	))

	if m.active != nil && m.activeDuration > 0 {
		pct := float64(time.Since(m.activeStart)) / float64(m.activeDuration)
		if pct > 1 {
			pct = 1
		}
		b.WriteString(m.progress.ViewAs(pct))
		b.WriteString("\n")
	}

	if len(m.messages) > 0 {
		b.WriteString("\n")
		for _, msg := range m.messages {
			b.WriteString(dimStyle.Render("• "))
			b.WriteString(msg)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("l: London (animate)  w: Waterloo (center)  m: Westminster (fit)  q: quit"))

	return b.String()
}

// renderMap rasterizes the features around the rendered camera into a
// character grid, one cell per surface pixel.
func (m model) renderMap() string {
	grid := make([][]rune, mapHeight)
	for i := range grid {
		grid[i] = make([]rune, mapWidth)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	if !m.camReady {
		return renderGrid(grid)
	}

	cam := models.Viewpoint{
		Center: models.NewLocation(m.camX, m.camY, m.surface.SpatialReference()),
		Scale:  models.Scale(math.Exp(m.camLogScale)),
	}
	extent := cam.Extent(mapWidth, mapHeight)
	features, err := m.surface.FeaturesIn(extent)
	if err != nil {
		return renderGrid(grid)
	}

	res := cam.Scale.Resolution()
	toCell := func(l models.Location) (col, row int) {
		col = int((l.X - extent.BottomLeft.X) / res)
		row = mapHeight - 1 - int((l.Y-extent.BottomLeft.Y)/res)
		return col, row
	}
	plot := func(col, row int, r rune) {
		if col >= 0 && col < mapWidth && row >= 0 && row < mapHeight {
			grid[row][col] = r
		}
	}

	for _, f := range features {
		switch f.Kind {
		case models.FeaturePolyline:
			pts := f.Geometry.Points
			for i := 0; i+1 < len(pts); i++ {
				c0, r0 := toCell(pts[i])
				c1, r1 := toCell(pts[i+1])
				steps := max(abs(c1-c0), abs(r1-r0)) * 2
				if steps == 0 {
					steps = 1
				}
				for s := 0; s <= steps; s++ {
					t := float64(s) / float64(steps)
					plot(c0+int(t*float64(c1-c0)), r0+int(t*float64(r1-r0)), '·')
				}
			}
		case models.FeaturePoint:
			col, row := toCell(f.Geometry.Points[0])
			plot(col, row, '●')
			for i, r := range f.Label {
				if col+2+i >= mapWidth {
					break
				}
				plot(col+2+i, row, r)
			}
		}
	}

	// Crosshair at the viewport center.
	plot(mapWidth/2, mapHeight/2, '+')

	return renderGrid(grid)
}

func renderGrid(grid [][]rune) string {
	rows := make([]string, len(grid))
	for i, row := range grid {
		rows[i] = string(row)
	}
	return strings.Join(rows, "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
