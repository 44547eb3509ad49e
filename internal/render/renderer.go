package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/swarm-simulator/kb"
	"github.com/signalsfoundry/swarm-simulator/model"
)

// Glyphs used on the field.
const (
	GlyphFriendly    = 'F'
	GlyphHostile     = 'H'
	GlyphNeutralized = '*'
	GlyphTargetLine  = '.'
)

var (
	styleDefault     = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleFriendly    = styleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleHostile     = styleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleNeutralized = styleDefault.Foreground(tcell.ColorWhite)
	styleTargetLine  = styleDefault.Foreground(tcell.ColorDarkGray)
	styleHUD         = styleDefault.Foreground(tcell.ColorAqua)
	stylePaused      = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
)

// hudRows is the number of rows reserved above the field.
const hudRows = 1

// Renderer draws snapshots onto a tcell screen. It never mutates the
// snapshots it is given.
type Renderer struct {
	screen   tcell.Screen
	padding  float64
	viewport Viewport
	fitted   bool
}

// NewRenderer wraps an initialised screen.
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen, padding: DefaultPadding}
}

// Viewport returns the current world-to-cell mapping.
func (r *Renderer) Viewport() Viewport { return r.viewport }

// Refit makes the next Draw recompute the viewport from its snapshot, e.g.
// after a terminal resize.
func (r *Renderer) Refit() { r.fitted = false }

// Draw renders one frame.
func (r *Renderer) Draw(s kb.Snapshot) {
	cols, rows := r.screen.Size()
	fieldRows := rows - hudRows
	if !r.fitted || r.viewport.Cols != cols || r.viewport.Rows != fieldRows {
		// Fitted once per screen size; agents may later leave the field.
		r.viewport = FitViewport(s.Agents, r.padding, cols, fieldRows)
		r.fitted = true
	}

	r.screen.Clear()
	r.screen.Fill(' ', styleDefault)

	hostiles := make(map[model.AgentID]model.Agent)
	for _, a := range s.Agents {
		if a.Faction == model.FactionHostile {
			hostiles[a.ID] = a
		}
	}

	for _, a := range s.Agents {
		if a.Faction != model.FactionFriendly || a.TargetID == model.NoTarget {
			continue
		}
		if h, ok := hostiles[a.TargetID]; ok {
			r.drawLine(a.Position, h.Position)
		}
	}

	for _, a := range s.Agents {
		switch {
		case a.Faction == model.FactionFriendly:
			r.put(a.Position, GlyphFriendly, styleFriendly)
		case a.Neutralized:
			if BlinkVisible(a.BlinkTimer) {
				r.put(a.Position, GlyphNeutralized, styleNeutralized)
			}
		default:
			r.put(a.Position, GlyphHostile, styleHostile)
		}
	}

	r.drawHUD(s, cols)
	r.screen.Show()
}

// HUDText is the status line shown above the field.
func HUDText(s kb.Snapshot) string {
	text := fmt.Sprintf(" t=%6.1fs  tick=%-5d  friendlies=%-3d  hostiles=%-3d",
		s.Elapsed.Seconds(), s.Tick,
		s.Live(model.FactionFriendly), s.Live(model.FactionHostile))
	if !s.Active {
		text += "  DONE"
	}
	return text
}

func (r *Renderer) drawHUD(s kb.Snapshot, cols int) {
	x := drawText(r.screen, 0, 0, cols, HUDText(s), styleHUD)
	if s.Paused {
		drawText(r.screen, x+2, 0, cols, " PAUSED ", stylePaused)
	}
}

func (r *Renderer) put(p model.Vec2, glyph rune, style tcell.Style) {
	col, row, ok := r.viewport.Project(p)
	if !ok {
		return
	}
	r.screen.SetContent(col, row+hudRows, glyph, nil, style)
}

// drawLine dots the cells strictly between the two endpoints.
func (r *Renderer) drawLine(from, to model.Vec2) {
	c0, r0, ok0 := r.viewport.Project(from)
	c1, r1, ok1 := r.viewport.Project(to)
	if !ok0 || !ok1 {
		return
	}
	steps := max(abs(c1-c0), abs(r1-r0))
	for i := 1; i < steps; i++ {
		c := c0 + (c1-c0)*i/steps
		row := r0 + (r1-r0)*i/steps
		r.screen.SetContent(c, row+hudRows, GlyphTargetLine, nil, styleTargetLine)
	}
}

func drawText(s tcell.Screen, x, y, maxX int, text string, style tcell.Style) int {
	for _, ch := range text {
		if x >= maxX {
			break
		}
		s.SetContent(x, y, ch, nil, style)
		x++
	}
	return x
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
