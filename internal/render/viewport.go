// Package render draws simulation snapshots on a terminal.
package render

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/swarm-simulator/model"
)

const (
	// DefaultPadding is added around the agents' bounding box, in world
	// units.
	DefaultPadding = 20.0
	// minExtent keeps a single agent (or a line of them) from collapsing the
	// viewport to zero width or height.
	minExtent = 10.0

	blinkPeriod = 100 * time.Millisecond
)

// BlinkVisible reports whether a neutralized hostile is drawn at this point
// of its blink timer. It alternates every 100ms, starting hidden.
func BlinkVisible(timer time.Duration) bool {
	return int(timer/blinkPeriod)%2 == 1
}

// Viewport maps a world-space bound onto a grid of terminal cells. Row 0 is
// the top of the grid and the world Y axis points up.
type Viewport struct {
	Bound orb.Bound
	Cols  int
	Rows  int
}

// FitViewport returns a viewport covering every agent plus pad world units
// on each side.
func FitViewport(agents []model.Agent, pad float64, cols, rows int) Viewport {
	mp := make(orb.MultiPoint, 0, len(agents))
	for _, a := range agents {
		mp = append(mp, orb.Point{a.Position.X, a.Position.Y})
	}
	var b orb.Bound
	if len(mp) == 0 {
		b = orb.Bound{Min: orb.Point{-minExtent, -minExtent}, Max: orb.Point{minExtent, minExtent}}
	} else {
		b = mp.Bound()
	}
	b = ensureExtent(b)
	return Viewport{Bound: b.Pad(pad), Cols: cols, Rows: rows}
}

func ensureExtent(b orb.Bound) orb.Bound {
	c := b.Center()
	if w := b.Right() - b.Left(); w < minExtent {
		b.Min[0], b.Max[0] = c[0]-minExtent/2, c[0]+minExtent/2
	}
	if h := b.Top() - b.Bottom(); h < minExtent {
		b.Min[1], b.Max[1] = c[1]-minExtent/2, c[1]+minExtent/2
	}
	return b
}

// Contains reports whether p lies inside the viewport's world bound.
func (v Viewport) Contains(p model.Vec2) bool {
	return v.Bound.Contains(orb.Point{p.X, p.Y})
}

// Project converts a world position to a cell. ok is false when the
// position is outside the viewport or the grid is empty.
func (v Viewport) Project(p model.Vec2) (col, row int, ok bool) {
	if v.Cols <= 0 || v.Rows <= 0 || !v.Contains(p) {
		return 0, 0, false
	}
	w := v.Bound.Right() - v.Bound.Left()
	h := v.Bound.Top() - v.Bound.Bottom()
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	fx := (p.X - v.Bound.Left()) / w
	fy := (p.Y - v.Bound.Bottom()) / h
	col = int(math.Round(fx * float64(v.Cols-1)))
	row = v.Rows - 1 - int(math.Round(fy*float64(v.Rows-1)))
	return col, row, true
}
