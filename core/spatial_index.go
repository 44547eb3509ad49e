package core

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/signalsfoundry/swarm-simulator/model"
)

const (
	// pointTolerance is the half-width of the box each agent occupies in the
	// tree; rtreego rejects zero-size rectangles.
	pointTolerance = 1e-6

	rtreeMinChildren = 8
	rtreeMaxChildren = 32
)

// indexedAgent adapts an agent to rtreego.Spatial. order is the agent's
// position in the arena so query results can be returned in processing
// order.
type indexedAgent struct {
	agent *model.Agent
	order int
	rect  rtreego.Rect
}

func (e *indexedAgent) Bounds() rtreego.Rect { return e.rect }

// SpatialIndex is an R-tree over the live agents of one tick. It must be
// rebuilt whenever positions change; claim flags may change freely since
// entries hold pointers to the agents.
type SpatialIndex struct {
	tree   *rtreego.Rtree
	agents []*model.Agent
}

// NewSpatialIndex bulk-loads the live agents into a 2D R-tree.
func NewSpatialIndex(agents []*model.Agent) *SpatialIndex {
	objs := make([]rtreego.Spatial, 0, len(agents))
	for i, a := range agents {
		if a.Neutralized {
			continue
		}
		p := rtreego.Point{a.Position.X, a.Position.Y}
		objs = append(objs, &indexedAgent{agent: a, order: i, rect: p.ToRect(pointTolerance)})
	}
	return &SpatialIndex{
		tree:   rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...),
		agents: agents,
	}
}

// Size returns the number of indexed agents.
func (ix *SpatialIndex) Size() int { return ix.tree.Size() }

// LocalView answers the same query as the package-level LocalView, using the
// tree as a broad phase and the exact distance test as the narrow phase.
func (ix *SpatialIndex) LocalView(observer *model.Agent, radius float64) View {
	corner := rtreego.Point{observer.Position.X - radius, observer.Position.Y - radius}
	box, err := rtreego.NewRect(corner, []float64{2 * radius, 2 * radius})
	if err != nil {
		return LocalView(observer, ix.agents, radius)
	}

	hits := ix.tree.SearchIntersect(box)
	candidates := make([]*indexedAgent, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, h.(*indexedAgent))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })

	var v View
	for _, c := range candidates {
		if inView(observer, c.agent, radius) {
			v.add(c.agent)
		}
	}
	return v
}
