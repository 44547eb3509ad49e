package core

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/swarm-simulator/model"
)

func TestWorldRejectsDuplicateAndReusedIDs(t *testing.T) {
	w := mustWorld(t, friendlyAt(t, 1, 0, 0), hostileAt(t, 2, 10, 0, 0, 0))

	if err := w.Add(friendlyAt(t, 1, 5, 5)); !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("Add duplicate error = %v, want ErrDuplicateAgent", err)
	}

	removed := w.removeWhere(func(a *model.Agent) bool { return a.ID == 1 })
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("removed = %v, want [1]", removed)
	}
	if err := w.Add(friendlyAt(t, 1, 0, 0)); !errors.Is(err, ErrDuplicateAgent) {
		t.Fatalf("re-adding removed id error = %v, want ErrDuplicateAgent", err)
	}
	if err := w.Add(nil); !errors.Is(err, ErrNilAgent) {
		t.Fatalf("Add(nil) error = %v, want ErrNilAgent", err)
	}
}

func TestWorldRemovePreservesOrderAndIndex(t *testing.T) {
	w := mustWorld(t,
		friendlyAt(t, 1, 0, 0),
		friendlyAt(t, 2, 1, 0),
		hostileAt(t, 3, 2, 0, 0, 0),
		friendlyAt(t, 4, 3, 0),
	)
	w.removeWhere(func(a *model.Agent) bool { return a.ID == 2 })

	var order []model.AgentID
	for _, a := range w.Agents() {
		order = append(order, a.ID)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 3 || order[2] != 4 {
		t.Fatalf("order after removal = %v, want [1 3 4]", order)
	}
	for _, id := range order {
		a, ok := w.Agent(id)
		if !ok || a.ID != id {
			t.Fatalf("index lookup for %d failed after removal", id)
		}
	}
	if _, ok := w.Agent(2); ok {
		t.Fatalf("removed agent still indexed")
	}
}

func TestWorldSnapshotIsCopy(t *testing.T) {
	w := mustWorld(t, friendlyAt(t, 1, 0, 0))
	snap := w.Snapshot()
	snap[0].Position = model.Vec2{X: 99}
	if a, _ := w.Agent(1); a.Position.X != 0 {
		t.Fatalf("mutating snapshot changed the world")
	}
}

func TestCheckInvariantsDetectsDoubleClaim(t *testing.T) {
	f1 := friendlyAt(t, 1, 0, 0)
	f2 := friendlyAt(t, 2, 1, 0)
	h := hostileAt(t, 3, 5, 0, 0, 0)
	w := mustWorld(t, f1, f2, h)

	h.Claimed = true
	f1.TargetID = h.ID
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("single claim flagged: %v", err)
	}

	f2.TargetID = h.ID
	if err := w.CheckInvariants(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("double claim error = %v, want ErrInvariant", err)
	}

	f2.TargetID = model.NoTarget
	h.Claimed = false
	if err := w.CheckInvariants(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("target on unclaimed hostile error = %v, want ErrInvariant", err)
	}
}

func TestCheckInvariantsRequiresLiveTarget(t *testing.T) {
	f := friendlyAt(t, 1, 0, 0)
	h := hostileAt(t, 2, 5, 0, 0, 0)
	w := mustWorld(t, f, h)

	h.Claimed = true
	f.TargetID = h.ID
	h.Neutralized = true
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("target neutralized this tick flagged: %v", err)
	}

	h.BlinkTimer = 100 * time.Millisecond
	if err := w.CheckInvariants(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("target neutralized on an earlier tick error = %v, want ErrInvariant", err)
	}
}
