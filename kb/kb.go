// Package kb holds the shared, thread-safe view of a running simulation: the
// latest world snapshot, a bounded history, and event subscribers. The engine
// goroutine publishes; transports and renderers read.
package kb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/signalsfoundry/swarm-simulator/model"
)

// ErrOutOfOrder is returned when a snapshot older than the latest one is
// published for the same run.
var ErrOutOfOrder = errors.New("snapshot older than latest")

// DefaultHistory is the number of snapshots retained when no size is given.
const DefaultHistory = 256

// Snapshot is an immutable copy of the arena after one tick.
type Snapshot struct {
	RunID       string
	Scenario    string
	Tick        int
	Elapsed     time.Duration
	Active      bool
	Paused      bool
	PublishedAt time.Time

	Agents      []model.Agent
	Claims      []model.Claim
	Engagements []model.Engagement
}

// Live counts live agents of the given faction.
func (s Snapshot) Live(f model.Faction) int {
	n := 0
	for i := range s.Agents {
		if s.Agents[i].Faction == f && s.Agents[i].IsLive() {
			n++
		}
	}
	return n
}

// Agent returns the agent with the given ID.
func (s Snapshot) Agent(id model.AgentID) (model.Agent, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return model.Agent{}, false
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Agents = append([]model.Agent(nil), s.Agents...)
	out.Claims = append([]model.Claim(nil), s.Claims...)
	out.Engagements = append([]model.Engagement(nil), s.Engagements...)
	return out
}

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	// EventSnapshotPublished fires for every published snapshot.
	EventSnapshotPublished EventType = iota
	// EventEngagement fires once per engagement carried by a snapshot.
	EventEngagement
	// EventTerminated fires once when a run publishes its first inactive
	// snapshot.
	EventTerminated
)

func (t EventType) String() string {
	switch t {
	case EventSnapshotPublished:
		return "snapshot"
	case EventEngagement:
		return "engagement"
	case EventTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type       EventType
	Snapshot   Snapshot
	Engagement model.Engagement // set for EventEngagement
}

// Option configures a SnapshotStore.
type Option func(*SnapshotStore)

// WithHistory sets how many snapshots are retained. Values below 1 keep
// only the latest.
func WithHistory(n int) Option {
	return func(s *SnapshotStore) {
		if n < 1 {
			n = 1
		}
		s.history = make([]Snapshot, n)
	}
}

// WithSubscriberHook registers a callback invoked with the subscriber
// count whenever it changes, e.g. to drive a gauge.
func WithSubscriberHook(fn func(int)) Option {
	return func(s *SnapshotStore) { s.onSubscribers = fn }
}

// SnapshotStore is an in-memory, thread-safe store of simulation snapshots.
type SnapshotStore struct {
	mu sync.RWMutex

	latest    Snapshot
	hasLatest bool

	history []Snapshot // ring buffer
	next    int
	count   int

	subs          map[int]func(Event)
	nextSub       int
	onSubscribers func(int)
}

// NewSnapshotStore constructs an empty store.
func NewSnapshotStore(opts ...Option) *SnapshotStore {
	s := &SnapshotStore{subs: make(map[int]func(Event))}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = make([]Snapshot, DefaultHistory)
	}
	return s
}

// Publish stores snap as the latest snapshot and notifies subscribers. The
// store keeps its own copy. A snapshot for a new run ID resets ordering.
func (s *SnapshotStore) Publish(snap Snapshot) error {
	snap = snap.Clone()
	if snap.PublishedAt.IsZero() {
		snap.PublishedAt = time.Now().UTC()
	}

	s.mu.Lock()
	wasActive := true
	if s.hasLatest && s.latest.RunID == snap.RunID {
		if snap.Tick < s.latest.Tick {
			latest := s.latest.Tick
			s.mu.Unlock()
			return fmt.Errorf("publish tick %d after %d: %w", snap.Tick, latest, ErrOutOfOrder)
		}
		wasActive = s.latest.Active
	}
	s.latest = snap
	s.hasLatest = true
	s.history[s.next] = snap
	s.next = (s.next + 1) % len(s.history)
	if s.count < len(s.history) {
		s.count++
	}
	subs := s.subscribersLocked()
	s.mu.Unlock()

	events := []Event{{Type: EventSnapshotPublished, Snapshot: snap}}
	for _, e := range snap.Engagements {
		events = append(events, Event{Type: EventEngagement, Snapshot: snap, Engagement: e})
	}
	if wasActive && !snap.Active {
		events = append(events, Event{Type: EventTerminated, Snapshot: snap})
	}

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
	return nil
}

// Latest returns a copy of the most recent snapshot.
func (s *SnapshotStore) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasLatest {
		return Snapshot{}, false
	}
	return s.latest.Clone(), true
}

// History returns retained snapshots, oldest first.
func (s *SnapshotStore) History() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Snapshot, 0, s.count)
	start := (s.next - s.count + len(s.history)) % len(s.history)
	for i := 0; i < s.count; i++ {
		res = append(res, s.history[(start+i)%len(s.history)].Clone())
	}
	return res
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function that is safe to call more than once.
func (s *SnapshotStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	n := len(s.subs)
	hook := s.onSubscribers
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			n := len(s.subs)
			s.mu.Unlock()
			if hook != nil {
				hook(n)
			}
		})
	}
}

// SubscriberCount reports the number of registered subscribers.
func (s *SnapshotStore) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Watch streams published snapshots until ctx is done, then closes the
// channel. Slow readers only ever see the newest snapshot: an undelivered
// one is replaced rather than queued. The current latest snapshot, if any,
// is delivered first.
func (s *SnapshotStore) Watch(ctx context.Context) <-chan Snapshot {
	w := &watcher{ch: make(chan Snapshot, 1)}
	unsubscribe := s.Subscribe(func(ev Event) {
		if ev.Type == EventSnapshotPublished {
			w.offer(ev.Snapshot)
		}
	})
	if snap, ok := s.Latest(); ok {
		w.offer(snap)
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
		w.close()
	}()
	return w.ch
}

func (s *SnapshotStore) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	// Deliver in subscription order.
	slices.Sort(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	return subs
}

type watcher struct {
	mu     sync.Mutex
	ch     chan Snapshot
	closed bool

	offered bool
	runID   string
	tick    int
}

func (w *watcher) offer(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.offered && w.runID == snap.RunID && snap.Tick < w.tick {
		return
	}
	w.offered, w.runID, w.tick = true, snap.RunID, snap.Tick
	select {
	case w.ch <- snap:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- snap:
	default:
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}
