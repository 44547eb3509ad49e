package render

import (
	"context"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/swarm-simulator/internal/logging"
	"github.com/signalsfoundry/swarm-simulator/kb"
)

// Action is what a key press asks the viewer to do.
type Action int

const (
	ActionNone Action = iota
	ActionTogglePause
	ActionQuit
	ActionRedraw
)

// ActionForEvent maps terminal input to an Action: space pauses, q, Esc and
// Ctrl-C quit, a resize forces a redraw.
func ActionForEvent(ev tcell.Event) Action {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return ActionQuit
		case tcell.KeyRune:
			switch ev.Rune() {
			case ' ':
				return ActionTogglePause
			case 'q', 'Q':
				return ActionQuit
			}
		}
	case *tcell.EventResize:
		return ActionRedraw
	}
	return ActionNone
}

// PauseToggler flips a run between paused and running.
type PauseToggler interface {
	TogglePause() bool
}

// Viewer redraws the latest snapshot whenever one is published and turns key
// presses into pause toggles or a quit.
type Viewer struct {
	screen   tcell.Screen
	renderer *Renderer
	store    *kb.SnapshotStore
	control  PauseToggler
	log      logging.Logger
}

// NewViewer wires a screen to a snapshot store. control may be nil for a
// view-only session.
func NewViewer(screen tcell.Screen, store *kb.SnapshotStore, control PauseToggler, log logging.Logger) *Viewer {
	if log == nil {
		log = logging.Noop()
	}
	return &Viewer{
		screen:   screen,
		renderer: NewRenderer(screen),
		store:    store,
		control:  control,
		log:      log,
	}
}

// Run draws until the user quits (nil) or ctx ends (ctx's error). It does
// not finalise the screen; the caller owns it.
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	snaps := v.store.Watch(ctx)
	var last kb.Snapshot
	var have bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-snaps:
			if !ok {
				return ctx.Err()
			}
			last, have = snap, true
			v.renderer.Draw(last)

		case ev := <-events:
			switch ActionForEvent(ev) {
			case ActionQuit:
				v.log.Info(ctx, "viewer quit requested")
				return nil
			case ActionTogglePause:
				if v.control != nil {
					paused := v.control.TogglePause()
					v.log.Debug(ctx, "pause toggled from keyboard", logging.Bool("paused", paused))
				}
			case ActionRedraw:
				v.screen.Sync()
				v.renderer.Refit()
				if have {
					v.renderer.Draw(last)
				}
			}
		}
	}
}
