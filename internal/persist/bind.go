package persist

import (
	"context"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/engine"
)

// Bind routes every transition of e through g: Reset clears the stored
// snapshot, anything else schedules a debounced write. The returned
// function detaches the gateway.
func Bind(e *engine.Engine, g *Gateway) (unbind func()) {
	return e.Subscribe(func(c engine.Change) {
		if _, ok := c.Action.(engine.Reset); ok {
			if err := g.Clear(context.Background()); err != nil {
				g.logger.Warn("snapshot clear on reset failed", "error", err)
			}
			return
		}
		g.SchedulePersist(c.State)
	})
}

// RestoreInto replays the stored snapshot into e. It reports whether a
// snapshot was applied.
func RestoreInto(ctx context.Context, e *engine.Engine, g *Gateway) bool {
	state, ok := g.Restore(ctx)
	if !ok {
		return false
	}
	e.Dispatch(engine.RestoreSnapshot{State: state})
	return true
}
