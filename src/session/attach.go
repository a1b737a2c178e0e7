package session

import (
	"context"

	"screen-translate/src/bridge"
	"screen-translate/src/messages"
)

// Attach makes the results surface drive r: every capture-complete delivered to s
// starts (or is rejected as stale by) the runner.
func (r *Runner) Attach(ctx context.Context, s *bridge.Surface) (dispose func()) {
	return s.On(messages.TypeCaptureComplete, func(m messages.Message) {
		cc, ok := m.(messages.CaptureComplete)
		if !ok {
			return
		}
		r.Process(ctx, cc)
	})
}
