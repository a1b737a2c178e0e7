package session

import (
	"context"
	"log"
	"sync"

	"screen-translate/src/messages"
	"screen-translate/src/worker"
)

// Runner owns the single current session. A newer session id supersedes
// everything older; updates tagged with a superseded id are dropped before any
// observer sees them.
type Runner struct {
	pipeline *Pipeline
	pool     *worker.Pool
	language func() string

	// pubMu serializes publish so observers see updates in acceptance order.
	// Observers must not block and must not call back into the Runner's publishers.
	pubMu sync.Mutex

	mu        sync.Mutex
	current   Result
	processed uint64
	subs      map[uint64]func(Result)
	nextSub   uint64
}

// NewRunner runs sessions on pool. language is read when each session starts.
func NewRunner(p *Pipeline, pool *worker.Pool, language func() string) *Runner {
	return &Runner{
		pipeline: p,
		pool:     pool,
		language: language,
		subs:     make(map[uint64]func(Result)),
	}
}

// Reset moves to Idle for a freshly started session, invalidating in-flight work
// and clearing any previous error.
func (r *Runner) Reset(sessionID uint64) {
	r.mu.Lock()
	if sessionID < r.current.SessionID {
		r.mu.Unlock()
		return
	}
	if r.current.Status == StatusRunning {
		log.Printf("Session %d: superseded by %d", r.current.SessionID, sessionID)
	}
	r.mu.Unlock()
	r.publish(Result{SessionID: sessionID, Status: StatusIdle}, true)
}

// Process starts the pipeline for a capture-complete delivery. Duplicate or stale
// deliveries are ignored. Returns false when nothing was started.
func (r *Runner) Process(ctx context.Context, cc messages.CaptureComplete) bool {
	r.mu.Lock()
	if cc.SessionID < r.current.SessionID || cc.SessionID <= r.processed {
		r.mu.Unlock()
		log.Printf("Session %d: ignoring stale or duplicate capture-complete", cc.SessionID)
		return false
	}
	r.processed = cc.SessionID
	r.mu.Unlock()

	if cc.Err != nil {
		log.Printf("Session %d: capture failed: %v", cc.SessionID, cc.Err)
		r.publish(failed(cc.SessionID, "", CaptureFailure(cc.Err)), true)
		return false
	}
	if !cc.Region.Valid() {
		log.Printf("Session %d: region %+v has no area, nothing to do", cc.SessionID, cc.Region)
		r.publish(Result{SessionID: cc.SessionID, Status: StatusIdle}, true)
		return false
	}

	req := Request{
		SessionID: cc.SessionID,
		Image:     cc.Image,
		Region:    cc.Region,
	}
	if r.language != nil {
		req.TargetLanguage = r.language()
	}

	r.publish(Result{SessionID: cc.SessionID, Status: StatusRunning}, true)

	submitted := r.pool.Submit(ctx, func(jobCtx context.Context) {
		defer func() {
			if p := recover(); p != nil {
				log.Printf("Session %d: pipeline panicked: %v", req.SessionID, p)
				r.publish(failed(req.SessionID, "", ServiceFailure(worker.PanicError(p))), false)
			}
		}()
		final := r.pipeline.Execute(jobCtx, req, func(progress Result) {
			r.publish(progress, false)
		})
		r.publish(final, false)
	})
	if !submitted {
		log.Printf("Session %d: worker pool full", cc.SessionID)
		r.publish(failed(cc.SessionID, "", newError(KindServiceError, msgBusy, nil)), false)
		return false
	}
	return true
}

// Current returns the latest accepted state.
func (r *Runner) Current() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Subscribe registers fn for every accepted state change. The returned function
// unsubscribes and is safe to call more than once.
func (r *Runner) Subscribe(fn func(Result)) (unsubscribe func()) {
	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// publish accepts res when it belongs to the current session. advance lets a
// newer session id take over; worker updates never advance.
func (r *Runner) publish(res Result, advance bool) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	r.mu.Lock()
	switch {
	case res.SessionID == r.current.SessionID:
		if r.current.Terminal() && !advance {
			r.mu.Unlock()
			return
		}
	case advance && res.SessionID > r.current.SessionID:
	default:
		r.mu.Unlock()
		log.Printf("Session %d: dropping stale %s update (current %d)", res.SessionID, res.Status, r.current.SessionID)
		return
	}
	r.current = res
	subs := make([]func(Result), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(res)
	}
}
