package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"screen-translate/src/bridge"
	"screen-translate/src/hotkey"
	"screen-translate/src/messages"
	"screen-translate/src/overlay"
	"screen-translate/src/screenshot"
	"screen-translate/src/session"
	"screen-translate/src/singleinstance"
)

// FontLister enumerates installed font families.
type FontLister func() ([]string, error)

// Options wires the loop to its collaborators. Server may be nil.
type Options struct {
	Bridge      *bridge.Bridge
	Coordinator *overlay.Coordinator
	Runner      *session.Runner
	Server      singleinstance.Server
	Fonts       FontLister
	// Language returns the configured target language.
	Language func() string
	// Tooltip and About surface loop state in the tray. Either may be nil.
	Tooltip func(string)
	About   func(string)
}

// delegation is a client waiting on the resident for one session's result.
type delegation struct {
	session uint64
	target  session.DelegatedTarget
	conn    singleinstance.Conn
}

func (d *delegation) fail(err error) {
	_ = d.target.OnFailure(err)
	_ = d.conn.Close()
}

// Loop is the single-goroutine orchestrator. It is the only place session ids are
// assigned and the only caller of the capture coordinator.
type Loop struct {
	bridge *bridge.Bridge
	coord  *overlay.Coordinator
	runner *session.Runner
	srv    singleinstance.Server
	fonts  FontLister

	tooltip func(string)
	about   func(string)

	nextSession uint64
	capturing   bool
	delegated   *delegation

	results  chan session.Result
	hotkeyCh chan struct{}

	langMu       sync.Mutex
	language     func() string
	langOverride string
}

// New creates a loop. Call Run to start it.
func New(opts Options) *Loop {
	return &Loop{
		bridge:   opts.Bridge,
		coord:    opts.Coordinator,
		runner:   opts.Runner,
		srv:      opts.Server,
		fonts:    opts.Fonts,
		language: opts.Language,
		tooltip:  opts.Tooltip,
		about:    opts.About,
		results:  make(chan session.Result, 4),
		hotkeyCh: make(chan struct{}, 4),
	}
}

// TargetLanguage is what the runner translates into for the current session. A
// delegated request may override it for its own session.
func (l *Loop) TargetLanguage() string {
	l.langMu.Lock()
	defer l.langMu.Unlock()
	if l.langOverride != "" {
		return l.langOverride
	}
	if l.language != nil {
		if lang := l.language(); lang != "" {
			return lang
		}
	}
	return "Korean"
}

func (l *Loop) setLanguageOverride(lang string) {
	l.langMu.Lock()
	l.langOverride = strings.TrimSpace(lang)
	l.langMu.Unlock()
}

// StartHotkey registers a global hotkey and posts events into the loop.
func (l *Loop) StartHotkey(combo string) error {
	if combo == "" {
		return nil
	}
	return hotkey.Listen(combo, l.TriggerCapture)
}

// TriggerCapture requests a new capture from outside the loop (hotkey, tray).
func (l *Loop) TriggerCapture() {
	select {
	case l.hotkeyCh <- struct{}{}:
	default:
	}
}

// Run processes bridge messages, hotkey triggers, delegated requests and session
// results until ctx is cancelled or an exit is requested.
func (l *Loop) Run(ctx context.Context) error {
	if l.bridge == nil || l.coord == nil || l.runner == nil {
		return errors.New("eventloop: bridge, coordinator and runner are required")
	}

	unsubscribe := l.runner.Subscribe(func(res session.Result) {
		if !res.Terminal() {
			return
		}
		// Observers must not block the runner.
		go func() {
			select {
			case l.results <- res:
			case <-ctx.Done():
			}
		}()
	})
	defer unsubscribe()

	reqCh := make(chan singleinstance.Conn, 4)
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			return err
		}
		if p := l.srv.Port(); p > 0 {
			log.Printf("Resident listening on 127.0.0.1:%d", p)
			l.setAbout(fmt.Sprintf("resident port %d", p))
		}
		go func() {
			defer close(reqCh)
			for {
				conn, err := l.srv.Next(ctx)
				if err != nil {
					return
				}
				reqCh <- conn
			}
		}()
	}

	host := l.bridge.HostInbox()
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()
		case env, ok := <-host:
			if !ok {
				l.shutdown()
				return nil
			}
			if stop := l.handleMessage(ctx, env); stop {
				l.shutdown()
				return nil
			}
		case <-l.hotkeyCh:
			log.Printf("EventLoop: capture triggered")
			l.startCapture(ctx)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleMessage(ctx context.Context, env messages.MessageEnvelope) (stop bool) {
	switch m := env.Message.(type) {
	case messages.StartCapture:
		l.startCapture(ctx)
	case messages.CaptureRegion:
		l.submitRegion(ctx, m.Region)
	case messages.CloseCaptureWindow:
		l.cancelCapture(singleinstance.ErrCancelled)
	case messages.GetSystemFonts:
		fonts := l.fonts
		if fonts == nil {
			fonts = func() ([]string, error) { return nil, errors.New("font enumeration unavailable") }
		}
		go bridge.AnswerFonts(m, fonts)
	case messages.HotkeyPressed:
		log.Printf("EventLoop: hotkey %s", m.Combo)
		l.startCapture(ctx)
	case messages.TrayMenuClicked:
		switch m.Action {
		case messages.ActionCapture:
			l.startCapture(ctx)
		case messages.ActionExit:
			log.Printf("EventLoop: exit requested from tray")
			return true
		}
	case messages.DIENOW:
		return true
	default:
		log.Printf("EventLoop: ignoring %s from %s", env.Message.Type(), env.From)
	}
	return false
}

// startCapture begins a new session, or refocuses the overlay if one is showing.
func (l *Loop) startCapture(ctx context.Context) {
	if l.capturing {
		if err := l.coord.RequestCapture(ctx); err != nil {
			log.Printf("EventLoop: refocus failed: %v", err)
		}
		return
	}

	l.nextSession++
	id := l.nextSession
	log.Printf("EventLoop: session %d started", id)

	if l.delegated != nil && l.delegated.session != id {
		l.delegated.fail(singleinstance.ErrSuperseded)
		l.delegated = nil
		l.setLanguageOverride("")
	}

	l.runner.Reset(id)

	if err := l.coord.RequestCapture(ctx); err != nil {
		log.Printf("EventLoop: failed to open overlay: %v", err)
		l.emitComplete(messages.CaptureComplete{SessionID: id, Err: err})
		return
	}
	l.capturing = true
	l.setTooltip("Screen Translate: select a region")
}

func (l *Loop) submitRegion(ctx context.Context, region screenshot.Region) {
	if !l.capturing {
		log.Printf("EventLoop: capture-region without an active overlay, ignoring")
		return
	}
	l.capturing = false
	id := l.nextSession
	l.setTooltip("Screen Translate: processing...")

	img, err := l.coord.SubmitRegion(ctx, region)
	if errors.Is(err, overlay.ErrInvalidRegion) {
		log.Printf("EventLoop: session %d: empty selection treated as cancel", id)
		l.setTooltip("")
		l.abortDelegation(id, singleinstance.ErrCancelled)
		return
	}
	if err != nil && !errors.Is(err, overlay.ErrCaptureSourceNotFound) {
		err = fmt.Errorf("%w: %v", overlay.ErrCaptureSourceNotFound, err)
	}
	l.emitComplete(messages.CaptureComplete{SessionID: id, Image: img, Region: region, Err: err})
}

func (l *Loop) cancelCapture(reason error) {
	if !l.capturing {
		return
	}
	l.capturing = false
	l.coord.CancelCapture()
	l.setTooltip("")
	log.Printf("EventLoop: session %d cancelled", l.nextSession)
	l.abortDelegation(l.nextSession, reason)
}

func (l *Loop) emitComplete(cc messages.CaptureComplete) {
	if err := l.bridge.Emit(cc); err != nil {
		log.Printf("EventLoop: failed to deliver capture-complete for session %d: %v", cc.SessionID, err)
		l.abortDelegation(cc.SessionID, err)
	}
}

func (l *Loop) abortDelegation(id uint64, err error) {
	if l.delegated == nil || l.delegated.session != id {
		return
	}
	l.delegated.fail(err)
	l.delegated = nil
	l.setLanguageOverride("")
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	req := conn.Request()
	target := session.DelegatedTarget{Conn: conn, OutputToStdout: req.OutputToStdout}

	if l.delegated != nil || l.capturing || l.runner.Current().Status == session.StatusRunning {
		log.Printf("EventLoop: delegated request rejected, busy")
		_ = target.OnFailure(singleinstance.ErrBusy)
		_ = conn.Close()
		return
	}

	l.setLanguageOverride(req.TargetLanguage)
	l.startCapture(ctx)
	// Registered even when the overlay failed to open: the failure result
	// for this session still arrives through the runner.
	l.delegated = &delegation{session: l.nextSession, target: target, conn: conn}
}

func (l *Loop) handleResult(res session.Result) {
	log.Printf("EventLoop: session %d finished: %s %s", res.SessionID, res.Status, res.Kind)
	if res.SessionID == l.nextSession && !l.capturing {
		l.setTooltip("")
	}
	d := l.delegated
	if d == nil || d.session != res.SessionID {
		return
	}
	l.delegated = nil
	l.setLanguageOverride("")

	if err := session.Deliver(d.target, res); err != nil {
		log.Printf("EventLoop: delivery to delegated client failed: %v", err)
	}
	_ = d.conn.Close()
}

func (l *Loop) setTooltip(text string) {
	if l.tooltip != nil {
		l.tooltip(text)
	}
}

func (l *Loop) setAbout(text string) {
	if l.about != nil {
		l.about(text)
	}
}

func (l *Loop) shutdown() {
	if l.capturing {
		l.coord.CancelCapture()
		l.capturing = false
	}
	if l.delegated != nil {
		l.delegated.fail(errors.New("resident shutting down"))
		l.delegated = nil
	}
	if l.srv != nil {
		_ = l.srv.Close()
	}
}
