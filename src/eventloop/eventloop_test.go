package eventloop

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"screen-translate/src/bridge"
	"screen-translate/src/messages"
	"screen-translate/src/overlay"
	"screen-translate/src/router"
	"screen-translate/src/screenshot"
	"screen-translate/src/session"
	"screen-translate/src/singleinstance"
	"screen-translate/src/worker"
)

type fakeSurface struct{}

func (fakeSurface) Show() error { return nil }
func (fakeSurface) Focus()      {}
func (fakeSurface) Close()      {}

type fakeSource struct {
	mu       sync.Mutex
	display  screenshot.Display
	displays []screenshot.Display
}

func (f *fakeSource) Primary() (screenshot.Display, error) { return f.display, nil }
func (f *fakeSource) Displays() ([]screenshot.Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.displays, nil
}
func (f *fakeSource) Capture(d screenshot.Display) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, d.Bounds.Dx(), d.Bounds.Dy())), nil
}

type fakeRecognizer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, apiKey string, png []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "Hello", nil
}

func (f *fakeRecognizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranslator struct {
	mu    sync.Mutex
	langs []string
}

func (f *fakeTranslator) Translate(ctx context.Context, apiKey, text, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.langs = append(f.langs, lang)
	return "안녕", nil
}

func (f *fakeTranslator) lastLang() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.langs) == 0 {
		return ""
	}
	return f.langs[len(f.langs)-1]
}

type fakeConn struct {
	req       singleinstance.Request
	responses chan string
	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn(req singleinstance.Request) *fakeConn {
	return &fakeConn{req: req, responses: make(chan string, 4), closed: make(chan struct{})}
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }
func (c *fakeConn) RespondSuccess(text string) error {
	c.responses <- "SUCCESS\n" + text
	return nil
}
func (c *fakeConn) RespondError(err error) error {
	c.responses <- "ERROR\n" + err.Error()
	return nil
}
func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) await(t *testing.T) string {
	t.Helper()
	select {
	case r := <-c.responses:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a delegated response")
		return ""
	}
}

type fakeServer struct {
	conns chan singleinstance.Conn
}

func (s *fakeServer) Start(ctx context.Context) error { return nil }
func (s *fakeServer) Port() int                       { return 0 }
func (s *fakeServer) Close() error                    { return nil }
func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case c := <-s.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type harness struct {
	router *router.Router
	coord  *overlay.Coordinator
	source *fakeSource
	runner *session.Runner
	ui     *bridge.Surface
	rec    *fakeRecognizer
	tr     *fakeTranslator
	server *fakeServer
	final  chan session.Result
	done   chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	r := router.NewRouter()
	r.SetMessageLogging(false)
	b, err := bridge.New(r)
	if err != nil {
		t.Fatalf("bridge.New failed: %v", err)
	}

	d := screenshot.Display{ID: "0:320x200@0,0", Bounds: image.Rect(0, 0, 320, 200), Primary: true}
	src := &fakeSource{display: d, displays: []screenshot.Display{d}}
	coord := overlay.NewCoordinator(src, func(image.Rectangle) (overlay.Surface, error) {
		return fakeSurface{}, nil
	})

	h := &harness{
		router: r,
		coord:  coord,
		source: src,
		ui:     b.Surface(messages.EndpointOverlay),
		rec:    &fakeRecognizer{},
		tr:     &fakeTranslator{},
		server: &fakeServer{conns: make(chan singleinstance.Conn, 4)},
		final:  make(chan session.Result, 8),
		done:   make(chan error, 1),
	}

	pool := worker.New(2, 4)
	var loop *Loop
	pipeline := &session.Pipeline{
		Recognizer:  h.rec,
		Translator:  h.tr,
		Credentials: session.StaticCredential("key"),
	}
	h.runner = session.NewRunner(pipeline, pool, func() string { return loop.TargetLanguage() })
	h.runner.Subscribe(func(res session.Result) {
		if res.Terminal() {
			h.final <- res
		}
	})

	loop = New(Options{
		Bridge:      b,
		Coordinator: coord,
		Runner:      h.runner,
		Server:      h.server,
		Fonts:       func() ([]string, error) { return []string{"Go", "'Arial'", "Go", " "}, nil },
		Language:    func() string { return "Korean" },
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.runner.Attach(ctx, b.Surface(messages.EndpointResults))
	go b.Run(ctx)
	go func() { h.done <- loop.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("Loop did not stop")
		}
		pool.Close()
		r.Shutdown()
	})
	return h
}

func (h *harness) waitActive(t *testing.T, want bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.coord.Active() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Overlay active=%v never reached", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) waitFinal(t *testing.T) session.Result {
	t.Helper()
	select {
	case res := <-h.final:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a terminal result")
		return session.Result{}
	}
}

func TestCaptureFlowEndToEnd(t *testing.T) {
	h := newHarness(t)

	h.ui.Send(messages.StartCapture{})
	h.waitActive(t, true)
	h.ui.Send(messages.CaptureRegion{Region: screenshot.Region{X: 10, Y: 10, Width: 100, Height: 50}})

	res := h.waitFinal(t)
	if res.Status != session.StatusSuccess || res.OriginalText != "Hello" || res.TranslatedText != "안녕" {
		t.Fatalf("Unexpected result %+v", res)
	}
	if res.SessionID != 1 {
		t.Errorf("Expected session 1, got %d", res.SessionID)
	}
	if h.coord.Active() {
		t.Error("Overlay should be gone after the capture")
	}
	if h.tr.lastLang() != "Korean" {
		t.Errorf("Expected Korean, got %q", h.tr.lastLang())
	}
}

func TestRepeatedStartCaptureKeepsSession(t *testing.T) {
	h := newHarness(t)

	h.ui.Send(messages.StartCapture{})
	h.ui.Send(messages.StartCapture{})
	h.waitActive(t, true)
	h.ui.Send(messages.CaptureRegion{Region: screenshot.Region{Width: 10, Height: 10}})

	if res := h.waitFinal(t); res.SessionID != 1 {
		t.Fatalf("Second start-capture must only refocus, got session %d", res.SessionID)
	}
}

func TestCloseCaptureWindowAborts(t *testing.T) {
	h := newHarness(t)

	h.ui.Send(messages.StartCapture{})
	h.waitActive(t, true)
	h.ui.Send(messages.CloseCaptureWindow{})
	h.waitActive(t, false)

	time.Sleep(50 * time.Millisecond)
	if h.rec.Calls() != 0 {
		t.Fatal("Recognizer called after cancel")
	}
	if cur := h.runner.Current(); cur.Status != session.StatusIdle {
		t.Fatalf("Expected Idle after cancel, got %+v", cur)
	}
}

func TestInvalidRegionIsTreatedAsCancel(t *testing.T) {
	h := newHarness(t)

	h.ui.Send(messages.StartCapture{})
	h.waitActive(t, true)
	h.ui.Send(messages.CaptureRegion{Region: screenshot.Region{X: 5, Y: 5, Width: 0, Height: 20}})
	h.waitActive(t, false)

	select {
	case res := <-h.final:
		t.Fatalf("No session result expected, got %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
	if h.rec.Calls() != 0 {
		t.Fatal("Recognizer must not run for an empty selection")
	}
}

func TestCaptureSourceNotFound(t *testing.T) {
	h := newHarness(t)

	h.ui.Send(messages.StartCapture{})
	h.waitActive(t, true)
	h.source.mu.Lock()
	h.source.displays = nil
	h.source.mu.Unlock()
	h.ui.Send(messages.CaptureRegion{Region: screenshot.Region{Width: 10, Height: 10}})

	res := h.waitFinal(t)
	if res.Kind != session.KindCaptureSourceNotFound {
		t.Fatalf("Expected CaptureSourceNotFound, got %+v", res)
	}
	if h.coord.Active() {
		t.Fatal("Overlay must be torn down on capture failure")
	}
}

func TestDelegatedCapture(t *testing.T) {
	h := newHarness(t)

	conn := newFakeConn(singleinstance.Request{OutputToStdout: true, TargetLanguage: "Japanese"})
	h.server.conns <- conn
	h.waitActive(t, true)
	h.ui.Send(messages.CaptureRegion{Region: screenshot.Region{Width: 10, Height: 10}})

	if got := conn.await(t); got != "SUCCESS\n안녕" {
		t.Fatalf("Unexpected delegated response %q", got)
	}
	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("Delegated connection not closed")
	}
	if h.tr.lastLang() != "Japanese" {
		t.Errorf("Expected per-request language Japanese, got %q", h.tr.lastLang())
	}
}

func TestDelegatedRequestWhileBusy(t *testing.T) {
	h := newHarness(t)

	first := newFakeConn(singleinstance.Request{OutputToStdout: true})
	h.server.conns <- first
	h.waitActive(t, true)

	second := newFakeConn(singleinstance.Request{OutputToStdout: true})
	h.server.conns <- second
	if got := second.await(t); got != "ERROR\n"+singleinstance.ErrBusy.Error() {
		t.Fatalf("Expected busy error, got %q", got)
	}
	if !h.coord.Active() {
		t.Fatal("Busy rejection must not disturb the active overlay")
	}
}

func TestDelegatedCaptureCancelled(t *testing.T) {
	h := newHarness(t)

	conn := newFakeConn(singleinstance.Request{})
	h.server.conns <- conn
	h.waitActive(t, true)
	h.ui.Send(messages.CloseCaptureWindow{})

	if got := conn.await(t); !strings.HasPrefix(got, "ERROR\n") || !strings.Contains(got, "cancelled") {
		t.Fatalf("Expected cancellation error, got %q", got)
	}
}

func TestGetSystemFontsThroughLoop(t *testing.T) {
	h := newHarness(t)

	got := h.ui.GetSystemFonts(context.Background())
	if strings.Join(got, ",") != "Arial,Go" {
		t.Fatalf("Unexpected fonts %v", got)
	}
}

func TestTrayExitStopsLoop(t *testing.T) {
	h := newHarness(t)

	err := h.router.SendToHost(messages.EndpointTray, messages.TrayMenuClicked{Action: messages.ActionExit})
	if err != nil {
		t.Fatalf("SendToHost failed: %v", err)
	}
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Expected clean exit, got %v", err)
		}
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not exit on tray request")
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	if err := New(Options{}).Run(context.Background()); err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("Expected configuration error, got %v", err)
	}
}
