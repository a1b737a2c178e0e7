package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"screen-translate/src/bridge"
	"screen-translate/src/clipboard"
	"screen-translate/src/config"
	"screen-translate/src/eventloop"
	"screen-translate/src/fonts"
	"screen-translate/src/gui"
	"screen-translate/src/logutil"
	"screen-translate/src/messages"
	"screen-translate/src/notification"
	"screen-translate/src/overlay"
	"screen-translate/src/process"
	"screen-translate/src/router"
	"screen-translate/src/runtimeinit"
	"screen-translate/src/screenshot"
	"screen-translate/src/session"
	"screen-translate/src/singleinstance"
	"screen-translate/src/tray"
	"screen-translate/src/worker"
)

const (
	appID       = "io.github.screen-translate"
	appTitle    = "Screen Translate"
	settleDelay = 150 * time.Millisecond

	// A superseded session keeps its worker until its calls return, so a new
	// capture needs a free one.
	sessionWorkers = 4
	sessionQueue   = 4
)

type mainOptions struct {
	capture    bool
	apiKeyPath string
	lang       string
}

func main() {
	// Must run before any window exists.
	enableDPIAwareness()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-translate"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-translate",
		Short:         "Select a screen region, recognize its text and translate it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.capture, "capture", false, "Capture once, print the translation to stdout and exit (delegates to a running instance)")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "Target language for this run")

	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"capture", "api-key-path", "lang"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

func runWithOptions(opts mainOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath, TargetLanguageOverride: opts.lang})
	if err != nil {
		return err
	}

	if opts.capture {
		req := singleinstance.Request{OutputToStdout: true, TargetLanguage: opts.lang}
		return handleCaptureWithDelegation(context.Background(), singleinstance.NewClient(cfg.ResidentPorts), req, os.Stdout, func() error {
			return runApp(opts, true)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	port, running := singleinstance.DetectResidentPort(ctx, cfg.ResidentPorts)
	cancel()
	if running {
		fmt.Printf("one is already running on port %d\n", port)
		return fmt.Errorf("resident already running on port %d", port)
	}
	return runApp(opts, false)
}

// handleCaptureWithDelegation asks a running instance to capture. The standalone
// fallback runs only when no instance answered; a resident's refusal is final.
func handleCaptureWithDelegation(ctx context.Context, client singleinstance.Client, req singleinstance.Request, out io.Writer, fallback func() error) error {
	delegated, text, err := client.TryCapture(ctx, req)
	switch {
	case delegated && singleinstance.Refused(err):
		log.Printf("Resident refused the capture: %v", err)
		return err
	case delegated && err != nil:
		log.Printf("Delegated capture failed: %v", err)
		return err
	case delegated:
		log.Printf("Delegated to resident")
		_, werr := io.WriteString(out, text)
		return werr
	case err != nil:
		log.Printf("Delegation error: %v; falling back to standalone", err)
	default:
		log.Printf("No resident detected (not delegated), running standalone")
	}
	return fallback()
}

// runApp builds the capture pipeline on a fyne app. once runs a single capture
// for this process and exits; otherwise the app stays resident in the tray.
func runApp(opts mainOptions, once bool) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath, TargetLanguageOverride: opts.lang},
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config
	logMonitorConfiguration()

	a := app.NewWithID(appID)

	r := router.NewRouter()
	defer r.Shutdown()
	b, err := bridge.New(r)
	if err != nil {
		return err
	}

	coord := overlay.NewCoordinator(screenshot.NewSource(), gui.NewOverlayFactory(a, b.Surface("capture-overlay")))
	coord.SettleDelay = settleDelay

	pool := newSessionPool()
	defer pool.Close()

	settings := rt.Store.Settings()
	configured := func() string {
		if opts.lang != "" {
			return opts.lang
		}
		return settings.TargetLanguage(cfg.TargetLanguage)
	}

	var loop *eventloop.Loop
	runner := session.NewRunner(rt.Pipeline, pool, func() string { return loop.TargetLanguage() })

	catalog := sync.OnceValue(func() fonts.Catalog { return fonts.Scan(fonts.SystemDirs()) })

	var srv singleinstance.Server = singleinstance.NewServer(cfg.ResidentPorts)
	if once {
		srv = newLocalServer(singleinstance.Request{OutputToStdout: true, TargetLanguage: opts.lang}, os.Stdout)
	}

	loop = eventloop.New(eventloop.Options{
		Bridge:      b,
		Coordinator: coord,
		Runner:      runner,
		Server:      srv,
		Fonts:       func() ([]string, error) { return catalog().Families(), nil },
		Language:    configured,
		Tooltip:     func(text string) { tray.UpdateTooltip(text) },
		About:       func(text string) { tray.SetAboutExtra(text) },
	})

	surf := b.Surface("results-window")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	detach := runner.Attach(ctx, surf)
	defer detach()

	var failed error
	if once {
		srv.(*localServer).onDone = func(err error) {
			failed = err
			fyne.Do(a.Quit)
		}
	} else {
		setupResident(a, r, surf, rt, runner, loop, catalog)
	}

	mgr := process.NewManager(r)
	_ = mgr.Register(process.Func("bridge", func(ctx context.Context) error {
		b.Run(ctx)
		return nil
	}))
	_ = mgr.Register(process.Func("eventloop", loop.Run))
	if err := mgr.StartAll(); err != nil {
		return err
	}
	go superviseLoop(mgr, a)

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			log.Printf("Signal received, shutting down")
			fyne.Do(a.Quit)
		case <-ctx.Done():
		}
	}()

	log.Printf("Screen Translate initialized: model=%s hotkey=%s language=%s", cfg.Model, cfg.Hotkey, configured())
	a.Run()

	mgr.StopAll()
	if !once {
		tray.Quit()
	}
	return failed
}

// setupResident adds the long-lived surfaces: tray, hotkey, results window,
// notifications and optional auto-copy.
func setupResident(a fyne.App, r *router.Router, surf *bridge.Surface, rt *runtimeinit.Runtime, runner *session.Runner, loop *eventloop.Loop, catalog func() fonts.Catalog) {
	cfg := rt.Config

	win := gui.NewResultsWindow(a, surf, gui.ResultsOptions{
		Credentials:     rt.Store.Credentials(),
		Settings:        rt.Store.Settings(),
		Glossary:        rt.Store.Glossary(),
		FontPath:        func(family string) (string, bool) { return catalog().Path(family) },
		Copy:            clipboard.Write,
		DefaultLanguage: cfg.TargetLanguage,
	})
	// Closing the window hides it; the app lives in the tray.
	win.Window().SetCloseIntercept(func() { win.Window().Hide() })
	runner.Subscribe(win.Observe())

	notifier := notification.New(a, appTitle)
	runner.Subscribe(func(res session.Result) {
		if !res.Terminal() {
			return
		}
		fyne.Do(func() { notifier.Result(res) })
		if res.Status == session.StatusSuccess && cfg.CopyToClipboard {
			go func() {
				if err := session.Deliver(session.ClipboardTarget{}, res); err != nil {
					log.Printf("Auto-copy failed: %v", err)
				}
			}()
		}
	})

	tray.Register(tray.Options{
		Hotkey: cfg.Hotkey,
		OnCapture: func() {
			_ = r.SendToHost(messages.EndpointTray, messages.TrayMenuClicked{Action: messages.ActionCapture})
		},
		OnExit: func() {
			_ = r.SendToHost(messages.EndpointTray, messages.TrayMenuClicked{Action: messages.ActionExit})
		},
	})
	tray.UpdateTooltip(fmt.Sprintf("%s - Press %s to capture", appTitle, cfg.Hotkey))

	if err := loop.StartHotkey(cfg.Hotkey); err != nil {
		log.Printf("Hotkey %q unavailable: %v", cfg.Hotkey, err)
		notifier.Error("Hotkey unavailable", fmt.Sprintf("%s: %v", cfg.Hotkey, err))
	}

	win.Window().Show()
	win.LoadFonts(context.Background())
}

func newSessionPool() *worker.Pool {
	pool := worker.New(sessionWorkers, sessionQueue)
	pool.OnPanic(func(recovered any) { log.Printf("Session worker panic: %v", recovered) })
	return pool
}

// superviseLoop restarts a crashed event loop and quits the app once it is gone for good.
func superviseLoop(mgr *process.Manager, a fyne.App) {
	for {
		<-mgr.Done("eventloop")
		if mgr.GetStatus()["eventloop"] != process.StateCrashed {
			break
		}
		mgr.RestartCrashed()
		if mgr.GetStatus()["eventloop"] != process.StateRunning {
			break
		}
	}
	fyne.Do(a.Quit)
}

// localServer feeds the event loop a single in-process capture request, so a
// standalone --capture run follows the same path as a delegated one.
type localServer struct {
	conn   *localConn
	onDone func(error)
	served bool
}

func newLocalServer(req singleinstance.Request, out io.Writer) *localServer {
	s := &localServer{}
	s.conn = &localConn{req: req, out: out, server: s}
	return s
}

func (s *localServer) Start(context.Context) error { return nil }
func (s *localServer) Port() int                   { return 0 }
func (s *localServer) Close() error                { return nil }

func (s *localServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	if !s.served {
		s.served = true
		return s.conn, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type localConn struct {
	req    singleinstance.Request
	out    io.Writer
	server *localServer

	once sync.Once
	err  error
}

func (c *localConn) Request() singleinstance.Request { return c.req }

func (c *localConn) RespondSuccess(text string) error {
	_, err := io.WriteString(c.out, text)
	return err
}

func (c *localConn) RespondError(err error) error {
	if err == nil {
		err = errors.New("unknown session error")
	}
	c.err = err
	return nil
}

func (c *localConn) Close() error {
	c.once.Do(func() {
		if c.server.onDone != nil {
			c.server.onDone(c.err)
		}
	})
	return nil
}
