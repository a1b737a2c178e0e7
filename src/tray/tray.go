package tray

import (
	"log"
	"sync"

	"github.com/getlantern/systray"
)

const defaultTooltip = "Screen Translate"

// Options are the tray callbacks. Both run on the tray's goroutine.
type Options struct {
	OnCapture func()
	OnExit    func()
	// Hotkey is shown next to the capture item when set.
	Hotkey string
}

var (
	mu        sync.Mutex
	ready     bool
	tooltip   = defaultTooltip
	aboutItem *systray.MenuItem
	aboutText string
)

// Register sets up the tray icon. The caller's UI loop (fyne) drives the event loop.
func Register(opts Options) {
	systray.Register(func() { onReady(opts) }, func() {
		log.Printf("Tray: exited")
	})
}

func onReady(opts Options) {
	systray.SetIcon(Icon())
	systray.SetTitle(defaultTooltip)

	captureLabel := "Capture && Translate"
	if opts.Hotkey != "" {
		captureLabel += " (" + opts.Hotkey + ")"
	}
	mCapture := systray.AddMenuItem(captureLabel, "Select a screen region to translate")
	systray.AddSeparator()
	mAbout := systray.AddMenuItem(defaultTooltip, "About")
	mAbout.Disable()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	mu.Lock()
	ready = true
	aboutItem = mAbout
	systray.SetTooltip(tooltip)
	if aboutText != "" {
		mAbout.SetTitle(aboutText)
	}
	mu.Unlock()

	go func() {
		for {
			select {
			case <-mCapture.ClickedCh:
				log.Printf("Tray: capture clicked")
				if opts.OnCapture != nil {
					opts.OnCapture()
				}
			case <-mQuit.ClickedCh:
				log.Printf("Tray: quit clicked")
				if opts.OnExit != nil {
					opts.OnExit()
				}
				return
			}
		}
	}()
}

// UpdateTooltip replaces the tray tooltip; empty restores the default.
func UpdateTooltip(text string) {
	if text == "" {
		text = defaultTooltip
	}
	mu.Lock()
	defer mu.Unlock()
	tooltip = text
	if ready {
		systray.SetTooltip(text)
	}
}

// SetAboutExtra shows extra detail, such as the resident port, in the menu.
func SetAboutExtra(text string) {
	mu.Lock()
	defer mu.Unlock()
	aboutText = defaultTooltip
	if text != "" {
		aboutText += " - " + text
	}
	if aboutItem != nil {
		aboutItem.SetTitle(aboutText)
	}
}

// Quit removes the tray icon.
func Quit() {
	mu.Lock()
	r := ready
	mu.Unlock()
	if r {
		systray.Quit()
	}
}
