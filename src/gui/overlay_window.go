package gui

import (
	"image"
	"log"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"

	"screen-translate/src/bridge"
	"screen-translate/src/messages"
	"screen-translate/src/overlay"
	"screen-translate/src/screenshot"
)

// overlaySurface is a borderless full-screen fyne window that reports the dragged
// region through the bridge. Coordinator calls arrive off the fyne goroutine.
type overlaySurface struct {
	app    fyne.App
	bridge *bridge.Surface
	bounds image.Rectangle

	win       fyne.Window
	closeOnce sync.Once
}

// NewOverlayFactory builds capture overlays on app that talk to the host through s.
func NewOverlayFactory(app fyne.App, s *bridge.Surface) overlay.SurfaceFactory {
	return func(bounds image.Rectangle) (overlay.Surface, error) {
		return &overlaySurface{app: app, bridge: s, bounds: bounds}, nil
	}
}

func (o *overlaySurface) Show() error {
	fyne.DoAndWait(func() {
		var w fyne.Window
		if drv, ok := o.app.Driver().(desktop.Driver); ok {
			w = drv.CreateSplashWindow()
		} else {
			w = o.app.NewWindow("Select a region")
		}
		w.SetPadded(false)

		area := newSelectionArea(w.Canvas().Scale, func(r screenshot.Region) {
			o.bridge.Send(messages.CaptureRegion{Region: r})
		})
		w.SetContent(area)
		w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if ev.Name == fyne.KeyEscape {
				o.bridge.Send(messages.CloseCaptureWindow{})
			}
		})
		w.SetCloseIntercept(func() {
			o.bridge.Send(messages.CloseCaptureWindow{})
		})
		w.Resize(fyne.NewSize(float32(o.bounds.Dx()), float32(o.bounds.Dy())))
		w.SetFullScreen(true)
		w.Show()
		o.win = w
	})
	log.Printf("Overlay: window shown for %v", o.bounds)
	return nil
}

func (o *overlaySurface) Focus() {
	fyne.Do(func() {
		if o.win != nil {
			o.win.RequestFocus()
		}
	})
}

func (o *overlaySurface) Close() {
	o.closeOnce.Do(func() {
		fyne.DoAndWait(func() {
			if o.win != nil {
				o.win.Close()
				o.win = nil
			}
		})
	})
}
