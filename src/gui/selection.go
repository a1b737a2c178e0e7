package gui

import (
	"image/color"
	"log"
	"math"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"screen-translate/src/screenshot"
)

var (
	shadeColor     = color.NRGBA{A: 0x60}
	selectionFill  = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0x30}
	selectionFrame = color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
)

// regionFromDrag converts a drag between two canvas positions into a pixel region.
// scale is the canvas scale (pixels per device independent unit).
func regionFromDrag(start, end fyne.Position, scale float32) screenshot.Region {
	if scale <= 0 {
		scale = 1
	}
	x1, x2 := float64(min(start.X, end.X)), float64(max(start.X, end.X))
	y1, y2 := float64(min(start.Y, end.Y)), float64(max(start.Y, end.Y))
	s := float64(scale)

	left, top := math.Round(x1*s), math.Round(y1*s)
	return screenshot.Region{
		X:      int(left),
		Y:      int(top),
		Width:  int(math.Round(x2*s) - left),
		Height: int(math.Round(y2*s) - top),
	}
}

// selectionArea is the full-screen rubber band used by the capture overlay.
type selectionArea struct {
	widget.BaseWidget

	mu        sync.Mutex
	selecting bool
	start     fyne.Position
	end       fyne.Position

	shade *canvas.Rectangle
	rect  *canvas.Rectangle
	scale func() float32

	onSelect func(screenshot.Region)
}

func newSelectionArea(scale func() float32, onSelect func(screenshot.Region)) *selectionArea {
	rect := canvas.NewRectangle(selectionFill)
	rect.StrokeColor = selectionFrame
	rect.StrokeWidth = 2
	rect.Hide()

	s := &selectionArea{
		shade:    canvas.NewRectangle(shadeColor),
		rect:     rect,
		scale:    scale,
		onSelect: onSelect,
	}
	s.ExtendBaseWidget(s)
	return s
}

func (s *selectionArea) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(s.shade, container.NewWithoutLayout(s.rect)))
}

func (s *selectionArea) Dragged(ev *fyne.DragEvent) {
	s.mu.Lock()
	if !s.selecting {
		s.selecting = true
		s.start = ev.Position.Subtract(ev.Dragged)
	}
	s.end = ev.Position
	x, y := min(s.start.X, s.end.X), min(s.start.Y, s.end.Y)
	w, h := max(s.start.X, s.end.X)-x, max(s.start.Y, s.end.Y)-y
	s.mu.Unlock()

	s.rect.Move(fyne.NewPos(x, y))
	s.rect.Resize(fyne.NewSize(w, h))
	s.rect.Show()
	s.rect.Refresh()
}

func (s *selectionArea) DragEnd() {
	s.mu.Lock()
	if !s.selecting {
		s.mu.Unlock()
		return
	}
	s.selecting = false
	start, end := s.start, s.end
	s.mu.Unlock()

	s.rect.Hide()
	region := regionFromDrag(start, end, s.scale())
	log.Printf("Overlay: selection %+v", region)
	if s.onSelect != nil {
		s.onSelect(region)
	}
}
