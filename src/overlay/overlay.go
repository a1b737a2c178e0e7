package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"screen-translate/src/screenshot"
)

var (
	ErrCaptureSourceNotFound = errors.New("capture source for the primary display not found")
	ErrInvalidRegion         = errors.New("selected region has no area")
)

// Surface is one full-screen selection window. Close must be safe to call once the
// window is already gone.
type Surface interface {
	Show() error
	Focus()
	Close()
}

// SurfaceFactory builds a borderless, always-on-top surface covering bounds.
type SurfaceFactory func(bounds image.Rectangle) (Surface, error)

// Coordinator owns the single capture overlay and the screen grab that follows a
// region submission. All methods are safe for concurrent use.
type Coordinator struct {
	source  screenshot.Source
	factory SurfaceFactory

	// SettleDelay lets the compositor remove the overlay before the grab.
	SettleDelay time.Duration

	mu      sync.Mutex
	surface Surface
	display screenshot.Display
}

// NewCoordinator returns a coordinator with no overlay showing.
func NewCoordinator(source screenshot.Source, factory SurfaceFactory) *Coordinator {
	return &Coordinator{source: source, factory: factory}
}

// RequestCapture shows the overlay, or focuses it when one already exists.
func (c *Coordinator) RequestCapture(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.surface != nil {
		log.Printf("Coordinator: overlay already active, focusing")
		c.surface.Focus()
		return nil
	}

	primary, err := c.source.Primary()
	if err != nil {
		return fmt.Errorf("failed to resolve primary display: %w", err)
	}

	s, err := c.factory(primary.Bounds)
	if err != nil {
		return fmt.Errorf("failed to create overlay: %w", err)
	}
	if err := s.Show(); err != nil {
		s.Close()
		return fmt.Errorf("failed to show overlay: %w", err)
	}
	s.Focus()

	c.surface = s
	c.display = primary
	log.Printf("Coordinator: overlay shown on display %s", primary.ID)
	return nil
}

// SubmitRegion tears the overlay down, then captures the primary display. The
// overlay is gone on every return path.
func (c *Coordinator) SubmitRegion(ctx context.Context, region screenshot.Region) (screenshot.ScreenImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	if !region.Valid() {
		log.Printf("Coordinator: ignoring region %+v", region)
		return screenshot.ScreenImage{}, ErrInvalidRegion
	}

	if c.SettleDelay > 0 {
		t := time.NewTimer(c.SettleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return screenshot.ScreenImage{}, ctx.Err()
		}
	}

	primary, err := c.source.Primary()
	if err != nil {
		return screenshot.ScreenImage{}, fmt.Errorf("%w: %v", ErrCaptureSourceNotFound, err)
	}
	if c.display.ID != "" && c.display.ID != primary.ID {
		log.Printf("Coordinator: primary display changed from %s to %s", c.display.ID, primary.ID)
	}

	displays, err := c.source.Displays()
	if err != nil {
		return screenshot.ScreenImage{}, fmt.Errorf("%w: %v", ErrCaptureSourceNotFound, err)
	}
	target, ok := screenshot.Find(displays, primary.ID)
	if !ok {
		log.Printf("Coordinator: no capture source matches display %s", primary.ID)
		return screenshot.ScreenImage{}, ErrCaptureSourceNotFound
	}

	img, err := c.source.Capture(target)
	if err != nil {
		return screenshot.ScreenImage{}, fmt.Errorf("%w: %v", ErrCaptureSourceNotFound, err)
	}
	data, err := screenshot.Encode(img)
	if err != nil {
		return screenshot.ScreenImage{}, err
	}

	log.Printf("Coordinator: captured display %s (%dx%d) for region %+v",
		target.ID, target.Bounds.Dx(), target.Bounds.Dy(), region)
	return screenshot.ScreenImage{DisplayID: target.ID, Bounds: target.Bounds, PNG: data}, nil
}

// CancelCapture removes the overlay without capturing.
func (c *Coordinator) CancelCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// Active reports whether an overlay is showing.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface != nil
}

func (c *Coordinator) teardownLocked() {
	if c.surface == nil {
		return
	}
	c.surface.Close()
	c.surface = nil
	log.Printf("Coordinator: overlay closed")
}
