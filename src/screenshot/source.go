package screenshot

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

var ErrNoDisplay = errors.New("no active displays found")

// Display identifies one capturable screen. The ID changes when the display's
// index or geometry changes, so a stale identity never matches a new layout.
type Display struct {
	ID      string
	Index   int
	Bounds  image.Rectangle
	Primary bool
}

// Source enumerates displays and captures them. Every call re-queries the OS.
type Source interface {
	Primary() (Display, error)
	Displays() ([]Display, error)
	Capture(d Display) (*image.RGBA, error)
}

// NewSource returns the kbinani/screenshot backed implementation.
func NewSource() Source { return KbinaniSource{} }

// KbinaniSource captures displays through github.com/kbinani/screenshot.
type KbinaniSource struct{}

func (KbinaniSource) Displays() ([]Display, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplay
	}
	displays := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		displays = append(displays, Display{
			ID:      displayID(i, b),
			Index:   i,
			Bounds:  b,
			Primary: b.Min == image.Point{},
		})
	}
	return displays, nil
}

// Primary returns the display anchored at the virtual-screen origin, falling back
// to display 0.
func (s KbinaniSource) Primary() (Display, error) {
	displays, err := s.Displays()
	if err != nil {
		return Display{}, err
	}
	return PickPrimary(displays)
}

func (KbinaniSource) Capture(d Display) (*image.RGBA, error) {
	img, err := screenshot.CaptureRect(d.Bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture display %s: %w", d.ID, err)
	}
	return img, nil
}

// PickPrimary selects the primary display from an enumeration.
func PickPrimary(displays []Display) (Display, error) {
	if len(displays) == 0 {
		return Display{}, ErrNoDisplay
	}
	for _, d := range displays {
		if d.Primary {
			return d, nil
		}
	}
	return displays[0], nil
}

// Find returns the display whose identity matches id.
func Find(displays []Display, id string) (Display, bool) {
	for _, d := range displays {
		if d.ID == id {
			return d, true
		}
	}
	return Display{}, false
}

func displayID(index int, b image.Rectangle) string {
	return fmt.Sprintf("%d:%dx%d@%d,%d", index, b.Dx(), b.Dy(), b.Min.X, b.Min.Y)
}
