package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

var (
	ErrInvalidRegion = errors.New("invalid region dimensions")
	ErrEmptyCrop     = errors.New("region does not intersect the captured image")
)

// Region represents a user-selected rectangle in primary-display pixel coordinates.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether the region has a positive area.
func (r Region) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Rect returns the half-open rectangle [X, X+Width) x [Y, Y+Height).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// ScreenImage is a full-display capture, PNG encoded so it can cross the bridge as
// an opaque payload.
type ScreenImage struct {
	DisplayID string
	Bounds    image.Rectangle
	PNG       []byte
}

// Empty reports whether the capture carries no image data.
func (s ScreenImage) Empty() bool { return len(s.PNG) == 0 }

// Crop copies exactly region.Width x region.Height pixels starting at region.X,
// region.Y relative to the image origin. Pixels outside the source stay transparent.
func Crop(src image.Image, region Region) (*image.RGBA, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidRegion, region.Width, region.Height)
	}
	if src == nil {
		return nil, ErrEmptyCrop
	}

	origin := src.Bounds().Min
	want := region.Rect().Add(origin)
	visible := want.Intersect(src.Bounds())
	if visible.Empty() {
		return nil, ErrEmptyCrop
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Width, region.Height))
	at := visible.Min.Sub(want.Min)
	draw.Copy(dst, at, src, visible, draw.Src, nil)
	return dst, nil
}

// Encode converts an image to PNG bytes.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses PNG bytes produced by Encode.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
