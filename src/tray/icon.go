package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"

	"golang.org/x/image/draw"
)

const iconSize = 32

var (
	frameColor = color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	glyphColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// renderIcon draws a dashed selection frame with two text lines inside.
func renderIcon(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)

	frame := image.NewUniform(frameColor)
	inset, thick, dash := size/8, max(size/16, 1), max(size/8, 2)
	for i := inset; i < size-inset; i++ {
		if ((i-inset)/dash)%2 == 1 {
			continue
		}
		draw.Draw(img, image.Rect(i, inset, i+1, inset+thick), frame, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(i, size-inset-thick, i+1, size-inset), frame, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(inset, i, inset+thick, i+1), frame, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(size-inset-thick, i, size-inset, i+1), frame, image.Point{}, draw.Src)
	}

	glyph := image.NewUniform(glyphColor)
	left, right := size*3/10, size*7/10
	draw.Draw(img, image.Rect(left, size*4/10, right, size*4/10+thick+1), glyph, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(left, size*6/10, right-size/10, size*6/10+thick+1), glyph, image.Point{}, draw.Src)
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// wrapICO embeds a PNG in a single-image ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	buf.Write([]byte{dim, dim, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}

// Icon returns the tray icon in the format the platform tray expects.
func Icon() []byte {
	data := encodePNG(renderIcon(iconSize))
	if runtime.GOOS == "windows" {
		return wrapICO(data, iconSize)
	}
	return data
}
