// Package testutil builds synthetic images for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Uniform returns a w×h image filled with a single gray level.
func Uniform(w, h int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: level}}, image.Point{}, draw.Src)
	return img
}

// Checkerboard alternates cell×cell squares of levels a and b.
func Checkerboard(w, h, cell int, a, b uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: a})
			} else {
				img.SetGray(x, y, color.Gray{Y: b})
			}
		}
	}
	return img
}

// TextCard draws dark text lines on a mid-gray card with a dark border, which
// looks enough like a photographed ID card to pass the quality gate.
func TextCard(lines ...string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 360, 220))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 175, G: 170, B: 160, A: 255}}, image.Point{}, draw.Src)
	border := color.RGBA{R: 30, G: 30, B: 40, A: 255}
	for x := 0; x < 360; x++ {
		for _, y := range []int{2, 3, 216, 217} {
			img.Set(x, y, border)
		}
	}
	for y := 0; y < 220; y++ {
		for _, x := range []int{2, 3, 356, 357} {
			img.Set(x, y, border)
		}
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 15, G: 15, B: 20, A: 255}),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		d.Dot = fixed.P(14, 24+i*16)
		d.DrawString(line)
	}
	return img
}

// PNG encodes img or fails the test.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// PNGDeclaring encodes img and then rewrites its header to claim w×h pixels.
// The file stays small; only a full decode notices the mismatch.
func PNGDeclaring(t testing.TB, img image.Image, w, h uint32) []byte {
	t.Helper()
	data := PNG(t, img)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29.
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// JPEG encodes img at the given quality or fails the test.
func JPEG(t testing.TB, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// Noise returns a deterministic pseudo-random RGB image; it compresses poorly,
// which makes it handy for hitting file-size bands.
func Noise(w, h int, seed uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	state := seed | 1
	for i := 0; i < len(img.Pix); i += 4 {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		img.Pix[i] = uint8(state)
		img.Pix[i+1] = uint8(state >> 8)
		img.Pix[i+2] = uint8(state >> 16)
		img.Pix[i+3] = 255
	}
	return img
}
