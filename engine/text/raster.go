package text

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/hubastard/grove-ar/engine/colors"
)

// Padding around rasterized text, in pixels.
const Padding = 4

// Measure returns the pixel size of s, one line per '\n'.
func Measure(f *Font, s string) (width, height int) {
	lines := strings.Split(s, "\n")
	var w float32
	for _, line := range lines {
		if lw := lineWidth(f, line); lw > w {
			w = lw
		}
	}
	return int(math.Ceil(float64(w))), int(math.Ceil(float64(f.LineHeight()))) * len(lines)
}

func lineWidth(f *Font, line string) float32 {
	var w fixed.Int26_6
	prev := rune(-1)
	for _, r := range line {
		if prev >= 0 {
			w += f.Face.Kern(prev, r)
		}
		adv, ok := f.Face.GlyphAdvance(r)
		if !ok {
			adv, _ = f.Face.GlyphAdvance(' ')
		}
		w += adv
		prev = r
	}
	return float32(w.Round())
}

// Rasterize draws s in c on a translucent black backing box and returns the
// bitmap, top row first. Empty text yields nil.
func Rasterize(f *Font, s string, c colors.Color) *image.RGBA {
	if s == "" {
		return nil
	}
	w, h := Measure(f, s)
	dst := image.NewRGBA(image.Rect(0, 0, w+2*Padding, h+2*Padding))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(toNRGBA(c)), Face: f.Face}
	lineH := int(math.Ceil(float64(f.LineHeight())))
	for i, line := range strings.Split(s, "\n") {
		baseline := Padding + i*lineH + int(f.Ascent)
		d.Dot = fixed.P(Padding, baseline)
		d.DrawString(line)
	}
	return dst
}

func toNRGBA(c colors.Color) color.NRGBA {
	to8 := func(v float32) uint8 {
		return uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
	}
	return color.NRGBA{to8(c[0]), to8(c[1]), to8(c[2]), to8(c[3])}
}
