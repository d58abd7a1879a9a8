// Package text rasterizes short status lines into RGBA bitmaps that the
// renderer uploads as a texture.
package text

import (
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Font is a face plus its line metrics in pixels.
type Font struct {
	Face                     font.Face
	Ascent, Descent, LineGap float32
	closeFace                func() error
}

func newFont(face font.Face, closeFace func() error) *Font {
	m := face.Metrics()
	ascent := float32(m.Ascent.Round())
	descent := float32(-m.Descent.Round())
	lineGap := float32(m.Height.Round()) - ascent + descent
	if lineGap < 0 {
		lineGap = 0
	}
	return &Font{Face: face, Ascent: ascent, Descent: descent, LineGap: lineGap, closeFace: closeFace}
}

// Default returns the built-in 7x13 bitmap face. It needs no font asset.
func Default() *Font {
	return newFont(basicfont.Face7x13, nil)
}

// LoadTTF parses TrueType/OpenType data at sizePx.
func LoadTTF(data []byte, sizePx float32) (*Font, error) {
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse font")
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size: float64(sizePx), DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new face")
	}
	return newFont(face, face.Close), nil
}

// LineHeight is the baseline to baseline distance.
func (f *Font) LineHeight() float32 { return f.Ascent - f.Descent + f.LineGap }

func (f *Font) Close() {
	if f != nil && f.closeFace != nil {
		_ = f.closeFace()
		f.closeFace = nil
	}
}
