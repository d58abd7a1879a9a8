package assets

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// Image is tightly packed RGBA8, row-major with a top-left origin.
type Image struct {
	Width, Height int
	Stride        int
	Pixels        []byte
}

// LoadImage decodes a PNG, JPEG or WebP asset.
func (s *Store) LoadImage(name string) (*Image, error) {
	b, err := s.LoadBytes(name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrapf(ErrResourceLoad, "decode %q: %v", name, err)
	}
	return fromImage(img), nil
}

func fromImage(img image.Image) *Image {
	rgba := imageToRGBA(img)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()

	// Repack in tight rows (stride == 4*w).
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		copy(out[y*w*4:(y+1)*w*4], rgba.Pix[y*rgba.Stride:y*rgba.Stride+w*4])
	}
	return &Image{Width: w, Height: h, Stride: w * 4, Pixels: out}
}

func imageToRGBA(img image.Image) *image.RGBA {
	if m, ok := img.(*image.RGBA); ok && m.Stride == m.Rect.Dx()*4 && m.Rect.Min == (image.Point{}) {
		return m
	}
	dst := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// FlipVertical returns a copy with rows reversed, for OpenGL's bottom-left
// texture origin.
func (img *Image) FlipVertical() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Stride: img.Stride, Pixels: make([]byte, len(img.Pixels))}
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride : (y+1)*img.Stride]
		copy(out.Pixels[(img.Height-1-y)*img.Stride:], src)
	}
	return out
}

// Grayscale converts RGBA pixels to one luma byte per pixel using
// luma = 0.213R + 0.715G + 0.072B. The result has stride Width.
func Grayscale(img *Image) []byte {
	out := make([]byte, img.Width*img.Height)
	for y := 0; y < img.Height; y++ {
		row := img.Pixels[y*img.Stride:]
		for x := 0; x < img.Width; x++ {
			r, g, b := float32(row[4*x]), float32(row[4*x+1]), float32(row[4*x+2])
			out[y*img.Width+x] = uint8(0.213*r + 0.715*g + 0.072*b)
		}
	}
	return out
}
