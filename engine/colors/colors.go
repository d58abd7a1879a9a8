package colors

// Color is RGBA with components in [0, 1].
type Color [4]float32

var (
	White       = Color{1, 1, 1, 1}
	Black       = Color{0, 0, 0, 1}
	Transparent = Color{0, 0, 0, 0}
	Gray        = Color{0.9, 0.9, 0.9, 1}

	// Anchor colors by the kind of trackable the anchor is attached to.
	PointBlue                 = RGBA255(66, 133, 244, 255)
	PlaneGreen                = RGBA255(139, 195, 74, 255)
	InstantFullTrackingYellow = RGBA255(255, 255, 137, 255)
	InstantApproximateWhite   = RGBA255(255, 255, 255, 255)
)

// RGBA255 builds a Color from 8-bit channels.
func RGBA255(r, g, b, a float32) Color {
	return Color{r / 255, g / 255, b / 255, a / 255}
}

// Hex builds a Color from 0xRRGGBBAA.
func Hex(rgba uint32) Color {
	return RGBA255(
		float32(rgba>>24&0xFF),
		float32(rgba>>16&0xFF),
		float32(rgba>>8&0xFF),
		float32(rgba&0xFF),
	)
}

func (c Color) WithAlpha(a float32) Color {
	c[3] = a
	return c
}

// Scale multiplies the RGB channels by k, leaving alpha untouched.
func (c Color) Scale(k float32) Color {
	c[0] *= k
	c[1] *= k
	c[2] *= k
	return c
}

// tintPalette is the material palette cycled through by image index.
var tintPalette = [...]uint32{
	0x000000FF, 0xF44336FF, 0xE91E63FF, 0x9C27B0FF, 0x673AB7FF, 0x3F51B5FF,
	0x2196F3FF, 0x03A9F4FF, 0x00BCD4FF, 0x009688FF, 0x4CAF50FF, 0x8BC34AFF,
	0xCDDC39FF, 0xFFEB3BFF, 0xFFC107FF, 0xFF9800FF,
}

// Tint returns the overlay tint for an augmented image: the palette entry
// for index scaled by intensity, fully opaque.
func Tint(index int, intensity float32) Color {
	i := index % len(tintPalette)
	if i < 0 {
		i += len(tintPalette)
	}
	return Hex(tintPalette[i]).Scale(intensity).WithAlpha(1)
}
