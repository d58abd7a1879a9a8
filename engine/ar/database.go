package ar

import (
	"path"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/assets"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// AssetSource is what session configuration needs from the asset store.
type AssetSource interface {
	LoadBytes(name string) ([]byte, error)
	LoadImage(name string) (*assets.Image, error)
}

// DatabaseOptions selects where the augmented image database comes from.
type DatabaseOptions struct {
	// Path of a serialized database.
	Path string
	// UseSingleImage builds the database at runtime from SingleImage
	// instead of deserializing Path.
	UseSingleImage bool
	SingleImage    string
}

// LoadImageDatabase loads the database named by opts.
func LoadImageDatabase(src AssetSource, opts DatabaseOptions) (*tracking.ImageDatabase, error) {
	if opts.UseSingleImage {
		img, err := src.LoadImage(opts.SingleImage)
		if err != nil {
			return nil, errors.Wrap(err, "image database")
		}
		return &tracking.ImageDatabase{Images: []tracking.DatabaseImage{{
			Name:   path.Base(opts.SingleImage),
			Width:  img.Width,
			Height: img.Height,
			Stride: img.Width,
			Gray:   assets.Grayscale(img),
		}}}, nil
	}

	b, err := src.LoadBytes(opts.Path)
	if err != nil {
		return nil, errors.Wrap(err, "image database")
	}
	if len(b) == 0 {
		return nil, errors.Wrapf(assets.ErrResourceLoad, "image database %q is empty", opts.Path)
	}
	return &tracking.ImageDatabase{Serialized: b}, nil
}
