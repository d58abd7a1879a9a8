// Package assets loads packaged resources (shader text, textures, meshes and
// the image recognition database) from a read-only file system.
package assets

import (
	"io/fs"
	"os"
	"path"

	"github.com/pkg/errors"
)

// ErrResourceLoad marks a missing or corrupt asset.
var ErrResourceLoad = errors.New("resource load failed")

// maxAssetSize bounds every read. A database or texture larger than this is
// treated as corrupt.
const maxAssetSize = 64 << 20

// Store reads assets by slash-separated name, e.g. "shaders/plane.vert".
type Store struct {
	fsys fs.FS
}

func NewStore(fsys fs.FS) *Store { return &Store{fsys: fsys} }

// Dir returns a Store rooted at a directory on disk.
func Dir(root string) *Store { return NewStore(os.DirFS(root)) }

// LoadBytes returns the raw contents of name.
func (s *Store) LoadBytes(name string) ([]byte, error) {
	name = path.Clean(name)
	info, err := fs.Stat(s.fsys, name)
	if err != nil {
		return nil, errors.Wrapf(ErrResourceLoad, "stat %q: %v", name, err)
	}
	if info.Size() > maxAssetSize {
		return nil, errors.Wrapf(ErrResourceLoad, "%q is %d bytes, limit %d", name, info.Size(), maxAssetSize)
	}
	b, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, errors.Wrapf(ErrResourceLoad, "read %q: %v", name, err)
	}
	return b, nil
}

// LoadText returns name as a string.
func (s *Store) LoadText(name string) (string, error) {
	b, err := s.LoadBytes(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LoadShader reads a GLSL file into a null-terminated string for OpenGL.
func (s *Store) LoadShader(name string) (string, error) {
	b, err := s.LoadBytes(path.Join("shaders", name))
	if err != nil {
		return "", err
	}
	if len(b) == 0 || b[len(b)-1] != 0 {
		b = append(b, 0)
	}
	return string(b), nil
}
