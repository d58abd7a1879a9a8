package assets

import (
	"bufio"
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/tracking"
)

// LoadOBJ parses the v/vt/vn/f subset of Wavefront OBJ. Polygons are fanned
// into triangles and every distinct v/vt/vn triple becomes one vertex, so
// the mesh can be drawn with a single index buffer.
func (s *Store) LoadOBJ(name string) (tracking.Mesh, error) {
	b, err := s.LoadBytes(name)
	if err != nil {
		return tracking.Mesh{}, err
	}
	m, err := parseOBJ(b)
	if err != nil {
		return tracking.Mesh{}, errors.Wrapf(ErrResourceLoad, "%s: %v", name, err)
	}
	return m, nil
}

type objCorner struct{ v, vt, vn int }

func parseOBJ(b []byte) (tracking.Mesh, error) {
	var (
		pos, uv, nrm [][]float32
		mesh         tracking.Mesh
		seen         = map[objCorner]uint16{}
	)

	sc := bufio.NewScanner(bytes.NewReader(b))
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v", "vt", "vn":
			vals, err := parseFloats(fields[1:])
			if err != nil {
				return mesh, errors.Wrapf(err, "line %d", line)
			}
			switch fields[0] {
			case "v":
				pos = append(pos, pad(vals, 3))
			case "vt":
				uv = append(uv, pad(vals, 2))
			case "vn":
				nrm = append(nrm, pad(vals, 3))
			}
		case "f":
			if len(fields) < 4 {
				return mesh, errors.Errorf("line %d: face needs 3 corners", line)
			}
			idx := make([]uint16, 0, len(fields)-1)
			for _, f := range fields[1:] {
				c, err := parseCorner(f, len(pos), len(uv), len(nrm))
				if err != nil {
					return mesh, errors.Wrapf(err, "line %d", line)
				}
				i, ok := seen[c]
				if !ok {
					if len(seen) > math.MaxUint16 {
						return mesh, errors.Errorf("line %d: more than %d vertices", line, math.MaxUint16+1)
					}
					i = uint16(len(seen))
					seen[c] = i
					mesh.Vertices = append(mesh.Vertices, pos[c.v]...)
					if c.vt >= 0 {
						mesh.UVs = append(mesh.UVs, uv[c.vt]...)
					} else {
						mesh.UVs = append(mesh.UVs, 0, 0)
					}
					if c.vn >= 0 {
						mesh.Normals = append(mesh.Normals, nrm[c.vn]...)
					} else {
						mesh.Normals = append(mesh.Normals, 0, 0, 0)
					}
				}
				idx = append(idx, i)
			}
			for k := 1; k+1 < len(idx); k++ {
				mesh.Indices = append(mesh.Indices, idx[0], idx[k], idx[k+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return mesh, err
	}
	if mesh.Empty() {
		return mesh, errors.New("no faces")
	}
	return mesh, nil
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func pad(v []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, v)
	return out
}

// parseCorner resolves "v", "v/vt", "v//vn" or "v/vt/vn" to zero-based
// indices, -1 for absent parts. Negative OBJ indices count from the end.
func parseCorner(s string, nv, nvt, nvn int) (objCorner, error) {
	parts := strings.Split(s, "/")
	c := objCorner{v: -1, vt: -1, vn: -1}
	dst := []*int{&c.v, &c.vt, &c.vn}
	limits := []int{nv, nvt, nvn}
	for i, p := range parts {
		if i > 2 {
			return c, errors.Errorf("bad corner %q", s)
		}
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return c, errors.Wrapf(err, "corner %q", s)
		}
		if n < 0 {
			n = limits[i] + n
		} else {
			n--
		}
		if n < 0 || n >= limits[i] {
			return c, errors.Errorf("corner %q out of range", s)
		}
		*dst[i] = n
	}
	if c.v < 0 {
		return c, errors.Errorf("corner %q has no position", s)
	}
	return c, nil
}
