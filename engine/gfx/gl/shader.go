package glbackend

import (
	"log/slog"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/assets"
	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/posemath"
)

// ShaderSource supplies null-terminated GLSL by file name.
type ShaderSource interface {
	LoadShader(name string) (string, error)
}

// loadProgram builds name.vert + name.frag. A failure is logged and yields
// program 0, which every draw treats as "skip".
func loadProgram(src ShaderSource, name string) uint32 {
	prog, err := buildProgram(src, name)
	if err != nil {
		logging.Logger().Error("shader program", slog.String("name", name), slog.Any("err", err))
		return 0
	}
	return prog
}

// requireProgram builds a program the renderer cannot run without.
func requireProgram(src ShaderSource, name string) (uint32, error) {
	prog, err := buildProgram(src, name)
	if err != nil {
		return 0, errors.Wrapf(assets.ErrResourceLoad, "program %q: %v", name, err)
	}
	return prog, nil
}

func buildProgram(src ShaderSource, name string) (uint32, error) {
	vs, err := src.LoadShader(name + ".vert")
	if err != nil {
		return 0, err
	}
	fs, err := src.LoadShader(name + ".frag")
	if err != nil {
		return 0, err
	}
	return makeProgram(vs, fs)
}

func makeShader(src string, shaderType uint32) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	defer free()
	gl.ShaderSource(sh, 1, csrc, nil)
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen))
		gl.GetShaderInfoLog(sh, logLen, nil, gl.Str(log))
		gl.DeleteShader(sh)
		return 0, errors.Errorf("shader compile error: %s", strings.TrimRight(log, "\x00"))
	}
	return sh, nil
}

func makeProgram(vsSrc, fsSrc string) (uint32, error) {
	vs, err := makeShader(vsSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, errors.Wrap(err, "vertex")
	}
	fs, err := makeShader(fsSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vs)
		return 0, errors.Wrap(err, "fragment")
	}
	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	gl.DeleteShader(vs)
	gl.DeleteShader(fs)

	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, errors.Errorf("program link error: %s", strings.TrimRight(log, "\x00"))
	}
	return prog, nil
}

// program wraps a linked program and caches uniform locations.
type program struct {
	id   uint32
	locs map[string]int32
}

func newProgram(id uint32) *program {
	return &program{id: id, locs: make(map[string]int32)}
}

func (p *program) ok() bool { return p != nil && p.id != 0 }

func (p *program) use() { gl.UseProgram(p.id) }

func (p *program) loc(name string) int32 {
	if l, ok := p.locs[name]; ok {
		return l
	}
	l := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	p.locs[name] = l
	return l
}

func (p *program) setMat4(name string, m posemath.Mat4) {
	gl.UniformMatrix4fv(p.loc(name), 1, false, &m[0])
}

func (p *program) setMat3(name string, m posemath.Mat3) {
	gl.UniformMatrix3fv(p.loc(name), 1, false, &m[0])
}

func (p *program) setVec4(name string, v [4]float32) {
	gl.Uniform4fv(p.loc(name), 1, &v[0])
}

func (p *program) setColor(name string, c colors.Color) {
	p.setVec4(name, [4]float32(c))
}

func (p *program) setFloat(name string, v float32) { gl.Uniform1f(p.loc(name), v) }

func (p *program) setBool(name string, v bool) {
	var i int32
	if v {
		i = 1
	}
	gl.Uniform1i(p.loc(name), i)
}

func (p *program) delete() {
	if p.ok() {
		gl.DeleteProgram(p.id)
	}
}
