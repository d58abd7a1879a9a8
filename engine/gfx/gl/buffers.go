package glbackend

import (
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/grove-ar/engine/tracking"
)

// stream is a dynamic vertex buffer refilled on every draw.
type stream struct {
	vao, vbo uint32
	capBytes int
}

func newStream() *stream {
	s := &stream{}
	gl.GenVertexArrays(1, &s.vao)
	gl.GenBuffers(1, &s.vbo)
	return s
}

// draw uploads data as tightly packed vectors of comps floats at attribute 0.
func (s *stream) draw(mode uint32, data []float32, comps int32) {
	n := int32(len(data)) / comps
	if n == 0 {
		return
	}
	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	size := len(data) * 4
	if size > s.capBytes {
		gl.BufferData(gl.ARRAY_BUFFER, size, gl.Ptr(data), gl.STREAM_DRAW)
		s.capBytes = size
	} else {
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, size, gl.Ptr(data))
	}
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, comps, gl.FLOAT, false, comps*4, unsafe.Pointer(uintptr(0)))
	gl.DrawArrays(mode, 0, n)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (s *stream) delete() {
	if s == nil {
		return
	}
	gl.DeleteBuffers(1, &s.vbo)
	gl.DeleteVertexArrays(1, &s.vao)
}

// meshBuffers holds an indexed mesh: position at 0, normal at 1, uv at 2.
type meshBuffers struct {
	vao      uint32
	vbos     [3]uint32
	ebo      uint32
	count    int32
	capBytes [4]int
}

func newMeshBuffers() *meshBuffers {
	m := &meshBuffers{}
	gl.GenVertexArrays(1, &m.vao)
	gl.GenBuffers(3, &m.vbos[0])
	gl.GenBuffers(1, &m.ebo)
	return m
}

// upload replaces the mesh contents. Face meshes change every frame so the
// buffers are reused when large enough.
func (m *meshBuffers) upload(mesh tracking.Mesh) {
	gl.BindVertexArray(m.vao)
	streams := [3]struct {
		data  []float32
		comps int32
	}{{mesh.Vertices, 3}, {mesh.Normals, 3}, {mesh.UVs, 2}}
	for i, st := range streams {
		gl.BindBuffer(gl.ARRAY_BUFFER, m.vbos[i])
		m.fill(gl.ARRAY_BUFFER, i, len(st.data)*4, gl.Ptr(st.data))
		gl.EnableVertexAttribArray(uint32(i))
		gl.VertexAttribPointer(uint32(i), st.comps, gl.FLOAT, false, st.comps*4, unsafe.Pointer(uintptr(0)))
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	m.fill(gl.ELEMENT_ARRAY_BUFFER, 3, len(mesh.Indices)*2, gl.Ptr(mesh.Indices))
	m.count = int32(len(mesh.Indices))
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (m *meshBuffers) fill(target uint32, slot, size int, ptr unsafe.Pointer) {
	if size > m.capBytes[slot] {
		gl.BufferData(target, size, ptr, gl.DYNAMIC_DRAW)
		m.capBytes[slot] = size
		return
	}
	gl.BufferSubData(target, 0, size, ptr)
}

func (m *meshBuffers) draw() {
	if m.count == 0 {
		return
	}
	gl.BindVertexArray(m.vao)
	gl.DrawElements(gl.TRIANGLES, m.count, gl.UNSIGNED_SHORT, unsafe.Pointer(uintptr(0)))
	gl.BindVertexArray(0)
}

func (m *meshBuffers) delete() {
	if m == nil {
		return
	}
	gl.DeleteBuffers(1, &m.ebo)
	gl.DeleteBuffers(3, &m.vbos[0])
	gl.DeleteVertexArrays(1, &m.vao)
}
