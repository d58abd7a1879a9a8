package glbackend

import (
	"log/slog"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/core"
	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/scene"
	"github.com/hubastard/grove-ar/engine/scratch"
	"github.com/hubastard/grove-ar/engine/text"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// Assets is what the renderer loads from the packaged resources.
type Assets interface {
	ShaderSource
	LoadOBJ(name string) (tracking.Mesh, error)
}

const (
	objectModel   = "models/andy.obj"
	pointSize     = 5
	planeAlpha    = 0.35
	regionAxisLen = 0.02
	arenaFloats   = 4096
)

var fullscreenQuad = []float32{-1, -1, 1, -1, -1, 1, 1, 1}

// RendererGL draws the camera background and the AR overlays with OpenGL
// 3.3 core. Any program that failed to build is skipped at draw time.
type RendererGL struct {
	win    core.Window
	assets Assets

	background *program
	unlit      *program
	points     *program
	object     *program
	textProg   *program

	lines    *stream
	faceMesh *meshBuffers
	objMesh  *meshBuffers
	hasObj   bool

	// Vertex staging, reset every frame by Clear.
	arena        *scratch.Arena
	viewW, viewH int

	font  *text.Font
	label label
}

// label is the last rasterized status line, kept as a texture until the
// text or color changes.
type label struct {
	key  labelKey
	tex  uint32
	w, h int
}

type labelKey struct {
	text  string
	color colors.Color
}

// NewRendererGL binds the renderer to win's context. GL objects are created
// by Init, which the AR app calls once the surface exists.
func NewRendererGL(win core.Window, _ core.Config, assets Assets) *RendererGL {
	w, h := win.FramebufferSize()
	return &RendererGL{win: win, assets: assets, viewW: w, viewH: h}
}

// Init compiles the programs and uploads static geometry. Without the
// background program there is nothing to show and Init fails with
// assets.ErrResourceLoad; any other missing asset only skips its draws.
func (r *RendererGL) Init() error {
	bg, err := requireProgram(r.assets, "background")
	if err != nil {
		return err
	}
	r.background = newProgram(bg)
	r.unlit = newProgram(loadProgram(r.assets, "unlit"))
	r.points = newProgram(loadProgram(r.assets, "point_cloud"))
	r.object = newProgram(loadProgram(r.assets, "object"))
	r.textProg = newProgram(loadProgram(r.assets, "text"))
	r.font = text.Default()
	r.arena = scratch.New(arenaFloats)

	r.lines = newStream()
	r.faceMesh = newMeshBuffers()
	r.objMesh = newMeshBuffers()

	mesh, err := r.assets.LoadOBJ(objectModel)
	switch {
	case err != nil:
		logging.Logger().Error("object model", slog.String("name", objectModel), slog.Any("err", err))
	case mesh.Empty():
		logging.Logger().Error("object model has no geometry", slog.String("name", objectModel))
	default:
		r.objMesh.upload(mesh)
		r.hasObj = true
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	return nil
}

func (r *RendererGL) Shutdown() {
	r.lines.delete()
	r.faceMesh.delete()
	r.objMesh.delete()
	for _, p := range []*program{r.background, r.unlit, r.points, r.object, r.textProg} {
		p.delete()
	}
	if r.label.tex != 0 {
		gl.DeleteTextures(1, &r.label.tex)
	}
	r.font.Close()
}

func (r *RendererGL) Resize(w, h int) {
	r.viewW, r.viewH = w, h
	gl.Viewport(0, 0, int32(w), int32(h))
}

func (r *RendererGL) Clear(rf, gf, bf, af float32) {
	if r.arena != nil {
		r.arena.Reset()
	}
	gl.ClearColor(rf, gf, bf, af)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// DrawBackground fills the screen with the camera image, sampled through the
// cached UV transform.
func (r *RendererGL) DrawBackground(f *scene.FrameContext, depthVisualization bool) {
	p := r.background
	if !p.ok() {
		return
	}
	gl.Disable(gl.DEPTH_TEST)
	gl.DepthMask(false)
	p.use()
	p.setMat3("uUV", f.UV)
	p.setBool("uDepthVisualization", depthVisualization)
	r.lines.draw(gl.TRIANGLE_STRIP, fullscreenQuad, 2)
	gl.DepthMask(true)
	gl.Enable(gl.DEPTH_TEST)
}

// DrawAugmentedImage outlines the image extent in the anchor's XZ plane.
func (r *RendererGL) DrawAugmentedImage(f *scene.FrameContext, img core.AugmentedImage) {
	p := r.unlit
	if !p.ok() {
		return
	}
	hx, hz := img.ExtentX/2, img.ExtentZ/2
	frame := []float32{
		-hx, 0, -hz,
		hx, 0, -hz,
		hx, 0, hz,
		-hx, 0, hz,
	}
	p.use()
	p.setMat4("uMVP", posemath.Mul(f.ViewProjection(), img.Model))
	p.setColor("uColor", img.Tint)
	r.lines.draw(gl.LINE_LOOP, frame, 3)
}

// DrawFace draws the face mesh and a small axis cross on every region.
func (r *RendererGL) DrawFace(f *scene.FrameContext, face core.Face) {
	p := r.unlit
	if !p.ok() {
		return
	}
	vp := f.ViewProjection()
	p.use()
	if !face.Mesh.Empty() {
		r.faceMesh.upload(face.Mesh)
		gl.Enable(gl.BLEND)
		p.setMat4("uMVP", posemath.Mul(vp, face.Model))
		p.setColor("uColor", colors.White.WithAlpha(0.5))
		r.faceMesh.draw()
		gl.Disable(gl.BLEND)
	}

	axes := [3]struct {
		v [6]float32
		c colors.Color
	}{
		{[6]float32{0, 0, 0, regionAxisLen, 0, 0}, colors.RGBA255(255, 0, 0, 255)},
		{[6]float32{0, 0, 0, 0, regionAxisLen, 0}, colors.RGBA255(0, 255, 0, 255)},
		{[6]float32{0, 0, 0, 0, 0, regionAxisLen}, colors.RGBA255(0, 0, 255, 255)},
	}
	for _, m := range face.Regions {
		p.setMat4("uMVP", posemath.Mul(vp, m))
		for _, a := range axes {
			p.setColor("uColor", a.c)
			r.lines.draw(gl.LINES, a.v[:], 3)
		}
	}
}

// DrawPlane fills the polygon translucently in the plane's local frame.
func (r *RendererGL) DrawPlane(f *scene.FrameContext, pl core.Plane) {
	p := r.unlit
	if !p.ok() || len(pl.Polygon) < 6 {
		return
	}
	n := len(pl.Polygon) / 2
	verts := r.arena.Floats(n * 3)
	for i := range n {
		verts[i*3] = pl.Polygon[i*2]
		verts[i*3+2] = pl.Polygon[i*2+1]
	}
	gl.Enable(gl.BLEND)
	gl.DepthMask(false)
	p.use()
	p.setMat4("uMVP", posemath.Mul(f.ViewProjection(), pl.Model))
	p.setColor("uColor", colors.White.WithAlpha(planeAlpha))
	r.lines.draw(gl.TRIANGLE_FAN, verts, 3)
	p.setColor("uColor", colors.White)
	r.lines.draw(gl.LINE_LOOP, verts, 3)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
}

// DrawObject draws the anchor model lit by the frame's color correction.
func (r *RendererGL) DrawObject(f *scene.FrameContext, o core.Object) {
	p := r.object
	if !p.ok() || !r.hasObj {
		return
	}
	p.use()
	p.setMat4("uModel", o.Model)
	p.setMat4("uView", f.View)
	p.setMat4("uProjection", f.Projection)
	p.setColor("uColor", o.Color)
	p.setVec4("uColorCorrection", f.ColorCorrection)
	p.setBool("uDepthOcclusion", o.DepthOcclusion)
	if o.DepthOcclusion {
		gl.Enable(gl.BLEND)
		defer gl.Disable(gl.BLEND)
	}
	r.objMesh.draw()
}

// DrawPointCloud draws xyzc points; confidence is passed through as the
// fourth component.
func (r *RendererGL) DrawPointCloud(f *scene.FrameContext, pts []float32) {
	p := r.points
	if !p.ok() || len(pts) < 4 {
		return
	}
	p.use()
	p.setMat4("uMVP", f.ViewProjection())
	p.setColor("uColor", colors.PointBlue)
	p.setFloat("uPointSize", pointSize)
	r.lines.draw(gl.POINTS, pts, 4)
}

// DrawText draws a status line on top of everything else.
func (r *RendererGL) DrawText(msg string, x, y float32, c colors.Color) {
	p := r.textProg
	if !p.ok() || msg == "" || r.viewW <= 0 || r.viewH <= 0 {
		return
	}
	if key := (labelKey{text: msg, color: c}); key != r.label.key || r.label.tex == 0 {
		r.uploadLabel(key)
	}

	vw, vh := float32(r.viewW), float32(r.viewH)
	x0, y0 := x/vw*2-1, 1-y/vh*2
	x1, y1 := (x+float32(r.label.w))/vw*2-1, 1-(y+float32(r.label.h))/vh*2
	quad := r.arena.Floats(16)
	copy(quad, []float32{
		x0, y1, 0, 1,
		x1, y1, 1, 1,
		x0, y0, 0, 0,
		x1, y0, 1, 0,
	})

	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	p.use()
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.label.tex)
	gl.Uniform1i(p.loc("uTexture"), 0)
	r.lines.draw(gl.TRIANGLE_STRIP, quad, 4)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.Disable(gl.BLEND)
	gl.Enable(gl.DEPTH_TEST)
}

func (r *RendererGL) uploadLabel(key labelKey) {
	img := text.Rasterize(r.font, key.text, key.color)
	if img == nil {
		return
	}
	if r.label.tex == 0 {
		gl.GenTextures(1, &r.label.tex)
	}
	gl.BindTexture(gl.TEXTURE_2D, r.label.tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	r.label = label{key: key, tex: r.label.tex, w: w, h: h}
}
