package core

import (
	"time"

	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/posemath"
	"github.com/hubastard/grove-ar/engine/scene"
	"github.com/hubastard/grove-ar/engine/tracking"
)

// App defines the host application hooks. Every hook runs on the render
// thread.
type App interface {
	OnStart(e *Engine) error     // after window/renderer init: create surface, resume
	OnEvent(e *Engine, ev Event) // marshaled host events, drained before each frame
	OnRender(e *Engine)          // draw one frame
	OnShutdown(e *Engine)        // before exit: pause, destroy
}

// Engine exposes core services to the App.
type Engine struct {
	Window   Window
	Renderer Renderer
	// Events may be pushed to from any goroutine.
	Events *EventQueue
	start  time.Time
	frames uint64
}

func (e *Engine) Uptime() time.Duration { return time.Since(e.start) }

// Frames is the number of frames rendered so far.
func (e *Engine) Frames() uint64 { return e.frames }

// Window abstraction.
type Window interface {
	PollEvents()
	SwapBuffers()
	ShouldClose() bool
	FramebufferSize() (int, int)
	SetTitle(title string)
	SetEventCallback(cb func(Event))
	Destroy()
}

// Renderer draws the overlays. Draw calls receive plain values only; engine
// handles never reach the renderer.
type Renderer interface {
	Init() error
	Resize(w, h int)
	Clear(r, g, b, a float32)
	Shutdown()

	DrawBackground(f *scene.FrameContext, depthVisualization bool)
	DrawAugmentedImage(f *scene.FrameContext, img AugmentedImage)
	DrawFace(f *scene.FrameContext, face Face)
	DrawPlane(f *scene.FrameContext, p Plane)
	DrawObject(f *scene.FrameContext, o Object)
	DrawPointCloud(f *scene.FrameContext, points []float32)
	// DrawText draws a status line with its top-left corner at (x, y) in
	// framebuffer pixels.
	DrawText(text string, x, y float32, c colors.Color)
}

// AugmentedImage is a frame drawn around a detected image, at its anchor.
type AugmentedImage struct {
	Index            int
	Model            posemath.Mat4
	ExtentX, ExtentZ float32
	Tint             colors.Color
}

// Face is a face mesh plus the models attached to its regions, in
// face.Regions order.
type Face struct {
	Model   posemath.Mat4
	Mesh    tracking.Mesh
	Regions [3]posemath.Mat4
}

// Plane is a detected plane with its boundary as local XZ pairs.
type Plane struct {
	Model   posemath.Mat4
	Normal  [3]float32
	Polygon []float32
}

// Object is the model drawn at a user anchor.
type Object struct {
	Model          posemath.Mat4
	Color          colors.Color
	DepthOcclusion bool
}

// Config for the engine run.
type Config struct {
	Title      string
	Width      int
	Height     int
	VSync      bool
	ClearColor colors.Color
}
