package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/scene"
)

// scriptWindow delivers a batch of events per PollEvents call.
type scriptWindow struct {
	polls     [][]Event
	cb        func(Event)
	swaps     int
	destroyed bool
}

func (w *scriptWindow) PollEvents() {
	if len(w.polls) == 0 {
		w.cb(EventCloseRequested{})
		return
	}
	for _, ev := range w.polls[0] {
		w.cb(ev)
	}
	w.polls = w.polls[1:]
}
func (w *scriptWindow) SwapBuffers()                    { w.swaps++ }
func (w *scriptWindow) ShouldClose() bool               { return false }
func (w *scriptWindow) FramebufferSize() (int, int)     { return 640, 480 }
func (w *scriptWindow) SetTitle(string)                 {}
func (w *scriptWindow) SetEventCallback(cb func(Event)) { w.cb = cb }
func (w *scriptWindow) Destroy()                        { w.destroyed = true }

type nopRenderer struct {
	resizes  [][2]int
	clears   int
	shutdown bool
}

func (r *nopRenderer) Init() error              { return nil }
func (r *nopRenderer) Resize(w, h int)          { r.resizes = append(r.resizes, [2]int{w, h}) }
func (r *nopRenderer) Clear(_, _, _, _ float32) { r.clears++ }
func (r *nopRenderer) Shutdown()                { r.shutdown = true }

func (r *nopRenderer) DrawBackground(*scene.FrameContext, bool)               {}
func (r *nopRenderer) DrawAugmentedImage(*scene.FrameContext, AugmentedImage) {}
func (r *nopRenderer) DrawFace(*scene.FrameContext, Face)                     {}
func (r *nopRenderer) DrawPlane(*scene.FrameContext, Plane)                   {}
func (r *nopRenderer) DrawObject(*scene.FrameContext, Object)                 {}
func (r *nopRenderer) DrawPointCloud(*scene.FrameContext, []float32)          {}
func (r *nopRenderer) DrawText(string, float32, float32, colors.Color)        {}

type recordingApp struct {
	calls    []string
	events   []Event
	startErr error
}

func (a *recordingApp) OnStart(*Engine) error {
	a.calls = append(a.calls, "start")
	return a.startErr
}
func (a *recordingApp) OnEvent(_ *Engine, ev Event) {
	a.calls = append(a.calls, "event")
	a.events = append(a.events, ev)
}
func (a *recordingApp) OnRender(*Engine)   { a.calls = append(a.calls, "render") }
func (a *recordingApp) OnShutdown(*Engine) { a.calls = append(a.calls, "shutdown") }

func runWith(t *testing.T, app App, win *scriptWindow, r *nopRenderer) error {
	t.Helper()
	return Run(app, Config{Width: 640, Height: 480},
		func(Config) (Window, error) { return win, nil },
		func(Window, Config) (Renderer, error) { return r, nil })
}

func TestRunHookOrder(t *testing.T) {
	win := &scriptWindow{polls: [][]Event{
		{EventTouch{X: 1, Y: 2}},
		{},
	}}
	r := &nopRenderer{}
	app := &recordingApp{}

	require.NoError(t, runWith(t, app, win, r))

	want := []string{"start", "event", "event", "render", "render", "shutdown"}
	if diff := cmp.Diff(want, app.calls); diff != "" {
		t.Fatalf("hook order (-want +got):\n%s", diff)
	}
	assert.Equal(t, []Event{EventResize{W: 640, H: 480}, EventTouch{X: 1, Y: 2}}, app.events)
	assert.Equal(t, 2, win.swaps)
	assert.Equal(t, 2, r.clears)
	assert.True(t, win.destroyed)
	assert.True(t, r.shutdown)
}

func TestRunResizeReachesRenderer(t *testing.T) {
	win := &scriptWindow{polls: [][]Event{
		{EventResize{W: 0, H: 100}, EventResize{Rotation: 1, W: 480, H: 640}},
	}}
	r := &nopRenderer{}
	app := &recordingApp{}

	require.NoError(t, runWith(t, app, win, r))

	// Initial size, queued initial resize, then the rotation. The empty
	// size is dropped.
	assert.Equal(t, [][2]int{{640, 480}, {640, 480}, {480, 640}}, r.resizes)
	assert.NotContains(t, app.events, EventResize{W: 0, H: 100})
}

func TestRunStartFailure(t *testing.T) {
	win := &scriptWindow{}
	r := &nopRenderer{}
	app := &recordingApp{startErr: assert.AnError}

	err := runWith(t, app, win, r)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"start", "shutdown"}, app.calls)
	assert.True(t, win.destroyed)
	assert.True(t, r.shutdown)
}
