package core

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/profiler"
)

// Run wires the platform window + renderer and executes the main loop. One
// frame is drawn per iteration; events are applied between frames.
func Run(app App, cfg Config, newWindow func(Config) (Window, error), newRenderer func(Window, Config) (Renderer, error)) error {
	// Graphics contexts require the main OS thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	win, err := newWindow(cfg)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer win.Destroy()

	rend, err := newRenderer(win, cfg)
	if err != nil {
		return errors.Wrap(err, "create renderer")
	}
	defer rend.Shutdown()

	w, h := win.FramebufferSize()
	rend.Resize(w, h)

	eng := &Engine{Window: win, Renderer: rend, Events: NewEventQueue(), start: time.Now()}
	win.SetEventCallback(eng.Events.Push)

	if err := app.OnStart(eng); err != nil {
		app.OnShutdown(eng)
		return errors.Wrap(err, "start")
	}
	eng.Events.Push(EventResize{W: w, H: h})

	clear := cfg.ClearColor
	for !win.ShouldClose() {
		win.PollEvents()
		if !eng.dispatch(app) {
			break
		}

		end := profiler.Start("frame")
		rend.Clear(clear[0], clear[1], clear[2], clear[3])
		app.OnRender(eng)
		end()
		eng.frames++

		win.SwapBuffers()
	}

	app.OnShutdown(eng)
	logging.Logger().Info("engine exit",
		slog.Uint64("frames", eng.frames),
		slog.Duration("uptime", eng.Uptime()))
	return nil
}

// dispatch applies pending events. It reports false once a close was
// requested.
func (e *Engine) dispatch(app App) bool {
	for _, ev := range e.Events.Drain() {
		switch ev := ev.(type) {
		case EventCloseRequested:
			return false
		case EventResize:
			if ev.W < 1 || ev.H < 1 {
				continue
			}
			e.Renderer.Resize(ev.W, ev.H)
		}
		app.OnEvent(e, ev)
	}
	return true
}
