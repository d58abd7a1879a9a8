package main

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/ar"
	"github.com/hubastard/grove-ar/engine/core"
	"github.com/hubastard/grove-ar/engine/logging"
)

var errNoRenderer = errors.New("renderer unavailable")

// host adapts the AR app to the desktop window loop. Keys stand in for the
// settings menu: I instant placement, V depth view, O occlusion, Space
// pause/resume, Escape quit, R rotate.
type host struct {
	app      *ar.App
	settings core.EventSettings
	paused   bool
}

func newHost(app *ar.App, settings core.EventSettings) *host {
	return &host{app: app, settings: settings}
}

func (h *host) OnStart(e *core.Engine) error {
	if !h.app.OnSurfaceCreated(e.Renderer) {
		return errNoRenderer
	}
	if err := h.app.OnResume(); err != nil {
		return errors.Wrap(err, "resume")
	}
	h.apply(h.settings)
	return nil
}

func (h *host) OnEvent(e *core.Engine, ev core.Event) {
	switch ev := ev.(type) {
	case core.EventResize:
		h.app.OnDisplayGeometryChanged(ev.Rotation, ev.W, ev.H)
	case core.EventTouch:
		h.app.OnTouched(ev.X, ev.Y)
	case core.EventSettings:
		h.apply(ev)
	case core.EventKey:
		if ev.Down {
			h.onKey(e, ev.Key)
		}
	}
}

func (h *host) onKey(e *core.Engine, k core.Key) {
	s := h.settings
	switch k {
	case core.KeyEscape:
		e.Events.Push(core.EventCloseRequested{})
		return
	case core.KeySpace:
		h.togglePause()
		return
	case core.KeyI:
		s.InstantPlacement = !s.InstantPlacement
	case core.KeyV:
		s.DepthVisualization = !s.DepthVisualization
	case core.KeyO:
		s.DepthOcclusion = !s.DepthOcclusion
	default:
		return
	}
	h.apply(s)
}

// apply stores the toggles. Depth settings are only accepted when the
// session supports depth.
func (h *host) apply(s core.EventSettings) {
	if (s.DepthVisualization || s.DepthOcclusion) && !h.app.IsDepthSupported() {
		logging.Logger().Info("depth not supported, depth settings ignored")
		s.DepthVisualization, s.DepthOcclusion = false, false
	}
	if s.InstantPlacement != h.settings.InstantPlacement {
		h.app.OnSettingsChange(s.InstantPlacement)
	}
	h.settings = s
	logging.Logger().Debug("settings",
		slog.Bool("instant_placement", s.InstantPlacement),
		slog.Bool("depth_visualization", s.DepthVisualization),
		slog.Bool("depth_occlusion", s.DepthOcclusion))
}

func (h *host) togglePause() {
	if h.paused {
		if err := h.app.OnResume(); err != nil {
			logging.Logger().Warn("resume", slog.Any("err", err))
			return
		}
		h.paused = false
		return
	}
	h.app.OnPause()
	h.paused = true
}

func (h *host) OnRender(*core.Engine) {
	h.app.OnDrawFrame(h.settings.DepthVisualization, h.settings.DepthOcclusion)
}

func (h *host) OnShutdown(*core.Engine) {
	h.app.OnPause()
	h.app.Destroy()
}
