// Command hello-ar runs the AR overlay renderer in a desktop window, driven
// by a recorded tracking session.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hubastard/grove-ar/engine/ar"
	"github.com/hubastard/grove-ar/engine/assets"
	"github.com/hubastard/grove-ar/engine/colors"
	"github.com/hubastard/grove-ar/engine/config"
	"github.com/hubastard/grove-ar/engine/core"
	glbackend "github.com/hubastard/grove-ar/engine/gfx/gl"
	"github.com/hubastard/grove-ar/engine/logging"
	"github.com/hubastard/grove-ar/engine/platform"
	"github.com/hubastard/grove-ar/engine/profiler"
	"github.com/hubastard/grove-ar/engine/tracking"
	"github.com/hubastard/grove-ar/engine/tracking/replay"
)

const defaultReplay = "replay/demo.json"

func main() {
	var (
		configPath  = flag.String("config", "", "path to a JSON config file")
		assetsDir   = flag.String("assets", "", "assets directory (overrides config)")
		replayPath  = flag.String("replay", "", "replay script (overrides config)")
		verbose     = flag.Bool("v", false, "debug logging")
		profilePath = flag.String("profile", "", "write a speedscope profile here on exit (needs -tags profile)")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath, *assetsDir, *replayPath, *profilePath); err != nil {
		fmt.Fprintf(os.Stderr, "hello-ar: %+v\n", err)
		os.Exit(1)
	}
}

func run(configPath, assetsOverride, replayOverride, profilePath string) error {
	cfg := &config.Config{}
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	dir := cfg.GetAssetsDir()
	if assetsOverride != "" {
		dir = assetsOverride
	}
	store := assets.Dir(dir)

	scriptPath := cfg.GetReplayScript()
	if replayOverride != "" {
		scriptPath = replayOverride
	}
	if scriptPath == "" {
		scriptPath = filepath.Join(dir, defaultReplay)
	}
	script, err := replay.LoadFile(scriptPath)
	if err != nil {
		return err
	}
	logging.Logger().Info("replay loaded", slog.String("path", scriptPath), slog.Int("frames", len(script.Frames)))

	profiler.Init(1 << 14)
	if profilePath != "" && profiler.Enabled() {
		defer func() {
			if err := profiler.Dump(profilePath); err != nil {
				logging.Logger().Error("profile dump", slog.Any("err", err))
			}
		}()
	}

	app := ar.New(func() (tracking.Engine, error) { return replay.New(script), nil }, ar.Options{
		MaxAnchors:          cfg.GetMaxAnchors(),
		ApproximateDistance: cfg.GetApproximateDistanceMeters(),
		TintIntensity:       cfg.GetTintIntensity(),
		Near:                cfg.GetNear(),
		Far:                 cfg.GetFar(),
		FaceTracking:        cfg.GetFaceTracking(),
		InstantPlacement:    cfg.GetInstantPlacement(),
		Assets:              store,
		Database: ar.DatabaseOptions{
			Path:           cfg.GetImageDatabase(),
			UseSingleImage: cfg.GetUseSingleImage(),
			SingleImage:    cfg.GetSingleImage(),
		},
	})
	h := newHost(app, core.EventSettings{
		InstantPlacement:   cfg.GetInstantPlacement(),
		DepthVisualization: cfg.GetDepthVisualization(),
		DepthOcclusion:     cfg.GetDepthOcclusion(),
	})

	ccfg := core.Config{
		Title:      cfg.GetTitle(),
		Width:      cfg.GetWidth(),
		Height:     cfg.GetHeight(),
		VSync:      cfg.GetVSync(),
		ClearColor: colors.Color(cfg.GetClearColor()),
	}
	newWindow := func(cfg core.Config) (core.Window, error) {
		return platform.NewGLFWWindow(cfg)
	}
	newRenderer := func(win core.Window, cfg core.Config) (core.Renderer, error) {
		return glbackend.NewRendererGL(win, cfg, store), nil
	}
	return errors.Wrap(core.Run(h, ccfg, newWindow, newRenderer), "run")
}
