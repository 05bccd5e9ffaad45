package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"render-harness/config"
	"render-harness/core"
	"render-harness/hal"
	"render-harness/headless"
	"render-harness/opengl"
	"render-harness/renderer"
	"render-harness/webgpu"
)

type flags struct {
	config      string
	backend     string
	width       int
	height      int
	frames      int
	logLevel    string
	dump        string
	printConfig bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.config, "config", "", "TOML config file")
	flag.StringVar(&f.backend, "backend", "", "backend: webgpu, opengl or headless")
	flag.IntVar(&f.width, "width", 0, "window width in pixels")
	flag.IntVar(&f.height, "height", 0, "window height in pixels")
	flag.IntVar(&f.frames, "frames", -1, "stop after this many frames (0 runs until closed)")
	flag.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	flag.StringVar(&f.dump, "dump", "", "write the last headless frame to this PNG file")
	flag.BoolVar(&f.printConfig, "print-config", false, "print the effective config and exit")
	flag.Parse()
	return f
}

// load reads the config file, if any, and applies flag overrides on top.
func load(f flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Open(f.config); err != nil {
			return cfg, err
		}
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.width > 0 {
		cfg.Window.Width = f.width
	}
	if f.height > 0 {
		cfg.Window.Height = f.height
	}
	if f.frames >= 0 {
		cfg.Frames = f.frames
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.dump != "" {
		cfg.Dump = f.dump
	}
	return cfg, cfg.Validate()
}

func main() {
	f := parseFlags()
	cfg, err := load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if f.printConfig {
		if err := cfg.Encode(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "failed to print config: %v\n", err)
			os.Exit(1)
		}
		return
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	renderer.SetLogger(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("harness failed", failureAttrs(cfg.Backend, err)...)
		os.Exit(1)
	}
}

// failureAttrs adds the failed step and its kind when err comes from
// engine construction.
func failureAttrs(backend string, err error) []any {
	args := []any{"backend", backend, "err", err}
	var ie *renderer.InitError
	if errors.As(err, &ie) {
		args = append(args, "step", ie.Step, "kind", ie.Kind)
	}
	return args
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backend hal.Backend
		target  hal.SurfaceTarget
		source  core.SignalSource
		offline *headless.Backend
	)

	switch cfg.Backend {
	case "headless":
		offline = headless.New()
		screen := &core.Offscreen{Width: cfg.Window.Width, Height: cfg.Window.Height}
		backend, target, source = offline, screen, screen
	case "webgpu", "opengl":
		wc := core.DefaultWindowConfig()
		wc.Width = cfg.Window.Width
		wc.Height = cfg.Window.Height
		wc.Title = cfg.Window.Title
		wc.Fullscreen = cfg.Window.Fullscreen
		if cfg.Backend == "opengl" {
			wc.ClientAPI = core.ClientAPIOpenGL
			backend = opengl.New()
		} else {
			backend = webgpu.New()
		}
		window, err := core.NewWindow(wc)
		if err != nil {
			return err
		}
		defer window.Destroy()
		target, source = window, window
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	engine, err := renderer.New(backend, target)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	info := engine.AdapterInfo()
	logger.Info("rendering",
		"backend", backend.Name(),
		"adapter", info.Name,
		"surface", engine.SurfaceConfig().String())

	loop := core.NewEventLoop()
	loop.MaxFrames = cfg.Frames
	loop.Logger = logger
	if err := loop.Run(ctx, source, engine.Render); err != nil {
		return err
	}
	logger.Info("done", "frames", loop.Frames())

	if offline != nil && cfg.Dump != "" {
		return dump(offline, cfg.Dump)
	}
	return nil
}

func dump(b *headless.Backend, path string) error {
	img := b.Frame()
	if img == nil {
		return errors.New("no frame was presented")
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return out.Close()
}
