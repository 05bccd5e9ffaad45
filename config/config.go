// Package config holds the harness settings, read from a TOML file and
// overridden by command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Backends lists the accepted backend names.
var Backends = []string{"webgpu", "opengl", "headless"}

type Config struct {
	Backend string `toml:"backend" comment:"webgpu, opengl or headless"`
	// Frames stops the harness after that many frames. Zero runs until the
	// window is closed.
	Frames int `toml:"frames"`
	// Dump is a PNG path the last headless frame is written to.
	Dump string `toml:"dump,omitempty"`

	Window Window `toml:"window"`
	Log    Log    `toml:"log"`
}

type Window struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Title      string `toml:"title"`
	Fullscreen bool   `toml:"fullscreen"`
}

type Log struct {
	Level string `toml:"level" comment:"debug, info, warn or error"`
}

func Default() Config {
	return Config{
		Backend: "webgpu",
		Window: Window{
			Width:  1920,
			Height: 1080,
			Title:  "render-harness",
		},
		Log: Log{Level: "info"},
	}
}

// Open reads a TOML file over the defaults. Keys missing from the file keep
// their default value; unknown keys are an error.
func Open(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	if err := Decode(f, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return cfg, nil
}

func Decode(r io.Reader, cfg *Config) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg)
}

func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("unknown backend %q, want one of %s", c.Backend, strings.Join(Backends, ", ")))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid window size %dx%d", c.Window.Width, c.Window.Height))
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("negative frame count %d", c.Frames))
	}
	if c.Dump != "" && c.Backend != "headless" {
		errs = append(errs, errors.New("dump is only supported by the headless backend"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}
