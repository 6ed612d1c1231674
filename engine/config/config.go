// Package config loads the engine configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by Validate for values that cannot configure the engine.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config is the root of the TOML document.
type Config struct {
	Window     WindowConfig     `toml:"window"`
	Renderer   RendererConfig   `toml:"renderer"`
	GBuffer    GBufferConfig    `toml:"gbuffer"`
	Clustering ClusteringConfig `toml:"clustering"`
	Lighting   LightingConfig   `toml:"lighting"`
	Logging    LoggingConfig    `toml:"logging"`
	Profiler   ProfilerConfig   `toml:"profiler"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	// Backend is "wgpu" or "software".
	Backend string `toml:"backend"`
	// PresentMode is "vsync" or "uncapped".
	PresentMode          string `toml:"present_mode"`
	ForceFallbackAdapter bool   `toml:"force_fallback_adapter"`
	// Workers sizes the software rasterizer and the scene staging pools. Zero picks a default.
	Workers          int    `toml:"workers"`
	ShaderDir        string `toml:"shader_dir"`
	HotReload        bool   `toml:"hot_reload"`
	ShaderValidation bool   `toml:"shader_validation"`
}

// GBufferConfig names the target formats the WebGPU way, e.g. "rgba16float".
type GBufferConfig struct {
	Position string `toml:"position"`
	Normal   string `toml:"normal"`
	Albedo   string `toml:"albedo"`
	Depth    string `toml:"depth"`
}

type ClusteringConfig struct {
	GridX               uint32 `toml:"grid_x"`
	GridY               uint32 `toml:"grid_y"`
	GridZ               uint32 `toml:"grid_z"`
	MaxLightsPerCluster uint32 `toml:"max_lights_per_cluster"`
	MaxLights           int    `toml:"max_lights"`
}

type LightingConfig struct {
	Ambient [3]float32 `toml:"ambient"`
}

type LoggingConfig struct {
	Level        string `toml:"level"`
	ReportCaller bool   `toml:"report_caller"`
}

type ProfilerConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	grid := light.DefaultClusterGrid()
	formats := gbuffer.DefaultFormats()
	return Config{
		Window: WindowConfig{Title: "oxy-deferred", Width: 1280, Height: 720},
		Renderer: RendererConfig{
			Backend:          "wgpu",
			PresentMode:      "vsync",
			ShaderValidation: true,
		},
		GBuffer: GBufferConfig{
			Position: gbuffer.FormatName(formats.Position),
			Normal:   gbuffer.FormatName(formats.Normal),
			Albedo:   gbuffer.FormatName(formats.Albedo),
			Depth:    gbuffer.FormatName(formats.Depth),
		},
		Clustering: ClusteringConfig{
			GridX:               grid.X,
			GridY:               grid.Y,
			GridZ:               grid.Z,
			MaxLightsPerCluster: grid.MaxLightsPerCluster,
			MaxLights:           light.DefaultMaxLights,
		},
		Lighting: LightingConfig{Ambient: [3]float32{0.03, 0.03, 0.03}},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Keys the file omits keep their default value and
// unknown keys are rejected.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - Config: the merged configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a TOML document over the defaults, like Load.
//
// Parameters:
//   - data: the TOML text
//
// Returns:
//   - Config: the merged configuration
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w\n%s", err, strict.String())
		}
		return Config{}, err
	}
	return cfg, nil
}

// Encode returns the TOML form of c.
//
// Returns:
//   - []byte: the document
//   - error: an encoding error
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate reports every invalid value, joined.
//
// Returns:
//   - error: nil, or ErrInvalidConfig wrapped once per problem
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width == 0 || c.Window.Height == 0 {
		errs = append(errs, fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height))
	}
	if _, err := c.BackendType(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if _, err := c.PresentMode(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.Renderer.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Renderer.Workers))
	}
	if _, err := c.Formats(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if err := c.Grid().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.Clustering.MaxLights <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_lights %d", ErrInvalidConfig, c.Clustering.MaxLights))
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log level: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

// BackendType parses the renderer backend name.
func (c Config) BackendType() (backend.BackendType, error) {
	return backend.ParseBackendType(c.Renderer.Backend)
}

// PresentMode parses the present mode name.
func (c Config) PresentMode() (backend.PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Renderer.PresentMode)) {
	case "vsync", "fifo", "":
		return backend.PresentModeVSync, nil
	case "uncapped", "immediate", "mailbox":
		return backend.PresentModeUncapped, nil
	}
	return 0, fmt.Errorf("unknown present mode %q", c.Renderer.PresentMode)
}

// Formats parses the G-buffer format names and checks each target can use its format.
func (c Config) Formats() (gbuffer.Formats, error) {
	var f gbuffer.Formats
	for _, t := range []struct {
		name string
		dst  *wgpu.TextureFormat
	}{
		{c.GBuffer.Position, &f.Position},
		{c.GBuffer.Normal, &f.Normal},
		{c.GBuffer.Albedo, &f.Albedo},
		{c.GBuffer.Depth, &f.Depth},
	} {
		format, err := gbuffer.ParseFormat(t.name)
		if err != nil {
			return gbuffer.Formats{}, err
		}
		*t.dst = format
	}
	if err := f.Validate(); err != nil {
		return gbuffer.Formats{}, err
	}
	return f, nil
}

// Grid returns the cluster grid the clustering section describes.
func (c Config) Grid() light.ClusterGrid {
	return light.ClusterGrid{
		X:                   c.Clustering.GridX,
		Y:                   c.Clustering.GridY,
		Z:                   c.Clustering.GridZ,
		MaxLightsPerCluster: c.Clustering.MaxLightsPerCluster,
	}
}
