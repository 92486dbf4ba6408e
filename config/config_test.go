package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second/60, cfg.Engine.FrameInterval())
	assert.Equal(t, 10*time.Minute, cfg.Window.Recency)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsDebugEnabled())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty app name", func(c *Config) { c.App.Name = "" }, ErrInvalidAppName},
		{"bad environment", func(c *Config) { c.App.Environment = "staging" }, ErrInvalidEnvironment},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, ErrInvalidLogLevel},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogFormat},
		{"zero frame rate", func(c *Config) { c.Engine.FrameRate = 0 }, ErrInvalidFrameRate},
		{"negative time scale", func(c *Config) { c.Engine.TimeScale = -1 }, ErrInvalidTimeScale},
		{"negative cooldown", func(c *Config) { c.Engine.Cooldown = -time.Second }, ErrInvalidCooldown},
		{"unnamed module", func(c *Config) {
			c.Modules = []ModuleConfig{{Loader: LoaderRegistry}}
		}, ErrInvalidModule},
		{"duplicate module", func(c *Config) {
			c.Modules = []ModuleConfig{{Name: "game", Loader: LoaderRegistry}, {Name: "game", Loader: LoaderRegistry}}
		}, ErrDuplicateModule},
		{"plugin without artifact", func(c *Config) {
			c.Modules = []ModuleConfig{{Name: "game", Loader: LoaderPlugin}}
		}, ErrInvalidModule},
		{"unknown loader", func(c *Config) {
			c.Modules = []ModuleConfig{{Name: "game", Loader: "wasm"}}
		}, ErrInvalidLoader},
		{"watch without sources", func(c *Config) {
			c.Modules = []ModuleConfig{{Name: "game", Loader: LoaderRegistry, Watch: true}}
		}, ErrInvalidModule},
		{"unknown gameplay module", func(c *Config) { c.Engine.GameplayModule = "missing" }, ErrUnknownGameplayModule},
		{"negative recency", func(c *Config) { c.Window.Recency = -time.Minute }, ErrInvalidRecency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"stagehand.yaml": `
app:
  name: yaml-game
engine:
  frame_rate: 30
  cooldown: 2s
modules:
  - name: game
    artifact: build/game.so
    source_root: game
    watch: true
`,
		"stagehand.toml": `
[app]
name = "toml-game"

[engine]
frame_rate = 30
cooldown = "2s"

[[modules]]
name = "game"
artifact = "build/game.so"
source_root = "game"
watch = true
`,
		"stagehand.json": `{
  "app": {"name": "json-game"},
  "engine": {"frame_rate": 30, "cooldown": 2000000000},
  "modules": [{"name": "game", "artifact": "build/game.so", "source_root": "game", "watch": true}]
}`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name, body)
			cfg, err := NewLoader().SetEnvPrefix("STAGEHAND_TEST_NONE").Load(path)
			require.NoError(t, err)

			assert.True(t, strings.HasSuffix(cfg.App.Name, "-game"))
			assert.Equal(t, 30, cfg.Engine.FrameRate)
			assert.Equal(t, 2*time.Second, cfg.Engine.Cooldown)
			// untouched keys keep their defaults
			assert.Equal(t, 1.0, cfg.Engine.TimeScale)
			assert.Equal(t, LogLevelInfo, cfg.Log.Level)

			mod, ok := cfg.Module("game")
			require.True(t, ok)
			assert.Equal(t, ".go", mod.SourceExt)
			assert.Equal(t, LoaderPlugin, mod.Loader)
			assert.True(t, mod.Watch)
		})
	}
}

func TestLoadDoesNotShareDefaults(t *testing.T) {
	base := DefaultConfig()
	base.Modules = []ModuleConfig{{Name: "tools", Loader: LoaderRegistry}}
	loader := NewLoader().SetSearchPaths(nil).SetDefaultConfig(base)

	cfg, err := loader.Load("")
	require.NoError(t, err)
	cfg.Modules[0].Name = "changed"
	cfg.Engine.FrameRate = 5

	assert.Equal(t, "tools", base.Modules[0].Name)
	assert.Equal(t, 60, base.Engine.FrameRate)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader().Load(writeFile(t, dir, "config.ini", "x=1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = NewLoader().Load(writeFile(t, dir, "broken.yaml", "app: [unterminated"))
	assert.ErrorIs(t, err, ErrConfigParseError)

	_, err = NewLoader().Load(writeFile(t, dir, "invalid.yaml", "engine:\n  frame_rate: -1\n"))
	assert.ErrorIs(t, err, ErrInvalidFrameRate)

	_, err = NewLoader().Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAutoDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stagehand.toml", "[app]\nname = \"found\"\n")

	loader := NewLoader().SetSearchPaths([]string{filepath.Join(dir, "nope"), dir})
	path, err := loader.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "stagehand.toml"), path)

	cfg, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.App.Name)

	missing := NewLoader().SetSearchPaths([]string{filepath.Join(dir, "nope")})
	path, err = missing.Resolve("")
	require.NoError(t, err)
	assert.Empty(t, path)

	cfg, err = missing.Load("")
	require.NoError(t, err)
	assert.Equal(t, "stagehand", cfg.App.Name)

	path, err = missing.Resolve("explicit.yaml")
	require.NoError(t, err)
	assert.Equal(t, "explicit.yaml", path)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STAGEHAND_APP_NAME", "env-game")
	t.Setenv("STAGEHAND_LOG_LEVEL", "DEBUG")
	t.Setenv("STAGEHAND_ENGINE_FRAME_RATE", "120")
	t.Setenv("STAGEHAND_ENGINE_TIME_SCALE", "0.5")
	t.Setenv("STAGEHAND_ENGINE_COOLDOWN", "750ms")
	t.Setenv("STAGEHAND_INPUT_KEYMAP", "keys.yaml")
	t.Setenv("STAGEHAND_MONITOR_ENABLED", "true")

	cfg, err := NewLoader().SetSearchPaths(nil).Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-game", cfg.App.Name)
	assert.Equal(t, LogLevelDebug, cfg.Log.Level)
	assert.Equal(t, 120, cfg.Engine.FrameRate)
	assert.Equal(t, 0.5, cfg.Engine.TimeScale)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.Cooldown)
	assert.Equal(t, "keys.yaml", cfg.Input.Keymap)
	assert.True(t, cfg.Monitor.Enabled)
}

func TestEnvironmentOverrideParseError(t *testing.T) {
	t.Setenv("STAGEHAND_ENGINE_FRAME_RATE", "fast")

	_, err := NewLoader().SetSearchPaths(nil).Load("")
	assert.ErrorIs(t, err, ErrEnvironmentVar)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := NewLoader().SetEnvPrefix("STAGEHAND_TEST_NONE").
		LoadFromReader(strings.NewReader("[engine]\ntime_scale = 2.0\n"), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Engine.TimeScale)

	_, err = NewLoader().LoadFromReader(strings.NewReader("{}"), ConfigFormat("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stagehand.yaml", "engine:\n  time_scale: 1.0\n")

	loader := NewLoader().SetEnvPrefix("STAGEHAND_TEST_NONE")
	w, err := NewWatcher(path, loader, zerolog.Nop())
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	var latest atomic.Value
	w.OnConfigChange(func(_, next *Config) { latest.Store(next.Engine.TimeScale) })
	w.OnConfigChange(func(_, _ *Config) { panic("ignored") })

	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	assert.Equal(t, 1.0, w.GetConfig().Engine.TimeScale)

	writeFile(t, dir, "stagehand.yaml", "engine:\n  time_scale: 0.25\n")
	require.Eventually(t, func() bool {
		v, ok := latest.Load().(float64)
		return ok && v == 0.25
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.25, w.GetConfig().Engine.TimeScale)
}

func TestWatcherKeepsConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stagehand.yaml", "engine:\n  frame_rate: 30\n")

	w, err := NewWatcher(path, NewLoader().SetEnvPrefix("STAGEHAND_TEST_NONE"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	writeFile(t, dir, "stagehand.yaml", "engine:\n  frame_rate: 0\n")
	assert.ErrorIs(t, w.Reload(), ErrInvalidFrameRate)
	assert.Equal(t, 30, w.GetConfig().Engine.FrameRate)
}

func TestNewWatcherRejectsUnknownFormat(t *testing.T) {
	_, err := NewWatcher("settings.ini", NewLoader(), zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
