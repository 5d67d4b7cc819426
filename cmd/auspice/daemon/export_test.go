package daemon

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextstrain/auspice/internal/constants"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type (
	AppConfig  = appConfig
	ViewConfig = viewConfig
)

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}

// Addr returns the address of the view server, once it runs.
func (a *App) Addr() string {
	if a.daemon == nil {
		return ""
	}
	return a.daemon.Addr()
}

// Rescannable reports whether Hup has a catalog to rescan.
func (a *App) Rescannable() bool {
	return a.catalog.Load() != nil
}

// NewForTests creates a new App instance for testing purposes, running args with a generated config file.
func NewForTests(t *testing.T, conf *AppConfig, args ...string) *App {
	t.Helper()

	p := GenerateTestConfig(t, conf)
	argsWithConf := append(args, "--config", p)

	a, err := New()
	require.NoError(t, err, "Setup: failed to create app")
	a.cmd.SetArgs(argsWithConf)
	return a
}

// GenerateTestConfig generates a temporary config file for testing.
func GenerateTestConfig(t *testing.T, origConf *AppConfig) string {
	t.Helper()

	var conf appConfig

	if origConf != nil {
		conf = *origConf
	}

	if conf.Verbosity == 0 {
		conf.Verbosity = 2
	}

	// Zero values in the file would override the flag defaults.
	sc := &conf.View.Server
	if sc.ListenHost == "" {
		sc.ListenHost = "localhost"
	}
	if sc.TileUpstream == "" {
		sc.TileUpstream = constants.DefaultTileUpstream
	}
	if sc.RequestTimeout == 0 {
		sc.RequestTimeout = 3 * time.Second
	}
	if sc.MaxBodyBytes == 0 {
		sc.MaxBodyBytes = 1 << 17
	}
	if sc.TileCacheDir == "" {
		sc.TileCacheDir = filepath.Join(t.TempDir(), "tiles")
	}
	if sc.ClientDir == "" {
		sc.ClientDir = t.TempDir()
	}

	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal config for tests")

	confPath := filepath.Join(t.TempDir(), "testconfig.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write config for tests")

	return confPath
}

// SetArgs set some arguments on root command for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetOut redirects the output of the commands for tests.
func (a *App) SetOut(w io.Writer) {
	a.cmd.SetOut(w)
}

// SetSilenceUsage set the SilenceUsage flag on root command for tests.
func (a *App) SetSilenceUsage(silence bool) {
	a.cmd.SilenceUsage = silence
}
