package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nextstrain/auspice/internal/catalog"
	"github.com/nextstrain/auspice/internal/charon"
	"github.com/nextstrain/auspice/internal/constants"
	"github.com/nextstrain/auspice/internal/fileutils"
	"github.com/nextstrain/auspice/internal/genomedb"
	"github.com/spf13/cobra"
)

// viewConfig holds the configuration of the view command.
type viewConfig struct {
	Server charon.StaticConfig `mapstructure:",squash" yaml:",inline"`

	// CustomBuild serves the client bundle from the current directory.
	CustomBuild bool `mapstructure:"custombuild"`
	// GenomeDB builds the genome databases of the dataset directory before serving.
	GenomeDB bool `mapstructure:"genomedb"`
}

func (a *App) installView() {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Launch a local server to view datasets and narratives",
		Long: `Launch a local server to view datasets using auspice.
Charon requests are answered from the local dataset and narrative directories, unless
--gh-pages or --proxy is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runView()
		},
	}

	defaultConf := charon.StaticConfig{
		TileCacheDir: constants.DefaultTileCacheDir,
		TileUpstream: constants.DefaultTileUpstream,
		TileRate:     20,
		TileBurst:    40,
		// One request per second is the usage policy of the public OpenStreetMap tile servers.
		TileFetchRate: 1,

		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 20 * time.Second,
		MaxHeaderBytes: 1 << 13, // 8 KB
		MaxBodyBytes:   1 << 20, // 1 MB

		ListenHost: "localhost",
		ListenPort: defaultListenPort(),
	}

	conf := &a.config.View
	cmd.Flags().StringVar(&conf.Server.DatasetsDir, "datasetDir", "", "directory where datasets are sourced (default ./"+constants.DatasetsFolder+" or the current directory)")
	cmd.Flags().StringVar(&conf.Server.NarrativesDir, "narrativeDir", "", "directory where narratives are sourced (default ./"+constants.NarrativesFolder+" or the current directory)")
	cmd.Flags().BoolVar(&conf.CustomBuild, "customBuild", false, "serve index.html and the dist bundle from the current directory")
	cmd.Flags().StringVar(&conf.Server.ClientDir, "client-dir", "", "directory holding index.html and the dist bundle (default the client directory next to the executable)")
	cmd.Flags().StringVar(&conf.Server.GHPagesDir, "gh-pages", "", "serve JSON requests relative to this directory instead of the charon API")
	cmd.Flags().StringVar(&conf.Server.ProxyURL, "proxy", "", "forward charon requests to this server")
	cmd.Flags().BoolVar(&conf.GenomeDB, "genome-db", false, "build the genome databases of the dataset directory before serving")

	cmd.Flags().StringVar(&conf.Server.TileCacheDir, "tile-cache-dir", defaultConf.TileCacheDir, "directory to cache map tiles in")
	cmd.Flags().StringVar(&conf.Server.TileUpstream, "tile-upstream", defaultConf.TileUpstream, "URL template of the map tile server")
	cmd.Flags().Float64Var(&conf.Server.TileRate, "tile-rate", defaultConf.TileRate, "tile requests per second allowed for each client")
	cmd.Flags().IntVar(&conf.Server.TileBurst, "tile-burst", defaultConf.TileBurst, "tile requests burst allowed for each client")
	cmd.Flags().Float64Var(&conf.Server.TileFetchRate, "tile-fetch-rate", defaultConf.TileFetchRate, "requests per second to the map tile server")

	cmd.Flags().DurationVar(&conf.Server.ReadTimeout, "read-timeout", defaultConf.ReadTimeout, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&conf.Server.WriteTimeout, "write-timeout", defaultConf.WriteTimeout, "write timeout for HTTP server")
	cmd.Flags().DurationVar(&conf.Server.RequestTimeout, "request-timeout", defaultConf.RequestTimeout, "request timeout for HTTP server")
	cmd.Flags().IntVar(&conf.Server.MaxHeaderBytes, "max-header-bytes", defaultConf.MaxHeaderBytes, "maximum header bytes for HTTP server")
	cmd.Flags().IntVar(&conf.Server.MaxBodyBytes, "max-body-bytes", defaultConf.MaxBodyBytes, "maximum genome data request body bytes")

	cmd.Flags().StringVar(&conf.Server.ListenHost, "listen-host", defaultConf.ListenHost, "host to listen on")
	cmd.Flags().IntVar(&conf.Server.ListenPort, "listen-port", defaultConf.ListenPort, "port to listen on (default $"+constants.PortEnv+" or "+strconv.Itoa(constants.DefaultListenPort)+")")

	cmd.Flags().StringVar(&conf.Server.MetricsHost, "metrics-host", defaultConf.MetricsHost, "host for the metrics endpoint")
	cmd.Flags().IntVar(&conf.Server.MetricsPort, "metrics-port", defaultConf.MetricsPort, "port for the metrics endpoint, disabled when 0")

	for _, f := range []string{"datasetDir", "narrativeDir", "client-dir", "gh-pages", "tile-cache-dir"} {
		if err := cmd.MarkFlagDirname(f); err != nil {
			// This should never happen.
			panic(fmt.Sprintf("failed to mark %s flag as directory: %v", f, err))
		}
	}
	cmd.MarkFlagsMutuallyExclusive("gh-pages", "proxy")

	a.cmd.AddCommand(cmd)
}

// defaultListenPort returns the port set in the environment, or the default one.
func defaultListenPort() int {
	v := os.Getenv(constants.PortEnv)
	if v == "" {
		return constants.DefaultListenPort
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid port from the environment", "env", constants.PortEnv, "value", v)
		return constants.DefaultListenPort
	}
	return port
}

func (a *App) runView() (err error) {
	a.serving.Store(true)
	defer func() {
		// Quit waits on ready even when the server could not be created.
		select {
		case <-a.ready:
		default:
			close(a.ready)
		}
	}()

	sc, err := a.resolveView()
	if err != nil {
		return err
	}

	if a.config.View.GenomeDB && sc.GHPagesDir == "" && sc.ProxyURL == "" {
		built, err := genomedb.Prepare(a.ctx, sc.DatasetsDir)
		if err != nil {
			return fmt.Errorf("failed to build genome databases: %v", err)
		}
		slog.Info("Genome databases ready", "count", len(built))
	}

	lister := catalog.New(catalog.Sources(sc.DatasetsDir, sc.NarrativesDir))
	a.catalog.Store(lister)
	a.daemon, err = charon.New(a.ctx, lister, sc)
	close(a.ready)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	return a.daemon.Run()
}

// resolveView returns the server configuration with its directories resolved.
func (a *App) resolveView() (sc charon.StaticConfig, err error) {
	vc := a.config.View
	sc = vc.Server

	switch {
	case vc.CustomBuild:
		if sc.ClientDir, err = os.Getwd(); err != nil {
			return sc, fmt.Errorf("could not get current directory: %v", err)
		}
	case sc.ClientDir == "":
		sc.ClientDir = defaultClientDir()
	default:
		if sc.ClientDir, err = fileutils.ExpandHome(sc.ClientDir); err != nil {
			return sc, err
		}
	}
	slog.Info("Serving index and favicon", "dir", sc.ClientDir)
	slog.Info("Serving built javascript", "dir", filepath.Join(sc.ClientDir, "dist"))

	if sc.GHPagesDir != "" {
		if sc.GHPagesDir, err = fileutils.ResolveDir(sc.GHPagesDir, ""); err != nil {
			return sc, err
		}
		return sc, nil
	}
	if sc.ProxyURL != "" {
		return sc, nil
	}

	if sc.DatasetsDir, err = fileutils.ResolveDir(sc.DatasetsDir, constants.DatasetsFolder); err != nil {
		return sc, fmt.Errorf("invalid dataset directory: %v", err)
	}
	if sc.NarrativesDir, err = fileutils.ResolveDir(sc.NarrativesDir, constants.NarrativesFolder); err != nil {
		return sc, fmt.Errorf("invalid narrative directory: %v", err)
	}
	return sc, nil
}

// defaultClientDir returns the client directory installed next to the executable.
func defaultClientDir() string {
	bin, err := os.Executable()
	if err != nil {
		slog.Warn("Failed to get current executable path, serving the placeholder page", "error", err)
		return ""
	}
	return filepath.Join(filepath.Dir(bin), "client")
}
