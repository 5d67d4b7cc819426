// Package charon provides the auspice HTTP server: the charon data API, map tiles, genome sequences
// and the client bundle.
package charon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/nextstrain/auspice/internal/catalog"
	"github.com/nextstrain/auspice/internal/charon/handlers"
	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/charon/middleware"
	commonMetrics "github.com/nextstrain/auspice/internal/metrics"
	"github.com/nextstrain/auspice/internal/tiles"
	"golang.org/x/time/rate"
)

// Server serves the auspice client and its data.
type Server struct {
	httpServer    *http.Server
	metricsServer *commonMetrics.Server
	lister        dLister
	local         bool

	mu   sync.RWMutex
	addr net.Addr

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context is cancelled to initiate a graceful shutdown.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the configuration of the server.
type StaticConfig struct {
	DatasetsDir   string
	NarrativesDir string
	ClientDir     string

	// GHPagesDir serves *.json requests from a directory instead of the charon API.
	GHPagesDir string
	// ProxyURL forwards charon requests to another server instead of serving local files.
	ProxyURL string

	TileCacheDir string
	TileUpstream string
	// TileRate and TileBurst limit the tile requests of each client, TileFetchRate the requests to the upstream.
	// Non positive rates are unlimited.
	TileRate      float64
	TileBurst     int
	TileFetchRate float64

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int

	ListenHost string
	ListenPort int

	// MetricsPort enables the metrics server when positive.
	MetricsHost string
	MetricsPort int
}

type dLister interface {
	handlers.Lister
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
}

// New creates a Server from sc. The lister provides the datasets and narratives, and is watched while the server runs.
func New(ctx context.Context, lister dLister, sc StaticConfig) (*Server, error) {
	var proxyURL *url.URL
	if sc.ProxyURL != "" {
		u, err := url.Parse(sc.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q", sc.ProxyURL)
		}
		proxyURL = u
	}

	tileCache, err := tiles.New(tiles.Config{
		Dir:          sc.TileCacheDir,
		Upstream:     sc.TileUpstream,
		FetchRate:    sc.TileFetchRate,
		FetchBurst:   sc.TileBurst,
		FetchTimeout: sc.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		lister: lister,
		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel,
	}

	reg := commonMetrics.NewRegistry()
	em := metrics.NewEndpointMiddleware(reg)
	client := handlers.NewClient(sc.ClientDir)

	// bounded answers 503 to requests not served within RequestTimeout. TimeoutHandler buffers the whole
	// response, so the routes streaming files are left to the server WriteTimeout instead.
	bounded := func(h http.Handler) http.Handler {
		if sc.RequestTimeout <= 0 {
			return h
		}
		return http.TimeoutHandler(h, sc.RequestTimeout, "")
	}

	mux := http.NewServeMux()
	mux.Handle("GET /version", bounded(em.Wrap("version", http.HandlerFunc(handlers.VersionHandler))))
	mux.Handle("GET /favicon.png", bounded(em.Wrap("favicon", http.HandlerFunc(client.Favicon))))
	mux.Handle("GET /dist/", em.Wrap("dist", client.Dist()))

	var index http.Handler = http.HandlerFunc(client.Index)
	switch {
	case sc.GHPagesDir != "":
		slog.Info("JSON requests will be served relative to the gh-pages directory", "dir", sc.GHPagesDir)
		index = handlers.GHPages(sc.GHPagesDir, index)
	case proxyURL != nil:
		slog.Info("Charon requests will be proxied", "upstream", proxyURL.String())
		mux.Handle("/charon/", em.Wrap("proxy", handlers.NewProxy(proxyURL)))
	default:
		slog.Info("Serving local files", "datasets", sc.DatasetsDir, "narratives", sc.NarrativesDir)
		s.local = true
		mux.Handle("GET /charon/getAvailable", bounded(em.Wrap("getAvailable", handlers.NewAvailable(lister))))
		mux.Handle("GET /charon/getDataset", em.Wrap("getDataset", handlers.NewDataset(lister, sc.DatasetsDir)))
		mux.Handle("GET /charon/getNarrative", bounded(em.Wrap("getNarrative", handlers.NewNarrative(sc.NarrativesDir))))
		mux.Handle("POST /charon/getGenomeData", bounded(em.Wrap("getGenomeData", handlers.NewGenomeData(sc.DatasetsDir, int64(sc.MaxBodyBytes)))))
		mux.Handle("GET /charon/", bounded(em.Wrap("unhandled", http.HandlerFunc(handlers.UnhandledHandler))))
	}

	tileLimit := rate.Limit(sc.TileRate)
	if sc.TileRate <= 0 {
		tileLimit = rate.Inf
	}
	limiter := middleware.New(tileLimit, max(sc.TileBurst, 1))
	mux.Handle("GET /tiles/{s}/{z}/{x}/{y}", bounded(em.Wrap("tiles", limiter.RateLimitMiddleware(handlers.NewTiles(tileCache)))))
	// No method here, so that the method-less proxy pattern stays more specific.
	mux.Handle("/", em.Wrap("index", index))

	handler := metrics.NewMuxMiddleware(reg).Wrap("charon", gzhttp.GzipHandler(mux))

	s.httpServer = &http.Server{
		Addr:           net.JoinHostPort(sc.ListenHost, strconv.Itoa(sc.ListenPort)),
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		Handler:        handler,
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}

	if sc.MetricsPort > 0 {
		s.metricsServer = commonMetrics.New(commonMetrics.Config{
			Host:         sc.MetricsHost,
			Port:         sc.MetricsPort,
			ReadTimeout:  sc.ReadTimeout,
			WriteTimeout: sc.WriteTimeout,
		}, reg)
	}

	return &s, nil
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to listen on %s: %v", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	// Only the local charon handlers read the catalog.
	var watchErr <-chan error
	if s.local {
		if _, watchErr, err = s.lister.Watch(s.gracefulCtx); err != nil {
			listener.Close()
			s.cancel()
			return fmt.Errorf("failed to start watching data directories: %v", err)
		}
	}

	slog.Info("Auspice server now running", "url", "http://"+listener.Addr().String())

	serverErr := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("metrics server: %v", err)
			}
		}()
	}

	for {
		select {
		case <-s.gracefulCtx.Done():
			slog.Info("Graceful shutdown initiated")
			// use parent ctx so if you call s.cancel() elsewhere it unblocks Shutdown immediately
			err := s.shutdown()
			s.cancel()
			if err != nil {
				slog.Error("Graceful shutdown failed", "err", err)
				return err
			}
			slog.Info("Server shut down gracefully")
			return nil

		case err := <-serverErr:
			slog.Error("Server encountered error", "err", err)
			errC := s.close()
			s.cancel()
			return errors.Join(err, errC)

		case err, ok := <-watchErr:
			if !ok {
				// The watcher stops with gracefulCtx.
				watchErr = nil
				continue
			}
			slog.Error("Directory watcher encountered unrecoverable error", "err", err)
			errC := s.close()
			s.cancel()
			return errors.Join(err, errC)
		}
	}
}

func (s *Server) shutdown() error {
	err := s.httpServer.Shutdown(s.ctx)
	if s.metricsServer != nil {
		err = errors.Join(err, s.metricsServer.Shutdown(s.ctx))
	}
	return err
}

func (s *Server) close() error {
	err := s.httpServer.Close()
	if s.metricsServer != nil {
		err = errors.Join(err, s.metricsServer.Close())
	}
	return err
}

// Quit shuts down the server, gracefully unless force is set.
func (s *Server) Quit(force bool) {
	defer s.cancel()

	if force {
		if err := s.close(); err != nil {
			slog.Warn("Could not close server", "err", err)
		}
	} else {
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}

// Addr returns the address the server listens on, or an empty string before Run.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// MetricsAddr returns the address of the metrics server, or an empty string when it is not running.
func (s *Server) MetricsAddr() string {
	if s.metricsServer == nil {
		return ""
	}
	return s.metricsServer.Addr()
}

var _ dLister = (*catalog.Catalog)(nil)
