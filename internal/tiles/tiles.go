// Package tiles caches map tiles on disk, fetching the missing ones from an upstream tile server.
package tiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nextstrain/auspice/internal/fileutils"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when a tile is neither cached nor available upstream.
	ErrNotFound = errors.New("tile not found")

	// ErrBadTile is returned for invalid tile coordinates.
	ErrBadTile = errors.New("bad tile")
)

const (
	// maxTileBytes bounds the size of a tile read from upstream.
	maxTileBytes = 4 << 20

	// defaultFetchTimeout bounds a shared upstream fetch when no FetchTimeout is set.
	defaultFetchTimeout = 30 * time.Second
)

var subdomain = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Tile identifies a map tile by its server subdomain and coordinates.
type Tile struct {
	S       string
	Z, X, Y int
}

// Parse validates tile path parameters: s must be alphanumeric and z, x and y integers.
func Parse(s, z, x, y string) (Tile, error) {
	if !subdomain.MatchString(s) {
		return Tile{}, fmt.Errorf("%w: s expected to be a non-empty alphanumeric string, got %q", ErrBadTile, s)
	}
	var coords [3]int
	for i, c := range []string{z, x, y} {
		n, err := strconv.Atoi(c)
		if err != nil {
			return Tile{}, fmt.Errorf("%w: {z, x, y} expected to be integral coordinates, got {%q, %q, %q}", ErrBadTile, z, x, y)
		}
		coords[i] = n
	}
	return Tile{S: s, Z: coords[0], X: coords[1], Y: coords[2]}, nil
}

func (t Tile) fileName() string {
	return fmt.Sprintf("%s-%d-%d-%d.png", t.S, t.Z, t.X, t.Y)
}

func (t Tile) url(template string) string {
	return strings.NewReplacer(
		"{s}", t.S,
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	).Replace(template)
}

// Config holds the configuration of the tile cache.
type Config struct {
	Dir      string
	Upstream string

	// FetchRate and FetchBurst throttle requests to the upstream server.
	FetchRate  float64
	FetchBurst int

	FetchTimeout time.Duration
}

// Cache serves map tiles from disk, fetching and storing the missing ones.
type Cache struct {
	dir      string
	upstream string

	client       *http.Client
	fetchTimeout time.Duration
	limiter      *rate.Limiter
	group        singleflight.Group

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
	Client *http.Client
}

// Options represents an optional function to override Cache default values.
type Options func(*options)

// New creates a tile cache.
func New(cfg Config, args ...Options) (*Cache, error) {
	opts := options{
		Logger: slog.Default(),
		Client: &http.Client{Timeout: cfg.FetchTimeout},
	}

	for _, opt := range args {
		opt(&opts)
	}

	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(cfg.Upstream, p) {
			return nil, fmt.Errorf("tile upstream %q is missing the %s placeholder", cfg.Upstream, p)
		}
	}
	if cfg.Dir == "" {
		return nil, errors.New("tile cache directory is not set")
	}

	limit := rate.Limit(cfg.FetchRate)
	if cfg.FetchRate <= 0 {
		limit = rate.Inf
	}
	burst := cfg.FetchBurst
	if burst < 1 {
		burst = 1
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	return &Cache{
		dir:          cfg.Dir,
		upstream:     cfg.Upstream,
		client:       opts.Client,
		fetchTimeout: fetchTimeout,
		limiter:      rate.NewLimiter(limit, burst),
		log:          opts.Logger,
	}, nil
}

// Get returns the PNG image of t, from the disk cache if present and from upstream otherwise.
// userAgent is passed to the upstream server.
func (c *Cache) Get(ctx context.Context, t Tile, userAgent string) ([]byte, error) {
	localPath := filepath.Join(c.dir, t.fileName())
	if fileutils.FileExists(localPath) {
		img, err := os.ReadFile(localPath)
		if err == nil {
			c.log.Debug("Returning cached tile", "tile", localPath)
			return img, nil
		}
		c.log.Warn("Could not read cached tile", "tile", localPath, "err", err)
	}

	// The fetch is shared with other callers, so it must outlive the cancellation of this one.
	ch := c.group.DoChan(t.fileName(), func() (any, error) {
		// A fetch for this tile may have completed since the check above.
		if img, err := os.ReadFile(localPath); err == nil {
			return img, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, t, userAgent, localPath)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.Debug("Shared tile fetch", "tile", localPath)
		}
		return res.Val.([]byte), nil
	}
}

func (c *Cache) fetch(ctx context.Context, t Tile, userAgent, localPath string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	remote := t.url(c.upstream)
	c.log.Debug("Fetching tile", "url", remote)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create tile request: %v", err)
	}
	req.Header.Set("Accept", "image/png")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Info("Could not fetch tile", "url", remote, "err", err)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, remote)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Info("Upstream tile server did not return the tile", "url", remote, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, remote)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("could not read tile %s: %v", remote, err)
	}

	if err := os.MkdirAll(c.dir, 0750); err != nil {
		c.log.Warn("Could not create tile cache directory", "dir", c.dir, "err", err)
		return img, nil
	}
	if err := fileutils.AtomicWrite(localPath, img); err != nil {
		c.log.Warn("Could not cache tile", "tile", localPath, "err", err)
		return img, nil
	}
	c.log.Debug("Cached tile", "url", remote, "tile", localPath)
	return img, nil
}
