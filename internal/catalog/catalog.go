// Package catalog lists the datasets and narratives available in a set of local directories.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/nextstrain/auspice/internal/dataset"
	"golang.org/x/sync/errgroup"
)

// Source is a directory to list resources from.
type Source struct {
	Dir        string
	Datasets   bool
	Narratives bool
}

// Sources returns the sources for a datasets and a narratives directory.
// The same directory given for both is a single source. Empty directories are ignored.
func Sources(datasetsDir, narrativesDir string) []Source {
	var sources []Source
	if datasetsDir != "" {
		sources = append(sources, Source{Dir: datasetsDir, Datasets: true})
	}
	if narrativesDir == "" {
		return sources
	}
	if len(sources) > 0 && filepath.Clean(sources[0].Dir) == filepath.Clean(narrativesDir) {
		sources[0].Narratives = true
		return sources
	}
	return append(sources, Source{Dir: narrativesDir, Narratives: true})
}

// Listing is the set of resources available over all sources.
type Listing struct {
	Datasets   []dataset.Dataset
	Narratives []dataset.Narrative
}

// Catalog lists resources from its sources.
//
// Listings are cached only while Watch is running.
type Catalog struct {
	sources []Source

	mu       sync.RWMutex
	cached   *Listing
	gen      uint64
	watching bool

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Catalog default values.
type Options func(*options)

// New creates a catalog over sources. Earlier sources win when a request is found twice.
func New(sources []Source, args ...Options) *Catalog {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Catalog{
		sources: sources,
		log:     opts.Logger,
	}
}

// Scan lists the resources of every source. Unreadable sources are skipped with a warning.
func (c *Catalog) Scan(ctx context.Context) (Listing, error) {
	c.mu.RLock()
	if c.watching && c.cached != nil {
		l := *c.cached
		c.mu.RUnlock()
		return l, nil
	}
	gen := c.gen
	c.mu.RUnlock()

	found := make([]Listing, len(c.sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range c.sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := readDir(s.Dir)
			if err != nil {
				c.log.Warn("Could not list directory", "dir", s.Dir, "err", err)
				return nil
			}
			if s.Datasets {
				found[i].Datasets = dataset.AvailableDatasets(s.Dir, files)
			}
			if s.Narratives {
				found[i].Narratives = dataset.AvailableNarratives(s.Dir, files)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Listing{}, err
	}

	var l Listing
	for _, f := range found {
		l.Datasets = append(l.Datasets, f.Datasets...)
		l.Narratives = append(l.Narratives, f.Narratives...)
	}
	l.Datasets = dataset.UniqueDatasets(l.Datasets)
	l.Narratives = dataset.UniqueNarratives(l.Narratives)

	c.mu.Lock()
	if c.watching && c.gen == gen {
		c.cached = &l
	}
	c.mu.Unlock()

	c.log.Debug("Scanned sources", "datasets", len(l.Datasets), "narratives", len(l.Narratives))
	return l, nil
}

// Datasets returns the datasets found in dir.
func (c *Catalog) Datasets(ctx context.Context, dir string) ([]dataset.Dataset, error) {
	l, err := c.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var ds []dataset.Dataset
	for _, d := range l.Datasets {
		if d.Dir == dir {
			ds = append(ds, d)
		}
	}
	return ds, nil
}

// Invalidate drops the cached listing.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.gen++
	c.mu.Unlock()
}

// Watch starts watching the source directories for changes, invalidating the cached listing on each one.
//
// It returns two channels: one notified after each invalidation and another for unrecoverable watcher errors.
func (c *Catalog) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	for _, s := range c.sources {
		if err := watcher.Add(s.Dir); err != nil {
			watcher.Close()
			return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", s.Dir, err)
		}
		c.log.Info("Watching directory", "dir", s.Dir)
	}

	c.mu.Lock()
	c.watching = true
	c.cached = nil
	c.mu.Unlock()

	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()
		defer func() {
			c.mu.Lock()
			c.watching = false
			c.cached = nil
			c.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				c.log.Info("Directory watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				c.log.Debug("Directory changed", "file", event.Name, "op", event.Op)
				c.Invalidate()

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				c.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// readDir returns the names of the files in dir, skipping subdirectories.
func readDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}
