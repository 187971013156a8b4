package dircache

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
)

// Source produces invalidation events. Each event clears the whole cache.
type Source interface {
	Name() string
	Events(ctx context.Context) <-chan struct{}
}

// Controller clears PathCache entries on direct calls and on events from
// its sources. It never re-populates; the next lookup does that.
type Controller struct {
	cache   *PathCache
	sources []Source
}

// NewController creates a controller over cache listening to sources.
func NewController(cache *PathCache, sources ...Source) *Controller {
	return &Controller{cache: cache, sources: sources}
}

// Invalidate drops the listing of path.
func (c *Controller) Invalidate(path string) {
	c.invalidate("path", "direct", path)
}

// InvalidateParent drops the listing of the directory containing path.
func (c *Controller) InvalidateParent(path string) {
	c.invalidate("parent", "direct", path)
}

// InvalidateAll drops every listing.
func (c *Controller) InvalidateAll() {
	c.invalidate("all", "direct", "")
}

func (c *Controller) invalidate(scope, source, path string) {
	switch scope {
	case "path":
		c.cache.Invalidate(path)
	case "parent":
		c.cache.InvalidateParent(path)
	default:
		c.cache.InvalidateAll()
	}
	metrics.RecordInvalidation(scope, source)
	logging.Info("dircache: invalidated",
		zap.String("scope", scope),
		zap.String("source", source),
		zap.String("path", path))
}

// Run consumes events from every source until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, src := range c.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			events := src.Events(ctx)
			for {
				select {
				case _, ok := <-events:
					if !ok {
						return
					}
					c.invalidate("all", src.Name(), "")
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}
	wg.Wait()
}

type intervalSource struct {
	d time.Duration
}

// Interval fires every d. A non-positive d never fires.
func Interval(d time.Duration) Source {
	return intervalSource{d: d}
}

func (s intervalSource) Name() string { return "interval" }

func (s intervalSource) Events(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	if s.d <= 0 {
		return ch
	}
	go func() {
		ticker := time.NewTicker(s.d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type signalSource struct {
	ch chan os.Signal
}

// Signals fires whenever the process receives one of sigs. The signals
// are caught from this call on, so a signal arriving before Run starts is
// delivered on the first Events call instead of killing the process.
func Signals(sigs ...os.Signal) Source {
	s := signalSource{}
	if len(sigs) > 0 {
		s.ch = make(chan os.Signal, 1)
		signal.Notify(s.ch, sigs...)
	}
	return s
}

func (s signalSource) Name() string { return "signal" }

func (s signalSource) Events(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	if s.ch == nil {
		return ch
	}
	go func() {
		defer signal.Stop(s.ch)
		for {
			select {
			case sig := <-s.ch:
				logging.Info("dircache: received signal", zap.String("signal", sig.String()))
				select {
				case ch <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type funcSource struct {
	name string
	ch   <-chan struct{}
}

// Func adapts a plain channel into a named Source. Closing ch ends it.
func Func(name string, ch <-chan struct{}) Source {
	return funcSource{name: name, ch: ch}
}

func (s funcSource) Name() string                           { return s.name }
func (s funcSource) Events(context.Context) <-chan struct{} { return s.ch }
