package dircache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
	"github.com/drivedav/drivedav/internal/tree"
)

// DefaultPageSize is the number of children requested per listing call.
const DefaultPageSize = 50

// Lister fetches one page of a directory's children.
type Lister interface {
	ListChildren(ctx context.Context, parentID string, page, pageSize int) (drive.Page, error)
}

// Populator fills a PathCache on demand. It lists only the directories on
// the way from the nearest cached ancestor down to the requested path.
type Populator struct {
	cache    *PathCache
	lister   Lister
	pageSize int
}

// NewPopulator creates a populator. A non-positive pageSize selects
// DefaultPageSize.
func NewPopulator(cache *PathCache, lister Lister, pageSize int) *Populator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Populator{cache: cache, lister: lister, pageSize: pageSize}
}

// Cache returns the cache the populator fills.
func (p *Populator) Cache() *PathCache {
	return p.cache
}

// ResolveOrPopulate returns the listing of dir, populating the cache as
// needed. It reports false with a nil error when dir does not exist.
func (p *Populator) ResolveOrPopulate(ctx context.Context, dir string) ([]drive.Entry, bool, error) {
	entries, err := p.Resolve(ctx, dir)
	if errors.Is(err, drive.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Lookup returns the entry at path. The root is synthetic and never
// fetched; any other path is found in its parent's listing.
func (p *Populator) Lookup(ctx context.Context, path string) (drive.Entry, bool, error) {
	path = tree.Canonical(path)
	parent, ok := tree.Parent(path)
	if !ok {
		return drive.Root(), true, nil
	}
	siblings, found, err := p.ResolveOrPopulate(ctx, parent)
	if err != nil || !found {
		return drive.Entry{}, false, err
	}
	e, ok := drive.Find(siblings, tree.Base(path))
	return e, ok, nil
}

// Resolve returns the listing of target. On a miss it starts from the
// nearest cached ancestor, or the root when none is cached, and descends
// one level at a time, caching every directory it lists. Only the child
// on the way to target is followed at each level.
//
// A missing segment yields drive.ErrNotFound, a segment that is a file
// yields an error matching both drive.ErrNotFound and drive.ErrNotDir.
// Any other failure aborts the descent; levels already cached stay cached.
func (p *Populator) Resolve(ctx context.Context, target string) ([]drive.Entry, error) {
	target = tree.Canonical(target)
	if entries, ok := p.cache.Get(target); ok {
		return entries, nil
	}

	start := time.Now()
	defer func() { metrics.RecordResolve(time.Since(start)) }()

	node, nodePath, err := p.startingPoint(target)
	if err != nil {
		return nil, err
	}

	for {
		entries, err := p.listAll(ctx, node)
		if err != nil {
			metrics.RecordPopulation(false)
			logging.Warn("dircache: population failed",
				zap.String("path", nodePath),
				zap.String("target", target),
				zap.Error(err))
			return nil, err
		}
		p.cache.Put(nodePath, entries)
		metrics.RecordPopulation(true)

		if nodePath == target {
			return entries, nil
		}

		name, _ := tree.NextSegment(target, nodePath)
		child, err := descend(entries, nodePath, name)
		if err != nil {
			return nil, err
		}
		node, nodePath = child, tree.BuildChildPath(nodePath, name)
	}
}

// startingPoint finds the directory entry to start listing from: the
// child of the nearest cached ancestor on the way to target, or the root.
func (p *Populator) startingPoint(target string) (drive.Entry, string, error) {
	if tree.IsRoot(target) {
		return drive.Root(), tree.Root, nil
	}
	for _, ancestor := range tree.Ancestors(target) {
		entries, ok := p.cache.Get(ancestor)
		if !ok {
			continue
		}
		name, _ := tree.NextSegment(target, ancestor)
		child, err := descend(entries, ancestor, name)
		if err != nil {
			return drive.Entry{}, "", err
		}
		return child, tree.BuildChildPath(ancestor, name), nil
	}

	logging.Debug("dircache: no cached ancestor, starting at root", zap.String("target", target))
	return drive.Root(), tree.Root, nil
}

func descend(entries []drive.Entry, dir, name string) (drive.Entry, error) {
	child, ok := drive.Find(entries, name)
	if !ok {
		return drive.Entry{}, fmt.Errorf("%s: %w", tree.BuildChildPath(dir, name), drive.ErrNotFound)
	}
	if !child.IsDir() {
		return drive.Entry{}, fmt.Errorf("%s: %w", tree.BuildChildPath(dir, name),
			errors.Join(drive.ErrNotFound, drive.ErrNotDir))
	}
	return child, nil
}

// listAll fetches every page of dir's children in arrival order.
func (p *Populator) listAll(ctx context.Context, dir drive.Entry) ([]drive.Entry, error) {
	var all []drive.Entry
	lastPage := 0
	for page := 1; ; page++ {
		if lastPage > 0 && page > lastPage {
			break
		}
		res, err := p.lister.ListChildren(ctx, dir.ID, page, p.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Entries...)

		if page == 1 {
			lastPage = (res.Total + p.pageSize - 1) / p.pageSize
		}
		if len(res.Entries) < p.pageSize {
			break
		}
	}
	if all == nil {
		all = []drive.Entry{}
	}
	return all, nil
}
