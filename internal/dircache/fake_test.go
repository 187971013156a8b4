package dircache

import (
	"context"
	"sync"
	"time"

	"github.com/drivedav/drivedav/internal/drive"
)

type listCall struct {
	parentID string
	page     int
}

// fakeDrive serves listings from an in-memory tree keyed by parent id.
type fakeDrive struct {
	mu       sync.Mutex
	children map[string][]drive.Entry
	fail     map[string]error
	calls    []listCall
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		children: make(map[string][]drive.Entry),
		fail:     make(map[string]error),
	}
}

func (f *fakeDrive) add(parentID string, entries ...drive.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range entries {
		entries[i].ParentID = parentID
	}
	f.children[parentID] = append(f.children[parentID], entries...)
}

func (f *fakeDrive) ListChildren(_ context.Context, parentID string, page, pageSize int) (drive.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, listCall{parentID: parentID, page: page})

	if err := f.fail[parentID]; err != nil {
		return drive.Page{}, err
	}
	all := f.children[parentID]
	lo := (page - 1) * pageSize
	if lo > len(all) {
		lo = len(all)
	}
	hi := lo + pageSize
	if hi > len(all) {
		hi = len(all)
	}
	out := make([]drive.Entry, hi-lo)
	copy(out, all[lo:hi])
	return drive.Page{Entries: out, Total: len(all)}, nil
}

func (f *fakeDrive) callLog() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.calls...)
}

// listed counts list calls per parent id.
func (f *fakeDrive) listed() map[string]int {
	out := make(map[string]int)
	for _, c := range f.callLog() {
		out[c.parentID]++
	}
	return out
}

func dir(id, name string) drive.Entry {
	return drive.Entry{ID: id, FileName: name, Directory: true}
}

func file(id, name string, size uint64) drive.Entry {
	return drive.Entry{ID: id, FileName: name, Bytes: size}
}

// sampleTree is / -> {docs/, photos/, readme.txt}, /docs -> {reports/},
// /docs/reports -> {q1.csv, q2.csv}.
func sampleTree() *fakeDrive {
	f := newFakeDrive()
	f.add(drive.RootID, dir("docs", "docs"), dir("photos", "photos"), file("readme", "readme.txt", 10))
	f.add("docs", dir("reports", "reports"))
	f.add("reports", file("q1", "q1.csv", 100), file("q2", "q2.csv", 200))
	f.add("photos", file("p1", "cat.jpg", 1000))
	return f
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
