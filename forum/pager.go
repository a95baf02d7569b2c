// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package forum

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agora-forum/agora/lib/clock"
)

// FetchFunc loads one page of a list endpoint.
type FetchFunc[T any] func(ctx context.Context, page, size int) (*Page[T], error)

// FeedOptions tunes a Feed.
type FeedOptions struct {
	// Cooldown is the minimum spacing between scroll-triggered fetches
	// after the first page. Zero disables throttling.
	Cooldown time.Duration
	// Clock drives the cooldown. Defaults to clock.Real().
	Clock clock.Clock
}

// Feed is a forward, append-only view over a paginated list: the
// infinite-scroll pattern of the post feeds and search results. Safe
// for concurrent use.
type Feed[T any] struct {
	fetch   FetchFunc[T]
	size    int
	limiter *rate.Limiter
	clock   clock.Clock

	mutex      sync.Mutex
	items      []T
	total      int
	nextPage   int
	loaded     bool
	fetching   bool
	generation uint64
}

// NewFeed creates a feed fetching size items per page.
func NewFeed[T any](fetch FetchFunc[T], size int, options FeedOptions) *Feed[T] {
	feedClock := options.Clock
	if feedClock == nil {
		feedClock = clock.Real()
	}
	feed := &Feed[T]{fetch: fetch, size: size, clock: feedClock, nextPage: 1}
	if options.Cooldown > 0 {
		feed.limiter = rate.NewLimiter(rate.Every(options.Cooldown), 1)
	}
	return feed
}

// Next fetches the next page and appends it. It does nothing, and
// returns 0, when a fetch is already in flight, when every item has
// been loaded, or when the cooldown has not elapsed. Results of a
// fetch that started before Reset are discarded.
func (f *Feed[T]) Next(ctx context.Context) (int, error) {
	f.mutex.Lock()
	if f.fetching || (f.loaded && len(f.items) >= f.total) {
		f.mutex.Unlock()
		return 0, nil
	}
	if f.loaded && f.limiter != nil && !f.limiter.AllowN(f.clock.Now(), 1) {
		f.mutex.Unlock()
		return 0, nil
	}
	f.fetching = true
	generation := f.generation
	page := f.nextPage
	f.mutex.Unlock()

	result, err := f.fetch(ctx, page, f.size)

	f.mutex.Lock()
	defer f.mutex.Unlock()
	if generation != f.generation {
		return 0, nil
	}
	f.fetching = false
	if err != nil {
		return 0, err
	}

	f.loaded = true
	f.items = append(f.items, result.Items...)
	f.total = result.Total
	f.nextPage = page + 1
	if len(result.Items) == 0 {
		// The server ran out early; stop asking.
		f.total = len(f.items)
	}
	return len(result.Items), nil
}

// HasMore reports whether Next could load more items.
func (f *Feed[T]) HasMore() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return !f.loaded || len(f.items) < f.total
}

// Fetching reports whether a fetch is in flight.
func (f *Feed[T]) Fetching() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.fetching
}

// Loaded reports whether the first page has arrived.
func (f *Feed[T]) Loaded() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.loaded
}

// Total returns the server-reported item count.
func (f *Feed[T]) Total() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.total
}

// Items returns a copy of the loaded items.
func (f *Feed[T]) Items() []T {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return slices.Clone(f.items)
}

// Update applies change to every loaded item matching match and
// returns how many were changed.
func (f *Feed[T]) Update(match func(T) bool, change func(*T)) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	changed := 0
	for index := range f.items {
		if match(f.items[index]) {
			change(&f.items[index])
			changed++
		}
	}
	return changed
}

// Remove drops matching items and lowers the total accordingly.
func (f *Feed[T]) Remove(match func(T) bool) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	before := len(f.items)
	f.items = slices.DeleteFunc(f.items, match)
	removed := before - len(f.items)
	f.total = max(f.total-removed, 0)
	return removed
}

// Reset forgets every loaded item so the feed starts again at page 1.
func (f *Feed[T]) Reset() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.generation++
	f.items = nil
	f.total = 0
	f.nextPage = 1
	f.loaded = false
	f.fetching = false
}

// History is a backward view over a paginated list whose last page
// holds the newest items: chat messages and comments. It loads the
// newest page first, prepends older pages on demand, and appends
// items that arrive live. Items are deduplicated by key. Safe for
// concurrent use.
type History[T any] struct {
	fetch FetchFunc[T]
	size  int
	key   func(T) int

	mutex      sync.Mutex
	items      []T
	seen       map[int]struct{}
	oldestPage int
	loaded     bool
	fetching   bool

	// live holds items appended while Load is fetching, so they
	// survive the reload.
	loading bool
	live    []T
}

// NewHistory creates a history fetching size items per page. key
// identifies an item for deduplication.
func NewHistory[T any](fetch FetchFunc[T], size int, key func(T) int) *History[T] {
	return &History[T]{fetch: fetch, size: size, key: key, seen: make(map[int]struct{})}
}

// Load fetches the newest page, replacing any loaded items. Items
// appended while the fetch is in flight are kept after the page. Page
// 1 is requested first to learn the page count. When the newest page is short and an older page exists,
// the older page is loaded too so the view starts full.
func (h *History[T]) Load(ctx context.Context) error {
	h.mutex.Lock()
	if h.fetching {
		h.mutex.Unlock()
		return nil
	}
	h.fetching = true
	h.loading = true
	h.live = nil
	h.mutex.Unlock()

	defer func() {
		h.mutex.Lock()
		h.fetching = false
		h.loading = false
		h.live = nil
		h.mutex.Unlock()
	}()

	first, err := h.fetch(ctx, 1, h.size)
	if err != nil {
		return err
	}
	newest := first
	if first.Pages > 1 {
		newest, err = h.fetch(ctx, first.Pages, h.size)
		if err != nil {
			return err
		}
	}

	h.mutex.Lock()
	h.items = nil
	h.seen = make(map[int]struct{})
	h.prependLocked(newest.Items)
	for _, item := range h.live {
		h.appendLocked(item)
	}
	h.loading = false
	h.live = nil
	h.oldestPage = max(first.Pages, 1)
	h.loaded = true
	short := len(newest.Items) < h.size
	h.mutex.Unlock()

	for short {
		added, page, err := h.loadOlder(ctx)
		if err != nil {
			return err
		}
		if page == 0 {
			break
		}
		short = added < h.size
	}
	return nil
}

// LoadOlder prepends the page before the oldest loaded one and returns
// how many items were added. It does nothing while a fetch is in
// flight or when the oldest page is loaded.
func (h *History[T]) LoadOlder(ctx context.Context) (int, error) {
	h.mutex.Lock()
	if h.fetching {
		h.mutex.Unlock()
		return 0, nil
	}
	h.fetching = true
	h.mutex.Unlock()

	defer func() {
		h.mutex.Lock()
		h.fetching = false
		h.mutex.Unlock()
	}()

	added, _, err := h.loadOlder(ctx)
	return added, err
}

// loadOlder fetches oldestPage-1. It returns the page fetched, or 0
// when there was nothing older.
func (h *History[T]) loadOlder(ctx context.Context) (int, int, error) {
	h.mutex.Lock()
	page := h.oldestPage - 1
	h.mutex.Unlock()
	if page < 1 {
		return 0, 0, nil
	}

	result, err := h.fetch(ctx, page, h.size)
	if err != nil {
		return 0, 0, err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	added := h.prependLocked(result.Items)
	h.oldestPage = page
	return added, page, nil
}

func (h *History[T]) prependLocked(page []T) int {
	fresh := make([]T, 0, len(page))
	for _, item := range page {
		key := h.key(item)
		if _, duplicate := h.seen[key]; duplicate {
			continue
		}
		h.seen[key] = struct{}{}
		fresh = append(fresh, item)
	}
	h.items = append(fresh, h.items...)
	return len(fresh)
}

// Append adds a live item at the newest end. It reports false when
// the item was already present.
func (h *History[T]) Append(item T) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.appendLocked(item) {
		return false
	}
	if h.loading {
		h.live = append(h.live, item)
	}
	return true
}

func (h *History[T]) appendLocked(item T) bool {
	key := h.key(item)
	if _, duplicate := h.seen[key]; duplicate {
		return false
	}
	h.seen[key] = struct{}{}
	h.items = append(h.items, item)
	return true
}

// Remove drops the item with the given key.
func (h *History[T]) Remove(key int) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.seen[key]; !ok {
		return false
	}
	delete(h.seen, key)
	h.items = slices.DeleteFunc(h.items, func(item T) bool { return h.key(item) == key })
	return true
}

// HasOlder reports whether an older page remains to be loaded.
func (h *History[T]) HasOlder() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.oldestPage > 1
}

// Loaded reports whether Load has completed.
func (h *History[T]) Loaded() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.loaded
}

// Items returns a copy of the loaded items, oldest first.
func (h *History[T]) Items() []T {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return slices.Clone(h.items)
}
