// Package fscache is an optimistic, in-memory mirror of server-side folder
// listings. Each cached entry is the complete child list last confirmed by
// the server for one parent. Mutation helpers patch cached listings after a
// confirmed server mutation so the UI can re-render without a refetch.
//
// Every helper is an advisory optimization: when the targeted listing is not
// cached, the helper is a safe no-op and the next navigation fetches fresh.
// The cache therefore degrades to "nothing cached" instead of ever holding
// stale data with no path to refresh.
package fscache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bongocloud/bongo-go/internal/api"
)

// Key identifies one cached listing: a parent folder ID, or the root.
type Key struct {
	id string
}

// RootKey is the listing key for the top-level folder.
func RootKey() Key {
	return Key{}
}

// ItemKey is the listing key for the folder with the given ID.
func ItemKey(id string) Key {
	return Key{id: id}
}

// KeyOf maps an item's parent reference to a listing key.
func KeyOf(parentID *string) Key {
	if parentID == nil {
		return Key{}
	}

	return Key{id: *parentID}
}

// IsRoot reports whether the key addresses the root listing.
func (k Key) IsRoot() bool {
	return k.id == ""
}

// String renders the key for logging.
func (k Key) String() string {
	if k.id == "" {
		return "root"
	}

	return k.id
}

// entry is one cached listing plus its fetch time for TTL eviction.
type entry struct {
	listing api.Listing
	fetched time.Time
}

// Cache holds per-parent listings and the cached identity-check response.
// Safe for concurrent use. TTL staleness is checked lazily on read; a TTL of
// zero disables expiry.
type Cache struct {
	ttl    time.Duration
	logger *slog.Logger

	// now is the clock, injectable for staleness tests.
	now func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry
	user    *api.User
	subs    map[Key]map[int]func(Key)
	nextSub int
}

// New creates a Cache with the given staleness TTL (zero = never stale).
func New(ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[Key]*entry),
		subs:    make(map[Key]map[int]func(Key)),
	}
}

// PutListing stores a server-confirmed listing for key. The listing is
// copied on ingest so later in-place patches never alias the caller's slice.
func (c *Cache) PutListing(key Key, listing api.Listing) {
	stored := listing
	stored.Items = append([]api.Item(nil), listing.Items...)

	if listing.Current != nil {
		current := *listing.Current
		stored.Current = &current
	}

	c.mu.Lock()
	c.entries[key] = &entry{listing: stored, fetched: c.now()}
	notify := c.subscribersLocked(key)
	c.mu.Unlock()

	fire(notify, key)
}

// Listing returns the cached listing for key, or false when nothing fresh is
// cached. Stale entries are evicted on read.
func (c *Cache) Listing(key Key) (*api.Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(e.fetched) > c.ttl {
		delete(c.entries, key)
		c.logger.Debug("cache entry expired", slog.String("key", key.String()))

		return nil, false
	}

	// Copy so callers cannot mutate cached state in place.
	listing := e.listing
	listing.Items = append([]api.Item(nil), e.listing.Items...)

	if e.listing.Current != nil {
		current := *e.listing.Current
		listing.Current = &current
	}

	return &listing, true
}

// AddItem appends item to the cached listing of its parent. No-op when that
// listing is not cached — the listing will be fetched fresh on next visit.
func (c *Cache) AddItem(item api.Item) {
	key := KeyOf(item.Parent)

	c.mu.Lock()

	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}

	e.listing.Items = upsert(e.listing.Items, item)
	notify := c.subscribersLocked(key)
	c.mu.Unlock()

	fire(notify, key)
}

// UpdateItem patches cached listings after a confirmed rename or move.
// updated is the authoritative item returned by the server.
//
// For a move (updated.Parent differs from oldParentID) the item leaves the
// old parent's listing and, when the destination listing is cached, is
// appended there. When only the source listing is cached the item simply
// drops from view; the destination will be fetched fresh later. A cached
// by-id listing for the item itself (the view when the item is the current
// folder) gets its current record patched too.
//
// After this call no listing contains two entries with the same ID and the
// item appears in at most one parent's listing.
func (c *Cache) UpdateItem(itemID string, oldParentID *string, updated api.Item) {
	oldKey := KeyOf(oldParentID)
	newKey := KeyOf(updated.Parent)

	c.mu.Lock()

	var touched []Key

	if oldKey == newKey {
		if e, ok := c.entries[oldKey]; ok {
			e.listing.Items = replaceByID(e.listing.Items, itemID, updated)
			touched = append(touched, oldKey)
		}
	} else {
		if e, ok := c.entries[oldKey]; ok {
			e.listing.Items = removeByID(e.listing.Items, itemID)
			touched = append(touched, oldKey)
		}

		if e, ok := c.entries[newKey]; ok {
			e.listing.Items = upsert(e.listing.Items, updated)
			touched = append(touched, newKey)
		}
	}

	// By-id listing: the item viewed as the current folder.
	selfKey := ItemKey(itemID)
	if e, ok := c.entries[selfKey]; ok && e.listing.Current != nil {
		patched := updated
		e.listing.Current = &patched
		touched = append(touched, selfKey)
	}

	var notify []func(Key)

	pairs := make([]Key, 0, len(touched))

	for _, key := range touched {
		fns := c.subscribersLocked(key)
		for _, fn := range fns {
			notify = append(notify, fn)
			pairs = append(pairs, key)
		}
	}

	c.mu.Unlock()

	for i, fn := range notify {
		fn(pairs[i])
	}
}

// RemoveItem deletes item from its parent's cached listing and discards any
// cached by-id listing — a deleted item can no longer be navigated into.
func (c *Cache) RemoveItem(item api.Item) {
	key := KeyOf(item.Parent)

	c.mu.Lock()

	var notify []func(Key)

	if e, ok := c.entries[key]; ok {
		e.listing.Items = removeByID(e.listing.Items, item.ID)
		notify = c.subscribersLocked(key)
	}

	delete(c.entries, ItemKey(item.ID))

	c.mu.Unlock()

	fire(notify, key)
}

// SetAuthenticatedUser seeds the cached identity, used right after login or
// registration so the app does not immediately re-fetch "who am I".
func (c *Cache) SetAuthenticatedUser(user *api.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = user
}

// AuthenticatedUser returns the cached identity, or false when none is held.
func (c *Cache) AuthenticatedUser() (*api.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return nil, false
	}

	u := *c.user

	return &u, true
}

// Reset drops everything, used on logout.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
	c.user = nil
}

// Subscribe registers fn to run after any mutation of the listing at key.
// The returned cancel func unregisters it.
func (c *Cache) Subscribe(key Key, fn func(Key)) (cancel func()) {
	c.mu.Lock()

	id := c.nextSub
	c.nextSub++

	if c.subs[key] == nil {
		c.subs[key] = make(map[int]func(Key))
	}

	c.subs[key][id] = fn

	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		delete(c.subs[key], id)
	}
}

// subscribersLocked snapshots the subscriber funcs for key. Callers invoke
// them after releasing the mutex so a subscriber can re-enter the cache.
func (c *Cache) subscribersLocked(key Key) []func(Key) {
	fns := make([]func(Key), 0, len(c.subs[key]))
	for _, fn := range c.subs[key] {
		fns = append(fns, fn)
	}

	return fns
}

func fire(fns []func(Key), key Key) {
	for _, fn := range fns {
		fn(key)
	}
}

// upsert appends item, first removing any existing entry with the same ID so
// a listing never holds duplicates.
func upsert(items []api.Item, item api.Item) []api.Item {
	return append(removeByID(items, item.ID), item)
}

func removeByID(items []api.Item, id string) []api.Item {
	out := items[:0]

	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}

	return out
}

func replaceByID(items []api.Item, id string, updated api.Item) []api.Item {
	for i, it := range items {
		if it.ID == id {
			items[i] = updated
		}
	}

	return items
}
