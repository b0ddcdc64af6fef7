package fscache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bongocloud/bongo-go/internal/api"
)

func strptr(s string) *string {
	return &s
}

func item(id string, parent *string, name string) api.Item {
	return api.Item{ID: id, Parent: parent, Name: name, IsFile: true}
}

func folder(id string, parent *string, name string) api.Item {
	return api.Item{ID: id, Parent: parent, Name: name}
}

func TestAddItem_UncachedParentIsNoOp(t *testing.T) {
	c := New(0, nil)

	c.AddItem(item("i1", strptr("p1"), "notes.txt"))

	_, ok := c.Listing(ItemKey("p1"))
	assert.False(t, ok, "no entry may be created for an uncached parent")
}

func TestAddItem_AppendsToCachedListing(t *testing.T) {
	c := New(0, nil)
	c.PutListing(RootKey(), api.Listing{Items: []api.Item{item("i1", nil, "a.txt")}})

	c.AddItem(item("i2", nil, "b.txt"))

	listing, ok := c.Listing(RootKey())
	require.True(t, ok)
	require.Len(t, listing.Items, 2)
	assert.Equal(t, "b.txt", listing.Items[1].Name)
}

func TestAddItem_NeverDuplicatesID(t *testing.T) {
	c := New(0, nil)
	c.PutListing(RootKey(), api.Listing{Items: []api.Item{item("i1", nil, "a.txt")}})

	c.AddItem(item("i1", nil, "a-renamed.txt"))

	listing, ok := c.Listing(RootKey())
	require.True(t, ok)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "a-renamed.txt", listing.Items[0].Name)
}

func TestUpdateItem_RenameInPlace(t *testing.T) {
	c := New(0, nil)
	parent := strptr("p1")
	c.PutListing(ItemKey("p1"), api.Listing{
		Current: &api.Item{ID: "p1", Name: "docs"},
		Items:   []api.Item{item("i1", parent, "old.txt"), item("i2", parent, "other.txt")},
	})

	updated := item("i1", parent, "new.txt")
	updated.Path = "/docs/new.txt"

	c.UpdateItem("i1", parent, updated)

	listing, ok := c.Listing(ItemKey("p1"))
	require.True(t, ok)
	require.Len(t, listing.Items, 2)
	assert.Equal(t, "new.txt", listing.Items[0].Name)
	assert.Equal(t, "/docs/new.txt", listing.Items[0].Path)
	assert.Equal(t, "other.txt", listing.Items[1].Name)
}

func TestUpdateItem_MoveBetweenCachedParents(t *testing.T) {
	c := New(0, nil)
	oldParent := strptr("a")
	newParent := strptr("b")

	c.PutListing(ItemKey("a"), api.Listing{Items: []api.Item{item("x", oldParent, "x.txt")}})
	c.PutListing(ItemKey("b"), api.Listing{Items: []api.Item{item("y", newParent, "y.txt")}})

	c.UpdateItem("x", oldParent, item("x", newParent, "x.txt"))

	source, ok := c.Listing(ItemKey("a"))
	require.True(t, ok)
	assert.Empty(t, source.Items, "moved item must leave the source listing")

	dest, ok := c.Listing(ItemKey("b"))
	require.True(t, ok)
	require.Len(t, dest.Items, 2)

	count := 0

	for _, it := range dest.Items {
		if it.ID == "x" {
			count++
		}
	}

	assert.Equal(t, 1, count, "moved item must appear exactly once in the destination")
}

func TestUpdateItem_MoveToUncachedParentDropsItem(t *testing.T) {
	c := New(0, nil)
	oldParent := strptr("a")

	c.PutListing(ItemKey("a"), api.Listing{Items: []api.Item{item("x", oldParent, "x.txt")}})

	c.UpdateItem("x", oldParent, item("x", strptr("b"), "x.txt"))

	source, ok := c.Listing(ItemKey("a"))
	require.True(t, ok)
	assert.Empty(t, source.Items)

	_, ok = c.Listing(ItemKey("b"))
	assert.False(t, ok, "the destination must stay uncached")
}

func TestUpdateItem_MoveToRoot(t *testing.T) {
	c := New(0, nil)
	oldParent := strptr("a")

	c.PutListing(ItemKey("a"), api.Listing{Items: []api.Item{item("x", oldParent, "x.txt")}})
	c.PutListing(RootKey(), api.Listing{Items: nil})

	c.UpdateItem("x", oldParent, item("x", nil, "x.txt"))

	root, ok := c.Listing(RootKey())
	require.True(t, ok)
	require.Len(t, root.Items, 1)
	assert.Equal(t, "x", root.Items[0].ID)
}

func TestUpdateItem_PatchesByIDCurrent(t *testing.T) {
	c := New(0, nil)

	// A folder viewed as the current folder has its own by-id listing.
	c.PutListing(ItemKey("f1"), api.Listing{
		Current: &api.Item{ID: "f1", Name: "old-name"},
	})
	c.PutListing(RootKey(), api.Listing{Items: []api.Item{folder("f1", nil, "old-name")}})

	c.UpdateItem("f1", nil, folder("f1", nil, "new-name"))

	byID, ok := c.Listing(ItemKey("f1"))
	require.True(t, ok)
	require.NotNil(t, byID.Current)
	assert.Equal(t, "new-name", byID.Current.Name)
}

func TestRemoveItem_DropsFromParentAndByID(t *testing.T) {
	c := New(0, nil)

	c.PutListing(RootKey(), api.Listing{Items: []api.Item{folder("f1", nil, "docs")}})
	c.PutListing(ItemKey("f1"), api.Listing{Current: &api.Item{ID: "f1", Name: "docs"}})

	c.RemoveItem(folder("f1", nil, "docs"))

	root, ok := c.Listing(RootKey())
	require.True(t, ok)
	assert.Empty(t, root.Items)

	_, ok = c.Listing(ItemKey("f1"))
	assert.False(t, ok, "by-id listing must be discarded on delete")
}

func TestListing_TTLEviction(t *testing.T) {
	c := New(time.Minute, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.PutListing(RootKey(), api.Listing{Items: []api.Item{item("i1", nil, "a.txt")}})

	_, ok := c.Listing(RootKey())
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)

	_, ok = c.Listing(RootKey())
	assert.False(t, ok, "entry past the TTL must be evicted")
}

func TestListing_ReturnsCopy(t *testing.T) {
	c := New(0, nil)
	c.PutListing(RootKey(), api.Listing{Items: []api.Item{item("i1", nil, "a.txt")}})

	listing, ok := c.Listing(RootKey())
	require.True(t, ok)

	listing.Items[0].Name = "mutated"

	again, ok := c.Listing(RootKey())
	require.True(t, ok)
	assert.Equal(t, "a.txt", again.Items[0].Name)
}

func TestPutListing_DoesNotAliasCallerSlice(t *testing.T) {
	c := New(0, nil)

	items := []api.Item{item("i1", nil, "a.txt"), item("i2", nil, "b.txt")}
	current := api.Item{ID: "p1", Name: "docs"}
	c.PutListing(RootKey(), api.Listing{Current: &current, Items: items})

	// In-place compaction inside the cache must not reorder the slice the
	// caller still holds.
	c.RemoveItem(item("i1", nil, "a.txt"))

	assert.Equal(t, "a.txt", items[0].Name)
	assert.Equal(t, "b.txt", items[1].Name)

	// Nor may the caller's struct reach into the cached current record.
	current.Name = "mutated"

	listing, ok := c.Listing(RootKey())
	require.True(t, ok)
	require.NotNil(t, listing.Current)
	assert.Equal(t, "docs", listing.Current.Name)
}

func TestAuthenticatedUser_SeedAndReset(t *testing.T) {
	c := New(0, nil)

	_, ok := c.AuthenticatedUser()
	assert.False(t, ok)

	c.SetAuthenticatedUser(&api.User{ID: "u1", Username: "alice"})

	user, ok := c.AuthenticatedUser()
	require.True(t, ok)
	assert.Equal(t, "alice", user.Username)

	c.Reset()

	_, ok = c.AuthenticatedUser()
	assert.False(t, ok)
}

func TestSubscribe_NotifiesOnMutation(t *testing.T) {
	c := New(0, nil)
	c.PutListing(RootKey(), api.Listing{})

	var fired []Key

	cancel := c.Subscribe(RootKey(), func(k Key) {
		fired = append(fired, k)
	})

	c.AddItem(item("i1", nil, "a.txt"))
	require.Len(t, fired, 1)
	assert.True(t, fired[0].IsRoot())

	cancel()
	c.AddItem(item("i2", nil, "b.txt"))
	assert.Len(t, fired, 1, "canceled subscription must not fire")
}

func TestSubscribe_OtherKeysUntouched(t *testing.T) {
	c := New(0, nil)
	c.PutListing(RootKey(), api.Listing{})
	c.PutListing(ItemKey("p1"), api.Listing{})

	fired := 0

	c.Subscribe(ItemKey("p1"), func(Key) { fired++ })

	c.AddItem(item("i1", nil, "a.txt"))
	assert.Zero(t, fired)
}
