package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/cache"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/shardqueue"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

type fakeBackend struct {
	listImages     func(ctx context.Context, p types.ListImagesParams) (*types.Page, error)
	listUserImages func(ctx context.Context, p types.ListImagesParams) (*types.Page, error)
	getCollection  func(ctx context.Context, userID int64) (*types.Collection, error)
	add            func(ctx context.Context, userID, imageID int64) (*types.Collection, error)
	remove         func(ctx context.Context, userID, imageID int64) (*types.Collection, error)

	listCalls, userCalls, collCalls, mutationCalls int32
}

func (f *fakeBackend) ListImages(ctx context.Context, p types.ListImagesParams) (*types.Page, error) {
	atomic.AddInt32(&f.listCalls, 1)
	return f.listImages(ctx, p)
}

func (f *fakeBackend) ListUserImages(ctx context.Context, p types.ListImagesParams) (*types.Page, error) {
	atomic.AddInt32(&f.userCalls, 1)
	return f.listUserImages(ctx, p)
}

func (f *fakeBackend) GetCollection(ctx context.Context, userID int64) (*types.Collection, error) {
	atomic.AddInt32(&f.collCalls, 1)
	return f.getCollection(ctx, userID)
}

func (f *fakeBackend) AddToCollection(ctx context.Context, userID, imageID int64) (*types.Collection, error) {
	atomic.AddInt32(&f.mutationCalls, 1)
	return f.add(ctx, userID, imageID)
}

func (f *fakeBackend) RemoveFromCollection(ctx context.Context, userID, imageID int64) (*types.Collection, error) {
	atomic.AddInt32(&f.mutationCalls, 1)
	return f.remove(ctx, userID, imageID)
}

// images builds images with the given ids, owned by owner.
func images(owner int64, ids ...int64) []types.Image {
	out := make([]types.Image, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Image{ID: id, Prompt: "p", UserID: owner, ImageURL: "https://img/x.png"})
	}
	return out
}

func pageOf(page int, hasMore bool, imgs []types.Image) *types.Page {
	return &types.Page{
		Data:       imgs,
		Pagination: types.Pagination{Total: 100, Pages: 5, CurrentPage: page, PerPage: 20, HasMore: hasMore},
	}
}

func idsOf(items []types.Image) []int64 {
	out := make([]int64, 0, len(items))
	for _, img := range items {
		out = append(out, img.ID)
	}
	return out
}

func seq(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

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

type harness struct {
	s     *Syncer
	be    *fakeBackend
	cache *cache.Cache
	clock *fakeClock
	bus   *events.Bus
}

func newHarness(t *testing.T, be *fakeBackend) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	mem := store.NewMemoryStore(store.DefaultCapacity).WithClock(clock.Now)
	c := cache.New(mem, cache.Config{Now: clock.Now}, zerolog.Nop())
	exec := shardqueue.NewShardExecutor(shardqueue.Config{Shards: 2, QueueSize: 16, MaxAttempts: 1})
	t.Cleanup(exec.Stop)
	bus := events.NewBus()
	s := New(be, c, exec, bus, Config{PageSize: 20, Now: clock.Now}, zerolog.Nop())
	return &harness{s: s, be: be, cache: c, clock: clock, bus: bus}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
