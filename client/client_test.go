package client

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
)

type stubGenerator struct {
	payload string
	err     error
	calls   int
}

func (g *stubGenerator) Generate(context.Context, GenerateForm) (string, error) {
	g.calls++
	return g.payload, g.err
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithSnapshotInterval(time.Hour),
		WithGenerator(&stubGenerator{payload: "data:image/png;base64,AAAA"}),
	}
	c, err := New(baseURL+"/api", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var ada = User{ID: 2, Name: "ada"}

func login(t *testing.T, f *fakeAPI, c *Client) {
	t.Helper()
	f.authorize("tok-ada", ada)
	require.NoError(t, c.RequestLogin(context.Background(), LoginPayload{User: ada, Token: "tok-ada"}))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	c, err := New("http://localhost:3000/api", WithSnapshotInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestCloseKeepsCallerStore(t *testing.T) {
	st := store.NewMemoryStore(store.DefaultCapacity)
	c, err := New("http://localhost:3000/api", WithStore(st), WithSnapshotInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	require.NoError(t, st.Set(context.Background(), "k", []byte("v"), 0))
}

func TestLoginURL(t *testing.T) {
	c, err := New("http://localhost:3000/api/", WithSnapshotInterval(time.Hour))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "http://localhost:3000/api/auth/github", c.LoginURL())
}

func TestFeedPagination(t *testing.T) {
	_, srv := newFakeAPI(t, 25)
	c := newTestClient(t, srv.URL, WithPageSize(10))
	ctx := context.Background()

	require.NoError(t, c.RequestFetchMore(ctx, FeedView))
	require.NoError(t, c.RequestFetchMore(ctx, FeedView))

	feed := c.Feed()
	assert.Len(t, feed.Items, 20)
	assert.Equal(t, 2, feed.CurrentPage)
	assert.True(t, feed.HasMore)
	assert.False(t, feed.Loading)
	assert.Equal(t, int64(25), feed.Items[0].ID)

	require.NoError(t, c.RequestFetchMore(ctx, FeedView))
	feed = c.Feed()
	assert.Len(t, feed.Items, 25)
	assert.False(t, feed.HasMore)
}

func TestRefreshBypassesCache(t *testing.T) {
	f, srv := newFakeAPI(t, 5)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, c.RequestFetchMore(ctx, FeedView))
	require.NoError(t, c.Refresh(ctx, FeedView))
	assert.Equal(t, int32(2), f.listCalls.Load())
	assert.Len(t, c.Feed().Items, 5)
}

func TestScopedViewsRequireLogin(t *testing.T) {
	_, srv := newFakeAPI(t, 5)
	c := newTestClient(t, srv.URL)

	err := c.RequestFetchMore(context.Background(), HistoryView)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLoginToggleLogout(t *testing.T) {
	f, srv := newFakeAPI(t, 25)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	login(t, f, c)
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, ada.ID, c.CurrentUser().ID)
	assert.True(t, c.Feed().Initialized)
	assert.True(t, c.History().Initialized)
	assert.True(t, c.Collection().Initialized)
	for _, img := range c.History().Items {
		assert.Equal(t, ada.ID, img.UserID)
	}

	require.NoError(t, c.RequestToggleBookmark(ctx, 7))
	st := c.BookmarkStatus(7)
	assert.True(t, st.IsBookmarked)
	assert.False(t, st.IsLoading)
	require.Len(t, c.Collection().Items, 1)
	assert.Equal(t, int64(7), c.Collection().Items[0].ID)
	assert.Equal(t, []int64{7}, f.bookmarksOf(ada.ID))

	require.NoError(t, c.RequestToggleBookmark(ctx, 7))
	assert.False(t, c.BookmarkStatus(7).IsBookmarked)
	assert.Empty(t, c.Collection().Items)

	require.NoError(t, c.RequestLogout(ctx))
	assert.Nil(t, c.CurrentUser())
	assert.Empty(t, c.History().Items)
	assert.Empty(t, c.Collection().Items)
	assert.Empty(t, c.Bookmarks())

	err := c.RequestToggleBookmark(ctx, 7)
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestToggleRollsBackOnServerError(t *testing.T) {
	f, srv := newFakeAPI(t, 10)
	c := newTestClient(t, srv.URL)
	login(t, f, c)
	f.failAdd.Store(true)

	err := c.RequestToggleBookmark(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, 500, StatusCode(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(1), f.addCalls.Load(), "a failed toggle is not replayed")

	st := c.BookmarkStatus(4)
	assert.False(t, st.IsBookmarked)
	assert.False(t, st.IsLoading)
	assert.Error(t, st.Err)
	assert.Empty(t, c.Collection().Items)
}

func TestAwaitMutations(t *testing.T) {
	f, srv := newFakeAPI(t, 10)
	c := newTestClient(t, srv.URL)
	login(t, f, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.RequestToggleBookmark(ctx, 1))
	require.NoError(t, c.AwaitMutations(ctx, 1))
	assert.Equal(t, int32(1), f.addCalls.Load())
}

func TestGenerateAndSave(t *testing.T) {
	f, srv := newFakeAPI(t, 10)
	gen := &stubGenerator{payload: "data:image/png;base64,AAAA"}
	c := newTestClient(t, srv.URL, WithGenerator(gen))
	login(t, f, c)

	img, err := c.RequestGenerateAndSave(context.Background(), GenerateForm{
		Prompt:     "a lighthouse at dusk",
		Resolution: "1024x1024",
		Guidance:   7.5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), img.ID)
	assert.Equal(t, ada.ID, img.UserID)
	assert.Equal(t, 1, gen.calls)

	assert.Equal(t, int64(11), c.Feed().Items[0].ID)
	assert.Equal(t, int64(11), c.History().Items[0].ID)
	g := c.Generation()
	assert.False(t, g.Loading)
	require.NotNil(t, g.Image)
	assert.NoError(t, g.Err)
}

func TestGenerateFailureKeepsViews(t *testing.T) {
	f, srv := newFakeAPI(t, 10)
	gen := &stubGenerator{err: errors.New("provider down")}
	c := newTestClient(t, srv.URL, WithGenerator(gen))
	login(t, f, c)
	before := c.Feed().Items

	_, err := c.RequestGenerateAndSave(context.Background(), GenerateForm{Prompt: "x", Resolution: "512x512"})
	require.Error(t, err)
	assert.Equal(t, before, c.Feed().Items)
	assert.Error(t, c.Generation().Err)
}

func TestGenerateRequiresLogin(t *testing.T) {
	_, srv := newFakeAPI(t, 1)
	gen := &stubGenerator{}
	c := newTestClient(t, srv.URL, WithGenerator(gen))

	_, err := c.RequestGenerateAndSave(context.Background(), GenerateForm{Prompt: "x"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, gen.calls)
}

func TestLoginWithCallback(t *testing.T) {
	f, srv := newFakeAPI(t, 5)
	f.authorize("tok-ada", ada)
	c := newTestClient(t, srv.URL)

	data := `{"user":{"id":2,"name":"ada"},"token":"tok-ada"}`
	require.NoError(t, c.LoginWithCallback(context.Background(), "data="+url.QueryEscape(data)))
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "ada", c.CurrentUser().Name)

	var verr *ValidationError
	require.ErrorAs(t, c.LoginWithCallback(context.Background(), "data=%7Bnope"), &verr)
}

func TestRestoreAcrossRestart(t *testing.T) {
	f, srv := newFakeAPI(t, 12)
	st := store.NewMemoryStore(store.DefaultCapacity)
	ctx := context.Background()

	first := newTestClient(t, srv.URL, WithStore(st))
	login(t, f, first)
	require.NoError(t, first.RequestToggleBookmark(ctx, 4))
	history := first.History().Items
	require.NoError(t, first.Close())

	second := newTestClient(t, srv.URL, WithStore(st))
	restored, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	require.NotNil(t, second.CurrentUser())
	assert.Equal(t, ada.ID, second.CurrentUser().ID)
	assert.Equal(t, history, second.History().Items)
	assert.True(t, second.BookmarkStatus(4).IsBookmarked)
	assert.Equal(t, int32(1), f.verifyHits.Load())
}

func TestRestoreWithRevokedTokenLogsOut(t *testing.T) {
	f, srv := newFakeAPI(t, 6)
	st := store.NewMemoryStore(store.DefaultCapacity)
	ctx := context.Background()

	first := newTestClient(t, srv.URL, WithStore(st))
	login(t, f, first)
	require.NoError(t, first.Close())

	f.mu.Lock()
	delete(f.tokens, "tok-ada")
	f.mu.Unlock()

	second := newTestClient(t, srv.URL, WithStore(st))
	_, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, second.CurrentUser())
	assert.Empty(t, second.History().Items)
}

func TestSubscribeReceivesIdentityChange(t *testing.T) {
	f, srv := newFakeAPI(t, 3)
	c := newTestClient(t, srv.URL)
	events, cancel := c.Subscribe(64)
	defer cancel()

	login(t, f, c)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-events:
			if evt.Kind == IdentityChanged {
				assert.Equal(t, ada.ID, evt.UserID)
				return
			}
		case <-deadline:
			t.Fatal("no identity event")
		}
	}
}

func TestRemoveFromCollectionView(t *testing.T) {
	f, srv := newFakeAPI(t, 6)
	f.collections[ada.ID] = []int64{3, 5}
	c := newTestClient(t, srv.URL)
	login(t, f, c)
	require.Len(t, c.Collection().Items, 2)

	c.RemoveFromCollectionView(3)
	items := c.Collection().Items
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].ID)
}
