package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/cache"
	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/generator"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/job"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/session"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/shardqueue"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/syncer"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
	"github.com/cristhianbenitez/ai-image-generator/internal/config"
)

// Generator produces the image payload for a generation form.
type Generator interface {
	Generate(ctx context.Context, form GenerateForm) (string, error)
}

// GenerationState is the progress of the last generate-and-save request.
type GenerationState struct {
	Loading bool
	Err     error
	Image   *Image
}

// Client is the presentation-facing facade. Reads return copies; intents
// mutate state and publish events to subscribers.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	store     store.Store
	storePath string
	storeCap  int
	ownsStore bool

	cacheCfg     cache.Config
	syncCfg      syncer.Config
	sessionCfg   session.Config
	execAttempts int

	cache   *cache.Cache
	exec    executor
	bus     *events.Bus
	sync    *syncer.Syncer
	session *session.Controller
	gen     Generator
	genCfg  generator.Config

	snapshotInterval time.Duration
	stopLoop         chan struct{}
	loopDone         chan struct{}

	genMu    sync.Mutex
	genState GenerationState

	closedOnce uint32
}

// New constructs a Client against baseURL, the API root including /api.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("baseURL cannot be empty")
	}
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{Timeout: 30 * time.Second, Jar: jar},
		log:              zerolog.Nop(),
		storeCap:         store.DefaultCapacity,
		snapshotInterval: 30 * time.Second,
	}

	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if err := c.build(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromConfig builds a Client from the environment-backed configuration.
func NewFromConfig(cfg *config.Config, log zerolog.Logger) (*Client, error) {
	opts := []Option{
		WithLogger(log),
		WithHTTPTimeout(cfg.HTTPTimeout),
		WithPageSize(cfg.PageSize),
		WithCacheTTL(cfg.CacheTTL),
		WithCacheMaxItemBytes(cfg.CacheMaxItemBytes),
		WithStoreCapacity(cfg.StoreCapacityBytes),
		WithSnapshotInterval(cfg.SnapshotInterval),
		WithDebugLogging(cfg.Debug),
		WithGeneratorConfig(cfg.GeneratorURL, cfg.GeneratorAPIKey),
	}
	if cfg.SnapshotMaxAge > 0 {
		opts = append(opts, WithSnapshotMaxAge(cfg.SnapshotMaxAge))
	}
	if cfg.StorePath != "" {
		opts = append(opts, WithStorePath(cfg.StorePath))
	}
	return New(cfg.BaseURL, opts...)
}

func (c *Client) build() error {
	if c.store == nil {
		if c.storePath != "" {
			st, err := store.Open(c.storePath, c.storeCap, c.log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			c.store = st
		} else {
			c.store = store.NewMemoryStore(c.storeCap)
		}
		c.ownsStore = true
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &tokenTransport{base: base, store: c.store}

	if c.exec == nil {
		c.exec = newDefaultExecutor(c.log, c.execAttempts)
	}
	if c.gen == nil {
		c.gen = generator.NewProvider(c.genCfg)
	}

	be := backend{hc: c.http, base: c.baseURL}
	c.bus = events.NewBus()
	c.cache = cache.New(c.store, c.cacheCfg, c.log)
	c.sync = syncer.New(be, c.cache, c.exec, c.bus, c.syncCfg, c.log)
	c.session = session.New(c.sync, c.store, c.cache, be, c.sessionCfg, c.log)

	c.stopLoop = make(chan struct{})
	c.loopDone = make(chan struct{})
	go c.snapshotLoop()
	return nil
}

// Close stops the snapshot loop, writes a final snapshot, drains the
// executor and releases the store it opened. Safe to call multiple times.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closedOnce, 0, 1) {
		return nil
	}
	close(c.stopLoop)
	<-c.loopDone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.session.Persist(ctx); err != nil {
		c.log.Warn().Err(err).Msg("final snapshot failed")
	}
	c.exec.Stop()
	c.bus.Close()
	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}

func (c *Client) snapshotLoop() {
	defer close(c.loopDone)
	t := time.NewTicker(c.snapshotInterval)
	defer t.Stop()
	for {
		select {
		case <-c.stopLoop:
			return
		case <-t.C:
			c.submitSnapshot()
		}
	}
}

func (c *Client) submitSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), c.snapshotInterval)
	defer cancel()
	persist := shardqueue.JobFunc(func(ctx context.Context) error {
		err := c.session.Persist(ctx)
		snapshotsTotal.WithLabelValues(outcomeOf(err)).Inc()
		return err
	})
	if err := c.exec.Submit(ctx, snapshotKey, persist); err != nil {
		c.log.Debug().Err(err).Msg("snapshot skipped")
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// --------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------

// Feed returns a copy of the global feed view.
func (c *Client) Feed() ViewState { return c.sync.View(syncer.Feed) }

// History returns a copy of the current user's history view.
func (c *Client) History() ViewState { return c.sync.View(syncer.History) }

// Collection returns a copy of the current user's bookmarks view.
func (c *Client) Collection() ViewState { return c.sync.View(syncer.Collection) }

// View returns a copy of v.
func (c *Client) View(v View) ViewState { return c.sync.View(v) }

// BookmarkStatus returns the ledger entry for id; unknown ids are not
// bookmarked.
func (c *Client) BookmarkStatus(id int64) BookmarkStatus {
	st, _ := c.sync.Bookmark(id)
	return st
}

// Bookmarks returns a copy of the whole ledger.
func (c *Client) Bookmarks() map[int64]BookmarkStatus { return c.sync.Bookmarks() }

// CurrentUser returns the authenticated user or nil.
func (c *Client) CurrentUser() *User { return c.sync.CurrentUser() }

// Generation returns the state of the last generate-and-save request.
func (c *Client) Generation() GenerationState {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.genState
}

// LoginURL is where the presentation layer sends the browser to start OAuth.
func (c *Client) LoginURL() string { return c.baseURL + "/auth/github" }

// Subscribe delivers state change events until cancel is called or the
// client is closed.
func (c *Client) Subscribe(buffer int) (<-chan Event, func()) { return c.bus.Subscribe(buffer) }

// --------------------------------------------------------------------
// Intents
// --------------------------------------------------------------------

// RequestFetchMore loads the next page of v, or the first page of an
// uninitialized view. A response superseded by a newer request is not an
// error.
func (c *Client) RequestFetchMore(ctx context.Context, v View) error {
	_, err := c.sync.FetchMore(ctx, v)
	return dropStale(err)
}

// Refresh reloads the first page of v bypassing the cache.
func (c *Client) Refresh(ctx context.Context, v View) error {
	var err error
	if v == syncer.Collection {
		_, err = c.sync.FetchCollection(ctx, syncer.FetchOptions{Force: true})
	} else {
		_, err = c.sync.FetchPage(ctx, v, 1, syncer.FetchOptions{Force: true})
	}
	return dropStale(err)
}

// RequestToggleBookmark flips the bookmark of id optimistically and waits
// for the server to confirm it. On failure the flip is rolled back and the
// server error returned.
func (c *Client) RequestToggleBookmark(ctx context.Context, id int64) error {
	err := c.sync.ToggleBookmark(ctx, id)
	if errors.Is(err, shardqueue.ErrQueueFull) {
		return fmt.Errorf("%w: %v", ErrBackPressure, err)
	}
	return err
}

// RemoveFromCollectionView hides id from the collection view without a
// server call.
func (c *Client) RemoveFromCollectionView(id int64) { c.sync.RemoveFromCollectionView(id) }

// RequestGenerateAndSave generates an image for form, saves it to the
// current user's history and inserts it into the feed and history views.
func (c *Client) RequestGenerateAndSave(ctx context.Context, form GenerateForm) (*Image, error) {
	u := c.sync.CurrentUser()
	if u == nil {
		return nil, errs.ErrUnauthenticated
	}
	if err := types.ValidateForm(form); err != nil {
		return nil, err
	}

	c.setGeneration(GenerationState{Loading: true})
	img, err := c.generateAndSave(ctx, u.ID, form)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		c.setGeneration(GenerationState{Err: err})
		c.log.Warn().Err(err).Int64("user_id", u.ID).Msg("generation failed")
		return nil, err
	}
	generationsTotal.WithLabelValues("ok").Inc()
	if err := c.sync.InsertNewImage(ctx, *img); err != nil {
		c.setGeneration(GenerationState{Err: err})
		return nil, err
	}
	c.setGeneration(GenerationState{Image: img})
	return img, nil
}

func (c *Client) generateAndSave(ctx context.Context, userID int64, form GenerateForm) (*Image, error) {
	payload, err := c.gen.Generate(ctx, form)
	if err != nil {
		return nil, err
	}
	be := backend{hc: c.http, base: c.baseURL}
	return be.SaveImage(ctx, types.SaveImageRequest{
		UserID:         userID,
		Prompt:         form.Prompt,
		NegativePrompt: form.NegativePrompt,
		Color:          form.Color,
		Resolution:     form.Resolution,
		Guidance:       form.Guidance,
		Seed:           form.Seed,
		ImageURL:       payload,
	})
}

func (c *Client) setGeneration(st GenerationState) {
	c.genMu.Lock()
	c.genState = st
	c.genMu.Unlock()
	c.bus.Publish(Event{Kind: GenerationChanged})
}

// RequestLogin switches the client to the user in p. Repeating the same
// payload is a no-op.
func (c *Client) RequestLogin(ctx context.Context, p LoginPayload) error {
	return dropStale(c.session.Login(ctx, p))
}

// LoginWithCallback parses the OAuth callback data (raw JSON, a query string
// or the full callback URL) and logs in with it.
func (c *Client) LoginWithCallback(ctx context.Context, data string) error {
	p, err := session.ParseCallback(data)
	if err != nil {
		return err
	}
	return c.RequestLogin(ctx, p)
}

// RequestLogout clears credentials, caches and user-scoped views.
func (c *Client) RequestLogout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Restore reinstates the last persisted snapshot and verifies the session.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	ok, err := c.session.Restore(ctx)
	return ok, dropStale(err)
}

// Persist writes a snapshot immediately.
func (c *Client) Persist(ctx context.Context) error { return c.session.Persist(ctx) }

// AwaitMutations blocks until every bookmark mutation already submitted for
// id has resolved.
func (c *Client) AwaitMutations(ctx context.Context, id int64) error {
	return c.exec.Barrier(ctx, job.ImageKey(id))
}

func dropStale(err error) error {
	if errors.Is(err, errs.ErrStaleResponse) {
		return nil
	}
	return err
}
