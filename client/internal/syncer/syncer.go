// Package syncer owns the three materialized image views (feed, history and
// the bookmark collection) and the bookmark ledger. It merges fetched pages,
// applies optimistic mutations and discards responses that lost a race.
//
// All state lives behind one mutex that is never held across a network call.
// Ordering is enforced with three tokens captured when a request is issued:
// the view generation (bumped by every page-1 request), the identity epoch
// (bumped by SetIdentity) and, for later pages, the page number itself.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/cache"
	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/shardqueue"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// View names one of the materialized projections.
type View string

const (
	Feed       View = "feed"
	History    View = "history"
	Collection View = "collection"
)

// Views lists every view in a stable order.
var Views = []View{Feed, History, Collection}

// ParseView maps a user supplied name to a View.
func ParseView(name string) (View, error) {
	switch v := View(name); v {
	case Feed, History, Collection:
		return v, nil
	}
	return "", errs.NewValidationError("view", fmt.Sprintf("unknown view %q", name))
}

// ViewState is a read-only copy of one view.
type ViewState struct {
	Items       []types.Image
	CurrentPage int
	HasMore     bool
	Loading     bool
	Err         error
	Initialized bool
	LastFetched time.Time
}

// BookmarkStatus is the ledger entry of one image.
type BookmarkStatus struct {
	IsBookmarked bool
	IsLoading    bool
	Err          error
}

// Backend is the subset of the Resource Client the synchronizer needs.
type Backend interface {
	ListImages(ctx context.Context, p types.ListImagesParams) (*types.Page, error)
	ListUserImages(ctx context.Context, p types.ListImagesParams) (*types.Page, error)
	GetCollection(ctx context.Context, userID int64) (*types.Collection, error)
	AddToCollection(ctx context.Context, userID, imageID int64) (*types.Collection, error)
	RemoveFromCollection(ctx context.Context, userID, imageID int64) (*types.Collection, error)
}

// Executor runs bookmark mutations, serialized per image key.
type Executor interface {
	Submit(ctx context.Context, key string, job shardqueue.Job) error
}

// Config tunes a Syncer.
type Config struct {
	PageSize int
	Now      func() time.Time
}

// DefaultPageSize matches the backend default.
const DefaultPageSize = 20

type viewState struct {
	ViewState
	gen     uint64
	pending int
	flights map[string]uint64 // singleflight key -> owning flight
	flight  uint64
}

// Syncer is safe for concurrent use.
type Syncer struct {
	backend Backend
	cache   *cache.Cache
	exec    Executor
	bus     *events.Bus
	cfg     Config
	log     zerolog.Logger

	group singleflight.Group

	mu     sync.Mutex
	user   *types.User
	epoch  uint64
	views  map[View]*viewState
	ledger map[int64]BookmarkStatus
}

// New wires a Syncer. bus may be nil.
func New(backend Backend, c *cache.Cache, exec Executor, bus *events.Bus, cfg Config, log zerolog.Logger) *Syncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Syncer{
		backend: backend,
		cache:   c,
		exec:    exec,
		bus:     bus,
		cfg:     cfg,
		log:     log.With().Str("component", "syncer").Logger(),
		views:   make(map[View]*viewState, len(Views)),
		ledger:  make(map[int64]BookmarkStatus),
	}
	for _, v := range Views {
		s.views[v] = newViewState()
	}
	return s
}

func newViewState() *viewState {
	return &viewState{flights: make(map[string]uint64)}
}

// View returns a copy of v's state.
func (s *Syncer) View(v View) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyView(v)
}

// copyView requires s.mu.
func (s *Syncer) copyView(v View) ViewState {
	vs, ok := s.views[v]
	if !ok {
		return ViewState{}
	}
	out := vs.ViewState
	out.Items = append([]types.Image(nil), vs.Items...)
	return out
}

// Bookmark returns the ledger entry for id.
func (s *Syncer) Bookmark(id int64) (BookmarkStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.ledger[id]
	return st, ok
}

// Bookmarks returns a copy of the whole ledger.
func (s *Syncer) Bookmarks() map[int64]BookmarkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]BookmarkStatus, len(s.ledger))
	for id, st := range s.ledger {
		out[id] = st
	}
	return out
}

// CurrentUser returns a copy of the current user, nil when anonymous.
func (s *Syncer) CurrentUser() *types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetIdentity switches the frame of reference to u (nil for anonymous).
// History, Collection and the ledger are reset, Feed items are kept with
// their bookmark annotations stripped, and every in-flight response becomes
// stale.
func (s *Syncer) SetIdentity(u *types.User) {
	s.mu.Lock()
	prev := s.userIDLocked()
	if u != nil {
		cp := *u
		s.user = &cp
	} else {
		s.user = nil
	}
	s.epoch++

	feed := s.views[Feed]
	feed.gen++
	feed.pending = 0
	feed.Loading = false
	feed.Err = nil
	for i := range feed.Items {
		feed.Items[i].IsBookmarked = false
	}
	for _, v := range []View{History, Collection} {
		gen := s.views[v].gen
		s.views[v] = newViewState()
		s.views[v].gen = gen + 1
	}
	s.ledger = make(map[int64]BookmarkStatus)
	next := s.userIDLocked()
	s.mu.Unlock()

	s.log.Info().Int64("from_user_id", prev).Int64("user_id", next).Msg("identity switched")
	s.publish(events.Event{Kind: events.IdentityChanged, UserID: next})
	for _, v := range Views {
		s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
	}
}

// userIDLocked requires s.mu.
func (s *Syncer) userIDLocked() int64 {
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

func (s *Syncer) publish(evt events.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}
