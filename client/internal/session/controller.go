// Package session drives identity transitions: it clears caches and
// user-scoped views on login and logout, triggers the first synchronization
// pass for a new user, and persists and restores the client snapshot.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/cache"
	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/syncer"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// DefaultMaxAge bounds how old a restored snapshot may be.
const DefaultMaxAge = 7 * 24 * time.Hour

// Verifier checks the persisted credentials against the backend.
type Verifier interface {
	VerifySession(ctx context.Context) (*types.VerifyResponse, error)
}

// Config tunes a Controller.
type Config struct {
	MaxAge time.Duration
	Now    func() time.Time
}

// Controller serializes login, logout and restore.
type Controller struct {
	sync     *syncer.Syncer
	store    store.Store
	cache    *cache.Cache
	verifier Verifier
	cfg      Config
	log      zerolog.Logger

	transition sync.Mutex // held for a whole login, logout or snapshot write

	mu        sync.Mutex
	processed string
	sessionID string
}

// New builds a Controller.
func New(s *syncer.Syncer, st store.Store, c *cache.Cache, v Verifier, cfg Config, log zerolog.Logger) *Controller {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		sync:      s,
		store:     st,
		cache:     c,
		verifier:  v,
		cfg:       cfg,
		log:       log.With().Str("component", "session").Logger(),
		sessionID: uuid.NewString(),
	}
}

func guardKey(p types.LoginPayload) string {
	return fmt.Sprintf("%d:%s", p.User.ID, p.Token)
}

// Login switches the current identity to p.User. A payload equal to the last
// processed one is a no-op, so a replayed callback never fetches twice.
// The returned error is the first failed initial fetch; the views keep their
// own error state either way.
func (c *Controller) Login(ctx context.Context, p types.LoginPayload) error {
	if err := types.ValidateUserID(p.User.ID); err != nil {
		return err
	}
	key := guardKey(p)
	c.mu.Lock()
	if c.processed == key {
		c.mu.Unlock()
		c.log.Debug().Int64("user_id", p.User.ID).Msg("login payload already processed")
		return nil
	}
	c.processed = key
	c.mu.Unlock()

	c.transition.Lock()
	defer c.transition.Unlock()

	log := c.log.With().Int64("user_id", p.User.ID).Logger()
	log.Info().Msg("login transition")

	c.cache.Clear(ctx)
	if p.Token != "" {
		if err := c.store.Set(ctx, TokenKey, []byte(p.Token), 0); err != nil {
			log.Warn().Err(err).Msg("could not persist token, relying on session cookie")
		}
	} else if err := c.store.Delete(ctx, TokenKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		// A cookie-only login must not inherit the previous bearer token.
		log.Warn().Err(err).Msg("could not delete previous token")
	}
	u := p.User
	c.sync.SetIdentity(&u)

	err := c.initialSync(ctx)
	if perr := c.persistLocked(ctx); perr != nil {
		log.Warn().Err(perr).Msg("snapshot not persisted")
	}
	return err
}

// initialSync loads the first page of every view concurrently.
func (c *Controller) initialSync(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := c.sync.FetchPage(ctx, syncer.Feed, 1, syncer.FetchOptions{})
		return ignoreStale(err)
	})
	g.Go(func() error {
		_, err := c.sync.FetchPage(ctx, syncer.History, 1, syncer.FetchOptions{})
		return ignoreStale(err)
	})
	g.Go(func() error {
		_, err := c.sync.FetchCollection(ctx, syncer.FetchOptions{})
		return ignoreStale(err)
	})
	return g.Wait()
}

func ignoreStale(err error) error {
	if errors.Is(err, errs.ErrStaleResponse) {
		return nil
	}
	return err
}

// Logout drops the token, resets every user-scoped view, clears the cache and
// rewrites the snapshot without user data.
func (c *Controller) Logout(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	prev := c.sync.CurrentUser()
	if err := c.store.Delete(ctx, TokenKey); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.log.Warn().Err(err).Msg("could not delete token")
	}
	c.sync.SetIdentity(nil)
	c.cache.Clear(ctx)

	c.mu.Lock()
	c.processed = ""
	c.mu.Unlock()

	if prev != nil {
		c.log.Info().Int64("user_id", prev.ID).Msg("logout transition")
	}
	return c.persistLocked(ctx)
}

// Persist writes the current snapshot. If the store is out of space the
// views are dropped and only the identity is kept. It waits for a running
// login or logout, so a snapshot captured before a transition never lands
// after it.
func (c *Controller) Persist(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()
	return c.persistLocked(ctx)
}

// persistLocked requires c.transition.
func (c *Controller) persistLocked(ctx context.Context) error {
	snap := c.capture(ctx)
	err := c.write(ctx, snap)
	if errors.Is(err, store.ErrQuotaExceeded) {
		c.log.Warn().Msg("snapshot exceeds store quota, persisting identity only")
		err = c.write(ctx, snap.authOnly())
	}
	return err
}

func (c *Controller) write(ctx context.Context, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.store.Set(ctx, SnapshotKey, raw, 0); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (c *Controller) capture(ctx context.Context) Snapshot {
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()

	snap := Snapshot{Version: SnapshotVersion, SessionID: sid, SavedAt: c.cfg.Now().UTC()}
	if feed, ok := c.sync.Snapshot(syncer.Feed); ok {
		snap.Feed = &feed
	}
	u := c.sync.CurrentUser()
	if u == nil {
		return snap
	}
	snap.Auth = &AuthSnapshot{User: *u}
	if tok, err := c.store.Get(ctx, TokenKey); err == nil {
		snap.Auth.Token = string(tok)
	}
	if h, ok := c.sync.Snapshot(syncer.History); ok {
		snap.History = &ScopedView{OwnerID: u.ID, ViewSnapshot: h}
	}
	if col, ok := c.sync.Snapshot(syncer.Collection); ok {
		snap.Collection = &ScopedView{OwnerID: u.ID, ViewSnapshot: col}
	}
	return snap
}

// load reads and validates the persisted snapshot. Invalid snapshots are
// deleted.
func (c *Controller) load(ctx context.Context) (*Snapshot, error) {
	raw, err := c.store.Get(ctx, SnapshotKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	reason := ""
	switch {
	case json.Unmarshal(raw, &snap) != nil:
		reason = "undecodable"
	case snap.Version != SnapshotVersion:
		reason = "version mismatch"
	case c.cfg.Now().Sub(snap.SavedAt) > c.cfg.MaxAge:
		reason = "expired"
	case snap.Auth != nil && snap.Auth.User.ID <= 0:
		reason = "invalid identity"
	}
	if reason != "" {
		c.log.Info().Str("reason", reason).Msg("discarding persisted snapshot")
		if err := c.store.Delete(ctx, SnapshotKey); err != nil && !errors.Is(err, store.ErrNotFound) {
			c.log.Warn().Err(err).Msg("could not delete snapshot")
		}
		return nil, nil
	}
	return &snap, nil
}

// Restore reinstates the persisted snapshot and, when credentials exist,
// verifies them: a valid session for a different user becomes a login, an
// invalid one a logout. A verification transport failure keeps the restored
// state. It reports whether a snapshot was applied.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return false, err
	}

	var restoredUser *types.User
	if snap != nil {
		if snap.Auth != nil {
			u := snap.Auth.User
			restoredUser = &u
			c.sync.SetIdentity(&u)
			if snap.Auth.Token != "" {
				if _, err := c.store.Get(ctx, TokenKey); errors.Is(err, store.ErrNotFound) {
					if err := c.store.Set(ctx, TokenKey, []byte(snap.Auth.Token), 0); err != nil {
						c.log.Warn().Err(err).Msg("could not restore token, relying on session cookie")
					}
				}
			}
			if snap.History.ownedBy(u.ID) {
				c.sync.RestoreView(syncer.History, snap.History.ViewSnapshot)
			}
			if snap.Collection.ownedBy(u.ID) {
				c.sync.RestoreView(syncer.Collection, snap.Collection.ViewSnapshot)
			}
			c.mu.Lock()
			c.processed = guardKey(types.LoginPayload{User: u, Token: snap.Auth.Token})
			c.mu.Unlock()
		}
		if snap.Feed != nil {
			c.sync.RestoreView(syncer.Feed, *snap.Feed)
		}
		c.log.Info().Time("saved_at", snap.SavedAt).Bool("authenticated", restoredUser != nil).Msg("snapshot restored")
	}

	token, terr := c.store.Get(ctx, TokenKey)
	if restoredUser == nil && terr != nil {
		return snap != nil, nil
	}
	if c.verifier == nil {
		return snap != nil, nil
	}

	res, err := c.verifier.VerifySession(ctx)
	if err != nil {
		if errs.StatusCode(err) == 401 || errs.StatusCode(err) == 403 {
			return snap != nil, c.Logout(ctx)
		}
		c.log.Warn().Err(err).Msg("session verification failed, keeping restored state")
		return snap != nil, nil
	}
	if !res.Valid || res.User == nil {
		return snap != nil, c.Logout(ctx)
	}
	if restoredUser == nil || restoredUser.ID != res.User.ID {
		return snap != nil, c.Login(ctx, types.LoginPayload{User: *res.User, Token: string(token)})
	}
	return snap != nil, nil
}
