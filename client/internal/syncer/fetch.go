package syncer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/cache"
	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// FetchOptions modifies FetchPage.
type FetchOptions struct {
	// Force bypasses the page-1 cache and request coalescing.
	Force bool
}

// Cache resource names of the page-1 entries.
const (
	ResourceImages     = "images"
	ResourceUserImages = "userImages"
	ResourceCollection = "collection"
)

func cacheTarget(v View, userID int64) (string, cache.Params) {
	params := cache.Params{"userId": strconv.FormatInt(userID, 10)}
	switch v {
	case History:
		return ResourceUserImages, params
	case Collection:
		return ResourceCollection, params
	default:
		return ResourceImages, params
	}
}

// FetchPage loads page of v and merges it: page 1 replaces the view, later
// pages append with de-duplication by id. Page 1 is read through the cache
// unless opts.Force is set. Concurrent non-forced calls for the same view and
// page share one network call.
//
// A response that lost a race is dropped and reported as
// errs.ErrStaleResponse; the returned state is then the view as it stands.
func (s *Syncer) FetchPage(ctx context.Context, v View, page int, opts FetchOptions) (ViewState, error) {
	if _, err := ParseView(string(v)); err != nil {
		return ViewState{}, err
	}
	if err := types.ValidatePage(page); err != nil {
		return s.View(v), err
	}
	if v == Collection && page != 1 {
		return s.View(v), errs.NewValidationError("page", "collection is not paginated")
	}

	s.mu.Lock()
	uid, epoch := s.userIDLocked(), s.epoch
	s.mu.Unlock()
	if v != Feed && uid == 0 {
		return s.View(v), errs.ErrUnauthenticated
	}

	if page == 1 && !opts.Force {
		if st, ok := s.fromCache(ctx, v, uid, epoch); ok {
			return st, nil
		}
	}
	if opts.Force {
		return s.fetch(ctx, v, page, uid, epoch, "")
	}

	key := fmt.Sprintf("%s:%d:%d", v, page, epoch)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), v, page, uid, epoch, key)
	})
	select {
	case <-ctx.Done():
		return s.View(v), ctx.Err()
	case r := <-ch:
		st, _ := r.Val.(ViewState)
		return st, r.Err
	}
}

// FetchMore loads the page after the view's current one. An uninitialized view
// loads page 1; a view without more pages is returned unchanged.
func (s *Syncer) FetchMore(ctx context.Context, v View) (ViewState, error) {
	s.mu.Lock()
	vs, ok := s.views[v]
	if !ok {
		s.mu.Unlock()
		_, err := ParseView(string(v))
		return ViewState{}, err
	}
	initialized, hasMore, next := vs.Initialized, vs.HasMore, vs.CurrentPage+1
	s.mu.Unlock()

	switch {
	case !initialized:
		return s.FetchPage(ctx, v, 1, FetchOptions{})
	case !hasMore || v == Collection:
		return s.View(v), nil
	default:
		return s.FetchPage(ctx, v, next, FetchOptions{})
	}
}

// FetchCollection loads the current user's bookmark collection.
func (s *Syncer) FetchCollection(ctx context.Context, opts FetchOptions) (ViewState, error) {
	return s.FetchPage(ctx, Collection, 1, opts)
}

func (s *Syncer) fromCache(ctx context.Context, v View, uid int64, epoch uint64) (ViewState, bool) {
	if s.cache == nil {
		return ViewState{}, false
	}
	resource, params := cacheTarget(v, uid)
	var page types.Page
	if !s.cache.Get(ctx, resource, params, &page) {
		return ViewState{}, false
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return ViewState{}, false
	}
	vs := s.views[v]
	s.supersede(vs, "")
	vs.Loading = false
	s.applyLocked(v, vs, 1, &page)
	st := s.copyView(v)
	s.mu.Unlock()

	fetchesTotal.WithLabelValues(string(v), "cache").Inc()
	s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
	return st, true
}

// supersede starts a new generation for vs: every in-flight request becomes
// stale and joiners can no longer attach to their flights. own is the flight
// key of the caller, which stays joinable. Requires s.mu.
func (s *Syncer) supersede(vs *viewState, own string) {
	vs.gen++
	vs.pending = 0
	for k := range vs.flights {
		if k != own {
			s.group.Forget(k)
			delete(vs.flights, k)
		}
	}
}

func (s *Syncer) fetch(ctx context.Context, v View, page int, uid int64, epoch uint64, flightKey string) (ViewState, error) {
	s.mu.Lock()
	if epoch != s.epoch {
		st := s.copyView(v)
		s.mu.Unlock()
		staleDiscardsTotal.WithLabelValues(string(v), "identity").Inc()
		return st, errs.ErrStaleResponse
	}
	vs := s.views[v]
	if page == 1 {
		s.supersede(vs, flightKey)
	}
	var flight uint64
	if flightKey != "" {
		vs.flight++
		flight = vs.flight
		vs.flights[flightKey] = flight
	}
	vs.pending++
	vs.Loading = true
	gen := vs.gen
	s.mu.Unlock()
	s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})

	log := s.log.With().Str("view", string(v)).Int("page", page).Int64("user_id", uid).Logger()
	log.Debug().Bool("forced", flightKey == "").Msg("fetching page")
	result, err := s.load(ctx, v, page, uid)
	fetchesTotal.WithLabelValues(string(v), "network").Inc()

	s.mu.Lock()
	// A superseded flight's key may already belong to a newer flight.
	if flightKey != "" && vs.flights[flightKey] == flight {
		delete(vs.flights, flightKey)
	}
	if epoch != s.epoch || s.views[v] != vs || gen != vs.gen {
		reason := "superseded"
		if epoch != s.epoch {
			reason = "identity"
		}
		st := s.copyView(v)
		s.mu.Unlock()
		staleDiscardsTotal.WithLabelValues(string(v), reason).Inc()
		log.Debug().Str("reason", reason).Msg("discarding stale response")
		return st, errs.ErrStaleResponse
	}
	vs.pending--
	vs.Loading = vs.pending > 0

	if err != nil {
		vs.Err = err
		st := s.copyView(v)
		s.mu.Unlock()
		fetchErrorsTotal.WithLabelValues(string(v)).Inc()
		log.Warn().Err(err).Msg("fetch failed, keeping previous data")
		s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
		return st, err
	}
	if page > 1 && page != vs.CurrentPage+1 {
		st := s.copyView(v)
		s.mu.Unlock()
		staleDiscardsTotal.WithLabelValues(string(v), "out_of_order").Inc()
		log.Debug().Int("current_page", st.CurrentPage).Msg("discarding out of order page")
		s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
		return st, errs.ErrStaleResponse
	}
	s.applyLocked(v, vs, page, result)
	st := s.copyView(v)
	s.mu.Unlock()

	if page == 1 && s.cache != nil {
		resource, params := cacheTarget(v, uid)
		s.cache.Set(ctx, resource, params, result)
	}
	s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
	return st, nil
}

// load performs the network call. The collection is presented as a single,
// final page.
func (s *Syncer) load(ctx context.Context, v View, page int, uid int64) (*types.Page, error) {
	params := types.ListImagesParams{UserID: uid, Page: page, Limit: s.cfg.PageSize}
	switch v {
	case History:
		return s.backend.ListUserImages(ctx, params)
	case Collection:
		c, err := s.backend.GetCollection(ctx, uid)
		if err != nil {
			return nil, err
		}
		n := len(c.Images)
		return &types.Page{
			Data:       c.Images,
			Pagination: types.Pagination{Total: n, Pages: 1, CurrentPage: 1, PerPage: n},
		}, nil
	default:
		return s.backend.ListImages(ctx, params)
	}
}

// applyLocked merges p into vs and seeds the ledger. Requires s.mu.
func (s *Syncer) applyLocked(v View, vs *viewState, page int, p *types.Page) {
	if page == 1 {
		vs.Items = mergeUnique(nil, p.Data)
	} else {
		vs.Items = mergeUnique(vs.Items, p.Data)
	}
	vs.CurrentPage = p.Pagination.CurrentPage
	if vs.CurrentPage < 1 {
		vs.CurrentPage = page
	}
	vs.HasMore = p.Pagination.HasMore
	vs.Err = nil
	vs.Initialized = true
	vs.LastFetched = s.cfg.Now()
	s.seedLocked(v, p.Data)
}

// seedLocked creates ledger entries for ids seen for the first time.
// Collection membership also marks settled entries as bookmarked, so the
// order in which views load does not matter. Entries with a toggle in flight
// are left alone. Requires s.mu.
func (s *Syncer) seedLocked(v View, images []types.Image) {
	if s.user == nil {
		return
	}
	for _, img := range images {
		st, ok := s.ledger[img.ID]
		switch {
		case !ok:
			s.ledger[img.ID] = BookmarkStatus{IsBookmarked: v == Collection || img.IsBookmarked}
		case v == Collection && !st.IsLoading && !st.IsBookmarked:
			s.ledger[img.ID] = BookmarkStatus{IsBookmarked: true}
		}
	}
}

// mergeUnique appends the images of add whose id is not already present,
// preserving order.
func mergeUnique(dst, add []types.Image) []types.Image {
	seen := make(map[int64]struct{}, len(dst)+len(add))
	out := make([]types.Image, 0, len(dst)+len(add))
	for _, img := range dst {
		if _, dup := seen[img.ID]; dup {
			continue
		}
		seen[img.ID] = struct{}{}
		out = append(out, img)
	}
	for _, img := range add {
		if _, dup := seen[img.ID]; dup {
			continue
		}
		seen[img.ID] = struct{}{}
		out = append(out, img)
	}
	return out
}
