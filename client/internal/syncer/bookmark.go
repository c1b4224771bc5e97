package syncer

import (
	"context"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/job"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// toggleJob is the server half of an optimistic toggle. Finalize reconciles
// the ledger once the executor is done with the job, whatever the outcome.
type toggleJob struct {
	*job.Tracked
	s       *Syncer
	imageID int64
	userID  int64
	prev    bool
	epoch   uint64
	coll    *types.Collection
}

// MaxAttempts keeps bookmark mutations single-shot: a failure rolls back
// instead of being replayed against the server.
func (j *toggleJob) MaxAttempts() int { return 1 }

func (j *toggleJob) Finalize(err error) {
	j.s.resolveToggle(j, err)
	j.Tracked.Finalize(err)
}

// BeginToggle flips the bookmark of imageID immediately and schedules the
// server mutation. The returned job resolves once the flip is committed or
// rolled back. While a toggle of the same id is unresolved further toggles
// fail with errs.ErrMutationInFlight and issue no network call.
func (s *Syncer) BeginToggle(ctx context.Context, imageID int64) (*job.Tracked, error) {
	if err := types.ValidateImageID(imageID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, errs.ErrUnauthenticated
	}
	st, seeded := s.ledger[imageID]
	if st.IsLoading {
		s.mu.Unlock()
		togglesTotal.WithLabelValues("rejected").Inc()
		return nil, errs.ErrMutationInFlight
	}
	prev := st.IsBookmarked
	if !seeded {
		prev = s.bookmarkedInViewsLocked(imageID)
	}
	s.ledger[imageID] = BookmarkStatus{IsBookmarked: !prev, IsLoading: true}
	tj := &toggleJob{s: s, imageID: imageID, userID: s.user.ID, prev: prev, epoch: s.epoch}
	s.mu.Unlock()
	s.publish(events.Event{Kind: events.BookmarkChanged, ImageID: imageID})

	tj.Tracked = job.New(func(ctx context.Context) error {
		var err error
		if tj.prev {
			tj.coll, err = s.backend.RemoveFromCollection(ctx, tj.userID, tj.imageID)
		} else {
			tj.coll, err = s.backend.AddToCollection(ctx, tj.userID, tj.imageID)
		}
		return err
	})

	if err := s.exec.Submit(context.WithoutCancel(ctx), job.ImageKey(imageID), tj); err != nil {
		tj.Finalize(err)
		return nil, err
	}
	return tj.Tracked, nil
}

// ToggleBookmark is BeginToggle followed by waiting for the outcome. The
// returned error is the server error that caused a rollback, if any.
func (s *Syncer) ToggleBookmark(ctx context.Context, imageID int64) error {
	t, err := s.BeginToggle(ctx, imageID)
	if err != nil {
		return err
	}
	return t.Wait(ctx)
}

func (s *Syncer) resolveToggle(j *toggleJob, err error) {
	s.mu.Lock()
	if j.epoch != s.epoch {
		s.mu.Unlock()
		staleDiscardsTotal.WithLabelValues("bookmark", "identity").Inc()
		return
	}
	if err != nil {
		s.ledger[j.imageID] = BookmarkStatus{IsBookmarked: j.prev, Err: err}
		s.mu.Unlock()
		togglesTotal.WithLabelValues("rolled_back").Inc()
		s.log.Warn().Err(err).Int64("image_id", j.imageID).Msg("bookmark toggle rolled back")
		s.publish(events.Event{Kind: events.BookmarkChanged, ImageID: j.imageID})
		return
	}

	s.ledger[j.imageID] = BookmarkStatus{IsBookmarked: !j.prev}
	coll := s.views[Collection]
	if j.prev {
		coll.Items = removeImage(coll.Items, j.imageID)
	} else if img, ok := s.findImageLocked(j.imageID, j.coll); ok {
		img.IsBookmarked = true
		coll.Items = mergeUnique([]types.Image{img}, coll.Items)
	}
	s.mu.Unlock()

	togglesTotal.WithLabelValues("committed").Inc()
	s.invalidateUserPages(context.Background(), j.userID)
	s.publish(events.Event{Kind: events.BookmarkChanged, ImageID: j.imageID})
	s.publish(events.Event{Kind: events.ViewChanged, View: string(Collection)})
}

// invalidateUserPages drops the cached page-1 entries whose bookmark
// annotations or membership depend on userID.
func (s *Syncer) invalidateUserPages(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	for _, v := range Views {
		resource, params := cacheTarget(v, userID)
		s.cache.Invalidate(ctx, resource, params)
	}
}

// bookmarkedInViewsLocked derives the bookmark state of an unseeded id.
// Requires s.mu.
func (s *Syncer) bookmarkedInViewsLocked(id int64) bool {
	for _, img := range s.views[Collection].Items {
		if img.ID == id {
			return true
		}
	}
	for _, v := range []View{Feed, History} {
		for _, img := range s.views[v].Items {
			if img.ID == id {
				return img.IsBookmarked
			}
		}
	}
	return false
}

// findImageLocked looks id up in the local views, then in the collection the
// server returned. Requires s.mu.
func (s *Syncer) findImageLocked(id int64, server *types.Collection) (types.Image, bool) {
	for _, v := range []View{Feed, History} {
		for _, img := range s.views[v].Items {
			if img.ID == id {
				return img, true
			}
		}
	}
	if server != nil {
		for _, img := range server.Images {
			if img.ID == id {
				return img, true
			}
		}
	}
	return types.Image{}, false
}

// InsertNewImage records a freshly saved image: it is prepended to the feed
// and, when owned by the current user, to the history. Cached first pages are
// dropped so a reload does not hide the new image.
func (s *Syncer) InsertNewImage(ctx context.Context, img types.Image) error {
	if err := types.ValidateImageID(img.ID); err != nil {
		return err
	}
	s.mu.Lock()
	uid := s.userIDLocked()
	changed := []View{}
	feed := s.views[Feed]
	if !containsImage(feed.Items, img.ID) {
		feed.Items = append([]types.Image{img}, feed.Items...)
		changed = append(changed, Feed)
	}
	if uid != 0 && img.UserID == uid {
		hist := s.views[History]
		if !containsImage(hist.Items, img.ID) {
			hist.Items = append([]types.Image{img}, hist.Items...)
			changed = append(changed, History)
		}
		if _, ok := s.ledger[img.ID]; !ok {
			s.ledger[img.ID] = BookmarkStatus{IsBookmarked: img.IsBookmarked}
		}
	}
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.InvalidateResource(ctx, ResourceImages)
		if uid != 0 {
			resource, params := cacheTarget(History, uid)
			s.cache.Invalidate(ctx, resource, params)
		}
	}
	for _, v := range changed {
		s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
	}
	return nil
}

// RemoveFromCollectionView drops imageID from the collection view only. The
// ledger is left to the toggle that caused it.
func (s *Syncer) RemoveFromCollectionView(imageID int64) {
	s.mu.Lock()
	coll := s.views[Collection]
	before := len(coll.Items)
	coll.Items = removeImage(coll.Items, imageID)
	removed := len(coll.Items) != before
	s.mu.Unlock()
	if removed {
		s.publish(events.Event{Kind: events.ViewChanged, View: string(Collection)})
	}
}

func containsImage(items []types.Image, id int64) bool {
	for _, img := range items {
		if img.ID == id {
			return true
		}
	}
	return false
}

func removeImage(items []types.Image, id int64) []types.Image {
	out := items[:0:0]
	for _, img := range items {
		if img.ID != id {
			out = append(out, img)
		}
	}
	return out
}
