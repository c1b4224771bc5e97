package syncer

import (
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// ViewSnapshot is the persisted form of a view. Loading and error state are
// never persisted.
type ViewSnapshot struct {
	Items       []types.Image `json:"items"`
	CurrentPage int           `json:"currentPage"`
	HasMore     bool          `json:"hasMore"`
}

// Snapshot captures v for persistence. ok is false for a view that was never
// loaded.
func (s *Syncer) Snapshot(v View) (ViewSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, found := s.views[v]
	if !found || !vs.Initialized {
		return ViewSnapshot{}, false
	}
	return ViewSnapshot{
		Items:       append([]types.Image(nil), vs.Items...),
		CurrentPage: vs.CurrentPage,
		HasMore:     vs.HasMore,
	}, true
}

// RestoreView installs a persisted snapshot into v. It is ignored when the
// view was already loaded or is being loaded, since live data wins over
// persisted data.
func (s *Syncer) RestoreView(v View, snap ViewSnapshot) bool {
	s.mu.Lock()
	vs, found := s.views[v]
	if !found || vs.Initialized || vs.pending > 0 {
		s.mu.Unlock()
		return false
	}
	if v != Feed && s.user == nil {
		s.mu.Unlock()
		return false
	}
	vs.Items = mergeUnique(nil, snap.Items)
	vs.CurrentPage = snap.CurrentPage
	if vs.CurrentPage < 1 && len(vs.Items) > 0 {
		vs.CurrentPage = 1
	}
	vs.HasMore = snap.HasMore
	vs.Initialized = true
	s.seedLocked(v, vs.Items)
	s.mu.Unlock()

	s.publish(events.Event{Kind: events.ViewChanged, View: string(v)})
	return true
}
