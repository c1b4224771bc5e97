package client

import (
	"github.com/cristhianbenitez/ai-image-generator/client/internal/events"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/syncer"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// Public type aliases so SDK consumers can import only the client package.
type (
	// Domain entities
	Image      = types.Image
	User       = types.User
	Owner      = types.Owner
	Page       = types.Page
	Collection = types.Collection

	// Inputs
	GenerateForm = types.GenerateForm
	LoginPayload = types.LoginPayload

	// State
	View           = syncer.View
	ViewState      = syncer.ViewState
	BookmarkStatus = syncer.BookmarkStatus

	Event     = events.Event
	EventKind = events.Kind

	// Store is the durable key/value tier; see WithStore.
	Store = store.Store
)

const (
	FeedView       = syncer.Feed
	HistoryView    = syncer.History
	CollectionView = syncer.Collection
)

const (
	ViewChanged       = events.ViewChanged
	BookmarkChanged   = events.BookmarkChanged
	IdentityChanged   = events.IdentityChanged
	GenerationChanged = events.GenerationChanged
)

// ParseView maps "feed", "history" or "collection" to a View.
func ParseView(name string) (View, error) { return syncer.ParseView(name) }
