package session

import (
	"time"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/syncer"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

const (
	// TokenKey holds the bearer token in the Persistent Store.
	TokenKey = "auth_token"
	// SnapshotKey holds the JSON snapshot in the Persistent Store.
	SnapshotKey = "imagesync_snapshot"
	// SnapshotVersion is bumped whenever the snapshot layout changes.
	SnapshotVersion = 1
)

// Snapshot is the persisted client state. User scoped views carry their
// owner so a snapshot can never hand one user's data to another.
type Snapshot struct {
	Version    int                  `json:"version"`
	SessionID  string               `json:"sessionId"`
	SavedAt    time.Time            `json:"savedAt"`
	Auth       *AuthSnapshot        `json:"auth,omitempty"`
	Feed       *syncer.ViewSnapshot `json:"feed,omitempty"`
	History    *ScopedView          `json:"history,omitempty"`
	Collection *ScopedView          `json:"collection,omitempty"`
}

// AuthSnapshot is the persisted identity.
type AuthSnapshot struct {
	User  types.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

// ScopedView is a view snapshot owned by one user.
type ScopedView struct {
	OwnerID int64 `json:"ownerId"`
	syncer.ViewSnapshot
}

// ownedBy reports whether sv may be restored for userID.
func (sv *ScopedView) ownedBy(userID int64) bool {
	return sv != nil && userID > 0 && sv.OwnerID == userID
}

// authOnly strips every view, keeping the identity.
func (s Snapshot) authOnly() Snapshot {
	s.Feed, s.History, s.Collection = nil, nil, nil
	return s
}
