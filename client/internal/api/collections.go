package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// GetCollection retrieves the bookmark collection of userID. Older backends
// answer with a JSON array of collections; the first element is used and an
// empty array yields an empty collection.
func GetCollection(ctx context.Context, httpClient HTTPClient, baseURL string, userID int64) (*types.Collection, error) {
	if err := types.ValidateUserID(userID); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/collections/%d", baseURL, userID)
	var raw json.RawMessage
	if err := doJSON(ctx, httpClient, http.MethodGet, u, "get collection", nil, &raw); err != nil {
		return nil, err
	}
	return decodeCollection(raw, userID)
}

// AddToCollection bookmarks imageID for userID and returns the updated collection.
func AddToCollection(ctx context.Context, httpClient HTTPClient, baseURL string, userID, imageID int64) (*types.Collection, error) {
	if err := types.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := types.ValidateImageID(imageID); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/collections/%d", baseURL, userID)
	var raw json.RawMessage
	if err := doJSON(ctx, httpClient, http.MethodPost, u, "add to collection", types.AddToCollectionRequest{ImageID: imageID}, &raw); err != nil {
		return nil, err
	}
	return decodeCollection(raw, userID)
}

// RemoveFromCollection removes imageID from userID's bookmarks.
func RemoveFromCollection(ctx context.Context, httpClient HTTPClient, baseURL string, userID, imageID int64) (*types.Collection, error) {
	if err := types.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := types.ValidateImageID(imageID); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/collections/%d/images/%d", baseURL, userID, imageID)
	var raw json.RawMessage
	if err := doJSON(ctx, httpClient, http.MethodDelete, u, "remove from collection", nil, &raw); err != nil {
		return nil, err
	}
	return decodeCollection(raw, userID)
}

func decodeCollection(raw json.RawMessage, userID int64) (*types.Collection, error) {
	var c types.Collection
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		var list []types.Collection
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode collection list: %v: %w", err, errs.ErrMalformedResponse)
		}
		if len(list) > 0 {
			c = list[0]
		}
	default:
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, fmt.Errorf("decode collection: %v: %w", err, errs.ErrMalformedResponse)
		}
	}
	if err := types.NormalizeCollection(&c, userID); err != nil {
		return nil, err
	}
	return &c, nil
}
