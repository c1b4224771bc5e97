package client

import (
	"context"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/api"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// backend binds the Resource Client endpoints to one HTTP client and base URL.
type backend struct {
	hc   api.HTTPClient
	base string
}

func (b backend) ListImages(ctx context.Context, p types.ListImagesParams) (*types.Page, error) {
	return api.ListImages(ctx, b.hc, b.base, p)
}

func (b backend) ListUserImages(ctx context.Context, p types.ListImagesParams) (*types.Page, error) {
	return api.ListUserImages(ctx, b.hc, b.base, p)
}

func (b backend) GetCollection(ctx context.Context, userID int64) (*types.Collection, error) {
	return api.GetCollection(ctx, b.hc, b.base, userID)
}

func (b backend) AddToCollection(ctx context.Context, userID, imageID int64) (*types.Collection, error) {
	return api.AddToCollection(ctx, b.hc, b.base, userID, imageID)
}

func (b backend) RemoveFromCollection(ctx context.Context, userID, imageID int64) (*types.Collection, error) {
	return api.RemoveFromCollection(ctx, b.hc, b.base, userID, imageID)
}

func (b backend) VerifySession(ctx context.Context) (*types.VerifyResponse, error) {
	return api.VerifySession(ctx, b.hc, b.base)
}

func (b backend) SaveImage(ctx context.Context, req types.SaveImageRequest) (*types.Image, error) {
	return api.SaveImage(ctx, b.hc, b.base, req)
}
