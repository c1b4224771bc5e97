package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// ListImages fetches one page of the global feed. A non-zero UserID asks the
// backend to annotate each image with that user's bookmark flag.
func ListImages(ctx context.Context, httpClient HTTPClient, baseURL string, p types.ListImagesParams) (*types.Page, error) {
	if err := types.ValidatePage(p.Page); err != nil {
		return nil, err
	}
	q := url.Values{}
	if p.UserID > 0 {
		q.Set("userId", strconv.FormatInt(p.UserID, 10))
	}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("limit", strconv.Itoa(p.Limit))
	u := fmt.Sprintf("%s/images?%s", baseURL, q.Encode())

	var page types.Page
	if err := doJSON(ctx, httpClient, http.MethodGet, u, "list images", nil, &page); err != nil {
		return nil, err
	}
	if err := types.NormalizePage(&page, p.Page, p.Limit); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListUserImages fetches one page of images owned by p.UserID.
func ListUserImages(ctx context.Context, httpClient HTTPClient, baseURL string, p types.ListImagesParams) (*types.Page, error) {
	if err := types.ValidateUserID(p.UserID); err != nil {
		return nil, err
	}
	if err := types.ValidatePage(p.Page); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("limit", strconv.Itoa(p.Limit))
	u := fmt.Sprintf("%s/images/user/%d?%s", baseURL, p.UserID, q.Encode())

	var page types.Page
	if err := doJSON(ctx, httpClient, http.MethodGet, u, "list user images", nil, &page); err != nil {
		return nil, err
	}
	if err := types.NormalizePage(&page, p.Page, p.Limit); err != nil {
		return nil, err
	}
	return &page, nil
}

// SaveImage stores a generated image in the owner's history.
func SaveImage(ctx context.Context, httpClient HTTPClient, baseURL string, req types.SaveImageRequest) (*types.Image, error) {
	if err := types.ValidateUserID(req.UserID); err != nil {
		return nil, err
	}
	if req.ImageURL == "" {
		return nil, errs.NewValidationError("imageUrl", "required")
	}
	u := fmt.Sprintf("%s/images", baseURL)
	var img types.Image
	if err := doJSON(ctx, httpClient, http.MethodPost, u, "save image", req, &img); err != nil {
		return nil, err
	}
	if img.ID <= 0 {
		return nil, fmt.Errorf("save image: response has no id: %w", errs.ErrMalformedResponse)
	}
	return &img, nil
}
