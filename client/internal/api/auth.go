package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// VerifySession asks the backend whether the bearer token (attached by the
// transport) still identifies a user.
func VerifySession(ctx context.Context, httpClient HTTPClient, baseURL string) (*types.VerifyResponse, error) {
	u := fmt.Sprintf("%s/auth/verify", baseURL)
	var vr types.VerifyResponse
	if err := doJSON(ctx, httpClient, http.MethodGet, u, "verify session", nil, &vr); err != nil {
		return nil, err
	}
	if vr.Valid && vr.User == nil {
		vr.Valid = false
	}
	return &vr, nil
}
