package client

import (
	"net/http"

	"github.com/cristhianbenitez/ai-image-generator/client/internal/session"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/store"
)

// tokenTransport attaches the persisted bearer token, if any, to every
// request. The token is read per request so login and logout take effect
// without rebuilding the HTTP client.
type tokenTransport struct {
	base  http.RoundTripper
	store store.Store
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}
	tok, err := t.store.Get(req.Context(), session.TokenKey)
	if err != nil || len(tok) == 0 {
		return t.base.RoundTrip(req)
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+string(tok))
	return t.base.RoundTrip(cloned)
}
