package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
)

// HTTPClient interface for dependency injection
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response body is kept in HTTPError.
const maxErrorBody = 4 << 10

// doJSON sends one request and decodes a 2xx JSON body into out (when non-nil).
// Failures are normalized: transport → NetworkError, non-2xx → HTTPError,
// undecodable body → ErrMalformedResponse. It never retries.
func doJSON(ctx context.Context, httpClient HTTPClient, method, url, op string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := httpClient.Do(req)
	if err != nil {
		return errs.NewNetworkError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errs.NewHTTPError(resp.StatusCode, string(b), op)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %v: %w", op, err, errs.ErrMalformedResponse)
	}
	return nil
}
