// Package generator calls the hosted text-to-image API and returns the
// result as an inline data URI ready to be saved with the image record.
package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

const (
	// DefaultURL is the SSD-1B endpoint.
	DefaultURL = "https://api.segmind.com/v1/ssd-1b"
	// MaxImageBytes caps generated payloads.
	MaxImageBytes = 50 << 20

	defaultSide = 1024
)

// Config configures a Provider.
type Config struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	MaxBytes int
}

// Provider generates images over HTTP.
type Provider struct {
	client   *resty.Client
	url      string
	maxBytes int
}

// NewProvider builds a Provider. An empty URL falls back to DefaultURL.
func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = MaxImageBytes
	}
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetHeader("x-api-key", cfg.APIKey)
	}
	return &Provider{client: c, url: cfg.URL, maxBytes: cfg.MaxBytes}
}

type generateRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Seed           int64   `json:"seed"`
	Width          int     `json:"img_width"`
	Height         int     `json:"img_height"`
}

// dimensions parses "WxH"; anything else yields the square default.
func dimensions(resolution string) (int, int) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(resolution)), "x")
	if !ok {
		return defaultSide, defaultSide
	}
	wi, err1 := strconv.Atoi(strings.TrimSpace(w))
	hi, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || wi <= 0 || hi <= 0 {
		return defaultSide, defaultSide
	}
	return wi, hi
}

// Generate renders form and returns a data URI of the image.
func (p *Provider) Generate(ctx context.Context, form types.GenerateForm) (string, error) {
	if err := types.ValidateForm(form); err != nil {
		return "", err
	}
	w, h := dimensions(form.Resolution)
	body := generateRequest{
		Prompt:         form.Prompt,
		NegativePrompt: form.NegativePrompt,
		GuidanceScale:  form.Guidance,
		Seed:           form.Seed,
		Width:          w,
		Height:         h,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(&body).
		Post(p.url)
	if err != nil {
		return "", errs.NewNetworkError("generate image", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", errs.NewHTTPError(resp.StatusCode(), truncate(resp.String(), 4096), "generate image")
	}

	data := resp.Body()
	if len(data) == 0 {
		return "", fmt.Errorf("generate image: empty body: %w", errs.ErrMalformedResponse)
	}
	if len(data) > p.maxBytes {
		return "", errs.NewValidationError("image", fmt.Sprintf("size %.2fMB exceeds %dMB limit",
			float64(len(data))/(1<<20), p.maxBytes>>20))
	}
	return "data:" + mimeOf(resp.Header().Get("Content-Type"), data) + ";base64," +
		base64.StdEncoding.EncodeToString(data), nil
}

func mimeOf(contentType string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	return strings.SplitN(http.DetectContentType(data), ";", 2)[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
