package types

import (
	"fmt"
	"strings"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
)

// MaxPromptLength bounds prompt text accepted by the generator form.
const MaxPromptLength = 2000

// ValidateImageID rejects zero or negative image ids.
func ValidateImageID(id int64) error {
	if id <= 0 {
		return errs.NewValidationError("imageId", "must be a positive id")
	}
	return nil
}

// ValidateUserID rejects zero or negative user ids.
func ValidateUserID(id int64) error {
	if id <= 0 {
		return errs.NewValidationError("userId", "must be a positive id")
	}
	return nil
}

// ValidatePage rejects page numbers below 1.
func ValidatePage(page int) error {
	if page < 1 {
		return errs.NewValidationError("page", "must be >= 1")
	}
	return nil
}

// ValidateForm checks the generator form before any network call.
func ValidateForm(f GenerateForm) error {
	p := strings.TrimSpace(f.Prompt)
	if p == "" {
		return errs.NewValidationError("prompt", "required")
	}
	if len(p) > MaxPromptLength {
		return errs.NewValidationError("prompt", fmt.Sprintf("exceeds %d characters", MaxPromptLength))
	}
	if f.Guidance < 0 {
		return errs.NewValidationError("guidance", "must be >= 0")
	}
	return nil
}

// NormalizePage validates a decoded page against the request that produced it.
// Missing fields are filled from the request; images without a usable id make
// the whole page malformed.
func NormalizePage(p *Page, requestedPage, limit int) error {
	if p == nil {
		return fmt.Errorf("empty page body: %w", errs.ErrMalformedResponse)
	}
	if p.Data == nil {
		p.Data = []Image{}
	}
	for i := range p.Data {
		if p.Data[i].ID <= 0 {
			return fmt.Errorf("image at index %d has no id: %w", i, errs.ErrMalformedResponse)
		}
	}
	if p.Pagination.CurrentPage < 1 {
		p.Pagination.CurrentPage = requestedPage
	}
	if p.Pagination.PerPage < 1 {
		p.Pagination.PerPage = limit
	}
	return nil
}

// NormalizeCollection fills an empty collection for userID and checks ids.
func NormalizeCollection(c *Collection, userID int64) error {
	if c.UserID == 0 {
		c.UserID = userID
	}
	if c.Images == nil {
		c.Images = []Image{}
	}
	for i := range c.Images {
		if c.Images[i].ID <= 0 {
			return fmt.Errorf("collection image at index %d has no id: %w", i, errs.ErrMalformedResponse)
		}
	}
	return nil
}
