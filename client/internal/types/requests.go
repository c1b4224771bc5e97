package types

// ------------------------------
// Request Types
// ------------------------------

// GenerateForm is the user input of the image generator form.
type GenerateForm struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	Color          string  `json:"color,omitempty"`
	Resolution     string  `json:"resolution"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
}

// SaveImageRequest persists a generated image to the user's history.
type SaveImageRequest struct {
	UserID         int64   `json:"userId"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	Color          string  `json:"color,omitempty"`
	Resolution     string  `json:"resolution"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
	ImageURL       string  `json:"imageUrl"`
}

// AddToCollectionRequest bookmarks an image.
type AddToCollectionRequest struct {
	ImageID int64 `json:"imageId"`
}

// ListImagesParams selects a page of the global feed or of a user's images.
type ListImagesParams struct {
	UserID int64
	Page   int
	Limit  int
}
