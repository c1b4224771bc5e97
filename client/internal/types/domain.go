package types

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// Owner is the subset of the owning user embedded in image payloads.
type Owner struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Image is a server-owned generated image. Clients hold read-only copies.
type Image struct {
	ID             int64     `json:"id"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negativePrompt,omitempty"`
	Color          string    `json:"color,omitempty"`
	Resolution     string    `json:"resolution"`
	Guidance       float64   `json:"guidance"`
	Seed           int64     `json:"seed"`
	ImageURL       string    `json:"imageUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	UserID         int64     `json:"userId"`
	User           *Owner    `json:"user,omitempty"`
	IsBookmarked   bool      `json:"isBookmarked,omitempty"`
}

// User is the session principal.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Collection is the bookmark set of a user.
type Collection struct {
	ID     int64   `json:"id"`
	UserID int64   `json:"userId"`
	Images []Image `json:"images"`
}

// Pagination mirrors the backend pagination block.
type Pagination struct {
	Total       int  `json:"total"`
	Pages       int  `json:"pages"`
	CurrentPage int  `json:"currentPage"`
	PerPage     int  `json:"perPage"`
	HasMore     bool `json:"hasMore"`
}

// Page is one page of images.
type Page struct {
	Data       []Image    `json:"data"`
	Pagination Pagination `json:"pagination"`
}
