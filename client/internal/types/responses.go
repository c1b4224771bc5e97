package types

// ------------------------------
// Response Types
// ------------------------------

// VerifyResponse is the body of GET /auth/verify.
type VerifyResponse struct {
	Valid bool  `json:"valid"`
	User  *User `json:"user,omitempty"`
}

// LoginPayload is what the OAuth callback hands to the client: the
// authenticated user and an optional bearer token.
type LoginPayload struct {
	User  User   `json:"user"`
	Token string `json:"token,omitempty"`
}
