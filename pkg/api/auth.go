// Package api defines the JSON request and response types of the HTTP API.
package api

// LoginRequest carries the admin password.
type LoginRequest struct {
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // JWT access token
	RefreshToken string `json:"refresh_token"` // opaque refresh token
	ExpiresIn    int64  `json:"expires_in"`    // access token lifetime in seconds
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
