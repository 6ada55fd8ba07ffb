package client

import (
	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
)

// Credentials is the ephemeral login input. It is passed to Login and must
// not be retained or persisted by any component.
type Credentials struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

// AuthResult is the backend's response to a successful login, registration
// login, token refresh, or OAuth code exchange.
type AuthResult struct {
	Pair session.TokenPair
	User auth.Identity
}

// TwoFactorEnrollment is returned when two-factor auth is enabled. The secret
// and backup codes are shown to the user once and not stored locally.
type TwoFactorEnrollment struct {
	Secret      string   `json:"secret"`
	QRCode      string   `json:"qr_code"`
	BackupCodes []string `json:"backup_codes"`
}

// authResponse is the wire shape of the backend's auth payload.
type authResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	User         auth.Identity `json:"user"`
}

// refreshResponse is the wire shape of POST /api/v1/auth/refresh. The backend
// rotates only the access token; the refresh token is unchanged.
type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// errorResponse is the backend's error body: {"error": CODE, "message": ...}.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// oauthURLResponse is the wire shape of GET /api/v1/auth/oauth/{provider}.
type oauthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}
