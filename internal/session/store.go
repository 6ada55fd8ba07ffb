// Package session provides durable client-side storage for the ScrDesk token
// pair and for the pending OAuth flow state that must survive the browser
// hand-off. It performs no validation of token contents; it is pure storage.
package session

import (
	"time"

	"golang.org/x/oauth2"

	"scrdeskctl/pkg/auth"
)

// expiryBuffer is the margin applied when checking token validity. It absorbs
// clock skew and the latency of the request the token is about to be used on.
const expiryBuffer = 60 * time.Second

// TokenPair is the access/refresh token pair issued by the backend. The pair
// is always written and read as a unit; a reader never observes an access
// token from one issuance alongside a refresh token from another.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresIn is the access token lifetime in seconds from issuance.
	ExpiresIn int64 `json:"expires_in"`

	// IssuedAt is when the pair was stored. Combined with ExpiresIn it
	// yields the absolute expiry.
	IssuedAt time.Time `json:"issued_at"`
}

// Expiry returns the absolute expiry time of the access token, or the zero
// time if no lifetime was reported.
func (t TokenPair) Expiry() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Valid reports whether the access token is present and not within the expiry
// buffer of its lifetime. Tokens without a reported lifetime are considered
// valid until the backend rejects them.
func (t TokenPair) Valid() bool {
	if t.AccessToken == "" {
		return false
	}
	expiry := t.Expiry()
	if expiry.IsZero() {
		return true
	}
	return time.Now().Add(expiryBuffer).Before(expiry)
}

// Token converts the pair to the canonical oauth2 token representation.
func (t TokenPair) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       t.Expiry(),
	}
}

// PendingFlow is the anti-forgery state persisted before navigating to an
// external OAuth provider. At most one flow is pending at a time; starting a
// new flow overwrites the previous nonce.
type PendingFlow struct {
	Provider auth.Provider `json:"provider"`

	// Nonce is the single-use state value issued by the backend before the
	// redirect. The callback's state parameter must match it exactly.
	Nonce string `json:"nonce"`

	RequestedAt time.Time `json:"requested_at"`
}

// Store is the durable session storage consulted by the auth client, the
// OAuth flow controller, and the state broadcaster. Implementations must make
// Put atomic with respect to Get: both tokens update together or not at all.
type Store interface {
	// Put overwrites any existing token pair.
	Put(pair TokenPair) error

	// Get returns the stored pair, or ok=false if none is stored.
	Get() (pair TokenPair, ok bool, err error)

	// Clear removes all persisted token material, including any pending
	// OAuth flow state.
	Clear() error

	// PutPending overwrites the pending OAuth flow state.
	PutPending(flow PendingFlow) error

	// TakePending returns the pending flow and removes it, making the nonce
	// single-use. ok=false means no flow is pending.
	TakePending() (flow PendingFlow, ok bool, err error)
}
