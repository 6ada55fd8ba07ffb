// Package client implements the typed HTTP wrapper over the ScrDesk auth
// backend. It attaches the current access token from the session store to
// outgoing requests and translates non-2xx responses into typed errors, so
// callers never touch headers or status codes directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrdeskctl/internal/session"
	"scrdeskctl/pkg/auth"
	"scrdeskctl/pkg/logging"
)

// DefaultTimeout bounds each backend call.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. https://console.scrdesk.example.com.
	BaseURL string

	// Store supplies the access token attached to requests. The client only
	// reads from it; all writes go through the state broadcaster.
	Store session.Store

	// HTTPClient overrides the default HTTP client. Mainly for tests.
	HTTPClient *http.Client
}

// Client is a typed wrapper over the /api/v1/auth endpoints.
type Client struct {
	baseURL    string
	store      session.Store
	httpClient *http.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		store:      cfg.Store,
		httpClient: httpClient,
	}, nil
}

// Login authenticates with email/password credentials. A missing or wrong
// two-factor code yields KindTwoFactorRequired; the caller re-prompts and
// retries with Credentials.TwoFactorCode set.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", creds, &resp)
	if err != nil {
		return nil, classifyLoginError(err)
	}
	return newAuthResult(resp), nil
}

// Register creates a new account. Registration never returns a session; on
// success the caller immediately logs in with the same credentials.
func (c *Client) Register(ctx context.Context, email, password, fullName string, role auth.Role) error {
	body := struct {
		Email    string    `json:"email"`
		Password string    `json:"password"`
		FullName string    `json:"full_name"`
		Role     auth.Role `json:"role"`
	}{email, password, fullName, role}

	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", body, nil)
	if err != nil {
		return classifyRegisterError(err)
	}
	return nil
}

// Logout notifies the backend that the session should be invalidated. It is
// best-effort: callers clear local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// CurrentUser resolves the identity behind the attached bearer token.
func (c *Client) CurrentUser(ctx context.Context) (*auth.Identity, error) {
	var user auth.Identity
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh trades the stored refresh token for a new access token. The backend
// does not rotate the refresh token, so the returned pair carries the old one.
func (c *Client) Refresh(ctx context.Context) (*AuthResult, error) {
	pair, ok, err := c.store.Get()
	if err != nil {
		return nil, &Error{Kind: KindUnauthenticated, Message: "no stored session", cause: err}
	}
	if !ok || pair.RefreshToken == "" {
		return nil, &Error{Kind: KindUnauthenticated, Message: "no refresh token available"}
	}

	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{pair.RefreshToken}

	var resp refreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", body, &resp); err != nil {
		return nil, err
	}

	return &AuthResult{
		Pair: session.TokenPair{
			AccessToken:  resp.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
			IssuedAt:     time.Now(),
		},
	}, nil
}

// InitiateOAuth asks the backend for an authorization URL for the provider.
// The returned state value is the anti-forgery nonce to persist before
// navigating away.
func (c *Client) InitiateOAuth(ctx context.Context, provider auth.Provider) (authURL, state string, err error) {
	var resp oauthURLResponse
	path := "/api/v1/auth/oauth/" + url.PathEscape(string(provider))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", "", classifyInitiateError(err)
	}
	if resp.URL == "" {
		return "", "", &Error{Kind: KindProviderUnavailable, Message: "backend returned no authorization URL"}
	}
	return resp.URL, resp.State, nil
}

// ExchangeOAuthCode trades the provider's authorization code for a token pair
// via the backend callback endpoint.
func (c *Client) ExchangeOAuthCode(ctx context.Context, provider auth.Provider, code, state string) (*AuthResult, error) {
	path := fmt.Sprintf("/api/v1/auth/oauth/%s/callback?code=%s&state=%s",
		url.PathEscape(string(provider)), url.QueryEscape(code), url.QueryEscape(state))

	var resp authResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if IsNetwork(err) {
			return nil, err
		}
		var ce *Error
		if asClientError(err, &ce) {
			return nil, &Error{Kind: KindOAuthExchangeFailed, Message: ce.Message, StatusCode: ce.StatusCode, cause: ce.cause}
		}
		return nil, &Error{Kind: KindOAuthExchangeFailed, cause: err}
	}
	return newAuthResult(resp), nil
}

// ChangePassword updates the current user's password. The backend revokes all
// refresh tokens afterwards, so callers should expect re-authentication.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}{oldPassword, newPassword}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/password/change", body, nil)
}

// RequestPasswordReset asks the backend to send a reset link. The backend
// answers success regardless of whether the email exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{email}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/password/reset", body, nil)
}

// ConfirmPasswordReset completes a password reset with the emailed token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	body := struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}{token, newPassword}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/password/reset/confirm", body, nil)
}

// Enable2FA begins two-factor enrollment for the current user.
func (c *Client) Enable2FA(ctx context.Context) (*TwoFactorEnrollment, error) {
	var resp TwoFactorEnrollment
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/2fa/enable", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify2FA confirms enrollment with a TOTP code, activating two-factor auth.
func (c *Client) Verify2FA(ctx context.Context, code string) error {
	body := struct {
		Code string `json:"code"`
	}{code}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/2fa/verify", body, nil)
}

// Disable2FA turns off two-factor auth after verifying a TOTP code.
func (c *Client) Disable2FA(ctx context.Context, code string) error {
	body := struct {
		Code string `json:"code"`
	}{code}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/2fa/disable", body, nil)
}

func newAuthResult(resp authResponse) *AuthResult {
	return &AuthResult{
		Pair: session.TokenPair{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
			IssuedAt:     time.Now(),
		},
		User: resp.User,
	}
}

// do performs one backend call. A bearer token is attached whenever the store
// holds one; callers never manage the header themselves.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if pair, ok, err := c.store.Get(); err == nil && ok && pair.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Debug("AuthClient", "request %s %s failed: %v", method, path, err)
		return &Error{Kind: KindNetwork, Message: "backend unreachable", cause: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindNetwork, Message: "malformed response body", cause: err}
		}
		return nil
	}

	apiErr := c.decodeError(resp)
	logging.Debug("AuthClient", "request %s %s rejected: status=%d kind=%s request_id=%s",
		method, path, resp.StatusCode, apiErr.Kind, requestID)
	return apiErr
}

// decodeError maps a non-2xx response onto a typed Error. A response without
// a recognizable JSON error body is treated as a transport failure.
func (c *Client) decodeError(resp *http.Response) *Error {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || (body.Error == "" && body.Message == "") {
		return &Error{
			Kind:       KindNetwork,
			Message:    fmt.Sprintf("unrecognized response (status %d)", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	message := body.Message
	if message == "" {
		message = body.Error
	}

	kind := KindServer
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = KindUnauthenticated
	case resp.StatusCode == http.StatusBadRequest:
		kind = KindValidation
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable:
		kind = KindProviderUnavailable
	}

	return &Error{Kind: kind, Message: message, StatusCode: resp.StatusCode}
}

// classifyLoginError refines the generic 401 mapping for the login operation.
// The backend folds credential and two-factor failures into one status, so
// the distinction rides on the message.
func classifyLoginError(err error) error {
	var ce *Error
	if !asClientError(err, &ce) {
		return err
	}
	if ce.Kind != KindUnauthenticated {
		return err
	}

	msg := strings.ToLower(ce.Message)
	if strings.Contains(msg, "2fa") || strings.Contains(msg, "two-factor") || strings.Contains(msg, "two factor") {
		return &Error{Kind: KindTwoFactorRequired, Message: ce.Message, StatusCode: ce.StatusCode}
	}
	return &Error{Kind: KindInvalidCredentials, Message: ce.Message, StatusCode: ce.StatusCode}
}

// classifyRegisterError turns the backend's duplicate-email validation error
// into a registration conflict.
func classifyRegisterError(err error) error {
	var ce *Error
	if !asClientError(err, &ce) {
		return err
	}
	if ce.Kind == KindValidation && strings.Contains(strings.ToLower(ce.Message), "already exists") {
		return &Error{Kind: KindRegistrationConflict, Message: ce.Message, StatusCode: ce.StatusCode}
	}
	return err
}

// classifyInitiateError maps failures of the authorization-URL request onto
// provider availability.
func classifyInitiateError(err error) error {
	var ce *Error
	if !asClientError(err, &ce) {
		return err
	}
	if ce.Kind == KindServer {
		return &Error{Kind: KindProviderUnavailable, Message: ce.Message, StatusCode: ce.StatusCode}
	}
	return err
}

func asClientError(err error, target **Error) bool {
	ce, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = ce
	return true
}
