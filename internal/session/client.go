package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docguard/internal/domain"
)

// LoginResult es el resultado de un intento de login: credenciales directas
// o una verificación 2FA pendiente, nunca ambas.
type LoginResult struct {
	User              domain.User
	Tokens            *TokenPair
	RequiresTwoFactor bool
	SessionID         string
}

// APIClient define las llamadas al endpoint remoto de autenticación.
type APIClient interface {
	Login(ctx context.Context, identifier, password string) (LoginResult, error)
	VerifyTwoFactor(ctx context.Context, sessionID, code string) (domain.User, TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// HTTPClient implementa APIClient contra la API REST del portal.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient crea un cliente listo contra baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// wireTokens es la forma en el cable del par de tokens.
type wireTokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (w wireTokens) toPair() TokenPair {
	return TokenPair{
		Access:  Token{Value: w.AccessToken, ExpiresAt: w.AccessExpiresAt},
		Refresh: Token{Value: w.RefreshToken, ExpiresAt: w.RefreshExpiresAt},
	}
}

// Login realiza POST /auth/login. El identificador puede ser email o usuario.
func (c *HTTPClient) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	body := map[string]string{"password": password}
	if strings.Contains(identifier, "@") {
		body["email"] = identifier
	} else {
		body["username"] = identifier
	}

	var resp struct {
		User              domain.User `json:"user"`
		Tokens            *wireTokens `json:"tokens"`
		RequiresTwoFactor bool        `json:"requires_two_factor"`
		SessionID         string      `json:"session_id"`
	}
	if err := c.post(ctx, "/auth/login", "", body, &resp); err != nil {
		return LoginResult{}, err
	}

	result := LoginResult{
		User:              resp.User,
		RequiresTwoFactor: resp.RequiresTwoFactor,
		SessionID:         resp.SessionID,
	}
	if resp.Tokens != nil {
		pair := resp.Tokens.toPair()
		result.Tokens = &pair
	}
	return result, nil
}

// VerifyTwoFactor realiza POST /auth/verify-2fa.
func (c *HTTPClient) VerifyTwoFactor(ctx context.Context, sessionID, code string) (domain.User, TokenPair, error) {
	body := map[string]string{"session_id": sessionID, "code": code}
	var resp struct {
		User   domain.User `json:"user"`
		Tokens wireTokens  `json:"tokens"`
	}
	if err := c.post(ctx, "/auth/verify-2fa", "", body, &resp); err != nil {
		return domain.User{}, TokenPair{}, err
	}
	return resp.User, resp.Tokens.toPair(), nil
}

// Refresh realiza POST /auth/refresh.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var resp struct {
		Tokens wireTokens `json:"tokens"`
	}
	if err := c.post(ctx, "/auth/refresh", "", body, &resp); err != nil {
		return TokenPair{}, err
	}
	return resp.Tokens.toPair(), nil
}

// Logout realiza POST /auth/logout con el token de acceso vigente.
func (c *HTTPClient) Logout(ctx context.Context, accessToken, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.post(ctx, "/auth/logout", accessToken, body, nil)
}

// ListDocuments realiza GET /documents con el token de acceso vigente.
func (c *HTTPClient) ListDocuments(ctx context.Context, accessToken string) ([]domain.Document, error) {
	var resp struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := c.get(ctx, "/documents", accessToken, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

func (c *HTTPClient) get(ctx context.Context, path, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	return c.decodeResponse(resp, out)
}

func (c *HTTPClient) post(ctx context.Context, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	return c.decodeResponse(resp, out)
}

func (c *HTTPClient) decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrAuthentication, readErrorMessage(resp.Body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &NetworkError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Error == "" {
		return "request rejected"
	}
	return body.Error
}
