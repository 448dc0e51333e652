package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"clubhub/core/auth"
	"clubhub/core/utils"
)

// Client is the auth transport. It normalizes every call into a typed
// result or an *APIError, keeps the default Authorization header in
// lockstep with the token store, and publishes forced-logout events
// when a 401 carries one of the session-invalidation codes.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	bus     *LogoutBus
	logger  *utils.Logger

	mu        sync.Mutex
	authToken string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *utils.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, store TokenStore, bus *LogoutBus, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		bus:     bus,
	}
	for _, opt := range opts {
		opt(c)
	}
	if token, ok := store.Token(); ok {
		c.authToken = token
	}
	return c
}

// LoginResult is the normalized outcome of login and verify calls.
// Either RequireTwoFactor is set with the challenge fields, or Token,
// User and ExpiresIn describe a full session.
type LoginResult struct {
	RequireTwoFactor bool
	TempToken        string
	UserID           int64
	QRCodeURL        string
	ManualEntryKey   string
	IsNewSetup       bool
	SetupReason      string

	Token     string
	User      *auth.UserDTO
	ExpiresIn int
}

type loginWire struct {
	Success          bool          `json:"success"`
	RequireTwoFactor bool          `json:"requireTwoFactor"`
	TempToken        string        `json:"tempToken"`
	UserID           int64         `json:"userId"`
	QRCodeURL        string        `json:"qrCodeUrl"`
	ManualEntryKey   string        `json:"manualEntryKey"`
	IsNewSetup       bool          `json:"isNewSetup"`
	SetupReason      string        `json:"setupReason"`
	Token            string        `json:"token"`
	User             *auth.UserDTO `json:"user"`
	ExpiresIn        int           `json:"expiresIn"`
}

func (c *Client) Login(ctx context.Context, username, password string, opts *auth.LoginOptions) (*LoginResult, error) {
	body := auth.Credentials{Username: username, Password: password, Options: opts}
	var wire loginWire
	if apiErr := c.doJSON(ctx, http.MethodPost, "/auth/login", body, &wire); apiErr != nil {
		return nil, apiErr
	}
	return c.absorbLoginResponse(&wire)
}

func (c *Client) VerifyTwoFactor(ctx context.Context, tempToken, code string) (*LoginResult, error) {
	body := map[string]string{"token": tempToken, "twoFactorCode": code}
	var wire loginWire
	if apiErr := c.doJSON(ctx, http.MethodPost, "/auth/verify-2fa", body, &wire); apiErr != nil {
		return nil, apiErr
	}
	return c.absorbLoginResponse(&wire)
}

// absorbLoginResponse writes a full session through to the store and
// the default header before returning it.
func (c *Client) absorbLoginResponse(wire *loginWire) (*LoginResult, error) {
	res := &LoginResult{
		RequireTwoFactor: wire.RequireTwoFactor,
		TempToken:        wire.TempToken,
		UserID:           wire.UserID,
		QRCodeURL:        wire.QRCodeURL,
		ManualEntryKey:   wire.ManualEntryKey,
		IsNewSetup:       wire.IsNewSetup,
		SetupReason:      wire.SetupReason,
		Token:            wire.Token,
		User:             wire.User,
		ExpiresIn:        wire.ExpiresIn,
	}
	if wire.RequireTwoFactor {
		return res, nil
	}
	if wire.Token == "" {
		return nil, &APIError{Message: "malformed login response"}
	}
	expiresAt := time.Now().Add(time.Duration(wire.ExpiresIn) * time.Minute)
	if err := c.store.Save(wire.Token, wire.User, expiresAt); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("persist auth state: %v", err)}
	}
	c.mu.Lock()
	c.authToken = wire.Token
	c.mu.Unlock()
	return res, nil
}

// Logout tells the server, then clears local state. A network failure
// is logged and absorbed: teardown must not depend on reachability.
func (c *Client) Logout(ctx context.Context) error {
	if apiErr := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil); apiErr != nil {
		if c.logger != nil {
			c.logger.Printf("logout notification failed: %v", apiErr)
		}
	}
	return c.clearAuth()
}

func (c *Client) clearAuth() error {
	c.mu.Lock()
	c.authToken = ""
	c.mu.Unlock()
	return c.store.Clear()
}

type TwoFactorStatus struct {
	Status    string `json:"status"`
	HasSecret bool   `json:"hasSecret"`
	Username  string `json:"username"`
}

func (c *Client) GetTwoFactorStatus(ctx context.Context) (*TwoFactorStatus, error) {
	var out TwoFactorStatus
	if apiErr := c.doJSON(ctx, http.MethodGet, "/auth/2fa/status", nil, &out); apiErr != nil {
		return nil, apiErr
	}
	return &out, nil
}

type TwoFactorEnableResult struct {
	QRCode           string `json:"qrCode"`
	ManualEntryKey   string `json:"manualEntryKey"`
	IsReactivation   bool   `json:"isReactivation"`
	IsAlreadyEnabled bool   `json:"isAlreadyEnabled"`
	IsNewSetup       bool   `json:"isNewSetup"`
}

func (c *Client) EnableTwoFactor(ctx context.Context, forceNewSecret bool) (*TwoFactorEnableResult, error) {
	var out TwoFactorEnableResult
	body := map[string]bool{"forceNewSecret": forceNewSecret}
	if apiErr := c.doJSON(ctx, http.MethodPost, "/auth/2fa/enable", body, &out); apiErr != nil {
		return nil, apiErr
	}
	return &out, nil
}

type TwoFactorDisableResult struct {
	WasAlreadyDisabled bool  `json:"wasAlreadyDisabled"`
	SecretRemoved      bool  `json:"secretRemoved"`
	SessionsTerminated int64 `json:"sessionsTerminated"`
}

func (c *Client) DisableTwoFactor(ctx context.Context, keepSecret bool) (*TwoFactorDisableResult, error) {
	var out TwoFactorDisableResult
	body := map[string]bool{"keepSecret": keepSecret}
	if apiErr := c.doJSON(ctx, http.MethodPost, "/auth/2fa/disable", body, &out); apiErr != nil {
		return nil, apiErr
	}
	return &out, nil
}

type TwoFactorRegenerateResult struct {
	QRCode         string `json:"qrCode"`
	ManualEntryKey string `json:"manualEntryKey"`
}

func (c *Client) RegenerateTwoFactor(ctx context.Context) (*TwoFactorRegenerateResult, error) {
	var out TwoFactorRegenerateResult
	if apiErr := c.doJSON(ctx, http.MethodPost, "/auth/2fa/regenerate", nil, &out); apiErr != nil {
		return nil, apiErr
	}
	return &out, nil
}

type errorEnvelope struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// doJSON runs one round trip. Non-2xx responses come back as
// *APIError; a 401 carrying a session-invalidation code additionally
// clears the stored auth state and fires the forced-logout bus.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) *APIError {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("build request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	token := c.authToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Message: fmt.Sprintf("decode response: %v", err), Status: resp.StatusCode}
		}
		return nil
	}
	var env errorEnvelope
	_ = json.Unmarshal(data, &env)
	apiErr := &APIError{Code: env.ErrorCode, Message: env.Message, Status: resp.StatusCode}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized && IsForcedLogoutCode(apiErr.Code) {
		_ = c.clearAuth()
		if c.bus != nil {
			c.bus.Publish(LogoutEvent{
				ErrorCode: apiErr.Code,
				Message:   apiErr.Message,
				Reason:    apiErr.Code,
			})
		}
	}
	return apiErr
}
