package tenauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

type Option func(*Client)

// Client is a stateless per-call wrapper around the HTTP API. It attaches the
// configured API key and session token to each request and surfaces failures
// immediately; retry policy belongs to the caller.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	apiKey       string
	sessionToken string
}

// APIError is the uniform error shape for any non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API returned status %d", e.Status)
	}

	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(apiKey)
	}
}

func WithSessionToken(token string) Option {
	return func(c *Client) {
		c.sessionToken = strings.TrimSpace(token)
	}
}

func NewClient(baseURL string, options ...Option) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	parsedURL, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("base URL must include scheme and host")
	}

	client := &Client{
		baseURL: parsedURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, option := range options {
		option(client)
	}

	return client, nil
}

func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = strings.TrimSpace(apiKey)
}

func (c *Client) SetSessionToken(token string) {
	c.sessionToken = strings.TrimSpace(token)
}

// Admin surface

func (c *Client) AdminSignup(ctx context.Context, request AdminSignupRequest) (AdminSessionResponse, error) {
	var response AdminSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/signup", request, authNone, http.StatusCreated, &response); err != nil {
		return AdminSessionResponse{}, err
	}
	return response, nil
}

func (c *Client) AdminLogin(ctx context.Context, request LoginRequest) (AdminSessionResponse, error) {
	var response AdminSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/login", request, authNone, http.StatusOK, &response); err != nil {
		return AdminSessionResponse{}, err
	}
	return response, nil
}

func (c *Client) CreateApp(ctx context.Context, request CreateAppRequest) (App, error) {
	var response App
	if err := c.do(ctx, http.MethodPost, "/api/v1/apps", request, authSession, http.StatusCreated, &response); err != nil {
		return App{}, err
	}
	return response, nil
}

func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	var response []App
	if err := c.do(ctx, http.MethodGet, "/api/v1/apps", nil, authSession, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) GenerateKey(ctx context.Context, appID string) (GenerateKeyResponse, error) {
	var response GenerateKeyResponse
	if err := c.do(ctx, http.MethodPost, path.Join("/api/v1/apps", appID, "key"), nil, authSession, http.StatusCreated, &response); err != nil {
		return GenerateKeyResponse{}, err
	}
	return response, nil
}

func (c *Client) RevokeKey(ctx context.Context, appID string) error {
	return c.do(ctx, http.MethodDelete, path.Join("/api/v1/apps", appID, "key"), nil, authSession, http.StatusNoContent, nil)
}

func (c *Client) ListUsers(ctx context.Context, appID string) ([]User, error) {
	var response []User
	if err := c.do(ctx, http.MethodGet, path.Join("/api/v1/apps", appID, "users"), nil, authSession, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *Client) UpdateUser(ctx context.Context, appID, userID string, request UpdateUserRequest) (User, error) {
	var response User
	if err := c.do(ctx, http.MethodPatch, path.Join("/api/v1/apps", appID, "users", userID), request, authSession, http.StatusOK, &response); err != nil {
		return User{}, err
	}
	return response, nil
}

func (c *Client) DeleteUser(ctx context.Context, appID, userID string) error {
	return c.do(ctx, http.MethodDelete, path.Join("/api/v1/apps", appID, "users", userID), nil, authSession, http.StatusNoContent, nil)
}

// End-user surface

func (c *Client) Signup(ctx context.Context, request SignupRequest) (UserSessionResponse, error) {
	var response UserSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup", request, authAPIKey, http.StatusCreated, &response); err != nil {
		return UserSessionResponse{}, err
	}
	return response, nil
}

func (c *Client) Login(ctx context.Context, request LoginRequest) (UserSessionResponse, error) {
	var response UserSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", request, authAPIKey, http.StatusOK, &response); err != nil {
		return UserSessionResponse{}, err
	}
	return response, nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var response User
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, authAPIKey|authSession, http.StatusOK, &response); err != nil {
		return User{}, err
	}
	return response, nil
}

func (c *Client) ChangePassword(ctx context.Context, request ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/password", request, authAPIKey|authSession, http.StatusNoContent, nil)
}

func (c *Client) DeleteMe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/auth/me", nil, authAPIKey|authSession, http.StatusNoContent, nil)
}

type authMode int

const (
	authNone    authMode = 0
	authAPIKey  authMode = 1 << 0
	authSession authMode = 1 << 1
)

func (c *Client) do(ctx context.Context, method string, resourcePath string, requestBody any, mode authMode, expectedStatus int, output any) error {
	var body io.Reader
	if requestBody != nil {
		payload, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	requestURL := *c.baseURL
	requestURL.Path = path.Join(c.baseURL.Path, resourcePath)

	httpRequest, err := http.NewRequestWithContext(ctx, method, requestURL.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpRequest.Header.Set("Accept", "application/json")
	if requestBody != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	if mode&authAPIKey != 0 {
		if c.apiKey == "" {
			return fmt.Errorf("API key is required for this endpoint")
		}
		httpRequest.Header.Set("X-API-Key", c.apiKey)
	}
	if mode&authSession != 0 {
		if c.sessionToken == "" {
			return fmt.Errorf("session token is required for this endpoint")
		}
		httpRequest.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("call API: %w", err)
	}
	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(httpResponse.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if httpResponse.StatusCode != expectedStatus {
		return parseAPIError(httpResponse.StatusCode, responseBody)
	}

	if output == nil || len(responseBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(responseBody, output); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}

	return nil
}

func parseAPIError(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}

	var structured struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	code := ""
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Message != "" {
			message = structured.Message
		}
		code = structured.Code
	}

	return &APIError{
		Status:  statusCode,
		Code:    code,
		Message: message,
	}
}
