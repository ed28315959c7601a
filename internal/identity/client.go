package identity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacelog/privacy-service/internal/provider/resilience"
)

// Admin is the identity-provider surface the deletion executor depends on.
type Admin interface {
	// RevokeSessions revokes every active session for the user.
	RevokeSessions(ctx context.Context, userID string) error

	// DisableUser blocks new sign-ins without removing the account.
	DisableUser(ctx context.Context, userID string) error

	// DeleteUser removes the auth account. An already-deleted user is
	// treated as success.
	DeleteUser(ctx context.Context, userID string) error

	// UserExists reports whether the auth account still exists. Used by
	// the post-deletion verification step.
	UserExists(ctx context.Context, userID string) (bool, error)
}

// RequestRecorder records metrics for downstream calls. Satisfied by
// middleware.ProviderMetrics.
type RequestRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ClientConfig holds configuration for the identity admin client.
type ClientConfig struct {
	// BaseURL is the identity service's internal admin endpoint.
	BaseURL string

	// ServiceToken authenticates this service to the admin API.
	ServiceToken string

	// Metrics records call durations. Optional.
	Metrics RequestRecorder

	// Registry exposes circuit health on the ops endpoints. Defaults to
	// resilience.GlobalRegistry.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client calls the identity service's internal admin API through the
// circuit-breaker/retry wrapper.
type Client struct {
	baseURL  string
	token    string
	http     *resilience.Client
	metrics  RequestRecorder
	registry *resilience.Registry
	logger   zerolog.Logger
}

// providerName identifies this client in metrics and the provider registry.
const providerName = "identity-admin"

// NewClient creates a new identity admin client.
func NewClient(cfg ClientConfig) *Client {
	registry := cfg.Registry
	if registry == nil {
		registry = resilience.GlobalRegistry
	}

	httpClient := resilience.NewClient(resilience.DefaultClientConfig(providerName))
	registry.Register(providerName, httpClient)

	return &Client{
		baseURL:  cfg.BaseURL,
		token:    cfg.ServiceToken,
		http:     httpClient,
		metrics:  cfg.Metrics,
		registry: registry,
		logger:   cfg.Logger.With().Str("component", "identity_client").Logger(),
	}
}

// RevokeSessions revokes all active sessions for the user.
func (c *Client) RevokeSessions(ctx context.Context, userID string) error {
	return c.post(ctx, fmt.Sprintf("/internal/v1/users/%s/sessions:revokeAll", url.PathEscape(userID)))
}

// DisableUser disables the user's auth account.
func (c *Client) DisableUser(ctx context.Context, userID string) error {
	return c.post(ctx, fmt.Sprintf("/internal/v1/users/%s:disable", url.PathEscape(userID)))
}

// DeleteUser deletes the user's auth account. A 404 means the account is
// already gone and counts as success.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("/internal/v1/users/%s", url.PathEscape(userID)), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "delete_user")
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug().Str("user_id", userID).Msg("auth account already deleted")
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delete user: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// UserExists reports whether the auth account still exists.
func (c *Client) UserExists(ctx context.Context, userID string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/internal/v1/users/%s", url.PathEscape(userID)), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.do(req, "check_user")
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("check user: unexpected status %d", resp.StatusCode)
	default:
		return true, nil
	}
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "post")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer drain(resp)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(req *http.Request, operation string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if c.metrics != nil {
		c.metrics.RecordRequest(providerName, operation, time.Since(start), err)
	}
	if err != nil {
		c.registry.RecordFailure(providerName, err)
	} else {
		c.registry.RecordSuccess(providerName)
	}
	return resp, err
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// Ensure Client implements Admin.
var _ Admin = (*Client)(nil)
