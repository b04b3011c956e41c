// Package platform is a client for the platform API that stores
// integrations, bot models and files.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"

	"github.com/user/cognitive/pkg/llm"
)

// ErrNotFound is returned when the platform answers 404.
var ErrNotFound = errors.New("platform: not found")

// Error is a non-success platform response.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform error (status %d): %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 responses.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Config configures a Client.
type Config struct {
	URL     string
	Token   string
	BotID   string
	Timeout time.Duration
}

// Client talks to the platform API.
type Client struct {
	http  *resty.Client
	botID string
}

// New creates a platform client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(cfg.URL).
		SetHeader("User-Agent", "cognitive/1.0").
		SetHeader("Accept", "application/json").
		SetResponseBodyUnlimitedReads(true).
		SetTimeout(timeout)
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{http: rc, botID: cfg.BotID}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %w", what, &Error{StatusCode: resp.StatusCode(), Body: resp.String()})
	}
	return nil
}

// jsonRequest starts a request whose response body is always decoded as
// JSON, whatever Content-Type the server sends.
func (c *Client) jsonRequest(ctx context.Context, result any) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetForceResponseContentType("application/json").
		SetResult(result)
}

type integrationResponse struct {
	Integration Integration `json:"integration"`
}

func (r *integrationResponse) get(what string) (*Integration, error) {
	if r.Integration.ID == "" {
		return nil, fmt.Errorf("%s: response has no integration id", what)
	}
	return &r.Integration, nil
}

// GetIntegrationByName fetches an integration by name and version.
func (c *Client) GetIntegrationByName(ctx context.Context, name, version string) (*Integration, error) {
	var result integrationResponse
	resp, err := c.jsonRequest(ctx, &result).
		SetPathParam("name", name).
		SetPathParam("version", version).
		Get("/v1/admin/integrations/name/{name}/version/{version}")
	if err := check(resp, err, "get integration"); err != nil {
		return nil, err
	}
	return result.get("get integration")
}

// CreateIntegration creates an integration from a create body.
func (c *Client) CreateIntegration(ctx context.Context, body any) (*Integration, error) {
	var result integrationResponse
	resp, err := c.jsonRequest(ctx, &result).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/v1/admin/integrations")
	if err := check(resp, err, "create integration"); err != nil {
		return nil, err
	}
	return result.get("create integration")
}

// UpdateIntegration applies an update body to the integration with the given id.
func (c *Client) UpdateIntegration(ctx context.Context, id string, body any) (*Integration, error) {
	var result integrationResponse
	resp, err := c.jsonRequest(ctx, &result).
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", id).
		SetBody(body).
		Put("/v1/admin/integrations/{id}")
	if err := check(resp, err, "update integration"); err != nil {
		return nil, err
	}
	return result.get("update integration")
}

type modelsResponse struct {
	Models []llm.Model `json:"models"`
}

// ListModels returns the language models installed on the bot.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	var result modelsResponse
	resp, err := c.jsonRequest(ctx, &result).
		SetPathParam("bot", c.botID).
		Get("/v1/bots/{bot}/models")
	if err := check(resp, err, "list models"); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// GetFile returns the content of the bot file stored under key.
func (c *Client) GetFile(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("bot", c.botID).
		SetPathParam("key", key).
		Get("/v1/bots/{bot}/files/{key}")
	if err := check(resp, err, "get file"); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

// PutFile stores content under key, replacing any previous file.
func (c *Client) PutFile(ctx context.Context, key string, content []byte) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("bot", c.botID).
		SetPathParam("key", key).
		SetHeader("Content-Type", "application/json").
		SetBody(content).
		Put("/v1/bots/{bot}/files/{key}")
	return check(resp, err, "put file")
}
