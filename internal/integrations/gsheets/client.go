package gsheets

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

const DefaultBaseURL = "https://sheets.googleapis.com"

type Config struct {
	BaseURL       string
	AccessToken   string
	SpreadsheetID string
	Timeout       time.Duration
}

// Client reads values from a single spreadsheet.
type Client struct {
	http          *resty.Client
	spreadsheetID string
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rc := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	if cfg.AccessToken != "" {
		rc.SetAuthToken(cfg.AccessToken)
	}
	return &Client{http: rc, spreadsheetID: cfg.SpreadsheetID}
}

func (c *Client) Close() error {
	return c.http.Close()
}

// ValueRange is a block of cells as returned by the Sheets API.
type ValueRange struct {
	Range          string  `json:"range"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

// GetValues reads a range in A1 notation. An empty majorDimension lets the
// API pick its default.
func (c *Client) GetValues(ctx context.Context, rng, majorDimension string) (*ValueRange, error) {
	var out ValueRange
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("spreadsheet", c.spreadsheetID).
		SetPathParam("range", rng).
		SetForceResponseContentType("application/json").
		SetResult(&out)
	if majorDimension != "" {
		req.SetQueryParam("majorDimension", majorDimension)
	}

	resp, err := req.Get("/v4/spreadsheets/{spreadsheet}/values/{range}")
	if err != nil {
		return nil, fmt.Errorf("get values %s: %w", rng, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get values %s: status %d: %s", rng, resp.StatusCode(), resp.String())
	}
	return &out, nil
}
