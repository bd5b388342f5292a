// Package client provides an HTTP client for the weatherd API.
//
// Used by weatherctl; kept deliberately thin so the CLI maps one
// command to one call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xtxerr/weatherd/internal/reading"
)

// Client talks to a weatherd server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError is the server's error envelope.
type apiError struct {
	Error string `json:"error"`
}

// do performs a request and decodes the JSON response into out (which
// may be nil). Non-2xx responses are returned as errors carrying the
// server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Health reports whether the server and its storage are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// SubmitReading submits one reading for ingestion.
func (c *Client) SubmitReading(ctx context.Context, r reading.Reading) error {
	return c.do(ctx, http.MethodPost, "/readings", r, nil)
}

// RecentResponse is the recent-readings envelope.
type RecentResponse struct {
	Readings []reading.Reading `json:"readings"`
	Count    int               `json:"count"`
}

// RecentReadings fetches the most recent readings, newest first.
// limit <= 0 uses the server default.
func (c *Client) RecentReadings(ctx context.Context, limit int) (RecentResponse, error) {
	path := "/readings/recent"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp RecentResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// AverageHour fetches the hourly average temperature. sensorID may be
// empty for the fleet-wide average.
func (c *Client) AverageHour(ctx context.Context, sensorID string) (reading.AverageResult, error) {
	path := "/analytics/average-hour"
	if sensorID != "" {
		path += "?sensor_id=" + url.QueryEscape(sensorID)
	}
	var result reading.AverageResult
	err := c.do(ctx, http.MethodGet, path, nil, &result)
	return result, err
}

// Status fetches the server status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var status map[string]any
	err := c.do(ctx, http.MethodGet, "/status", nil, &status)
	return status, err
}

// DeleteReadings clears all readings from storage and cache.
// Returns the number of deleted rows.
func (c *Client) DeleteReadings(ctx context.Context) (int64, error) {
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	err := c.do(ctx, http.MethodDelete, "/readings", nil, &resp)
	return resp.Deleted, err
}

// Simulate asks the server to generate synthetic readings.
// Returns the number of readings written.
func (c *Client) Simulate(ctx context.Context, sensors, readingsPerSensor int) (int, error) {
	req := map[string]int{
		"sensors":             sensors,
		"readings_per_sensor": readingsPerSensor,
	}
	var resp struct {
		Written int `json:"written"`
	}
	err := c.do(ctx, http.MethodPost, "/simulate", req, &resp)
	return resp.Written, err
}
