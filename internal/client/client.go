// Package client talks to a running modelplane daemon on behalf of the
// CLI commands.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is an HTTP client for the daemon's management and download
// surfaces.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the daemon at baseURL. Requests that stream
// indefinitely manage their own deadlines.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SwitchResult is the daemon's response to a switch request.
type SwitchResult struct {
	Status       string `json:"status"`
	CurrentModel string `json:"current_model"`
	Message      string `json:"message"`
}

// SwitchModel designates name as the active model.
func (c *Client) SwitchModel(name string) (*SwitchResult, error) {
	reqBody, err := json.Marshal(map[string]string{"model_name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+"/switch-model", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return nil, c.connectError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	var result SwitchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// CancelResult is the daemon's response to a cancel request.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CancelDownload asks the daemon to cancel an in-flight download.
func (c *Client) CancelDownload(modelID string) (*CancelResult, error) {
	url := fmt.Sprintf("%s/api/models/%s/download", c.baseURL, modelID)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.connectError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	var result CancelResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (c *Client) connectError(err error) error {
	return fmt.Errorf("cannot connect to modelplane at %s\n\nIs the daemon running? Start it with: modelplane serve", c.baseURL)
}

// decodeError extracts the daemon's error body, falling back to the
// status code when the body is not the expected shape.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s", body.Error)
	}
	return fmt.Errorf("server error: status %d", resp.StatusCode)
}
