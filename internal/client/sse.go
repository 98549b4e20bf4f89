// sse.go consumes the daemon's Server-Sent Events download streams.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelplane/modelplane/internal/download"
)

// DownloadResult summarizes a finished download stream.
type DownloadResult struct {
	// Status is the terminal event type: completed or cancelled.
	Status string

	// Method names the fetcher that produced the artifact, when the
	// stream completed.
	Method string
}

// StreamDownload starts a download on the daemon and follows its event
// stream until a terminal event. Each event is passed to eventCallback
// before being acted on; the callback may be nil.
//
// An error event in the stream is returned as an error. Connection
// loss before a terminal event is also an error: the daemon keeps
// downloading, but this client can no longer report on it.
func (c *Client) StreamDownload(modelID string, eventCallback func(download.Event)) (*DownloadResult, error) {
	url := fmt.Sprintf("%s/api/models/%s/download", c.baseURL, modelID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream runs as long as the transfer does.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, c.connectError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: {...}"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev download.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			// Ignore parse errors, continue reading
			continue
		}

		if eventCallback != nil {
			eventCallback(ev)
		}

		switch ev.Type {
		case download.EventError:
			return nil, fmt.Errorf("download failed: %s", ev.Message)
		case download.EventCancelled:
			return &DownloadResult{Status: ev.Type}, nil
		case download.EventCompleted:
			return &DownloadResult{Status: ev.Type, Method: ev.Method}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading stream: %w", err)
	}
	return nil, fmt.Errorf("stream ended without a terminal event")
}
