package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ShayCichocki/researchmind/internal/version"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

// maxResponseBytes caps how much of a worker response is read.
const maxResponseBytes = 8 << 20

// HTTP posts invocations as JSON to a worker endpoint.
//
// A 2xx response body is the result. 502, 503 and 504 mean the worker
// could not be reached through its gateway; any other status is a remote
// error. Connection failures are returned as-is and classified by the proxy.
type HTTP struct {
	agentID string
	url     string
	client  *http.Client
}

// NewHTTP creates an HTTP transport. A nil client uses http.DefaultClient.
func NewHTTP(agentID, url string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{agentID: agentID, url: url, client: client}
}

// workerError is the optional error body a worker returns.
type workerError struct {
	Error string `json:"error"`
}

// Invoke posts the invocation.
func (h *HTTP) Invoke(ctx context.Context, inv models.Invocation) (json.RawMessage, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("encode invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Researchmind-Task", inv.TaskID)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if !json.Valid(data) {
			return nil, &RemoteError{Agent: h.agentID, Code: resp.StatusCode, Message: "response is not valid JSON"}
		}
		return json.RawMessage(data), nil
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: %s returned %s", models.ErrUnreachable, h.url, resp.Status)
	default:
		msg := strings.TrimSpace(string(data))
		var we workerError
		if json.Unmarshal(data, &we) == nil && we.Error != "" {
			msg = we.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		return nil, &RemoteError{Agent: h.agentID, Code: resp.StatusCode, Message: msg}
	}
}

// Ping sends a GET to the worker endpoint. Any response below 500 counts as reachable.
func (h *HTTP) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s returned %s", h.url, resp.Status)
	}
	return nil
}
