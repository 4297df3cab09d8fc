// Package token acquires signed conversation endpoints from the token
// broker. The broker holds the upstream API key; the client never sees it.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicebridge/voice-client/internal/observability"
	"github.com/voicebridge/voice-client/internal/verr"
)

const defaultRequestTimeout = 10 * time.Second

// Client requests signed channel endpoints from the token broker.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a broker client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		logger: observability.ComponentLogger("token"),
	}
}

type endpointRequest struct {
	AgentID          string            `json:"agent_id"`
	DynamicVariables map[string]string `json:"dynamicVariables,omitempty"`
}

type endpointResponse struct {
	Success   bool   `json:"success"`
	SignedURL string `json:"signed_url"`
	Error     string `json:"error"`
}

// FetchChannelEndpoint exchanges an agent ID for a short-lived signed channel
// URL. The URL is single-use; callers must fetch a fresh one per connection
// attempt.
func (c *Client) FetchChannelEndpoint(ctx context.Context, agentID string, dynamicVariables map[string]string) (string, error) {
	body, err := json.Marshal(endpointRequest{
		AgentID:          agentID,
		DynamicVariables: dynamicVariables,
	})
	if err != nil {
		return "", verr.Wrap(verr.KindTokenAcquisitionFailed, "failed to encode broker request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", verr.Wrap(verr.KindTokenAcquisitionFailed, "failed to build broker request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", verr.Wrap(verr.KindTimeout, "token broker request timed out", err)
		}
		return "", verr.Wrap(verr.KindTokenAcquisitionFailed, "token broker unreachable", err)
	}
	defer resp.Body.Close()

	// The broker returns small JSON bodies; cap the read anyway.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", verr.Wrap(verr.KindTokenAcquisitionFailed, "failed to read broker response", err)
	}

	var parsed endpointResponse
	if resp.StatusCode != http.StatusOK {
		// Surface the broker's own message when it sent one.
		if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
			return "", verr.Newf(verr.KindTokenAcquisitionFailed, "token broker rejected request: %s", parsed.Error)
		}
		return "", verr.Newf(verr.KindTokenAcquisitionFailed, "token broker returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", verr.Wrap(verr.KindTokenAcquisitionFailed, "invalid broker response", err)
	}
	if !parsed.Success || parsed.SignedURL == "" {
		msg := parsed.Error
		if msg == "" {
			msg = "broker did not return a signed URL"
		}
		return "", verr.New(verr.KindTokenAcquisitionFailed, fmt.Sprintf("token acquisition failed: %s", msg))
	}

	c.logger.Debug().
		Str("agent_id", agentID).
		Dur("latency", time.Since(start)).
		Msg("Acquired signed channel endpoint")

	return parsed.SignedURL, nil
}

// Ping probes the broker for readiness checks. Any HTTP response counts as
// reachable; only transport failures report unhealthy.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	return true, nil
}
