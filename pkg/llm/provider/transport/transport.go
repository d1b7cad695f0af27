// Package transport holds the JSON-over-HTTP plumbing shared by the backends
// that do not ship a vendor SDK.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 5 * time.Minute

// NewHTTPClient returns the client backends use when none is injected.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// PostJSON sends body as JSON to url. A transport failure is a remote
// connection error; a non-2xx answer is classified with StatusError. On
// success the caller owns the response body.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.NewGenerationFailedError(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &llm.ConfigurationError{Message: "building request for " + url, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, llm.NewGenerationFailedError(err)
		}
		return nil, llm.NewRemoteConnectionError("calling "+url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, StatusError(resp)
	}
	return resp, nil
}

// StatusError maps an unsuccessful HTTP answer onto the error taxonomy.
func StatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return &llm.ConfigurationError{Message: "backend rejected the model params", Cause: cause}
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return llm.NewRemoteConnectionError("backend is unavailable", cause)
	default:
		return llm.NewGenerationFailedError(cause)
	}
}
