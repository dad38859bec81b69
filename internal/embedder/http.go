package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON marshals in, POSTs it to url, and decodes the response body into
// out. Transport failures come back as retryable RequestErrors; the HTTP
// status is returned either way so callers can map non-2xx responses to
// their service-specific errors. The error body of a failed request is still
// decoded into out when the service returns JSON.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any, label string) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("%s: marshal request: %w", label, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("%s: create request: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k := range header {
		req.Header.Set(k, header.Get(k))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, transportError(fmt.Errorf("%s: request failed: %w", label, err))
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && httpOK(resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("%s: decode response: %w", label, err)
	}
	return resp.StatusCode, nil
}

// httpOK reports whether status is a 2xx code.
func httpOK(status int) bool { return status >= 200 && status < 300 }
