package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// postJSON sends in to url as a JSON body and decodes the JSON response into
// out. It returns the HTTP status code; callers turn non-2xx statuses into
// errors themselves, since each backend reports failures in its own shape and
// the body is decoded either way to preserve API error messages.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if !statusOK(resp.StatusCode) {
			return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func statusOK(status int) bool {
	return status >= 200 && status < 300
}
