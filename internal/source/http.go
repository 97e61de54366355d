package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTP performs a GET request and returns the body of a 2xx response.
type HTTP struct {
	URL    string
	Client *http.Client
}

func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to fetch CSV file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Failed to fetch CSV file: %s", http.StatusText(resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

func (h *HTTP) String() string { return h.URL }
