package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type sweepResponse struct {
	Processed int64 `json:"processed"`
}

// triggerSweep asks the API to expire overdue checkouts and returns how many it touched.
func triggerSweep(ctx context.Context, httpClient *http.Client, sweepURL, apiKey string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sweepURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build sweep request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call sweep endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("sweep endpoint returned %d: %s", resp.StatusCode, body)
	}

	var out sweepResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode sweep response: %w", err)
	}
	return out.Processed, nil
}
