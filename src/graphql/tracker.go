package graphql

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stake-plus/ibots/src/webclient"
)

// Tracker polls the endpoint's activity tracker. The tracker body changes
// whenever anything happens remotely; it needs no session.
type Tracker struct {
	base       string
	httpClient *http.Client
}

// NewTracker returns a tracker poller for endpoint.
func NewTracker(endpoint string, timeout time.Duration) *Tracker {
	return &Tracker{base: webclient.BaseURL(endpoint), httpClient: webclient.NewDefault(timeout)}
}

// Poll returns the current tracker body.
func (t *Tracker) Poll(ctx context.Context) (string, error) {
	return fetchTracker(ctx, t.httpClient, t.base)
}

func fetchTracker(ctx context.Context, client *http.Client, base string) (string, error) {
	status, body, err := webclient.DoWithRetry(ctx, 3, time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/tracker/wait/", nil)
		if err != nil {
			return 0, nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		return resp.StatusCode, b, err
	})
	if err != nil {
		return "", fmt.Errorf("graphql: tracker: %w", err)
	}
	if status < 200 || status >= 300 {
		return "", &HTTPError{Status: status, Body: string(body)}
	}
	return string(body), nil
}
