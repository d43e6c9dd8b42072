// Package graphql is the authenticated transport every bot talks to the
// remote service through, plus the catalog of operations it may send.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/stake-plus/ibots/src/logging"
	"github.com/stake-plus/ibots/src/webclient"
)

const (
	defaultTimeout = 30 * time.Second
	defaultMaxRPS  = 5
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ibots_graphql_requests_total",
	Help: "GraphQL requests sent to the remote endpoint, by operation and outcome.",
}, []string{"operation", "outcome"})

// Config describes one bot's session with the remote endpoint.
type Config struct {
	Endpoint string
	Username string
	Password string
	Timeout  time.Duration
	// MaxRPS caps outbound requests per second for this session; zero means
	// the default and a negative value disables limiting.
	MaxRPS float64
}

// Client is an authenticated session. Sessions are never shared: each Login
// creates its own cookie jar.
type Client struct {
	base       string
	userID     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Response is a decoded GraphQL response.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []ErrorItem    `json:"errors,omitempty"`
}

// Login authenticates with username/password and returns a session bound to
// the resulting account id.
func Login(ctx context.Context, cfg Config) (*Client, error) {
	base := webclient.BaseURL(cfg.Endpoint)
	if base == "" {
		return nil, fmt.Errorf("graphql: endpoint not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient, err := webclient.NewSession(timeout)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:       base,
		httpClient: httpClient,
		limiter:    newLimiter(cfg.MaxRPS),
		log:        logging.ForComponent("graphql").With().Str("user", cfg.Username).Logger(),
	}

	form := url.Values{"username": {cfg.Username}, "password": {cfg.Password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/ibis/login-pass/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("graphql: login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticate, err)
	}

	var login struct {
		UserID any `json:"user_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&login); err != nil {
		return nil, fmt.Errorf("%w: decode login response: %v", ErrAuthenticate, err)
	}
	c.userID = idString(login.UserID)
	if c.userID == "" || c.userID == "0" {
		c.log.Error().Msg("Failed to log in")
		return nil, ErrAuthenticate
	}
	c.log.Debug().Str("user_id", c.userID).Msg("logged in")
	return c, nil
}

// UserID is the raw account id the session is logged in as.
func (c *Client) UserID() string { return c.userID }

// Endpoint is the normalized base URL.
func (c *Client) Endpoint() string { return c.base }

// Execute validates vars against op and sends it. Variables are given in
// snake_case and renamed to the names the operation declares. A response that
// carries GraphQL errors is returned together with a *RemoteError.
func (c *Client) Execute(ctx context.Context, op *Operation, vars map[string]any) (*Response, error) {
	if err := op.Validate(vars); err != nil {
		return nil, err
	}
	return c.send(ctx, op.Name, op.Text, op.OperationName, op.wireVariables(vars))
}

// ExecuteRaw sends query without catalog lookup or validation. Variables are
// sent as given.
func (c *Client) ExecuteRaw(ctx context.Context, query string, vars map[string]any) (*Response, error) {
	return c.send(ctx, "raw", query, "", vars)
}

func (c *Client) send(ctx context.Context, label, query, opName string, vars map[string]any) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		requestsTotal.WithLabelValues(label, "canceled").Inc()
		return nil, err
	}
	payload := map[string]any{"query": query}
	if len(vars) > 0 {
		payload["variables"] = vars
	}
	if opName != "" {
		payload["operationName"] = opName
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("graphql: encode %s: %w", label, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/graphql/", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("graphql: request %s: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		requestsTotal.WithLabelValues(label, "transport_error").Inc()
		return nil, fmt.Errorf("graphql: %s: %w", label, err)
	}

	var resp Response
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		requestsTotal.WithLabelValues(label, "decode_error").Inc()
		return nil, fmt.Errorf("graphql: decode %s: %w", label, err)
	}
	if len(resp.Errors) > 0 {
		requestsTotal.WithLabelValues(label, "remote_error").Inc()
		return &resp, &RemoteError{Operation: label, Errors: resp.Errors}
	}
	requestsTotal.WithLabelValues(label, "ok").Inc()
	return &resp, nil
}

// AppLink resolves an in-app link for an entity id.
func (c *Client) AppLink(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/notifications/app_link/"+url.PathEscape(id), nil)
	if err != nil {
		return "", fmt.Errorf("graphql: app link request: %w", err)
	}
	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("graphql: app link: %w", err)
	}
	return string(body), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func newLimiter(maxRPS float64) *rate.Limiter {
	if maxRPS < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if maxRPS == 0 {
		maxRPS = defaultMaxRPS
	}
	burst := int(maxRPS)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(maxRPS), burst)
}

func idString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
