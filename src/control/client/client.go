// Package client talks to the control plane: it posts form-encoded requests
// and returns the JSON the server answers with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stake-plus/ibots/src/webclient"
)

const tokenTTL = time.Minute

// Options locate the server.
type Options struct {
	Server  string
	Port    int
	Secret  string
	Timeout time.Duration
}

// Client is a control-plane client.
type Client struct {
	base   string
	secret []byte
	http   *http.Client
}

// Response is a server reply. Status is informational; only transport
// failures are errors.
type Response struct {
	Status int
	Body   []byte
}

func New(opts Options) *Client {
	server := opts.Server
	if server == "" {
		server = "localhost"
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err == nil && u.Port() == "" && opts.Port > 0 {
		u.Host = u.Host + ":" + strconv.Itoa(opts.Port)
		server = u.String()
	}
	c := &Client{
		base: strings.TrimRight(server, "/"),
		http: webclient.NewDefault(opts.Timeout),
	}
	if opts.Secret != "" {
		c.secret = []byte(opts.Secret)
	}
	return c
}

// Base is the server URL requests go to.
func (c *Client) Base() string { return c.base }

// Post sends form to route.
func (c *Client) Post(ctx context.Context, route string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+strings.TrimLeft(route, "/"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.secret != nil {
		tok, err := c.token()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s: %w", route, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: %s: read body: %w", route, err)
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func (c *Client) token() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "ibots-cli",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("client: sign token: %w", err)
	}
	return s, nil
}

func (c *Client) Status(ctx context.Context, bots []string) (*Response, error) {
	return c.Post(ctx, "status", url.Values{"bots": bots})
}

func (c *Client) Start(ctx context.Context, bots []string) (*Response, error) {
	return c.Post(ctx, "start", url.Values{"bots": bots})
}

func (c *Client) Stop(ctx context.Context, bots []string) (*Response, error) {
	return c.Post(ctx, "stop", url.Values{"bots": bots})
}

func (c *Client) Wipe(ctx context.Context, bots []string) (*Response, error) {
	return c.Post(ctx, "wipe", url.Values{"bots": bots})
}

func (c *Client) Bot(ctx context.Context, targets []string, instruction string) (*Response, error) {
	return c.Post(ctx, "bot", url.Values{"targets": targets, "instruction": {instruction}})
}

func (c *Client) Resource(ctx context.Context, targets []string, instruction string) (*Response, error) {
	return c.Post(ctx, "resource", url.Values{"targets": targets, "instruction": {instruction}})
}

func (c *Client) Interact(ctx context.Context, target string) (*Response, error) {
	return c.Post(ctx, "interact", url.Values{"target": {target}})
}

// Pretty indents a JSON body; anything else is returned unchanged.
func Pretty(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
