package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kazz187/timeguild/internal/identity"
	"github.com/kazz187/timeguild/pkg/cerr"
)

// Client talks to timeguild-server's JSON API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends in as JSON and decodes the response into out. Error responses
// become *cerr.Error with the server's code; auth failures also wrap
// identity.ErrAuth.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return cerr.NewError(cerr.Internal, "malformed server response", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var httpErr cerr.HTTPError
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &httpErr); err != nil || httpErr.Code == "" {
		return cerr.NewError(codeForStatus(resp.StatusCode), http.StatusText(resp.StatusCode),
			fmt.Errorf("unexpected response %s: %s", resp.Status, bytes.TrimSpace(body)))
	}
	code := cerr.ParseCode(httpErr.Code)
	var cause error
	if code == cerr.Unauthenticated {
		cause = identity.ErrAuth
	}
	return &cerr.Error{Code: code, Msg: httpErr.Message, Err: cause, Details: httpErr.Details}
}

func codeForStatus(status int) cerr.Code {
	switch status {
	case http.StatusBadRequest:
		return cerr.InvalidArgument
	case http.StatusUnauthorized:
		return cerr.Unauthenticated
	case http.StatusForbidden:
		return cerr.PermissionDenied
	case http.StatusNotFound:
		return cerr.NotFound
	case http.StatusConflict:
		return cerr.AlreadyExists
	case http.StatusPreconditionFailed:
		return cerr.FailedPrecondition
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return cerr.Unavailable
	default:
		return cerr.Unknown
	}
}

// IsAuthError reports whether err means the cached token is no longer good.
func IsAuthError(err error) bool {
	return errors.Is(err, identity.ErrAuth)
}
