package client

import (
	"context"
	"net/http"

	"github.com/kazz187/timeguild/internal/pushnotification"
)

func (c *Client) VapidPublicKey(ctx context.Context) (string, error) {
	var resp pushnotification.VapidPublicKeyResponse
	if err := c.do(ctx, http.MethodGet, "/api/push/vapid-public-key", nil, &resp); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

func (c *Client) RegisterPush(ctx context.Context, endpoint, p256dhKey, authKey string) error {
	return c.do(ctx, http.MethodPost, "/api/push/subscriptions", &pushnotification.RegisterRequest{
		Endpoint:  endpoint,
		P256dhKey: p256dhKey,
		AuthKey:   authKey,
	}, nil)
}

func (c *Client) UnregisterPush(ctx context.Context, endpoint string) error {
	return c.do(ctx, http.MethodDelete, "/api/push/subscriptions", &pushnotification.UnregisterRequest{Endpoint: endpoint}, nil)
}

func (c *Client) SendTestPush(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/push/test", nil, nil)
}
