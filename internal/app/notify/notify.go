/*
Package notify delivers push notifications to user devices.

Delivery is fire-and-forget: callers collect per-recipient outcomes but never
fail an operation because a push did not go out.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"geochat/internal/pkg/logx"
)

// Notifier sends a single push notification to a device token.
type Notifier interface {
	Send(ctx context.Context, deviceToken, title, body string) error
}

// HTTPNotifier posts notifications to a configurable push gateway using a
// server key. It implements the legacy "server key in the Authorization
// header" contract most push gateways accept.
type HTTPNotifier struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// NewHTTPNotifier constructs a notifier for the given gateway endpoint.
func NewHTTPNotifier(endpoint, serverKey string) *HTTPNotifier {
	return &HTTPNotifier{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Send(ctx context.Context, deviceToken, title, body string) error {
	payload := map[string]any{
		"to": deviceToken,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+n.serverKey)

	res, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", res.StatusCode)
	}

	return nil
}

// LogNotifier logs pushes instead of sending them. Used when no gateway is
// configured, so development environments behave like production minus the
// delivery.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, deviceToken, title, body string) error {
	logx.Info("Push delivery skipped (no gateway configured)", "title", title)
	return nil
}
