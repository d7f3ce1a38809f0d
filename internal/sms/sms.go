// Package sms wraps the external SMS dispatch API consumed by phone
// verification. Delivery is fire-and-forget from the caller's perspective, but
// dispatch failures are surfaced, never treated as silent success.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
)

// ErrUnavailable indicates the dispatch API could not accept the message.
var ErrUnavailable = errors.New("sms dispatch unavailable")

// Dispatcher sends a text message to a phone number.
type Dispatcher interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// HTTPDispatcher posts messages to an SMS provider's HTTP endpoint.
type HTTPDispatcher struct {
	client   *http.Client
	endpoint string
	sender   string
}

// NewHTTPDispatcher creates a dispatcher for the given provider endpoint.
func NewHTTPDispatcher(endpoint, sender string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		sender:   sender,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// Send posts the message. Any transport error or non-2xx response is reported
// as ErrUnavailable.
func (d *HTTPDispatcher) Send(ctx context.Context, phoneNumber, message string) error {
	body, err := json.Marshal(sendRequest{To: phoneNumber, From: d.sender, Message: message})
	if err != nil {
		return errors.Wrap(err, "marshal sms request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build sms request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "dispatch to %s: %v", phoneNumber, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrUnavailable, "dispatch to %s: status %d", phoneNumber, resp.StatusCode)
	}
	return nil
}
