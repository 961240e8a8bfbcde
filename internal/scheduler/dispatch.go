package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.temporal.io/sdk/temporal"
)

// TokenSigner mints the identity token attached to a task's HTTP call.
type TokenSigner interface {
	Sign(email, audience string) (string, error)
}

// Dispatcher performs the HTTP call of a fired task. It is registered as a Temporal activity.
type Dispatcher struct {
	client *http.Client
	signer TokenSigner
}

func NewDispatcher(client *http.Client, signer TokenSigner) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Dispatcher{client: client, signer: signer}
}

// Dispatch sends the request. Transport errors and 5xx/408/429 answers are returned
// as plain errors so the activity is retried; other 4xx answers are final.
func (d *Dispatcher) Dispatch(ctx context.Context, req HTTPRequest) error {
	method := req.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return temporal.NewNonRetryableApplicationError("malformed task request", "BadTaskRequest", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if req.OIDCToken != nil {
		if d.signer == nil {
			return temporal.NewNonRetryableApplicationError("task requires a token but no signer is configured", "MissingSigner", nil)
		}
		token, err := d.signer.Sign(req.OIDCToken.ServiceAccountEmail, req.OIDCToken.Audience)
		if err != nil {
			return temporal.NewNonRetryableApplicationError("failed to sign invoker token", "InvokerToken", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("dispatch %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("dispatch %s %s: target answered %d", method, req.URL, code)
	default:
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("dispatch %s %s: target answered %d", method, req.URL, code), "TargetRejected", nil)
	}
}
