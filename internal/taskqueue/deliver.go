package taskqueue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// Deliverer invokes the target of a due task.
type Deliverer interface {
	Deliver(ctx context.Context, task Task) error
}

// HTTPDeliverer POSTs the task payload as JSON to the task target.
type HTTPDeliverer struct {
	client *http.Client
}

// NewHTTPDeliverer creates an HTTPDeliverer, optionally through a proxy.
func NewHTTPDeliverer(timeout time.Duration, httpProxy string) *HTTPDeliverer {
	var transport http.RoundTripper = &http.Transport{}
	if httpProxy != "" {
		proxyURL, err := url.Parse(httpProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Task delivery will not use a proxy.", httpProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	return &HTTPDeliverer{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// Deliver treats 2xx and 404 as done: 404 means the target already
// handled the task. Other 4xx answers are permanent failures; everything
// else may be retried.
func (d *HTTPDeliverer) Deliver(ctx context.Context, task Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.Target, bytes.NewReader(task.Payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("received retryable status code: %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: received status code %d", ErrPermanent, resp.StatusCode)
	default:
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
}
