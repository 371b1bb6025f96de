// Package fetch wraps the HTTP plumbing the harvester needs: pulling remote
// image bytes and probing content types without committing to a full fetch.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
	"imgharvest/pkg/retry"
)

// Client performs HTTP fetches with retry on transient failures
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	retryCfg     config.RetryConfig
	probeTimeout time.Duration
	logger       logger.Logger
}

// NewClient creates a fetch client. timeout bounds a single GET;
// probeTimeout bounds the HEAD content-type probe.
func NewClient(timeout, probeTimeout time.Duration, retryCfg config.RetryConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":     "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		},
		retryCfg:     retryCfg,
		probeTimeout: probeTimeout,
		logger:       log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// FetchBytes downloads the full body at url, retrying retryable failures
// with exponential backoff.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	cfg := &retry.Config{
		MaxAttempts: c.retryCfg.MaxAttempts,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    c.retryCfg.InitialDelay,
			MaxDelay:     c.retryCfg.MaxDelay,
			Multiplier:   c.retryCfg.BackoffMultiplier,
			JitterFactor: 0.1,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  c.logger,
	}

	return retry.DoWithResult(func() ([]byte, error) {
		return c.fetchOnce(ctx, url)
	}, cfg)
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, fmt.Sprintf("invalid url %q", url), err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("fetch failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errType := errs.ErrorTypeUnknown
		if errs.IsRetryableStatusCode(resp.StatusCode) {
			errType = errs.ErrorTypeNetwork
		}
		return nil, &errs.Error{
			Type:    errType,
			Message: fmt.Sprintf("unexpected status fetching %s", url),
			Code:    resp.StatusCode,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "reading body failed", err)
	}

	c.logger.DebugWithFields("fetch completed", map[string]interface{}{
		"url":      url,
		"size":     len(data),
		"duration": time.Since(start),
	})

	return data, nil
}

// ProbeContentType issues a HEAD request for url and returns the declared
// Content-Type. Any failure, non-2xx status or probe timeout returns the
// empty string: absence of type information, never an error.
func (c *Client) ProbeContentType(ctx context.Context, url string) string {
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return ""
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ""
	}

	return resp.Header.Get("Content-Type")
}
