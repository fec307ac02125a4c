package env

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vk/stacgridgo/internal/ctxlog"
	"github.com/vk/stacgridgo/internal/retry"
)

// HTTPClient builds a client honouring the environment's timeout.
func (e Env) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: e.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// NewRequest builds a GET for a resource URI with headers and, for S3
// with credentials, a SigV4 signature. A bearer token is not sent on
// signed S3 requests since both use the Authorization header. Range is set
// when length > 0.
func (e Env) NewRequest(ctx context.Context, uri string, offset, length int64) (*http.Request, error) {
	target, err := e.ResolveURL(uri)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", uri, err)
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}
	for k, v := range e.Headers {
		req.Header.Set(k, v)
	}
	if length > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}
	signS3 := IsS3(uri) && !e.AWS.NoSign && e.AWS.HasCredentials()
	if e.BearerToken != "" {
		if signS3 {
			ctxlog.FromContext(ctx).Warn("Ignoring bearer token for a request signed with AWS credentials.", "uri", uri)
		} else {
			req.Header.Set("Authorization", "Bearer "+e.BearerToken)
		}
	}
	if IsS3(uri) && e.AWS.RequesterPays {
		req.Header.Set("X-Amz-Request-Payer", "requester")
	}
	if signS3 {
		if err := SignV4(ctx, req, e.AWS, e.AWS.Region, "s3", time.Now()); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Fetch downloads a resource, or a byte range of it, retrying transient
// failures per the environment's retry policy.
func (e Env) Fetch(ctx context.Context, client *http.Client, uri string, offset, length int64) ([]byte, error) {
	return retry.DoWithResult(ctx, e.Retry, func(attempt int) ([]byte, error) {
		req, err := e.NewRequest(ctx, uri, offset, length)
		if err != nil {
			return nil, retry.NonRetryable(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", uri, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("GET %s: %s", uri, resp.Status)
		default:
			return nil, retry.NonRetryable(fmt.Errorf("GET %s: %s", uri, resp.Status))
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body of %s: %w", uri, err)
		}
		return body, nil
	})
}
