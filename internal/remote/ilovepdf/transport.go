package ilovepdf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/stefando/pdf2img/internal/log"
	"github.com/stefando/pdf2img/internal/model"
)

// errDetail is the only detail of remote failures, the real cause is logged.
const errDetail = "remote service error"

// maxLoggedBody is how much of an error response body ends in the logs.
const maxLoggedBody = 4 * 1024

// transport is the request plumbing shared by the authenticator and the
// task client.
type transport struct {
	httpClient *http.Client
	logger     log.Logger
}

// do sends the request and checks the response status. On success the caller
// owns the response body.
func (t transport) do(ctx context.Context, method, rawURL, token string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, model.UpstreamError(errDetail, fmt.Errorf("could not create request: %w", err))
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, model.UpstreamError(errDetail, fmt.Errorf("%s %s: %w", method, redact(req.URL), err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		t.logger.WithCtxValues(ctx).Errorf("remote service answered %s %s with %d: %s", method, redact(req.URL), resp.StatusCode, respBody)

		return nil, model.UpstreamError(errDetail, fmt.Errorf("%s %s: unexpected status code %d", method, redact(req.URL), resp.StatusCode))
	}

	return resp, nil
}

// doJSON sends the request and decodes the JSON response into out.
func (t transport) doJSON(ctx context.Context, method, rawURL, token string, body io.Reader, contentType string, out any) error {
	resp, err := t.do(ctx, method, rawURL, token, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.UpstreamError(errDetail, fmt.Errorf("could not decode %s %s response: %w", method, rawURL, err))
	}

	return nil
}

// redact returns the URL without query, only the path is useful in errors.
func redact(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
