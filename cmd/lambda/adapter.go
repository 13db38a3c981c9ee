package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
)

// newHandler adapts the API Gateway proxy events to the HTTP handler.
func newHandler(h http.Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		httpReq, err := createHTTPRequest(ctx, req)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"detail":"invalid request"}`,
			}, nil
		}

		// Process the request through the router and capture the response.
		rec := newResponseRecorder()
		h.ServeHTTP(rec, httpReq)

		return rec.response(), nil
	}
}

// createHTTPRequest creates an http.Request from an API Gateway event.
func createHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	// Binary bodies, like multipart uploads, arrive base64 encoded.
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("could not decode body: %w", err)
		}
		body = decoded
	}

	// Determine the full request path.
	path := req.Path
	for param, value := range req.PathParameters {
		path = strings.ReplaceAll(path, "{"+param+"}", value)
	}

	// Add query parameters, multi value ones first.
	query := url.Values{}
	for param, values := range req.MultiValueQueryStringParameters {
		query[param] = append([]string(nil), values...)
	}
	for param, value := range req.QueryStringParameters {
		if _, ok := query[param]; !ok {
			query.Set(param, value)
		}
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	// Add headers.
	for key, values := range req.MultiValueHeaders {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	for key, value := range req.Headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}
	httpReq.RemoteAddr = req.RequestContext.Identity.SourceIP

	return httpReq, nil
}

// responseRecorder captures the HTTP response.
type responseRecorder struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     http.Header{},
		statusCode: http.StatusOK,
	}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) Write(body []byte) (int, error) {
	return r.body.Write(body)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
}

// response returns the captured response, binary bodies are base64 encoded.
func (r *responseRecorder) response() events.APIGatewayProxyResponse {
	resp := events.APIGatewayProxyResponse{
		StatusCode:        r.statusCode,
		Headers:           map[string]string{},
		MultiValueHeaders: map[string][]string{},
	}

	for key, values := range r.header {
		resp.Headers[key] = values[len(values)-1]
		resp.MultiValueHeaders[key] = values
	}

	if utf8.Valid(r.body.Bytes()) {
		resp.Body = r.body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(r.body.Bytes())
		resp.IsBase64Encoded = true
	}

	return resp
}
