package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// createHTTPRequest creates an http.Request from an API Gateway event
func createHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	var body io.Reader
	if req.Body != "" {
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return nil, fmt.Errorf("decode base64 body: %w", err)
			}
			body = strings.NewReader(string(decoded))
		} else {
			body = strings.NewReader(req.Body)
		}
	}

	// Determine the full request path
	path := req.Path
	for param, value := range req.PathParameters {
		path = strings.ReplaceAll(path, "{"+param+"}", value)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, path, body)
	if err != nil {
		return nil, err
	}

	// Add query parameters; the multi-value form is a superset when present
	query := url.Values{}
	if len(req.MultiValueQueryStringParameters) > 0 {
		for param, values := range req.MultiValueQueryStringParameters {
			for _, v := range values {
				query.Add(param, v)
			}
		}
	} else {
		for param, value := range req.QueryStringParameters {
			query.Add(param, value)
		}
	}
	httpReq.URL.RawQuery = query.Encode()

	// Add headers
	if len(req.MultiValueHeaders) > 0 {
		for key, values := range req.MultiValueHeaders {
			for _, v := range values {
				httpReq.Header.Add(key, v)
			}
		}
	} else {
		for key, value := range req.Headers {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.RemoteAddr = req.RequestContext.Identity.SourceIP

	return httpReq, nil
}

// responseRecorder captures the router's HTTP response
type responseRecorder struct {
	headers     http.Header
	body        strings.Builder
	statusCode  int
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		headers:    http.Header{},
		statusCode: http.StatusOK,
	}
}

// Header implements the http.ResponseWriter interface
func (r *responseRecorder) Header() http.Header {
	return r.headers
}

// Write implements the http.ResponseWriter interface
func (r *responseRecorder) Write(body []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(body)
}

// WriteHeader implements the http.ResponseWriter interface
func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = statusCode
	r.wroteHeader = true
}

// toProxyResponse converts the captured response to an API Gateway response
func (r *responseRecorder) toProxyResponse() events.APIGatewayProxyResponse {
	single := make(map[string]string, len(r.headers))
	for key, values := range r.headers {
		if len(values) > 0 {
			single[key] = values[0]
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode:        r.statusCode,
		Headers:           single,
		MultiValueHeaders: map[string][]string(r.headers.Clone()),
		Body:              r.body.String(),
	}
}

// serveEvent runs one API Gateway event through h
func serveEvent(ctx context.Context, h http.Handler, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	httpReq, err := createHTTPRequest(ctx, req)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"malformed request"}`,
		}, nil
	}

	rec := newResponseRecorder()
	h.ServeHTTP(rec, httpReq)
	return rec.toProxyResponse(), nil
}
