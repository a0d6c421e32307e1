package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRouter() http.Handler {
	r := chi.NewRouter()
	r.Post("/uploads/{action}", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("X-Action", chi.URLParam(r, "action"))
		w.Header().Add("X-Action", "twice")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	r.Get("/uploads/presign-part", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Query().Get("key") + "|" + r.URL.Query().Get("partNumber") + "|" + r.Header.Get("Origin")))
	})
	return r
}

func TestServeEventPostBody(t *testing.T) {
	handler := newLambdaHandler(echoRouter())

	resp, err := handler(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/uploads/initiate",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"fileName":"a.mp4"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"fileName":"a.mp4"}`, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, "initiate", resp.Headers["X-Action"])
	assert.Equal(t, []string{"initiate", "twice"}, resp.MultiValueHeaders["X-Action"])
}

func TestServeEventBase64Body(t *testing.T) {
	resp, err := serveEvent(context.Background(), echoRouter(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/uploads/complete",
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"key":"k"}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"key":"k"}`, resp.Body)
}

func TestServeEventBadBase64(t *testing.T) {
	resp, err := serveEvent(context.Background(), echoRouter(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/uploads/complete",
		Body:            "%%%",
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeEventQueryAndHeaders(t *testing.T) {
	tests := []struct {
		name string
		req  events.APIGatewayProxyRequest
	}{
		{
			name: "single value",
			req: events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				Path:                  "/uploads/presign-part",
				QueryStringParameters: map[string]string{"key": "uploads/a b.mp4", "partNumber": "2"},
				Headers:               map[string]string{"Origin": "https://app.example"},
			},
		},
		{
			name: "multi value",
			req: events.APIGatewayProxyRequest{
				HTTPMethod:                      http.MethodGet,
				Path:                            "/uploads/presign-part",
				MultiValueQueryStringParameters: map[string][]string{"key": {"uploads/a b.mp4"}, "partNumber": {"2"}},
				MultiValueHeaders:               map[string][]string{"Origin": {"https://app.example"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := serveEvent(context.Background(), echoRouter(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "uploads/a b.mp4|2|https://app.example", resp.Body)
		})
	}
}

func TestServeEventPathParameters(t *testing.T) {
	resp, err := serveEvent(context.Background(), echoRouter(), events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodPost,
		Path:           "/uploads/{action}",
		PathParameters: map[string]string{"action": "abort"},
		Body:           "{}",
	})
	require.NoError(t, err)
	assert.Equal(t, "abort", resp.Headers["X-Action"])
}

func TestServeEventNotFound(t *testing.T) {
	resp, err := serveEvent(context.Background(), echoRouter(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/nope",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
