package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/uploadpresigner/internal/metrics"
	"github.com/stefando/uploadpresigner/internal/upload"
)

type memGateway struct {
	mu        sync.Mutex
	err       error
	signed    []int
	completed []upload.CompletedPart
}

func (g *memGateway) CreateMultipartUpload(_ context.Context, _, _, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "upload-1", nil
}

func (g *memGateway) SignPartUploadURL(_ context.Context, bucket, key, uploadID string, partNumber int, expiresIn time.Duration) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.signed = append(g.signed, partNumber)
	return fmt.Sprintf("https://%s.s3.example/%s?partNumber=%d&uploadId=%s&X-Amz-Expires=%d",
		bucket, key, partNumber, uploadID, int(expiresIn.Seconds())), nil
}

func (g *memGateway) CompleteMultipartUpload(_ context.Context, _, key, _ string, parts []upload.CompletedPart) (upload.CompletedUpload, error) {
	if g.err != nil {
		return upload.CompletedUpload{}, g.err
	}
	g.completed = parts
	return upload.CompletedUpload{Location: "https://media.s3.example/" + key}, nil
}

func (g *memGateway) AbortMultipartUpload(context.Context, string, string, string) error {
	return g.err
}

type testServer struct {
	router  http.Handler
	gateway *memGateway
	logs    *logtest.Hook
}

func newTestServer(t *testing.T, mutate func(*Options)) *testServer {
	t.Helper()

	gw := &memGateway{}
	keys := &upload.KeyDeriver{
		Prefix: "uploads/",
		NewID:  func() string { return "id1" },
		Now:    func() time.Time { return time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC) },
	}
	svc := upload.NewService(upload.Settings{
		Bucket:        "media",
		Region:        "us-east-1",
		Expiration:    time.Hour,
		PartSizeBytes: 10 * 1024 * 1024,
	}, gw, keys)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := Options{
		Service:        svc,
		Logger:         logger,
		AllowedOrigins: []string{"https://app.example"},
		MountPath:      "/uploads",
		RequestTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}

	return &testServer{router: NewRouter(opts), gateway: gw, logs: hook}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	s.gateway.err = errors.New("backend unreachable")

	rec, body := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, body)
}

func TestInitiate(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/uploads/initiate", `{"fileName":"my video.mp4","contentType":"video/mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "media", body["bucket"])
	assert.Equal(t, "us-east-1", body["region"])
	assert.Equal(t, "uploads/2025/01/02/id1-my-video.mp4", body["key"])
	assert.Equal(t, "upload-1", body["uploadId"])
	assert.Equal(t, 3600.0, body["expiresInSeconds"])
	assert.Equal(t, 10485760.0, body["recommendedPartSizeBytes"])
}

func TestInitiateErrors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		s := newTestServer(t, nil)
		rec, body := s.do(t, http.MethodPost, "/uploads/initiate", `{"fileName":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("upstream failure", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.gateway.err = errors.New("NoSuchBucket: The specified bucket does not exist")

		rec, body := s.do(t, http.MethodPost, "/uploads/initiate", `{"fileName":"a.bin"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "failed to initiate upload: NoSuchBucket: The specified bucket does not exist", body["error"])

		var logged bool
		for _, e := range s.logs.AllEntries() {
			if e.Message == "storage backend call failed" {
				logged = true
				assert.Equal(t, "initiate upload", e.Data["operation"])
			}
		}
		assert.True(t, logged)
	})
}

func TestPresignPart(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodGet, "/uploads/presign-part?key=uploads/k.bin&uploadId=upload-1&partNumber=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3600.0, body["expiresInSeconds"])

	url, _ := body["url"].(string)
	assert.Contains(t, url, "uploads/k.bin")
	assert.Contains(t, url, "uploadId=upload-1")
	assert.Contains(t, url, "partNumber=1")
}

func TestPresignPartRejectsBadInput(t *testing.T) {
	targets := []string{
		"/uploads/presign-part?key=k&uploadId=u&partNumber=0",
		"/uploads/presign-part?key=k&uploadId=u&partNumber=-1",
		"/uploads/presign-part?key=k&uploadId=u&partNumber=abc",
		"/uploads/presign-part?key=k&uploadId=u",
		"/uploads/presign-part?uploadId=u&partNumber=1",
		"/uploads/presign-part?key=k&partNumber=1",
	}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			s := newTestServer(t, nil)
			rec, body := s.do(t, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, s.gateway.signed)
		})
	}
}

func TestPresignParts(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/uploads/presign-parts", `{"key":"k","uploadId":"u","partNumbers":[3,1,2]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	parts, ok := body["parts"].([]any)
	require.True(t, ok)
	var order []float64
	for _, p := range parts {
		part := p.(map[string]any)
		order = append(order, part["partNumber"].(float64))
		assert.NotEmpty(t, part["url"])
	}
	assert.Equal(t, []float64{3, 1, 2}, order)
	assert.Equal(t, 3600.0, body["expiresInSeconds"])
}

func TestPresignPartsInvalidBatch(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/uploads/presign-parts", `{"key":"k","uploadId":"u","partNumbers":[1,0,2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, body, "parts")
	assert.Empty(t, s.gateway.signed)
}

func TestPresignPartsEmptyBatch(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/uploads/presign-parts", `{"key":"k","uploadId":"u","partNumbers":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"parts":[]`)
	assert.Equal(t, 3600.0, body["expiresInSeconds"])
	assert.Empty(t, s.gateway.signed)
}

func TestComplete(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/uploads/complete",
		`{"key":"uploads/k.bin","uploadId":"u","parts":[{"ETag":"\"e1\"","PartNumber":1},{"ETag":"\"e2\"","PartNumber":2}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, map[string]any{
		"bucket":   "media",
		"key":      "uploads/k.bin",
		"location": "https://media.s3.example/uploads/k.bin",
	}, body)
	assert.Equal(t, []upload.CompletedPart{{ETag: `"e1"`, PartNumber: 1}, {ETag: `"e2"`, PartNumber: 2}}, s.gateway.completed)
}

func TestCompleteEmptyManifest(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, http.MethodPost, "/uploads/complete", `{"key":"k","uploadId":"u","parts":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteRejectsOutOfRangePartNumber(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodPost, "/uploads/complete",
		`{"key":"k","uploadId":"u","parts":[{"ETag":"e","PartNumber":4294967297}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "partNumber must be between 1 and 10000")
	assert.Nil(t, s.gateway.completed)
}

func TestAbort(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodDelete, "/uploads/abort", `{"key":"k","uploadId":"u"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"aborted": true}, body)

	s.gateway.err = errors.New("NoSuchUpload: The specified multipart upload does not exist.")
	rec, body = s.do(t, http.MethodDelete, "/uploads/abort", `{"key":"k","uploadId":"u"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to abort upload: NoSuchUpload: The specified multipart upload does not exist.", body["error"])
}

func TestAbortRequiresDelete(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(t, http.MethodPost, "/uploads/abort", `{"key":"k","uploadId":"u"}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/uploads/initiate", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers")), "etag")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRootMountAndMetrics(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, func(o *Options) {
		o.MountPath = "/"
		o.Metrics = m
	})

	rec, body := s.do(t, http.MethodPost, "/initiate", `{"fileName":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "uploads/2025/01/02/id1-x", body["key"])

	rec, _ = s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `presigner_http_requests_total{code="200",method="POST",route="/initiate"} 1`)
}
