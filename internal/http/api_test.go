package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperlearn/internal/app"
	"hyperlearn/internal/config"
	"hyperlearn/internal/domain"
	"hyperlearn/internal/metrics"
)

type testServer struct {
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T, runRate float64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var cfg config.Config
	cfg.Storage.Driver = "memory"
	cfg.Storage.Namespace = "hyperlearn_"
	cfg.Runner.Timeout = 5 * time.Second
	cfg.Editor.Autorun = false

	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	a, err := app.Bootstrap(context.Background(), cfg, logger, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	router := gin.New()
	NewHandler(a, Config{
		RunRate:  runRate,
		RunBurst: 1,
		Metrics:  metrics.Handler(reg),
		Logger:   logger,
	}).RegisterRoutes(router)
	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signUp(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", gin.H{"identity": "ada@example.com", "secret": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	s.token = resp.Token
}

type runLogResponse struct {
	Handle string           `json:"handle"`
	Lines  []domain.RunLine `json:"lines"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t, 0)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/health", nil).Code)
}

func TestRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 0)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/tutorials", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/runs", gin.H{"document": "x"}).Code)

	s.signUp(t)
	valid := s.token
	s.token = "forged"
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/auth/me", nil).Code)

	s.token = valid
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/auth/me", nil).Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/api/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/auth/me", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, 0)
	s.signUp(t)

	me := decode[map[string]any](t, s.do(t, http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, "ada@example.com", me["identity"])
	assert.Equal(t, "ada@example.com", me["displayName"])
	assert.NotContains(t, me, "credentialHash")

	rec := s.do(t, http.MethodPost, "/api/auth/register", gin.H{"identity": "ada@example.com", "secret": "other"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	wrongSecret := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"identity": "ada@example.com", "secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, wrongSecret.Code)
	unknown := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"identity": "nobody@example.com", "secret": "pw"})
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongSecret.Body.String(), unknown.Body.String())
	assert.JSONEq(t, `{"error":"invalid identity or password"}`, unknown.Body.String())

	rec = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"identity": "ada@example.com", "secret": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	s.token = decode[sessionResponse](t, rec).Token

	rec = s.do(t, http.MethodPatch, "/api/auth/me", gin.H{"displayName": "Ada"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[map[string]any](t, rec)["displayName"])
}

func TestTutorialsAndProgress(t *testing.T) {
	s := newTestServer(t, 0)
	s.signUp(t)

	all := decode[[]map[string]any](t, s.do(t, http.MethodGet, "/api/tutorials", nil))
	assert.Len(t, all, 3)

	css := decode[[]map[string]any](t, s.do(t, http.MethodGet, "/api/tutorials?q=DESIGN", nil))
	require.Len(t, css, 1)
	assert.Equal(t, "css-card", css[0]["id"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tutorials/nope", nil).Code)

	rec := s.do(t, http.MethodPatch, "/api/progress/css-card", gin.H{"notes": "blur"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPatch, "/api/progress/css-card", gin.H{"done": true})
	require.Equal(t, http.StatusOK, rec.Code)

	progress := decode[map[string]any](t, s.do(t, http.MethodGet, "/api/progress/css-card", nil))
	assert.Equal(t, map[string]any{"notes": "blur", "done": true}, progress)
}

func TestEditorRoutes(t *testing.T) {
	s := newTestServer(t, 0)
	s.signUp(t)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/code/reset", nil).Code)

	rec := s.do(t, http.MethodPost, "/api/tutorials/js-hello/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodPut, "/api/code", gin.H{"text": "<script>console.log(1)</script>"}).Code)
	code := decode[codeRequest](t, s.do(t, http.MethodGet, "/api/code", nil))
	assert.Equal(t, "<script>console.log(1)</script>", code.Text)

	rec = s.do(t, http.MethodPost, "/api/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	handle := decode[map[string]string](t, rec)["handle"]

	stream := s.do(t, http.MethodGet, "/api/runs/"+handle+"/stream", nil)
	assert.Contains(t, stream.Body.String(), `"text":"1"`)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/code/reset", nil).Code)
	code = decode[codeRequest](t, s.do(t, http.MethodGet, "/api/code", nil))
	assert.Contains(t, code.Text, "sayHello")
}

func TestRunLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	s.signUp(t)

	rec := s.do(t, http.MethodPost, "/api/runs", gin.H{
		"document": `<div id="out"></div><script>function f(){return 2}; console.log(f()); console.log("ok"); document.getElementById("out").textContent = "done"</script>`,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	handle := decode[map[string]string](t, rec)["handle"]
	require.NotEmpty(t, handle)

	stream := s.do(t, http.MethodGet, "/api/runs/"+handle+"/stream", nil)
	require.Equal(t, http.StatusOK, stream.Code)
	body := stream.Body.String()
	assert.True(t, strings.HasPrefix(stream.Header().Get("Content-Type"), "text/event-stream"))
	assert.Contains(t, body, "event:line")
	assert.Contains(t, body, `"text":"2"`)
	assert.Contains(t, body, `"text":"ok"`)
	assert.Contains(t, body, "event:end")
	assert.Contains(t, body, `"status":"finished"`)
	assert.Less(t, bytes.Index(stream.Body.Bytes(), []byte(`"text":"2"`)), bytes.Index(stream.Body.Bytes(), []byte(`"text":"ok"`)))

	log := decode[runLogResponse](t, s.do(t, http.MethodGet, "/api/runs/"+handle+"/log", nil))
	require.Len(t, log.Lines, 2)
	assert.Equal(t, "2", log.Lines[0].Text)
	assert.Equal(t, domain.LineLog, log.Lines[0].Kind)

	preview := decode[map[string]string](t, s.do(t, http.MethodGet, "/api/runs/"+handle+"/preview", nil))
	assert.Contains(t, preview["html"], `<div id="out">done</div>`)
	assert.NotContains(t, preview["html"], "<script")

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/runs/"+handle, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/runs/"+handle, nil).Code)
	assert.Equal(t, http.StatusGone, s.do(t, http.MethodGet, "/api/runs/"+handle+"/log", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/runs/never-issued", nil).Code)
}

func TestRunCreationIsRateLimited(t *testing.T) {
	s := newTestServer(t, 0.01)
	s.signUp(t)

	doc := gin.H{"document": "<script>console.log(1)</script>"}
	assert.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/runs", doc).Code)
	rec := s.do(t, http.MethodPost, "/api/runs", doc)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.signUp(t)
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/api/runs", gin.H{"document": "<script></script>"}).Code)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hyperlearn_runs_started_total 1")
}
