package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentforge/api/internal/agent"
	"github.com/contentforge/api/internal/model"
	"github.com/contentforge/api/internal/pipeline"
	"github.com/contentforge/api/internal/retry"
	"github.com/contentforge/api/internal/service"
	"github.com/contentforge/api/internal/store"
	ws "github.com/contentforge/api/internal/websocket"
	"github.com/contentforge/api/pkg/response"
)

type memoryCache struct {
	mu       sync.Mutex
	jobs     map[string]model.Job
	progress map[string]model.ProgressEvent
}

func newMemoryCache() *memoryCache {
	return &memoryCache{jobs: map[string]model.Job{}, progress: map[string]model.ProgressEvent{}}
}

func (c *memoryCache) SaveJob(_ context.Context, job *model.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[job.ID] = *job
	return nil
}

func (c *memoryCache) GetJob(_ context.Context, id string) (*model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &job, nil
}

func (c *memoryCache) DeleteJob(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, id)
	delete(c.progress, id)
	return nil
}

func (c *memoryCache) SetProgress(_ context.Context, ev model.ProgressEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[ev.JobID] = ev
	return nil
}

func (c *memoryCache) GetProgress(_ context.Context, id string) (*model.ProgressEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.progress[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ev, nil
}

type testServer struct {
	app      *fiber.App
	hub      *ws.Hub
	trackers *ws.TrackerRegistry
}

func newTestServer(t *testing.T, steps pipeline.Steps) *testServer {
	t.Helper()

	repo, err := store.Open(t.Context(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	orchestrator, err := pipeline.NewContentPipeline(steps, retry.Config{
		MaxAttempts:     1,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Millisecond,
		ExponentialBase: 2,
	})
	require.NoError(t, err)

	cache := newMemoryCache()
	hub := ws.NewHub()
	trackers := ws.NewTrackerRegistry(hub, service.NewProgressSink(cache))
	svc := service.NewContentService(orchestrator, cache, repo, trackers)

	stream := ws.NewStream(hub, trackers)
	stream.SetPingInterval(time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	Routes{
		Content:  NewContentHandler(svc, validator.New()),
		Stream:   stream,
		Services: func() fiber.Map { return fiber.Map{"llm": false} },
	}.Register(app)

	return &testServer{app: app, hub: hub, trackers: trackers}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeError(t *testing.T, data []byte) response.ErrorDetail {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Error
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	status, data := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","services":{"llm":false}}`, string(data))
}

func TestGenerate_Completes(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	status, data := srv.do(t, http.MethodPost, "/api/content/generate", fiber.Map{
		"topic":    "Remote work for small teams",
		"keywords": []string{"async", "tools"},
	})
	require.Equal(t, http.StatusOK, status, string(data))

	var result model.ContentResponse
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, model.StatusCompleted, result.Status)
	require.NotNil(t, result.Content)
	assert.Contains(t, *result.Content, "A Practical Guide to Remote work for small teams")
	assert.Equal(t, model.ContentTypeBlogPost, result.Request.ContentType)
	assert.Len(t, result.PhaseTimings, 5)

	status, data = srv.do(t, http.MethodGet, "/api/content/"+result.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var fetched model.ContentResponse
	require.NoError(t, json.Unmarshal(data, &fetched))
	assert.Equal(t, result.ID, fetched.ID)

	status, data = srv.do(t, http.MethodGet, "/api/content/"+result.ID+"/status", nil)
	require.Equal(t, http.StatusOK, status)
	var st model.ContentStatusResponse
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, model.StatusCompleted, st.Status)
	require.NotNil(t, st.Progress)
	assert.Equal(t, model.EventTypeCompleted, st.Progress.Type)
	assert.Equal(t, 100, st.Progress.ProgressPercent)
}

func TestGenerate_FailureReportsPhase(t *testing.T) {
	steps := agent.Steps(nil)
	steps.Writer = pipeline.StepFunc(func(ctx context.Context, p model.Payload) (model.Payload, error) {
		return model.Payload{}, errors.New("model refused")
	})
	srv := newTestServer(t, steps)

	status, data := srv.do(t, http.MethodPost, "/api/content/generate", fiber.Map{
		"topic": "Remote work for small teams",
	})
	require.Equal(t, http.StatusBadGateway, status, string(data))

	detail := decodeError(t, data)
	assert.Equal(t, response.CodeGenerationFailed, detail.Code)
	assert.Contains(t, detail.Message, "model refused")

	raw, err := json.Marshal(detail.Details)
	require.NoError(t, err)
	var job model.ContentResponse
	require.NoError(t, json.Unmarshal(raw, &job))
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Equal(t, model.PhaseWrite, job.FailedPhase)
	assert.NotNil(t, job.Research)
	assert.NotNil(t, job.Outline)
	assert.Nil(t, job.Content)
}

func TestGenerate_ValidationErrors(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	tests := []struct {
		name string
		body interface{}
	}{
		{"topic too short", fiber.Map{"topic": "abc"}},
		{"unknown content type", fiber.Map{"topic": "Remote work", "content_type": "poem"}},
		{"word count too low", fiber.Map{"topic": "Remote work", "word_count": 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := srv.do(t, http.MethodPost, "/api/content/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, response.CodeValidationError, decodeError(t, data).Code)
		})
	}
}

func TestGenerateAsync_WithoutQueue(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	status, data := srv.do(t, http.MethodPost, "/api/content/generate/async", fiber.Map{
		"topic": "Remote work for small teams",
	})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, response.CodeUnavailable, decodeError(t, data).Code)
}

func TestListAndDelete(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	var ids []string
	for _, topic := range []string{"First topic here", "Second topic here"} {
		status, data := srv.do(t, http.MethodPost, "/api/content/generate", fiber.Map{"topic": topic})
		require.Equal(t, http.StatusOK, status)
		var result model.ContentResponse
		require.NoError(t, json.Unmarshal(data, &result))
		ids = append(ids, result.ID)
	}

	status, data := srv.do(t, http.MethodGet, "/api/content?limit=1&status=completed", nil)
	require.Equal(t, http.StatusOK, status)
	var page model.ContentListResponse
	require.NoError(t, json.Unmarshal(data, &page))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.Len(t, page.Items, 1)

	status, data = srv.do(t, http.MethodGet, "/api/content?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, response.CodeValidationError, decodeError(t, data).Code)

	status, _ = srv.do(t, http.MethodDelete, "/api/content/"+ids[0], nil)
	assert.Equal(t, http.StatusOK, status)

	status, data = srv.do(t, http.MethodGet, "/api/content/"+ids[0], nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, response.CodeNotFound, decodeError(t, data).Code)

	status, _ = srv.do(t, http.MethodDelete, "/api/content/"+ids[0], nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWebSocketRoutesRequireUpgrade(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	status, data := srv.do(t, http.MethodGet, "/ws/content/abc", nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.Equal(t, response.CodeServiceError, decodeError(t, data).Code)
}

func TestWebSocketStreamsJobProgress(t *testing.T) {
	srv := newTestServer(t, agent.Steps(nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.app.Listener(ln)
	t.Cleanup(func() { srv.app.Shutdown() })

	conn, _, err := gws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/content/job-1", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var greeting model.WSControlMessage
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, model.WSMessageTypeConnected, greeting.Type)
	assert.Equal(t, "job-1", greeting.JobID)

	require.Eventually(t, func() bool {
		return srv.hub.ObserverCount("job-1") == 1
	}, time.Second, 10*time.Millisecond)

	job := model.NewJob(model.ContentRequest{Topic: "Remote work for small teams"})
	job.ID = "job-1"
	tracker := srv.trackers.Open(job.ID, job.Request.Topic)
	tracker.Started(t.Context(), job)
	tracker.PhaseStarted(t.Context(), job, model.PhaseResearch)

	var started model.ProgressEvent
	require.NoError(t, conn.ReadJSON(&started))
	assert.Equal(t, model.EventTypeStarted, started.Type)
	assert.Equal(t, "Remote work for small teams", started.Topic)

	var progress model.ProgressEvent
	require.NoError(t, conn.ReadJSON(&progress))
	assert.Equal(t, model.EventTypeProgress, progress.Type)
	assert.Equal(t, model.PhaseResearch, progress.Phase)

	require.NoError(t, conn.WriteJSON(model.WSMessage{Type: model.WSMessageTypePing}))
	var pong model.WSControlMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, model.WSMessageTypePong, pong.Type)

	conn.Close()
	require.Eventually(t, func() bool {
		return srv.hub.ObserverCount("job-1") == 0
	}, time.Second, 10*time.Millisecond)
}
