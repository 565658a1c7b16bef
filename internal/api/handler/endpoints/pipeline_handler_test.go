package endpoints

import (
	"context"
	"dashboard"
	"dashboard/internal/api/handler/mapper"
	"dashboard/internal/api/handler/response"
	"dashboard/internal/api/service"
	"dashboard/internal/engine/editor"
	"dashboard/internal/engine/geom"
	"dashboard/internal/engine/graph"
	"dashboard/internal/engine/position"
	"dashboard/pkg"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type fakeGraphs struct {
	nodes map[uint][]uint
	err   error
}

func (f fakeGraphs) known(pipelineID uint) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.nodes[pipelineID]; !ok {
		return fmt.Errorf("%w: %d", service.ErrPipelineNotFound, pipelineID)
	}
	return nil
}

func (f fakeGraphs) Scene(_ context.Context, pipelineID uint) (editor.Scene, error) {
	if err := f.known(pipelineID); err != nil {
		return editor.Scene{}, err
	}
	scene := editor.Scene{PipelineID: pipelineID, State: "idle", Viewport: editor.NewViewport(0.1, 2)}
	for _, id := range f.nodes[pipelineID] {
		scene.Nodes = append(scene.Nodes, editor.NodeView{ID: id})
	}
	return scene, nil
}

func (f fakeGraphs) Diagnostics(_ context.Context, pipelineID uint) (service.Diagnostics, error) {
	if err := f.known(pipelineID); err != nil {
		return service.Diagnostics{}, err
	}
	return service.Diagnostics{
		PipelineID: pipelineID,
		Degraded:   true,
		Nodes:      len(f.nodes[pipelineID]),
		Items:      []graph.Diagnostic{{Code: graph.DiagOrphan, NodeID: 3}},
	}, nil
}

func (f fakeGraphs) HasNode(_ context.Context, pipelineID uint, nodeID uint) (bool, error) {
	if err := f.known(pipelineID); err != nil {
		return false, err
	}
	for _, id := range f.nodes[pipelineID] {
		if id == nodeID {
			return true, nil
		}
	}
	return false, nil
}

func setupPipelineRouter(mode string, graphs graphReader, positions positionStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := dashboard.AppConfig{Mode: mode}
	cfg.JWTConfig.Secret = testSecret
	h := &pipelineHandler{
		logger:         zerolog.Nop(),
		config:         cfg,
		graphs:         graphs,
		positions:      positions,
		positionMapper: mapper.NewPositionMapper(),
	}
	h.register(router.Group("/api/v1/pipelines"))
	return router
}

func perform(router http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPipelineHandler_GetGraph(t *testing.T) {
	router := setupPipelineRouter("dev", fakeGraphs{nodes: map[uint][]uint{1: {1, 2}}}, position.NewMemory())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"existing pipeline", "/api/v1/pipelines/1/graph", http.StatusOK},
		{"unknown pipeline", "/api/v1/pipelines/2/graph", http.StatusNotFound},
		{"invalid id", "/api/v1/pipelines/abc/graph", http.StatusBadRequest},
		{"zero id", "/api/v1/pipelines/0/graph", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := perform(router, http.MethodGet, "/api/v1/pipelines/1/graph", "")
	scene := decode[editor.Scene](t, w)
	assert.Equal(t, uint(1), scene.PipelineID)
	assert.Len(t, scene.Nodes, 2)
	assert.Equal(t, 1.0, scene.Viewport.Zoom)
}

func TestPipelineHandler_Diagnostics(t *testing.T) {
	router := setupPipelineRouter("dev", fakeGraphs{nodes: map[uint][]uint{1: {1, 2, 3}}}, position.NewMemory())

	w := perform(router, http.MethodGet, "/api/v1/pipelines/1/diagnostics", "")

	require.Equal(t, http.StatusOK, w.Code)
	d := decode[service.Diagnostics](t, w)
	assert.True(t, d.Degraded)
	assert.Equal(t, 3, d.Nodes)
	require.Len(t, d.Items, 1)
	assert.Equal(t, graph.DiagOrphan, d.Items[0].Code)
}

func TestPipelineHandler_InternalErrorsAreHidden(t *testing.T) {
	router := setupPipelineRouter("dev", fakeGraphs{err: errors.New("pq: connection reset")}, position.NewMemory())

	w := perform(router, http.MethodGet, "/api/v1/pipelines/1/diagnostics", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	apiErr := decode[response.APIError](t, w)
	assert.NotContains(t, apiErr.Message, "pq")
}

func TestPipelineHandler_UpdatePosition(t *testing.T) {
	store := position.NewMemory()
	router := setupPipelineRouter("dev", fakeGraphs{nodes: map[uint][]uint{1: {1, 2}}}, store)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"valid", "/api/v1/pipelines/1/positions/2", `{"x": 12.5, "y": -40}`, http.StatusOK},
		{"missing y", "/api/v1/pipelines/1/positions/2", `{"x": 12.5}`, http.StatusBadRequest},
		{"malformed body", "/api/v1/pipelines/1/positions/2", `{"x": `, http.StatusBadRequest},
		{"unknown node", "/api/v1/pipelines/1/positions/9", `{"x": 1, "y": 1}`, http.StatusNotFound},
		{"unknown pipeline", "/api/v1/pipelines/5/positions/1", `{"x": 1, "y": 1}`, http.StatusNotFound},
		{"invalid node id", "/api/v1/pipelines/1/positions/x", `{"x": 1, "y": 1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(router, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	overrides, err := store.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, geom.Pt(12.5, -40), overrides[2])
	assert.Len(t, overrides, 1)
}

func TestPipelineHandler_ListAndResetPositions(t *testing.T) {
	ctx := context.Background()
	store := position.NewMemory()
	require.NoError(t, store.Save(ctx, 1, 3, geom.Pt(30, 30)))
	require.NoError(t, store.Save(ctx, 1, 1, geom.Pt(10, 10)))
	router := setupPipelineRouter("dev", fakeGraphs{nodes: map[uint][]uint{1: {1, 2, 3}}}, store)

	w := perform(router, http.MethodGet, "/api/v1/pipelines/1/positions", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[response.Positions](t, w)
	assert.Equal(t, []response.Position{
		{NodeID: 1, X: 10, Y: 10},
		{NodeID: 3, X: 30, Y: 30},
	}, list.Positions)

	w = perform(router, http.MethodDelete, "/api/v1/pipelines/1/positions", "")
	require.Equal(t, http.StatusOK, w.Code)

	overrides, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, overrides)

	w = perform(router, http.MethodGet, "/api/v1/pipelines/1/positions", "")
	list = decode[response.Positions](t, w)
	assert.NotNil(t, list.Positions)
	assert.Empty(t, list.Positions)
}

func TestPipelineHandler_Auth(t *testing.T) {
	router := setupPipelineRouter("prod", fakeGraphs{nodes: map[uint][]uint{1: {1}}}, position.NewMemory())

	token := func(role string) string {
		tok, err := pkg.GenerateToken(7, "ada@example.com", role, testSecret, time.Hour)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		status int
	}{
		{"no header", http.MethodGet, "/api/v1/pipelines/1/graph", "", "", http.StatusUnauthorized},
		{"bad scheme", http.MethodGet, "/api/v1/pipelines/1/graph", "", "Basic abc", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/v1/pipelines/1/graph", "", "Bearer nope", http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/api/v1/pipelines/1/graph", "", token("viewer"), http.StatusOK},
		{"viewer cannot move", http.MethodPut, "/api/v1/pipelines/1/positions/1", `{"x":1,"y":2}`, token("viewer"), http.StatusForbidden},
		{"editor moves", http.MethodPut, "/api/v1/pipelines/1/positions/1", `{"x":1,"y":2}`, token("editor"), http.StatusOK},
		{"admin resets", http.MethodDelete, "/api/v1/pipelines/1/positions", "", token("admin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.auth != "" {
				headers = []string{"Authorization", tt.auth}
			}
			w := perform(router, tt.method, tt.path, tt.body, headers...)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}
