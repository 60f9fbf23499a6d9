package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fault-triage/backend/internal/artifact"
	"fault-triage/backend/internal/classify"
	"fault-triage/backend/internal/predict"
	"fault-triage/backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func readyPredictor(t *testing.T) *predict.Service {
	t.Helper()
	docs := []string{"AC not cooling", "Tap is leaking", "AC making noise"}
	category := classify.NewPipeline("category", classify.DefaultAlpha)
	require.NoError(t, category.Fit(docs, []string{"Electrical", "Plumbing", "Electrical"}))
	priority := classify.NewPipeline("priority", classify.DefaultAlpha)
	require.NoError(t, priority.Fit(docs, []string{"High", "Low", "Medium"}))
	return predict.NewFromPipelines(category, priority)
}

func newTestServer(t *testing.T, cfg Config) (*Server, *gin.Engine) {
	t.Helper()
	cfg.DBPath = filepath.Join(t.TempDir(), "triage.db")
	cfg.SilentDB = true
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = t.TempDir()
	}
	if cfg.CategoryArtifact == "" {
		cfg.CategoryArtifact = "category_model.json"
		cfg.PriorityArtifact = "priority_model.json"
	}
	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return server, router
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		payload, _ = json.Marshal(v)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPredictDegraded(t *testing.T) {
	_, r := newTestServer(t, Config{})

	for _, path := range []string{"/predict", "/api/predict"} {
		w := doJSON(r, http.MethodPost, path, map[string]string{"description": "leaking pipe in room 12"})
		require.Equal(t, http.StatusOK, w.Code, path)

		var got predict.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "Low", got.Priority)
		assert.Equal(t, "General", got.Category)
		assert.NotEmpty(t, got.Error)
	}

	w := doJSON(r, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"model_state":"DEGRADED"`)
}

func TestPredictReadyFromArtifacts(t *testing.T) {
	dir := t.TempDir()
	files := artifact.NewFileStore(dir)
	docs := []string{"AC not cooling", "Tap is leaking", "AC making noise"}
	for name, labels := range map[string][]string{
		"category_model.json": {"Electrical", "Plumbing", "Electrical"},
		"priority_model.json": {"High", "Low", "Medium"},
	} {
		p := classify.NewPipeline(strings.TrimSuffix(name, "_model.json"), classify.DefaultAlpha)
		require.NoError(t, p.Fit(docs, labels))
		require.NoError(t, artifact.SavePipeline(files, name, p))
	}

	server, r := newTestServer(t, Config{ArtifactDir: dir})
	require.Equal(t, predict.StateReady, server.Predictor().State())

	w := doJSON(r, http.MethodPost, "/predict", map[string]string{"description": "air conditioner broken"})
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Electrical", got["category"])
	assert.Contains(t, []any{"High", "Medium"}, got["priority"])
	assert.NotContains(t, got, "error")

	w = doJSON(r, http.MethodGet, "/api/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status predict.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, predict.StateReady, status.State)
	assert.Equal(t, []string{"Electrical", "Plumbing"}, status.Category.Labels)
}

func TestPredictSQLiteBackend(t *testing.T) {
	_, r := newTestServer(t, Config{ArtifactBackend: BackendSQLite})
	w := doJSON(r, http.MethodPost, "/predict", map[string]string{"description": "anything"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "General")
}

func TestUnknownBackend(t *testing.T) {
	_, err := NewServer(Config{
		DBPath:          filepath.Join(t.TempDir(), "triage.db"),
		SilentDB:        true,
		ArtifactBackend: "s3",
	})
	require.Error(t, err)
}

func TestPredictValidation(t *testing.T) {
	_, r := newTestServer(t, Config{Predictor: readyPredictor(t), MaxDescriptionLength: 20})

	cases := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"malformed json", "{"},
		{"missing description", map[string]string{}},
		{"blank description", map[string]string{"description": "   "}},
		{"too long", map[string]string{"description": strings.Repeat("a", 21)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/predict", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestFaultLifecycle(t *testing.T) {
	_, r := newTestServer(t, Config{Predictor: readyPredictor(t)})

	w := doJSON(r, http.MethodPost, "/api/faults", FaultRequest{
		Description: "Tap is leaking in the washroom",
		Location:    "Room 12",
		HostelName:  "North",
		Floor:       "2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created CreateFaultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.FaultID)
	assert.Equal(t, "Plumbing", created.Fault.Category)
	assert.Equal(t, store.StatusSubmitted, created.Fault.Status)
	assert.Empty(t, created.Fault.PredictionError)

	w = doJSON(r, http.MethodPost, "/api/faults", FaultRequest{
		Description: "AC not cooling at all",
		Location:    "Room 3",
		HostelName:  "South",
		Floor:       "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, "/api/faults", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list FaultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 2, list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "AC not cooling at all", list.Items[0].Description)

	w = doJSON(r, http.MethodGet, "/api/faults?category=Plumbing", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	w = doJSON(r, http.MethodPut, "/api/faults/"+itoa(created.FaultID)+"/status", StatusRequest{Status: store.StatusInProgress})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(r, http.MethodGet, "/api/faults/"+itoa(created.FaultID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched FaultDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, store.StatusInProgress, fetched.Status)

	w = doJSON(r, http.MethodGet, "/api/faults/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats store.FaultStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Contains(t, stats.Status, store.GroupCount{Value: store.StatusInProgress, Count: 1})
	assert.Contains(t, stats.Status, store.GroupCount{Value: store.StatusSubmitted, Count: 1})
}

func TestFaultErrors(t *testing.T) {
	_, r := newTestServer(t, Config{Predictor: readyPredictor(t)})

	w := doJSON(r, http.MethodPost, "/api/faults", map[string]string{"description": "no location"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/faults/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/faults/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPut, "/api/faults/99/status", StatusRequest{Status: store.StatusResolved})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPut, "/api/faults/1/status", StatusRequest{Status: "Closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/faults?status=Closed", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFaultCreatedWhileDegraded(t *testing.T) {
	_, r := newTestServer(t, Config{})
	w := doJSON(r, http.MethodPost, "/api/faults", FaultRequest{
		Description: "leaking pipe in room 12",
		Location:    "Room 12",
		HostelName:  "North",
		Floor:       "1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateFaultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, predict.FallbackCategory, created.Fault.Category)
	assert.Equal(t, predict.FallbackPriority, created.Fault.Priority)
	assert.NotEmpty(t, created.Fault.PredictionError)
}

func TestFaultStream(t *testing.T) {
	server, r := newTestServer(t, Config{Predictor: readyPredictor(t)})
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/faults/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return server.notifier.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(FaultRequest{Description: "AC making noise", Location: "Room 1", HostelName: "East", Floor: "G"})
	resp, err := http.Post(ts.URL+"/api/faults", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event FaultEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventNewFault, event.Type)
	assert.Equal(t, "Electrical", event.Fault.Category)

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/faults/"+itoa(event.Fault.ID)+"/status",
		strings.NewReader(`{"status":"Resolved"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated FaultEvent
	require.NoError(t, conn.ReadJSON(&updated))
	assert.Equal(t, EventFaultUpdated, updated.Type)
	assert.Equal(t, event.Fault.ID, updated.FaultID)
	assert.Equal(t, store.StatusSubmitted, updated.PreviousStatus)
	assert.Equal(t, store.StatusResolved, updated.Fault.Status)

	// A late subscriber is sent the most recent event on connect.
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	var replayed FaultEvent
	require.NoError(t, late.ReadJSON(&replayed))
	assert.Equal(t, EventFaultUpdated, replayed.Type)
	assert.Equal(t, store.StatusResolved, replayed.Fault.Status)
}

func TestListFaultsPageBounds(t *testing.T) {
	_, r := newTestServer(t, Config{Predictor: readyPredictor(t)})
	w := doJSON(r, http.MethodPost, "/api/faults", FaultRequest{Description: "tap leaking", Location: "Room 3", HostelName: "North", Floor: "0"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, "/api/faults?page=9223372036854775807&pageSize=200", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, http.MethodGet, "/api/faults?page=99999999999999999999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/faults?page=100000&pageSize=200", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page FaultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 1, page.Total)
}

func TestAssignFault(t *testing.T) {
	server, r := newTestServer(t, Config{Predictor: readyPredictor(t)})

	w := doJSON(r, http.MethodPost, "/api/employees", EmployeeRequest{Name: "Ravi", Email: "ravi@example.com", Specializations: []string{"Plumbing"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var ravi EmployeeDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ravi))
	assert.Equal(t, []string{"Plumbing"}, ravi.Specializations)

	w = doJSON(r, http.MethodPost, "/api/employees", map[string]any{"name": "Nobody"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var employees []EmployeeDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &employees))
	assert.Len(t, employees, 1)

	w = doJSON(r, http.MethodPost, "/api/faults", FaultRequest{Description: "tap leaking", Location: "Room 3", HostelName: "North", Floor: "0"})
	require.Equal(t, http.StatusCreated, w.Code)
	var leak CreateFaultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &leak))
	require.Equal(t, "Plumbing", leak.Fault.Category)

	w = doJSON(r, http.MethodPut, "/api/faults/"+itoa(leak.FaultID)+"/assign", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var assigned AssignResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &assigned))
	assert.Equal(t, store.StatusInProgress, assigned.Fault.Status)
	require.NotNil(t, assigned.Fault.AssignedToID)
	assert.Equal(t, ravi.ID, *assigned.Fault.AssignedToID)
	assert.Contains(t, assigned.Message, "automatically assigned to employee #"+itoa(ravi.ID))

	w = doJSON(r, http.MethodPut, "/api/faults/"+itoa(leak.FaultID)+"/assign", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "already assigned")
	w = doJSON(r, http.MethodPut, "/api/faults/999/assign", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, "/api/faults", FaultRequest{Description: "AC not cooling", Location: "Room 12", HostelName: "North", Floor: "1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var ac CreateFaultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ac))
	w = doJSON(r, http.MethodPut, "/api/faults/"+itoa(ac.FaultID)+"/assign", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no available employees")

	assert.Equal(t, 1.0, testutil.ToFloat64(server.metrics.Assignments.WithLabelValues("Plumbing", "assigned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(server.metrics.Assignments.WithLabelValues(ac.Fault.Category, "no_employee")))
}

func TestFaultComments(t *testing.T) {
	server, r := newTestServer(t, Config{Predictor: readyPredictor(t)})
	w := doJSON(r, http.MethodPost, "/api/faults", FaultRequest{Description: "tap leaking", Location: "Room 3", HostelName: "North", Floor: "0"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateFaultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/api/faults/" + itoa(created.FaultID) + "/comments"

	w = doJSON(r, http.MethodPost, path, CommentRequest{Author: "warden", Comment: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(r, http.MethodPost, "/api/faults/999/comments", CommentRequest{Comment: "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(r, http.MethodGet, "/api/faults/999/comments", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodPost, path, CommentRequest{Author: "warden", Comment: "Plumber booked for tomorrow"})
	require.Equal(t, http.StatusCreated, w.Code)
	var comment CommentDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comment))
	assert.Equal(t, created.FaultID, comment.FaultID)
	assert.Equal(t, "Plumber booked for tomorrow", comment.Comment)
	w = doJSON(r, http.MethodPost, path, CommentRequest{Comment: "Still dripping"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var comments []CommentDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &comments))
	require.Len(t, comments, 2)
	assert.Equal(t, "warden", comments[0].Author)
	assert.Equal(t, "Still dripping", comments[1].Comment)
	assert.Equal(t, 2.0, testutil.ToFloat64(server.metrics.Comments))
}

func TestMetricsEndpoint(t *testing.T) {
	_, r := newTestServer(t, Config{Predictor: readyPredictor(t)})
	doJSON(r, http.MethodPost, "/predict", map[string]string{"description": "tap leaking"})

	w := doJSON(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `fault_triage_predictions_total{outcome="model"} 1`)
	assert.Contains(t, w.Body.String(), `fault_triage_model_loaded{target="category"} 1`)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
