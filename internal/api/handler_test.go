package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymqueue-backend/config"
	"gymqueue-backend/internal/clock"
	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/queue"
	"gymqueue-backend/internal/store"
	"gymqueue-backend/internal/testdb"
	"gymqueue-backend/internal/usage"
	"gymqueue-backend/internal/ws"
)

type recordingNotifier struct {
	mu  sync.Mutex
	ids []int64
}

func (n *recordingNotifier) Dispatch(equipmentID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, equipmentID)
}

type testEnv struct {
	router   *gin.Engine
	clk      *clock.MockClock
	notifier *recordingNotifier
	rack     model.Equipment
	bench    model.Equipment
}

func setupRouter(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)
	gormDB := testdb.Open(t)
	st := store.NewGormStore(gormDB)
	clk := clock.NewMockClock(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		clk:      clk,
		notifier: &recordingNotifier{},
		rack:     testdb.SeedEquipment(t, gormDB, "Squat Rack", "rack", "Downtown"),
		bench:    testdb.SeedEquipment(t, gormDB, "Bench", "bench", "Uptown"),
	}

	cfg := config.Default().Server
	cfg.RateLimitPerSec = 1000
	cfg.RateLimitBurst = 1000
	env.router = NewRouter(Dependencies{
		Store:    st,
		Queue:    queue.NewService(st, clk, queue.Options{LateThreshold: 3 * time.Minute, Grace: 2 * time.Minute, Logger: logger}),
		Usage:    usage.NewService(st, clk),
		Hub:      ws.NewHub(logger),
		Notifier: env.notifier,
	}, cfg, logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) reserve(t *testing.T, userID, equipmentID int64, minutes int, policy string) model.Reservation {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/reservations", gin.H{
		"userId": userID, "equipmentId": equipmentID, "desiredMinutes": minutes, "latePolicy": policy,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var r model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) queue.Snapshot {
	t.Helper()
	var snap queue.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	return snap
}

func equipmentPath(id int64, suffix string) string {
	return "/api/reservations/equipment/" + strconv.FormatInt(id, 10) + suffix
}

func TestCreateReservation(t *testing.T) {
	env := setupRouter(t)

	first := env.reserve(t, 1, env.rack.ID, 10, "DROP")
	assert.Equal(t, model.StatusInProgress, first.Status)
	second := env.reserve(t, 2, env.rack.ID, 15, "move_to_next")
	assert.Equal(t, model.StatusWaiting, second.Status)
	assert.Equal(t, model.LatePolicyMoveToNext, second.LatePolicy)
	legacy := env.reserve(t, 3, env.rack.ID, 5, "SKIP")
	assert.Equal(t, model.LatePolicyDrop, legacy.LatePolicy)

	assert.Equal(t, []int64{env.rack.ID, env.rack.ID, env.rack.ID}, env.notifier.ids)

	testCases := []struct {
		name           string
		body           any
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Malformed JSON",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":{"message":"invalid request"}}`,
		},
		{
			name:           "Unknown policy",
			body:           gin.H{"userId": 1, "equipmentId": env.rack.ID, "desiredMinutes": 10, "latePolicy": "LATER"},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":{"message":"unknown late policy \"LATER\""}}`,
		},
		{
			name:           "Non-positive duration",
			body:           gin.H{"userId": 1, "equipmentId": env.rack.ID, "desiredMinutes": 0, "latePolicy": "DROP"},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":{"message":"desiredMinutes must be positive, got 0"}}`,
		},
		{
			name:           "Unknown equipment",
			body:           gin.H{"userId": 1, "equipmentId": 999, "desiredMinutes": 10, "latePolicy": "DROP"},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":{"message":"equipment 999 not found"}}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/reservations", tc.body)
			assert.Equal(t, tc.expectedStatus, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestStatusEventsAndQueue(t *testing.T) {
	env := setupRouter(t)
	occupant := env.reserve(t, 1, env.rack.ID, 10, "DROP")
	w1 := env.reserve(t, 2, env.rack.ID, 15, "MOVE_TO_NEXT")
	w2 := env.reserve(t, 3, env.rack.ID, 20, "DROP")

	w := env.do(t, http.MethodGet, equipmentPath(env.rack.ID, "/queue"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeSnapshot(t, w)
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, occupant.ID, snap.CurrentUser.ID)
	assert.Equal(t, []int64{w1.ID, w2.ID}, []int64{snap.WaitingUsers[0].ID, snap.WaitingUsers[1].ID})

	env.clk.Add(10 * time.Minute)
	w = env.do(t, http.MethodPut, equipmentPath(env.rack.ID, "/status-event"), gin.H{"eventType": "END_EXERCISE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap = decodeSnapshot(t, w)
	assert.Nil(t, snap.CurrentUser)
	require.NotNil(t, snap.InvitedDeadline)

	env.clk.Add(4 * time.Minute)
	w = env.do(t, http.MethodPut, equipmentPath(env.rack.ID, "/status-event"), gin.H{"eventType": "late"})
	require.Equal(t, http.StatusOK, w.Code)
	snap = decodeSnapshot(t, w)
	assert.Equal(t, w2.ID, snap.WaitingUsers[0].ID)
	assert.Equal(t, model.StatusOneSkipped, snap.WaitingUsers[1].Status)

	w = env.do(t, http.MethodGet, equipmentPath(env.rack.ID, "/status"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, w2.ID, decodeSnapshot(t, w).WaitingUsers[0].ID)

	t.Run("Unknown event type", func(t *testing.T) {
		w := env.do(t, http.MethodPut, equipmentPath(env.rack.ID, "/status-event"), gin.H{"eventType": "JUMP"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing event type", func(t *testing.T) {
		w := env.do(t, http.MethodPut, equipmentPath(env.rack.ID, "/status-event"), gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Bad equipment id", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/reservations/equipment/abc/queue", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":{"message":"invalid id"}}`, w.Body.String())
	})

	t.Run("Unknown equipment", func(t *testing.T) {
		w := env.do(t, http.MethodGet, equipmentPath(404, "/queue"), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUserReservationsAndCancel(t *testing.T) {
	env := setupRouter(t)
	env.reserve(t, 1, env.rack.ID, 10, "DROP")
	waiting := env.reserve(t, 2, env.rack.ID, 10, "DROP")
	other := env.reserve(t, 2, env.bench.ID, 10, "DROP")

	w := env.do(t, http.MethodGet, "/api/reservations/user/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	assert.Len(t, active, 2)

	w = env.do(t, http.MethodDelete, "/api/reservations/"+strconv.FormatInt(waiting.ID, 10), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/api/reservations/"+strconv.FormatInt(waiting.ID, 10), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/reservations/user/2", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)

	w = env.do(t, http.MethodGet, "/api/reservations/user/3", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestEquipmentCatalog(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/equipment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = env.do(t, http.MethodGet, "/api/equipment?type=rack", nil)
	var racks []model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &racks))
	require.Len(t, racks, 1)
	assert.Equal(t, "Squat Rack", racks[0].Name)

	w = env.do(t, http.MethodGet, "/api/equipment?gym=Uptown", nil)
	var uptown []model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uptown))
	require.Len(t, uptown, 1)
	assert.Equal(t, env.bench.ID, uptown[0].ID)

	w = env.do(t, http.MethodGet, "/api/equipment/"+strconv.FormatInt(env.bench.ID, 10), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/api/equipment/"+strconv.FormatInt(env.bench.ID, 10), nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = env.do(t, http.MethodGet, "/api/equipment/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsageEndpoints(t *testing.T) {
	env := setupRouter(t)
	r := env.reserve(t, 1, env.rack.ID, 10, "DROP")

	w := env.do(t, http.MethodGet, "/api/equipment/"+strconv.FormatInt(env.rack.ID, 10)+"/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cur usage.Current
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cur))
	assert.Equal(t, r.ID, cur.Usage.ReservationID)
	assert.Equal(t, 10, cur.RemainingMinutes)

	env.clk.Add(8 * time.Minute)
	w = env.do(t, http.MethodPut, equipmentPath(env.rack.ID, "/status-event"), gin.H{"eventType": "END_EXERCISE"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/equipment/"+strconv.FormatInt(env.rack.ID, 10)+"/current", nil)
	assert.Equal(t, "null", w.Body.String())

	w = env.do(t, http.MethodGet, "/api/users/1/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.Usage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.NotNil(t, history[0].EndTime)

	w = env.do(t, http.MethodGet, "/api/users/1/usage/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"equipmentId":`+strconv.FormatInt(env.rack.ID, 10)+`,"equipmentName":"Squat Rack","equipmentType":"rack","totalMinutes":8,"sessions":1}]`, w.Body.String())
}

func TestStatusOf(t *testing.T) {
	status, _ := statusOf(queue.ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = statusOf(queue.ErrConflict)
	assert.Equal(t, http.StatusConflict, status)
	status, msg := statusOf(io.EOF)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", msg)
}
