package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sysaura/internal/client"
	"sysaura/internal/controllers"
	"sysaura/internal/logger"
	"sysaura/internal/models"
	"sysaura/internal/routes"
	"sysaura/internal/services"
	"sysaura/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "controllers-test-secret-0123456789abcdef"

type staticSampler struct{}

func (staticSampler) CPU(ctx context.Context) (*models.CPUInfo, error) {
	return &models.CPUInfo{Model: "Test CPU", Cores: 2, PhysicalCores: 1, Usage: 40,
		CoreData: []models.CoreLoad{{Core: 0, Load: 30}, {Core: 1, Load: 50}}}, nil
}

func (staticSampler) Memory(ctx context.Context) (*models.MemoryInfo, error) {
	return &models.MemoryInfo{Total: 16, Used: 8, Free: 8, UsedPercentage: 50}, nil
}

func (staticSampler) Disk(ctx context.Context) (*models.DiskInfo, error) {
	return &models.DiskInfo{Disks: []models.Disk{
		{Name: "/", FS: "ext4", Size: 100, Used: 40, UsedPercentage: 40},
	}, AverageUsage: 40}, nil
}

func (staticSampler) Network(ctx context.Context) (*models.NetworkInfo, error) {
	return &models.NetworkInfo{TotalIncoming: 1.5, TotalOutgoing: 0.5}, nil
}

// brokenCPUSampler fails CPU reads with an OS-level error.
type brokenCPUSampler struct{ staticSampler }

func (brokenCPUSampler) CPU(ctx context.Context) (*models.CPUInfo, error) {
	return nil, errors.New("open /proc/stat: permission denied")
}

type testServer struct {
	router   *gin.Engine
	store    *store.Store
	alerts   *services.AlertStore
	registry *services.Registry
	hub      *services.WebSocketHub
	tokens   map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, staticSampler{})
}

func newTestServerWith(t *testing.T, sampler services.Sampler) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	st, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.CreateUser(ctx, store.User{ID: "alice", Email: "alice@example.com"}))
	require.NoError(t, st.CreateUser(ctx, store.User{ID: "bob", Email: "bob@example.com"}))
	require.NoError(t, st.CreateUser(ctx, store.User{ID: "root", Email: "root@example.com", Role: string(models.RoleAdmin)}))
	require.NoError(t, st.EnsureTarget(ctx, models.Target{ID: models.LocalTargetID, Name: "collector", OwnerID: "root"}))
	require.NoError(t, st.CreateTarget(ctx, models.Target{ID: "srv-1", Name: "web", OwnerID: "alice"}))
	require.NoError(t, st.CreateTarget(ctx, models.Target{ID: "srv-2", Name: "db", OwnerID: "bob"}))

	log := logger.Noop()
	auth := services.NewAuthService(testSecret, time.Hour, log)
	history := services.NewHistory(10)
	aggregator := services.NewAggregator(sampler, history, log)
	alerts := services.NewAlertStore(st, false, log)
	registry := services.NewRegistry(st)
	hub := services.NewWebSocketHub(log)
	dist := services.NewDistributor(services.DistributorDeps{
		Aggregator: aggregator,
		Evaluator:  services.NewEvaluator(services.DefaultThresholds(), 0),
		Alerts:     alerts,
		Registry:   registry,
		Hub:        hub,
		Recorder:   st,
		Log:        log,
	})

	router := routes.NewRouter(routes.RouterOptions{
		Metrics: controllers.NewMetricsController(dist, aggregator, st, log),
		Alerts:  controllers.NewAlertsController(alerts, st, log),
		WebSocket: controllers.NewWebSocketController(controllers.WebSocketDeps{
			Hub:         hub,
			Registry:    registry,
			Distributor: dist,
			Auth:        auth,
			Log:         log,
		}),
		Auth:     auth,
		Security: nil,
	})

	tokens := make(map[string]string)
	for id, role := range map[string]models.Role{"alice": models.RoleUser, "bob": models.RoleUser, "root": models.RoleAdmin} {
		tok, err := auth.GenerateToken(models.Identity{UserID: id, Role: role})
		require.NoError(t, err)
		tokens[id] = tok
	}

	return &testServer{router: router, store: st, alerts: alerts, registry: registry, hub: hub, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[user])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/metrics/current", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
}

func TestCurrentSnapshot(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/metrics/current", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	snap := decode[models.Snapshot](t, w)
	assert.Equal(t, 40.0, snap.CPUUsage)
	assert.Equal(t, 50.0, snap.MemoryUsage)
	require.NotNil(t, snap.CPUInfo)
	assert.Len(t, snap.CPUInfo.History, 1)

	rows := decode[[]models.MetricsRow](t, ts.do(t, http.MethodGet, "/api/metrics/history/local", "alice", nil))
	require.Len(t, rows, 1)
	assert.Equal(t, models.LocalTargetID, rows[0].TargetID)
}

func TestKindAndLiveEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/metrics/cpu", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cpu := decode[models.CPUInfo](t, w)
	assert.Equal(t, 40.0, cpu.Usage)

	w = ts.do(t, http.MethodGet, "/api/metrics/network", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/metrics/live/cpu", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	live := decode[struct {
		Metric   string                `json:"metric"`
		Capacity int                   `json:"capacity"`
		Data     []models.MetricSample `json:"data"`
	}](t, w)
	assert.Equal(t, "cpu", live.Metric)
	assert.Equal(t, 10, live.Capacity)
	assert.Len(t, live.Data, 1)

	w = ts.do(t, http.MethodGet, "/api/metrics/live/gpu", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKindSamplingFailureIsHidden(t *testing.T) {
	ts := newTestServerWith(t, brokenCPUSampler{})

	w := ts.do(t, http.MethodGet, "/api/metrics/cpu", "alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"metrics unavailable"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "/proc")

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/metrics/memory", "alice", nil).Code)
}

func TestHistoryAccess(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/metrics/history/srv-2", "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/metrics/history/nope", "alice", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/metrics/history/srv-1?limit=x", "alice", nil).Code)

	w := ts.do(t, http.MethodGet, "/api/metrics/history/srv-2", "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRefreshSystemChecksAccess(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/metrics/refresh/srv-2", "alice", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/metrics/refresh/srv-1", "alice", nil).Code)
}

func TestPostMetrics(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/metrics/srv-1", "alice", map[string]float64{"cpuUsage": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := map[string]float64{"cpuUsage": 95, "memoryUsage": 50, "diskUsage": 50}
	w = ts.do(t, http.MethodPost, "/api/metrics/ghost", "alice", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/metrics/srv-1", "alice", body)
	require.Equal(t, http.StatusCreated, w.Code)
	row := decode[models.MetricsRow](t, w)
	assert.NotZero(t, row.ID)
	assert.Equal(t, "srv-1", row.TargetID)
	assert.Equal(t, 95.0, row.CPUUsage)

	target, err := ts.store.Target(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "online", target.Status)

	alerts := decode[[]models.Alert](t, ts.do(t, http.MethodGet, "/api/alerts", "alice", nil))
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.KindCPU, alerts[0].Category)

	assert.Empty(t, decode[[]models.Alert](t, ts.do(t, http.MethodGet, "/api/alerts", "bob", nil)))
	assert.Len(t, decode[[]models.Alert](t, ts.do(t, http.MethodGet, "/api/alerts?status=active", "root", nil)), 1)
	assert.Empty(t, decode[[]models.Alert](t, ts.do(t, http.MethodGet, "/api/alerts?status=resolved", "root", nil)))
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/alerts?status=bogus", "root", nil).Code)
}

func TestAlertLifecycle(t *testing.T) {
	ts := newTestServer(t)

	create := func(user, systemID string) *httptest.ResponseRecorder {
		return ts.do(t, http.MethodPost, "/api/alerts", user, map[string]string{
			"systemId": systemID, "title": "Disk swap", "message": "replace disk 2", "severity": "warning",
		})
	}

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/alerts", "alice", map[string]string{"systemId": "srv-1"}).Code)
	assert.Equal(t, http.StatusNotFound, create("alice", "ghost").Code)
	assert.Equal(t, http.StatusForbidden, create("alice", "srv-2").Code)

	w := create("alice", "srv-1")
	require.Equal(t, http.StatusCreated, w.Code)
	alert := decode[models.Alert](t, w)
	assert.Equal(t, models.StatusActive, alert.Status)
	assert.Equal(t, controllers.SourceManual, alert.Source)

	w = create("bob", "srv-2")
	require.Equal(t, http.StatusCreated, w.Code)
	bobs := decode[models.Alert](t, w)

	path := "/api/alerts/" + alert.ID
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPatch, path, "alice", map[string]string{"status": "gone"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPatch, "/api/alerts/missing", "alice", map[string]string{"status": "resolved"}).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPatch, "/api/alerts/"+bobs.ID, "alice", map[string]string{"status": "resolved"}).Code)

	w = ts.do(t, http.MethodPatch, path, "alice", map[string]string{"status": "acknowledged"})
	require.Equal(t, http.StatusOK, w.Code)
	acked := decode[models.Alert](t, w)
	assert.Equal(t, models.StatusAcknowledged, acked.Status)
	assert.NotNil(t, acked.AcknowledgedAt)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPatch, path, "alice", map[string]string{"status": "active"}).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodDelete, path, "alice", nil).Code)

	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/alerts/"+bobs.ID, "alice", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/alerts/"+bobs.ID, "bob", nil).Code)
	_, err := ts.alerts.Get(bobs.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	system := decode[[]models.Alert](t, ts.do(t, http.MethodGet, "/api/alerts/system/srv-1", "alice", nil))
	require.Len(t, system, 1)
	assert.Equal(t, alert.ID, system[0].ID)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/alerts/system/srv-2", "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/alerts/system/ghost", "alice", nil).Code)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// awaitUpdate reads updates until one for systemID arrives.
func awaitUpdate(ctx context.Context, t *testing.T, stream *client.Stream, systemID string) client.Update {
	t.Helper()
	for {
		select {
		case u, ok := <-stream.Updates():
			require.True(t, ok, "stream closed")
			if u.SystemID == systemID {
				return u
			}
		case <-ctx.Done():
			t.Fatalf("no metrics update for %s", systemID)
		}
	}
}

func TestStreamSubscribeAndRefresh(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := client.Dial(ctx, wsURL(srv), ts.tokens["alice"], nil)
	require.NoError(t, err)

	require.NoError(t, stream.Subscribe(ctx, models.LocalTargetID))
	first := awaitUpdate(ctx, t, stream, models.LocalTargetID)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, 40.0, first.Snapshot.CPUUsage)

	require.NoError(t, stream.Subscribe(ctx, "srv-1"))
	awaitUpdate(ctx, t, stream, "srv-1")

	err = stream.Subscribe(ctx, "srv-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	assert.Len(t, ts.registry.Targets(), 2)

	require.NoError(t, stream.Refresh(models.LocalTargetID))
	u := awaitUpdate(ctx, t, stream, models.LocalTargetID)
	require.NotNil(t, u.Snapshot)
	assert.Equal(t, 40.0, u.Snapshot.CPUUsage)
	assert.False(t, u.Timestamp.IsZero())

	require.NoError(t, stream.Unsubscribe(ctx, "srv-1"))
	assert.Equal(t, []string{models.LocalTargetID}, ts.registry.Targets())

	require.NoError(t, stream.Close())
	assert.Eventually(t, func() bool {
		return ts.hub.Count() == 0 && len(ts.registry.Targets()) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSubscribePushesInitialSnapshot(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+ts.tokens["alice"], nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, services.MsgAuthSuccess, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "systemId": "local"}))
	assert.Equal(t, services.MsgSubscribed, readMessage(t, conn).Type)

	msg := readMessage(t, conn)
	require.Equal(t, services.MsgMetrics, msg.Type)
	assert.Equal(t, models.LocalTargetID, msg.SystemID)
	snap, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 40.0, snap["cpuUsage"])

	rows := decode[[]models.MetricsRow](t, ts.do(t, http.MethodGet, "/api/metrics/history/local", "alice", nil))
	assert.Len(t, rows, 1)
}

func TestStreamRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	_, err := client.Dial(context.Background(), wsURL(srv), "not-a-token", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func readMessage(t *testing.T, conn *websocket.Conn) services.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg services.WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSocketProtocolErrors(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, services.MsgError, msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "systemId": "local"}))
	msg = readMessage(t, conn)
	assert.Equal(t, services.MsgAuthError, msg.Type)
	assert.Equal(t, "local", msg.SystemID)
	assert.Equal(t, services.MsgSubscribe, msg.Request)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, services.MsgPong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": ts.tokens["bob"]}))
	assert.Equal(t, services.MsgAuthSuccess, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": ts.tokens["bob"]}))
	assert.Equal(t, services.MsgAuthError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "systemId": "srv-2"}))
	msg = readMessage(t, conn)
	assert.Equal(t, services.MsgSubscribed, msg.Type)
	assert.Equal(t, "srv-2", msg.SystemID)
	msg = readMessage(t, conn)
	assert.Equal(t, services.MsgMetrics, msg.Type)
	assert.Equal(t, "srv-2", msg.SystemID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "systemId": "ghost"}))
	msg = readMessage(t, conn)
	assert.Equal(t, services.MsgError, msg.Type)
	assert.Equal(t, "ghost", msg.SystemID)
	assert.Equal(t, services.MsgSubscribe, msg.Request)
}

func TestSocketQueryTokenAuthenticates(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+ts.tokens["root"], nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, services.MsgAuthSuccess, readMessage(t, conn).Type)
}

func TestHubShutdownClosesSockets(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv)+"?token="+ts.tokens["bob"], nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, services.MsgAuthSuccess, readMessage(t, conn).Type)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "systemId": "srv-2"}))
	require.Equal(t, services.MsgSubscribed, readMessage(t, conn).Type)
	require.Equal(t, services.MsgMetrics, readMessage(t, conn).Type)
	require.Len(t, ts.registry.Targets(), 1)

	ts.hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived), "got %v", err)
	assert.Eventually(t, func() bool {
		return len(ts.registry.Targets()) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSocketRejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	wc := controllers.NewWebSocketController(controllers.WebSocketDeps{
		Hub:            services.NewWebSocketHub(nil),
		Registry:       services.NewRegistry(nil),
		Auth:           services.NewAuthService(testSecret, time.Hour, logger.Noop()),
		AllowedOrigins: []string{"http://dash.example.com"},
		Log:            logger.Noop(),
	})
	r := gin.New()
	r.GET("/ws", wc.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, controllers.StatusFor(services.ErrNotFound))
	assert.Equal(t, http.StatusForbidden, controllers.StatusFor(services.ErrAccessDenied))
	assert.Equal(t, http.StatusBadRequest, controllers.StatusFor(services.ErrMalformedMessage))
	assert.Equal(t, http.StatusUnauthorized, controllers.StatusFor(services.ErrAuthFailure))
	assert.Equal(t, http.StatusConflict, controllers.StatusFor(services.ErrInvalidTransition))
	assert.Equal(t, http.StatusServiceUnavailable, controllers.StatusFor(services.ErrSamplerFailure))
	assert.Equal(t, http.StatusInternalServerError, controllers.StatusFor(assert.AnError))
}
