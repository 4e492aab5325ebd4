package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lonelycare/internal/alert"
	"lonelycare/internal/cooldown"
	"lonelycare/internal/escalation"
	"lonelycare/internal/friend"
	"lonelycare/internal/interaction"
	"lonelycare/internal/models"
	"lonelycare/internal/monitor"
	"lonelycare/internal/notifier"
	"lonelycare/internal/store"
	"lonelycare/internal/threshold"
	"lonelycare/pkg/i18n"
	"lonelycare/pkg/metrics"
	"lonelycare/pkg/sse"
	"lonelycare/pkg/util"
)

type env struct {
	now       time.Time
	store     *store.Store
	gate      *interaction.Gate
	takeovers *notifier.Takeovers
	cooldown  *cooldown.Cooldown
	engine    *gin.Engine
}

func newEnv(t *testing.T) *env {
	gin.SetMode(gin.TestMode)
	e := &env{now: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }

	db, err := util.OpenDatabase("sqlite", "", false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	e.store = store.New(db)

	tr, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	require.NoError(t, alert.RegisterMessages(tr))

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	hub := sse.NewHub(time.Second)
	e.gate = interaction.NewGate(0, clock)
	e.takeovers = notifier.NewTakeovers(time.Minute, clock, nil)
	t.Cleanup(e.takeovers.Stop)
	history := notifier.NewHistory(0, nil, nil)

	n, err := notifier.New([]notifier.Channel{
		notifier.NewBannerChannel(hub),
		notifier.NewAuditChannel(history),
	}, notifier.Options{Translator: tr, Now: clock, Metrics: m})
	require.NoError(t, err)

	classifier := alert.NewManager(clock)
	thresholds := threshold.NewManager(e.store, nil, alert.DefaultThresholds(), nil, m)
	e.cooldown = cooldown.New(cooldown.Config{Duration: 2 * time.Hour}, nil, clock, nil)
	esc := escalation.New(escalation.Config{ReporterID: "owner"}, nil, e.store, n, escalation.Options{Now: clock})
	mon := monitor.New(monitor.Config{OwnerID: "owner"}, monitor.Deps{
		Resolver:   friend.NewResolver(e.store, nil),
		Thresholds: thresholds,
		Classifier: classifier,
		Cooldown:   e.cooldown,
		Notifier:   n,
		Escalator:  esc,
		Recorder:   e.store,
		Metrics:    m,
	})

	e.engine = gin.New()
	NewHandlers(Options{
		OwnerID:    "owner",
		Store:      e.store,
		Hub:        hub,
		Gate:       e.gate,
		Takeovers:  e.takeovers,
		History:    history,
		Monitor:    mon,
		Cooldown:   e.cooldown,
		Thresholds: thresholds,
		Escalator:  esc,
		Classifier: classifier,
		Formatter:  alert.NewFormatter(tr),
		Metrics:    m,
		Gatherer:   reg,
	}).Register(e.engine)
	return e
}

func (e *env) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	return e.doWithContext(context.Background(), method, path, body)
}

func (e *env) doWithContext(ctx context.Context, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NoError(t, json.Unmarshal(body.Data, dest))
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = e.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lonelycare_http_requests_total")
}

func TestRunPassAndFriendStatus(t *testing.T) {
	e := newEnv(t)
	db := e.store.DB()
	require.NoError(t, db.Create(&[]models.User{{ID: "owner", DisplayName: "Owner"}, {ID: "b", DisplayName: "Bob"}}).Error)
	require.NoError(t, db.Create(&models.Friendship{UserID: "owner", FriendID: "b", Status: models.FriendshipAccepted}).Error)

	w := e.do(http.MethodPost, "/api/heartbeats", gin.H{"userId": "b", "source": "android", "timestamp": e.now.Add(-30 * time.Hour)})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodPost, "/api/monitor/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary monitor.PassSummary
	decode(t, w, &summary)
	require.Len(t, summary.Contacts, 1)
	assert.Equal(t, "warning", summary.Contacts[0].Tier)

	w = e.do(http.MethodGet, "/api/friends/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var views []friendStatusView
	decode(t, w, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "b", views[0].FriendID)
	assert.Equal(t, "warning", views[0].Tier)
	assert.NotEmpty(t, views[0].Elapsed)

	w = e.do(http.MethodGet, "/api/notifications/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []notifier.Entry
	decode(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ContactID)
}

func TestRunPass_CompletesAfterClientDisconnect(t *testing.T) {
	e := newEnv(t)
	db := e.store.DB()
	require.NoError(t, db.Create(&[]models.User{{ID: "owner", DisplayName: "Owner"}, {ID: "b", DisplayName: "Bob"}}).Error)
	require.NoError(t, db.Create(&models.Friendship{UserID: "owner", FriendID: "b", Status: models.FriendshipAccepted}).Error)
	_, err := e.store.RecordHeartbeat(context.Background(), "b", "android", e.now.Add(-30*time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := e.doWithContext(ctx, http.MethodPost, "/api/monitor/run", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	statuses, err := e.store.ListStatuses(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "warning", statuses[0].Tier)
}

func TestHeartbeat_Validation(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodPost, "/api/heartbeats", gin.H{"source": "ios"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInteractionGrantAndRevoke(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/users/u1/interaction", nil).Code)
	assert.True(t, e.gate.Allowed("u1"))

	assert.Equal(t, http.StatusOK, e.do(http.MethodDelete, "/api/users/u1/interaction", nil).Code)
	assert.False(t, e.gate.Allowed("u1"))
}

func TestAckTakeover(t *testing.T) {
	e := newEnv(t)
	tk := e.takeovers.Open(notifier.Notification{ID: "n1", OwnerID: "owner", ContactID: "b"})

	w := e.do(http.MethodPost, "/api/takeovers/"+tk.ID+"/ack", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var acked notifier.Takeover
	decode(t, w, &acked)
	assert.Equal(t, notifier.TakeoverAcknowledged, acked.Status)

	w = e.do(http.MethodPost, "/api/takeovers/missing/ack", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetCooldown(t *testing.T) {
	e := newEnv(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	e.cooldown.MarkSent(ctx, "b", alert.Warning)
	e.cooldown.MarkSent(ctx, "c", alert.Danger)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/cooldown/reset", gin.H{"tier": "warning"}).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/cooldown/reset", gin.H{"contactId": "b", "tier": "bogus"}).Code)

	w := e.do(http.MethodPost, "/api/cooldown/reset", gin.H{"contactId": "b", "tier": "warning"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, e.cooldown.ShouldSend("b", alert.Warning))
	assert.False(t, e.cooldown.ShouldSend("c", alert.Danger))

	w = e.do(http.MethodPost, "/api/cooldown/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.cooldown.Records())
}

func TestThresholdsInvalidate(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.DB().Create(&models.NotificationSettings{WarningMinutes: 60, DangerMinutes: 120, EmergencyMinutes: 180}).Error)

	w := e.do(http.MethodPost, "/api/thresholds/invalidate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Thresholds alert.Thresholds `json:"thresholds"`
		Source     threshold.Source `json:"source"`
	}
	decode(t, w, &got)
	assert.Equal(t, alert.Thresholds{Warning: 60, Danger: 120, Emergency: 180}, got.Thresholds)
	assert.Equal(t, threshold.SourceRemote, got.Source)
}

func TestEmergencyAuditEmpty(t *testing.T) {
	e := newEnv(t)
	w := e.do(http.MethodGet, "/api/emergency/audit", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListAlerts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, tier := range []string{"warning", "danger", "danger"} {
		require.NoError(t, e.store.UpsertPendingAlert(ctx, &models.Alert{OwnerID: "owner", ContactID: "b", AlertType: models.AlertTypeUndelivered, Tier: tier}))
	}

	w := e.do(http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []models.Alert
	decode(t, w, &alerts)
	require.Len(t, alerts, 2)
	assert.Equal(t, "danger", alerts[0].Tier)
	assert.Equal(t, 2, alerts[0].Attempts)

	w = e.do(http.MethodGet, "/api/alerts?limit=1", nil)
	decode(t, w, &alerts)
	assert.Len(t, alerts, 1)
}
