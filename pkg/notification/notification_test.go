package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPushClient_Send(t *testing.T) {
	var got PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewPushClient(PushConfig{Endpoint: srv.URL, APIKey: "secret"}, zap.NewNop())
	err := c.Send(context.Background(), PushMessage{UserID: "u1", Title: "t", Body: "b", Tier: "warning"})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "warning", got.Tier)
}

func TestPushClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"ok":false}`},
		{"rejected", http.StatusOK, `{"ok":false,"error":"stale token"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewPushClient(PushConfig{Endpoint: srv.URL}, nil)
			assert.Error(t, c.Send(context.Background(), PushMessage{UserID: "u1"}))
		})
	}
}

func TestPushClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewPushClient(PushConfig{Endpoint: url}, nil)
	assert.Error(t, c.Send(context.Background(), PushMessage{UserID: "u1"}))
}

func TestEmergencyClient_ReportEmergency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var report EmergencyReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		w.Header().Set("Content-Type", "application/json")
		if report.ContactID == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"success":false,"error":"missing address"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewEmergencyClient(EmergencyConfig{Endpoint: srv.URL}, zap.NewNop())

	res, err := c.ReportEmergency(context.Background(), EmergencyReport{ContactID: "c1"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = c.ReportEmergency(context.Background(), EmergencyReport{ContactID: "bad"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "missing address", res.Error)
}
