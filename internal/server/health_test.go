package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type readiness struct {
	Status string `json:"status"`
	Checks struct {
		Database string `json:"database"`
		Redis    string `json:"redis"`
	} `json:"checks"`
}

func checkReady(t *testing.T, ts *testServer) (int, readiness) {
	t.Helper()
	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body readiness
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestLivenessCheck(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadinessCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name           string
		mongo          pinger
		redis          *redis.Client
		expectedStatus int
		database       string
		redisStatus    string
	}{
		{"No backends", nil, nil, http.StatusServiceUnavailable, "unavailable", "unavailable"},
		{"Mongo down", fakePinger{err: errors.New("no reachable servers")}, rdb, http.StatusServiceUnavailable, "unhealthy", "healthy"},
		{"Healthy", fakePinger{}, rdb, http.StatusOK, "healthy", "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.mongo = tt.mongo
			ts.redis = tt.redis
			ts.app = ts.newApp()

			status, body := checkReady(t, ts)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.database, body.Checks.Database)
			assert.Equal(t, tt.redisStatus, body.Checks.Redis)
		})
	}
}

func TestReadinessCheck_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	ts := newTestServer(t)
	ts.mongo = fakePinger{}
	ts.redis = rdb
	ts.app = ts.newApp()

	status, body := checkReady(t, ts)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy", body.Checks.Redis)
}
