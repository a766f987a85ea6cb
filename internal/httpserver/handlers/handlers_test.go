package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svclane/rolloutd/internal/httpserver/deps"
	"github.com/svclane/rolloutd/internal/logger"
	"github.com/svclane/rolloutd/internal/rollout"
	"github.com/svclane/rolloutd/internal/snapshot"
)

func testDeps(store *snapshot.Store, trigger chan struct{}) deps.Deps {
	return deps.Deps{
		Logger:          logger.Nop(),
		StartTime:       time.Now(),
		TimeNow:         time.Now,
		ServiceName:     "bookstore.test.appspot.com",
		RolloutStrategy: "managed",
		Snapshot:        store,
		CheckTrigger:    trigger,
	}
}

func TestReadyzBeforeFirstInstall(t *testing.T) {
	store := snapshot.NewStore()
	rec := httptest.NewRecorder()

	Readyz(testDeps(store, nil))(rec, httptest.NewRequest(http.MethodGet, "/api/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Ready bool `json:"ready"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
}

func TestReadyzAfterInstall(t *testing.T) {
	store := snapshot.NewStore()
	store.Install(rollout.Assignment{
		RolloutID: "2017-05-01r0",
		Configs:   []rollout.ConfigEntry{{Config: []byte("doc"), Percent: 100}},
	})
	rec := httptest.NewRecorder()

	Readyz(testDeps(store, nil))(rec, httptest.NewRequest(http.MethodGet, "/api/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Ready     bool   `json:"ready"`
		RolloutID string `json:"rollout_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.Equal(t, "2017-05-01r0", resp.RolloutID)
}

func TestRolloutReportsInstalledAssignment(t *testing.T) {
	store := snapshot.NewStore()
	store.Install(rollout.Assignment{
		RolloutID: "2017-05-01r0",
		Configs: []rollout.ConfigEntry{
			{Config: []byte("doc-1"), Percent: 80},
			{Config: []byte("doc-22"), Percent: 20},
		},
	})
	rec := httptest.NewRecorder()

	Rollout(testDeps(store, nil))(rec, httptest.NewRequest(http.MethodGet, "/api/rollout", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ServiceName string `json:"service_name"`
		Strategy    string `json:"strategy"`
		RolloutID   string `json:"rollout_id"`
		Configs     []struct {
			Percent int `json:"percent"`
			Bytes   int `json:"bytes"`
		} `json:"configs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bookstore.test.appspot.com", resp.ServiceName)
	assert.Equal(t, "managed", resp.Strategy)
	assert.Equal(t, "2017-05-01r0", resp.RolloutID)
	require.Len(t, resp.Configs, 2)
	assert.Equal(t, 80, resp.Configs[0].Percent)
	assert.Equal(t, 5, resp.Configs[0].Bytes)
	assert.Equal(t, 20, resp.Configs[1].Percent)
	assert.Equal(t, 6, resp.Configs[1].Bytes)
}

func TestCheckTriggersExactlyOnce(t *testing.T) {
	store := snapshot.NewStore()
	trigger := make(chan struct{}, 1)
	handler := Check(testDeps(store, trigger))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// The trigger is still pending: a second request backs off.
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	<-trigger
}

func TestCheckDisabledWithFixedStrategy(t *testing.T) {
	store := snapshot.NewStore()
	rec := httptest.NewRecorder()

	Check(testDeps(store, nil))(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
