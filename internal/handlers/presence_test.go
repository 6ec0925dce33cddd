package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-service/internal/mocks"
)

var _ Presence = (*mocks.PresenceMock)(nil)

func TestPresenceHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	presence := new(mocks.PresenceMock)
	presence.On("BroadcastReceivers").Return([]int{2, 5}).Once()

	r := gin.New()
	r.GET("/presence/broadcast", PresenceHandler(presence))

	req := httptest.NewRequest(http.MethodGet, "/presence/broadcast", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccountIDs []int `json:"account_ids"`
		Count      int   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{2, 5}, resp.AccountIDs)
	assert.Equal(t, 2, resp.Count)
	presence.AssertExpectations(t)
}

func TestDebugPresenceRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	presence := new(mocks.PresenceMock)
	presence.On("LookupBroadcast", 3).Return(nil, false).Once()

	r := gin.New()
	RegisterDebugRoutes(r, nil, presence, true)

	req := httptest.NewRequest(http.MethodGet, "/debug/presence/3", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, false, resp["broadcast_online"])

	req = httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	presence.AssertExpectations(t)
}

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, new(mocks.PresenceMock), false)

	req := httptest.NewRequest(http.MethodGet, "/debug/presence/3", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
