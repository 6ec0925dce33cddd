package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"notification-service/internal/archive"
	"notification-service/internal/lock"
	"notification-service/internal/mocks"
	"notification-service/internal/models"
	"notification-service/internal/repositories"
	"notification-service/internal/service"
	"notification-service/internal/telemetry"
)

var _ SubscriptionService = (*mocks.SubscriptionServiceMock)(nil)

func setupSubscriptionRouter(handler *SubscriptionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	handler.Register(r)
	return r
}

func TestSendSubscriptionCreated(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("Forward", mock.Anything, 1, 2, "hi").
		Return(models.SubscriptionMessage{ID: 10, SenderID: 1, ReceiverID: 2, Message: "hi", Status: models.StatusUnread}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(`{"receiver_id":2,"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.SubscriptionMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 10, resp.ID)
	assert.Equal(t, models.StatusUnread, resp.Status)
	svc.AssertExpectations(t)
}

func TestSendSubscriptionBadBody(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendSubscriptionInvalidInput(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("Forward", mock.Anything, 1, 1, "hi").
		Return(nil, fmt.Errorf("%w: cannot message yourself", service.ErrInvalidInput)).Once()

	req := httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewBufferString(`{"receiver_id":1,"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestListReceivedParsesFilter(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	filter := models.MessageFilter{Status: models.StatusUnread}
	page := models.Page{Limit: 5, Offset: 10}
	svc.On("FindReceived", mock.Anything, 1, filter, page).
		Return([]models.SubscriptionMessage{{ID: 3, ReceiverID: 1}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/received?status=UNREAD&limit=5&offset=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.SubscriptionMessage `json:"messages"`
		Limit    int                          `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Messages, 1)
	assert.Equal(t, 5, resp.Limit)
	svc.AssertExpectations(t)
}

func TestListSentRejectsBadStatus(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/sent?status=SEEN", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSubscriptionNotFound(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("Get", mock.Anything, 99, 1).Return(nil, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	svc.AssertExpectations(t)
}

func TestGetSubscriptionInvalidID(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadToggle(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("MarkRead", mock.Anything, 4, 1).Return(true, nil).Once()
	svc.On("MarkRead", mock.Anything, 4, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/subscriptions/4/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "READ", resp["status"])

	req = httptest.NewRequest(http.MethodPost, "/subscriptions/4/read", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	svc.AssertExpectations(t)
}

func TestMarkUnreadServerError(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("MarkUnread", mock.Anything, 4, 1).Return(false, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/subscriptions/4/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	svc.AssertExpectations(t)
}

func TestDeleteSubscription(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	pub := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(pub, "audit.events", "notification-service", "test", nil)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, audit))

	svc.On("Delete", mock.Anything, 5, 1).Return(true, nil).Once()
	svc.On("Delete", mock.Anything, 6, 1).Return(false, nil).Once()
	pub.On("Publish", mock.Anything, "audit.events", mock.AnythingOfType("telemetry.AuditEnvelope"), mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/subscriptions/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/subscriptions/6", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestArchiveSubscriptionLockBusy(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("Archive", mock.Anything, 7, 1).Return(nil, fmt.Errorf("archive: %w", lock.ErrLockUnavailable)).Once()

	req := httptest.NewRequest(http.MethodPost, "/subscriptions/7/archive", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, true, resp["retryable"])
	svc.AssertExpectations(t)
}

func TestRecoverSubscription(t *testing.T) {
	svc := new(mocks.SubscriptionServiceMock)
	router := setupSubscriptionRouter(NewSubscriptionHandler(svc, nil))

	svc.On("Recover", mock.Anything, 7, 1).Return(models.SubscriptionMessage{ID: 7, SenderID: 1}, nil).Once()
	svc.On("Recover", mock.Anything, 8, 1).Return(nil, archive.ErrNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/subscriptions/7/recover", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/subscriptions/8/recover", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}
