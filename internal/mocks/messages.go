package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"notification-service/internal/models"
	"notification-service/internal/service"
)

type SubscriptionServiceMock struct {
	mock.Mock
}

func (m *SubscriptionServiceMock) Forward(ctx context.Context, senderID, receiverID int, text string) (models.SubscriptionMessage, error) {
	args := m.Called(ctx, senderID, receiverID, text)
	var msg models.SubscriptionMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SubscriptionMessage)
	}
	return msg, args.Error(1)
}

func (m *SubscriptionServiceMock) MarkRead(ctx context.Context, id, receiverID int) (bool, error) {
	args := m.Called(ctx, id, receiverID)
	return args.Bool(0), args.Error(1)
}

func (m *SubscriptionServiceMock) MarkUnread(ctx context.Context, id, receiverID int) (bool, error) {
	args := m.Called(ctx, id, receiverID)
	return args.Bool(0), args.Error(1)
}

func (m *SubscriptionServiceMock) Delete(ctx context.Context, id, senderID int) (bool, error) {
	args := m.Called(ctx, id, senderID)
	return args.Bool(0), args.Error(1)
}

func (m *SubscriptionServiceMock) Get(ctx context.Context, id, accountID int) (models.SubscriptionMessage, error) {
	args := m.Called(ctx, id, accountID)
	var msg models.SubscriptionMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SubscriptionMessage)
	}
	return msg, args.Error(1)
}

func (m *SubscriptionServiceMock) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	args := m.Called(ctx, receiverID, filter, page)
	var list []models.SubscriptionMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.SubscriptionMessage)
	}
	return list, args.Error(1)
}

func (m *SubscriptionServiceMock) FindSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.SubscriptionMessage, error) {
	args := m.Called(ctx, senderID, filter, page)
	var list []models.SubscriptionMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.SubscriptionMessage)
	}
	return list, args.Error(1)
}

func (m *SubscriptionServiceMock) Archive(ctx context.Context, id, senderID int) (models.SubscriptionMessage, error) {
	args := m.Called(ctx, id, senderID)
	var msg models.SubscriptionMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SubscriptionMessage)
	}
	return msg, args.Error(1)
}

func (m *SubscriptionServiceMock) Recover(ctx context.Context, id, senderID int) (models.SubscriptionMessage, error) {
	args := m.Called(ctx, id, senderID)
	var msg models.SubscriptionMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.SubscriptionMessage)
	}
	return msg, args.Error(1)
}

type BroadcastServiceMock struct {
	mock.Mock
}

func (m *BroadcastServiceMock) Forward(ctx context.Context, senderID int, receiverIDs []int, text string) (models.BroadcastMessage, error) {
	args := m.Called(ctx, senderID, receiverIDs, text)
	var msg models.BroadcastMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.BroadcastMessage)
	}
	return msg, args.Error(1)
}

func (m *BroadcastServiceMock) MarkRead(ctx context.Context, id, receiverID int) (bool, error) {
	args := m.Called(ctx, id, receiverID)
	return args.Bool(0), args.Error(1)
}

func (m *BroadcastServiceMock) MarkUnread(ctx context.Context, id, receiverID int) (bool, error) {
	args := m.Called(ctx, id, receiverID)
	return args.Bool(0), args.Error(1)
}

func (m *BroadcastServiceMock) FindAllSent(ctx context.Context, senderID int, filter models.MessageFilter, page models.Page) ([]models.BroadcastMessage, error) {
	args := m.Called(ctx, senderID, filter, page)
	var list []models.BroadcastMessage
	if val := args.Get(0); val != nil {
		list = val.([]models.BroadcastMessage)
	}
	return list, args.Error(1)
}

func (m *BroadcastServiceMock) FindReceived(ctx context.Context, receiverID int, filter models.MessageFilter, page models.Page) ([]models.ReceivedBroadcast, error) {
	args := m.Called(ctx, receiverID, filter, page)
	var list []models.ReceivedBroadcast
	if val := args.Get(0); val != nil {
		list = val.([]models.ReceivedBroadcast)
	}
	return list, args.Error(1)
}

func (m *BroadcastServiceMock) Get(ctx context.Context, id, senderID int) (service.BroadcastDetail, error) {
	args := m.Called(ctx, id, senderID)
	var detail service.BroadcastDetail
	if val := args.Get(0); val != nil {
		detail = val.(service.BroadcastDetail)
	}
	return detail, args.Error(1)
}

func (m *BroadcastServiceMock) Delete(ctx context.Context, id, senderID int) (bool, error) {
	args := m.Called(ctx, id, senderID)
	return args.Bool(0), args.Error(1)
}

func (m *BroadcastServiceMock) Archive(ctx context.Context, id, senderID int) (models.BroadcastMessage, error) {
	args := m.Called(ctx, id, senderID)
	var msg models.BroadcastMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.BroadcastMessage)
	}
	return msg, args.Error(1)
}

func (m *BroadcastServiceMock) Recover(ctx context.Context, id, senderID int) (models.BroadcastMessage, error) {
	args := m.Called(ctx, id, senderID)
	var msg models.BroadcastMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.BroadcastMessage)
	}
	return msg, args.Error(1)
}
