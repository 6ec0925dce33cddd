package mocks

import (
	"github.com/stretchr/testify/mock"

	"notification-service/internal/ws"
)

type PresenceMock struct {
	mock.Mock
}

func (m *PresenceMock) LookupBroadcast(receiverID int) (ws.Handle, bool) {
	args := m.Called(receiverID)
	var h ws.Handle
	if val := args.Get(0); val != nil {
		h = val.(ws.Handle)
	}
	return h, args.Bool(1)
}

func (m *PresenceMock) BroadcastReceivers() []int {
	args := m.Called()
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids
}
