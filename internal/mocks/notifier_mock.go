package mocks

import (
	"story-wizard/internal/notifier"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock type for the notifier.Notifier type
type MockNotifier struct {
	mock.Mock
}

// SendToSession provides a mock function with given fields: sessionID, messageType, payload
func (_m *MockNotifier) SendToSession(sessionID string, messageType string, payload interface{}) {
	_m.Called(sessionID, messageType, payload)
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ notifier.Notifier = (*MockNotifier)(nil)
