package mocks

import (
	"context"

	"story-wizard/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock type for the messaging.EventPublisher type
type MockEventPublisher struct {
	mock.Mock
}

// PublishWizardEvent provides a mock function with given fields: ctx, event
func (_m *MockEventPublisher) PublishWizardEvent(ctx context.Context, event messaging.WizardEvent) error {
	ret := _m.Called(ctx, event)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, messaging.WizardEvent) error); ok {
		r0 = rf(ctx, event)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockEventPublisher creates a new instance of MockEventPublisher.
func NewMockEventPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)
