package mocks

import (
	"context"

	"story-wizard/internal/generation"

	"github.com/stretchr/testify/mock"
)

// MockNarrativeGenerator is a mock type for the generation.NarrativeGenerator type
type MockNarrativeGenerator struct {
	mock.Mock
}

// GenerateNarrative provides a mock function with given fields: ctx, input
func (_m *MockNarrativeGenerator) GenerateNarrative(ctx context.Context, input map[string]string) (string, error) {
	ret := _m.Called(ctx, input)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, map[string]string) string); ok {
		r0 = rf(ctx, input)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, map[string]string) error); ok {
		r1 = rf(ctx, input)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockNarrativeGenerator creates a new instance of MockNarrativeGenerator.
func NewMockNarrativeGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockNarrativeGenerator {
	m := &MockNarrativeGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// MockDiscussionSynthesizer is a mock type for the generation.DiscussionSynthesizer type
type MockDiscussionSynthesizer struct {
	mock.Mock
}

// SynthesizeDiscussion provides a mock function with given fields: ctx, req
func (_m *MockDiscussionSynthesizer) SynthesizeDiscussion(ctx context.Context, req generation.SynthesisRequest) (string, error) {
	ret := _m.Called(ctx, req)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, generation.SynthesisRequest) string); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, generation.SynthesisRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockDiscussionSynthesizer creates a new instance of MockDiscussionSynthesizer.
func NewMockDiscussionSynthesizer(t interface {
	mock.TestingT
	Helper()
}) *MockDiscussionSynthesizer {
	m := &MockDiscussionSynthesizer{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var (
	_ generation.NarrativeGenerator    = (*MockNarrativeGenerator)(nil)
	_ generation.DiscussionSynthesizer = (*MockDiscussionSynthesizer)(nil)
)
