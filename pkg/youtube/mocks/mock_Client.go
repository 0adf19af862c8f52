// Package mocks provides test doubles for the youtube client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	youtube "github.com/sells-group/recipe-cli/pkg/youtube"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetVideo provides a mock function with given fields: ctx, videoID
func (_m *MockClient) GetVideo(ctx context.Context, videoID string) (*youtube.Video, error) {
	ret := _m.Called(ctx, videoID)

	if len(ret) == 0 {
		panic("no return value specified for GetVideo")
	}

	var r0 *youtube.Video
	if rf, ok := ret.Get(0).(func(context.Context, string) *youtube.Video); ok {
		r0 = rf(ctx, videoID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*youtube.Video)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, videoID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetTranscript provides a mock function with given fields: ctx, videoID
func (_m *MockClient) GetTranscript(ctx context.Context, videoID string) (string, error) {
	ret := _m.Called(ctx, videoID)

	if len(ret) == 0 {
		panic("no return value specified for GetTranscript")
	}

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string) string); ok {
		r0 = rf(ctx, videoID)
	} else {
		r0 = ret.String(0)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, videoID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
