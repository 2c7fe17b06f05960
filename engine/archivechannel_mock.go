// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Source: contract.go

package engine

import (
	context "context"
	reflect "reflect"

	gomock "github.com/golang/mock/gomock"
)

// MockArchiveChannel is a mock of the ArchiveChannel interface, hand-written
// in the shape mockgen would produce since no generator ran here.
type MockArchiveChannel struct {
	ctrl     *gomock.Controller
	recorder *MockArchiveChannelMockRecorder
}

// MockArchiveChannelMockRecorder is the mock recorder for MockArchiveChannel.
type MockArchiveChannelMockRecorder struct {
	mock *MockArchiveChannel
}

// NewMockArchiveChannel creates a new mock instance.
func NewMockArchiveChannel(ctrl *gomock.Controller) *MockArchiveChannel {
	mock := &MockArchiveChannel{ctrl: ctrl}
	mock.recorder = &MockArchiveChannelMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockArchiveChannel) EXPECT() *MockArchiveChannelMockRecorder {
	return m.recorder
}

func (m *MockArchiveChannel) Name() string {
	ret := m.ctrl.Call(m, "Name")
	return ret[0].(string)
}

func (mr *MockArchiveChannelMockRecorder) Name() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Name", reflect.TypeOf((*MockArchiveChannel)(nil).Name))
}

func (m *MockArchiveChannel) IsConnected() bool {
	ret := m.ctrl.Call(m, "IsConnected")
	return ret[0].(bool)
}

func (mr *MockArchiveChannelMockRecorder) IsConnected() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsConnected", reflect.TypeOf((*MockArchiveChannel)(nil).IsConnected))
}

func (m *MockArchiveChannel) SecondsElapsedSinceSearchRequest() float64 {
	ret := m.ctrl.Call(m, "SecondsElapsedSinceSearchRequest")
	return ret[0].(float64)
}

func (mr *MockArchiveChannelMockRecorder) SecondsElapsedSinceSearchRequest() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "SecondsElapsedSinceSearchRequest", reflect.TypeOf((*MockArchiveChannel)(nil).SecondsElapsedSinceSearchRequest))
}

func (m *MockArchiveChannel) JCACommandThreadID() int {
	ret := m.ctrl.Call(m, "JCACommandThreadID")
	return ret[0].(int)
}

func (mr *MockArchiveChannelMockRecorder) JCACommandThreadID() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "JCACommandThreadID", reflect.TypeOf((*MockArchiveChannel)(nil).JCACommandThreadID))
}

func (m *MockArchiveChannel) MetaChannelsNeedStartingUp() bool {
	ret := m.ctrl.Call(m, "MetaChannelsNeedStartingUp")
	return ret[0].(bool)
}

func (mr *MockArchiveChannelMockRecorder) MetaChannelsNeedStartingUp() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MetaChannelsNeedStartingUp", reflect.TypeOf((*MockArchiveChannel)(nil).MetaChannelsNeedStartingUp))
}

func (m *MockArchiveChannel) StartUpMetaChannels() {
	m.ctrl.Call(m, "StartUpMetaChannels")
}

func (mr *MockArchiveChannelMockRecorder) StartUpMetaChannels() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "StartUpMetaChannels", reflect.TypeOf((*MockArchiveChannel)(nil).StartUpMetaChannels))
}

func (m *MockArchiveChannel) ShutdownMetaChannels() {
	m.ctrl.Call(m, "ShutdownMetaChannels")
}

func (mr *MockArchiveChannelMockRecorder) ShutdownMetaChannels() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ShutdownMetaChannels", reflect.TypeOf((*MockArchiveChannel)(nil).ShutdownMetaChannels))
}

func (m *MockArchiveChannel) Stop() {
	m.ctrl.Call(m, "Stop")
}

func (mr *MockArchiveChannelMockRecorder) Stop() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stop", reflect.TypeOf((*MockArchiveChannel)(nil).Stop))
}

func (m *MockArchiveChannel) FlushBuffer(ctx context.Context, dest StoragePlugin) (int, error) {
	ret := m.ctrl.Call(m, "FlushBuffer", ctx, dest)
	ret0, _ := ret[0].(int)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *MockArchiveChannelMockRecorder) FlushBuffer(ctx, dest interface{}) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FlushBuffer", reflect.TypeOf((*MockArchiveChannel)(nil).FlushBuffer), ctx, dest)
}
