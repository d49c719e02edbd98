// Package mocks 提供测试用的 Chooser 与 Observer 模拟实现。
//
// 支持固定答案、延迟、错误注入与调用记录。
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/sceneflow/narrative/director"
)

// --- MockChooser 结构 ---

// MockChooser 是 director.Chooser 的模拟实现
type MockChooser struct {
	mu sync.Mutex

	// 响应配置
	answer      string
	pickFirst   bool
	err         error
	delay       time.Duration
	chooseFunc  func(ctx context.Context, req director.Request) (string, error)
	shouldPanic bool

	// 调用记录
	calls []director.Request
}

var _ director.Chooser = (*MockChooser)(nil)

// NewMockChooser 创建默认答 "none" 的 MockChooser
func NewMockChooser() *MockChooser {
	return &MockChooser{answer: director.NoScene}
}

// WithAnswer 设置固定答案
func (m *MockChooser) WithAnswer(code string) *MockChooser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answer = code
	m.pickFirst = false
	return m
}

// WithFirstCandidate 总是选择第一个候选
func (m *MockChooser) WithFirstCandidate() *MockChooser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pickFirst = true
	return m
}

// WithError 设置返回错误
func (m *MockChooser) WithError(err error) *MockChooser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置响应延迟，延迟期间遵守 ctx 取消
func (m *MockChooser) WithDelay(d time.Duration) *MockChooser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic 调用时 panic
func (m *MockChooser) WithPanic() *MockChooser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldPanic = true
	return m
}

// WithChooseFunc 设置自定义选择函数，优先于其它配置
func (m *MockChooser) WithChooseFunc(fn func(ctx context.Context, req director.Request) (string, error)) *MockChooser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chooseFunc = fn
	return m
}

// --- director.Chooser 实现 ---

// ChooseScene implements director.Chooser.
func (m *MockChooser) ChooseScene(ctx context.Context, req director.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	answer, pickFirst, err, delay := m.answer, m.pickFirst, m.err, m.delay
	fn, shouldPanic := m.chooseFunc, m.shouldPanic
	m.mu.Unlock()

	if shouldPanic {
		panic("mock chooser panic")
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return "", err
	}
	if pickFirst {
		if len(req.Candidates) == 0 {
			return director.NoScene, nil
		}
		return req.Candidates[0].Code, nil
	}
	return answer, nil
}

// --- 调用记录 ---

// CallCount 返回调用次数
func (m *MockChooser) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockChooser) LastRequest() (director.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return director.Request{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset 清空调用记录
func (m *MockChooser) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
