package app

import (
	"github.com/iabetor/pleasespeak/internal/logger"
)

// errorQueueSize 是每个错误通道的缓冲大小。
const errorQueueSize = 32

// Reporter 是错误通道的发送端，可在任意 goroutine 中使用。
// 发送永不阻塞：通道满时错误只记日志后丢弃。
type Reporter struct {
	name string
	ch   chan string
}

// NewErrorChannel 创建一对错误发送端和接收端。
func NewErrorChannel(name string) (*Reporter, <-chan string) {
	ch := make(chan string, errorQueueSize)
	return &Reporter{name: name, ch: ch}, ch
}

// Send 发送一条错误，成功进入队列时返回 true。
func (r *Reporter) Send(msg string) bool {
	select {
	case r.ch <- msg:
		return true
	default:
		logger.Warnf("[%s] 错误队列已满，丢弃: %s", r.name, msg)
		return false
	}
}

// ErrorManager 从错误通道接收错误并维护一个可关闭的弹窗。
// 只能在主循环中使用。
type ErrorManager struct {
	name      string
	rx        <-chan string
	lastError string
	modalOpen bool
	received  int
}

// NewErrorManager 创建弹窗标题为 name 的错误管理器。
func NewErrorManager(name string, rx <-chan string) *ErrorManager {
	return &ErrorManager{name: name, rx: rx}
}

// Name 返回弹窗标题。
func (m *ErrorManager) Name() string {
	return m.name
}

// Update 每帧调用一次，最多取出一条错误。
// 收到新错误时打开弹窗并返回 true；弹窗已打开时新错误会替换旧错误。
func (m *ErrorManager) Update() bool {
	select {
	case msg, ok := <-m.rx:
		if !ok {
			return false
		}
		logger.Errorf("[%s]: Error: %s", m.name, msg)
		m.lastError = msg
		m.modalOpen = true
		m.received++
		return true
	default:
		return false
	}
}

// Drain 取出通道中剩余的全部错误，最后一条留在弹窗中。
func (m *ErrorManager) Drain() []string {
	var out []string
	for m.Update() {
		out = append(out, m.lastError)
	}
	return out
}

// Modal 返回当前显示的错误以及弹窗是否打开。
func (m *ErrorManager) Modal() (string, bool) {
	return m.lastError, m.modalOpen
}

// Received 返回累计收到的错误数，前端据此判断是否需要重新显示弹窗。
func (m *ErrorManager) Received() int {
	return m.received
}

// Dismiss 关闭弹窗并清除错误。
func (m *ErrorManager) Dismiss() {
	m.modalOpen = false
	m.lastError = ""
}
