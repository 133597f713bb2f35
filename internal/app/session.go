package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iabetor/pleasespeak/internal/logger"
	"github.com/iabetor/pleasespeak/internal/tts"
)

// ProviderFactory 根据后端名称和密钥创建 tts.Provider。
type ProviderFactory func(name, apiKey string) (tts.Provider, error)

// 客户端错误提示。
const (
	msgNotInitialized = "客户端未初始化"
	msgSetAPIKey      = "客户端未初始化，请在设置中填写 API Key"
)

// ErrNotConnected 表示尚未建立可用的后端连接。
var ErrNotConnected = errors.New(msgNotInitialized)

// Session 持有当前的 TTS 后端及其连接状态，
// 把失败分别发往 API 错误通道和客户端错误通道。
// 方法可在后台任务中并发调用。
type Session struct {
	factory ProviderFactory

	mu        sync.RWMutex
	provider  tts.Provider
	connected bool
	gen       uint64

	apiErrors    *Reporter
	clientErrors *Reporter
}

// NewSession 创建未连接的会话。
func NewSession(factory ProviderFactory, apiErrors, clientErrors *Reporter) *Session {
	return &Session{
		factory:      factory,
		apiErrors:    apiErrors,
		clientErrors: clientErrors,
	}
}

// Init 用新的密钥重建后端，并以不上报 API 错误的方式探测音色列表。
// 探测成功即视为已连接。被更晚的 Init 取代或 ctx 被取消时，
// 结果不再写入会话，也不上报错误。
func (s *Session) Init(ctx context.Context, providerName, apiKey string) bool {
	gen := s.begin()

	p, err := s.factory(providerName, apiKey)
	if err != nil {
		if s.commit(gen, nil, false) && ctx.Err() == nil {
			s.clientErrors.Send(err.Error())
		}
		return false
	}
	if !s.commit(gen, p, false) {
		return false
	}

	if _, err := s.voices(ctx, p); err == nil {
		if !s.commit(gen, p, true) {
			return false
		}
		logger.Infof("[session] 已连接 %s", p.Name())
		return true
	}

	if s.commit(gen, p, false) && ctx.Err() == nil {
		s.clientErrors.Send(msgSetAPIKey)
	}
	return false
}

// Connected 返回最近一次 Init 是否成功。
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ProviderName 返回当前后端名称，未初始化时为空。
func (s *Session) ProviderName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Voices 获取音色列表。raise 为 true 时 API 失败会发到 API 错误通道。
// 失败时返回 nil。
func (s *Session) Voices(ctx context.Context, raise bool) []tts.Voice {
	p := s.current()
	if p == nil {
		s.clientErrors.Send(msgNotInitialized)
		return nil
	}
	voices, err := s.voices(ctx, p)
	if err != nil {
		if raise {
			s.apiErrors.Send(fmt.Sprintf("API 错误: %v", err))
		}
		return nil
	}
	return voices
}

// Speak 合成语音，失败总会上报。
func (s *Session) Speak(ctx context.Context, voice tts.Voice, text string) (*tts.Audio, error) {
	p := s.current()
	if p == nil {
		s.clientErrors.Send(msgNotInitialized)
		return nil, ErrNotConnected
	}
	audio, err := p.Synthesize(ctx, voice, text)
	if err != nil {
		s.apiErrors.Send(fmt.Sprintf("API 错误: %v", err))
		return nil, err
	}
	return audio, nil
}

func (s *Session) voices(ctx context.Context, p tts.Provider) ([]tts.Voice, error) {
	voices, err := p.Voices(ctx)
	if err != nil {
		logger.Warnf("[session] %s 获取音色失败: %v", p.Name(), err)
		return nil, err
	}
	return voices, nil
}

func (s *Session) current() tts.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// begin 开始一次新的 Init，之前未完成的 Init 随之失效。
func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// commit 仅在 gen 仍是最新一次 Init 时写入状态。
func (s *Session) commit(gen uint64, p tts.Provider, connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.provider = p
	s.connected = connected
	return true
}
