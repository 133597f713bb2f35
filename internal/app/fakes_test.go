package app

import (
	"context"
	"sync"
	"testing"

	"github.com/iabetor/pleasespeak/internal/audio"
	"github.com/iabetor/pleasespeak/internal/config"
	"github.com/iabetor/pleasespeak/internal/history"
	"github.com/iabetor/pleasespeak/internal/settings"
	"github.com/iabetor/pleasespeak/internal/tts"
)

type fakeProvider struct {
	name      string
	voices    []tts.Voice
	voicesErr error
	data      []byte
	speakErr  error
	// block 非空时 Synthesize 会等待它被关闭
	block chan struct{}
	// voicesBlock 非空时 Voices 会等待它被关闭或 ctx 取消
	voicesBlock chan struct{}

	mu     sync.Mutex
	spoken []string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Voices(ctx context.Context) ([]tts.Voice, error) {
	if p.voicesBlock != nil {
		select {
		case <-p.voicesBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.voicesErr != nil {
		return nil, p.voicesErr
	}
	return p.voices, nil
}

func (p *fakeProvider) Synthesize(ctx context.Context, voice tts.Voice, text string) (*tts.Audio, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.speakErr != nil {
		return nil, p.speakErr
	}
	p.mu.Lock()
	p.spoken = append(p.spoken, voice.ID+":"+text)
	p.mu.Unlock()
	return &tts.Audio{Data: p.data, Format: "mp3"}, nil
}

func (p *fakeProvider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.spoken...)
}

// fakeFactory 记录每次创建时使用的后端名称和密钥。
type fakeFactory struct {
	mu        sync.Mutex
	providers map[string]*fakeProvider
	err       error
	calls     []string
}

func (f *fakeFactory) New(name, apiKey string) (tts.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+"|"+apiKey)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.providers[name]
	if !ok {
		return nil, errUnknownProvider
	}
	return p, nil
}

func (f *fakeFactory) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errUnknownProvider = staticErr("unknown provider")

type memSettings struct {
	stored *settings.Settings
	saves  int
}

func (m *memSettings) Load(defaults settings.Settings) (settings.Settings, error) {
	if m.stored == nil {
		return defaults, nil
	}
	return *m.stored, nil
}

func (m *memSettings) Save(st settings.Settings) error {
	m.stored = &st
	m.saves++
	return nil
}

type memHistory struct {
	mu    sync.Mutex
	items []history.Speech
}

func (m *memHistory) Add(sp history.Speech) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, sp)
	return nil
}

func (m *memHistory) Recent(n int) ([]history.Speech, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []history.Speech
	for i := len(m.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.items[i])
	}
	return out, nil
}

type fakePlayer struct {
	mu      sync.Mutex
	devices []audio.Device
	played  []string
}

func (p *fakePlayer) Play(ctx context.Context, samples []float32, sampleRate int, device string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, device)
	return nil
}

func (p *fakePlayer) Devices() ([]audio.Device, error) {
	return p.devices, nil
}

var testVoices = []tts.Voice{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel"},
	tts.DefaultVoice,
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella"},
}

type testEnv struct {
	app      *App
	factory  *fakeFactory
	provider *fakeProvider
	settings *memSettings
	history  *memHistory
	player   *fakePlayer
	saveDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := &fakeProvider{name: "elevenlabs", voices: testVoices, data: []byte("ID3-fake-mp3")}
	env := &testEnv{
		factory: &fakeFactory{providers: map[string]*fakeProvider{
			"elevenlabs": provider,
			"edge":       {name: "edge", voices: []tts.Voice{{ID: "zh-CN-XiaoxiaoNeural", Name: "Xiaoxiao"}}},
		}},
		provider: provider,
		settings: &memSettings{},
		history:  &memHistory{},
		player:   &fakePlayer{devices: []audio.Device{{Name: "Built-in Output", Default: true}, {Name: "USB Headset"}}},
		saveDir:  t.TempDir(),
	}

	cfg := &config.Config{
		App: config.AppConfig{SavePath: env.saveDir, TickMs: 5, RequestTimeout: 5},
		TTS: config.TTSConfig{Provider: "elevenlabs"},
	}
	a, err := New(Options{
		Config:   cfg,
		Settings: env.settings,
		History:  env.history,
		Player:   env.player,
		Factory:  env.factory.New,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	env.app = a
	return env
}

// connect 初始化并等待连接完成。
func (e *testEnv) connect(t *testing.T) {
	t.Helper()
	if err := e.app.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := e.app.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}
