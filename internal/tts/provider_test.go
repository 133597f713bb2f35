package tts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iabetor/pleasespeak/internal/config"
)

func TestVoice_String(t *testing.T) {
	tests := []struct {
		voice Voice
		want  string
	}{
		{DefaultVoice, "Clyde"},
		{Voice{ID: "abc"}, "abc"},
		{Voice{}, "(none)"},
	}
	for _, tt := range tests {
		if got := tt.voice.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.voice, got, tt.want)
		}
	}
	if !(Voice{}).IsZero() || DefaultVoice.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestFindVoice(t *testing.T) {
	voices := []Voice{
		{ID: "1", Name: "Rachel"},
		{ID: "2", Name: "Clyde"},
	}

	if v, ok := FindVoice(voices, "clyde"); !ok || v.ID != "2" {
		t.Errorf("by name: got %+v, %v", v, ok)
	}
	if v, ok := FindVoice(voices, "1"); !ok || v.Name != "Rachel" {
		t.Errorf("by id: got %+v, %v", v, ok)
	}
	if _, ok := FindVoice(voices, "Bella"); ok {
		t.Error("unexpected match for Bella")
	}
	if _, ok := FindVoice(voices, "  "); ok {
		t.Error("blank key should not match")
	}
}

func TestNew(t *testing.T) {
	cfg := config.TTSConfig{
		ElevenLabs: config.ElevenLabsConfig{APIKey: "from-config"},
		Edge:       config.EdgeConfig{Voice: "en-US-AriaNeural"},
	}

	tests := []struct {
		name     string
		apiKey   string
		wantName string
		wantErr  bool
	}{
		{"elevenlabs", "", "elevenlabs", false},
		{"", "", "elevenlabs", false},
		{"openai", "sk-test", "openai", false},
		{"openai", "", "", true}, // 没有密钥
		{"edge", "", "edge", false},
		{"tencent", "", "", true}, // 没有 SecretID/SecretKey
		{"piper", "", "", true}, // 没有模型
		{"unknown", "", "", true},
	}
	for _, tt := range tests {
		p, err := New(tt.name, cfg, tt.apiKey, 5*time.Second)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && p.Name() != tt.wantName {
			t.Errorf("New(%q).Name() = %q, want %q", tt.name, p.Name(), tt.wantName)
		}
	}
}

func TestNew_APIKeyOverride(t *testing.T) {
	cfg := config.TTSConfig{ElevenLabs: config.ElevenLabsConfig{APIKey: "from-config"}}

	p, err := New("elevenlabs", cfg, "typed-in", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.(*ElevenLabsProvider).apiKey; got != "typed-in" {
		t.Errorf("apiKey = %q, want typed-in", got)
	}

	p, _ = New("elevenlabs", cfg, "", time.Second)
	if got := p.(*ElevenLabsProvider).apiKey; got != "from-config" {
		t.Errorf("apiKey = %q, want from-config", got)
	}
}

func TestEdgeProvider_Voices(t *testing.T) {
	p := NewEdgeProvider("ja-JP-NanamiNeural")
	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if voices[0].ID != "ja-JP-NanamiNeural" {
		t.Errorf("configured voice should come first, got %+v", voices[0])
	}
	if len(voices) != len(edgeVoices)+1 {
		t.Errorf("len = %d", len(voices))
	}

	p = NewEdgeProvider("")
	voices, _ = p.Voices(context.Background())
	if len(voices) != len(edgeVoices) {
		t.Errorf("built-in default should not be duplicated, len = %d", len(voices))
	}
}

func TestPiper_MissingModel(t *testing.T) {
	_, err := NewPiperProvider(PiperConfig{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestSpeakerVoices(t *testing.T) {
	voices := speakerVoices(3)
	if len(voices) != 3 || voices[2].ID != "2" {
		t.Errorf("speakerVoices(3) = %+v", voices)
	}
	if got := speakerVoices(0); len(got) != 1 || got[0].ID != "0" {
		t.Errorf("speakerVoices(0) = %+v", got)
	}
}

func TestPiper_SynthesizeRejectsBadSpeaker(t *testing.T) {
	// 不加载模型，只检查参数校验
	p := &PiperProvider{voices: speakerVoices(2), speed: 1}
	tests := []Voice{{ID: "2"}, {ID: "-1"}, {ID: "abc"}}
	for _, v := range tests {
		if _, err := p.Synthesize(context.Background(), v, "你好"); err == nil {
			t.Errorf("voice %q: expected error", v.ID)
		}
	}
	if _, err := p.Synthesize(context.Background(), Voice{ID: "1"}, ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), Voice{ID: "1"}, "hi"); err == nil {
		t.Error("closed provider should fail")
	}
}
