package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/iabetor/pleasespeak/internal/logger"
)

// openAIVoices 是 OpenAI TTS 的内置音色，接口不提供列表查询。
var openAIVoices = []Voice{
	{ID: "alloy", Name: "Alloy"},
	{ID: "echo", Name: "Echo"},
	{ID: "fable", Name: "Fable"},
	{ID: "onyx", Name: "Onyx"},
	{ID: "nova", Name: "Nova"},
	{ID: "shimmer", Name: "Shimmer"},
}

// OpenAIProvider 使用 go-openai 的 CreateSpeech 合成语音。
type OpenAIProvider struct {
	client *openai.Client
	model  string
	speed  float64
}

// OpenAIConfig OpenAI 后端配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Speed   float64
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider 创建 OpenAI 后端。
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[tts] openai 需要 API Key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		speed:  cfg.Speed,
	}, nil
}

// Name 返回后端名称。
func (p *OpenAIProvider) Name() string { return "openai" }

// Voices 返回固定的内置音色。
func (p *OpenAIProvider) Voices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, len(openAIVoices))
	copy(out, openAIVoices)
	return out, nil
}

// Synthesize 合成 MP3 音频。
func (p *OpenAIProvider) Synthesize(ctx context.Context, voice Voice, text string) (*Audio, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	if voice.ID == "" {
		voice = openAIVoices[0]
	}

	logger.Infof("[tts] openai: 正在合成 %d 个字符，音色=%s，模型=%s", len([]rune(text)), voice.ID, p.model)

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice.ID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          p.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("[tts] openai 合成失败: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("[tts] 读取 openai 音频失败: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("[tts] openai: 未收到音频数据")
	}

	logger.Infof("[tts] openai: 收到 %d 字节音频", len(data))
	return &Audio{Data: data, Format: "mp3"}, nil
}
