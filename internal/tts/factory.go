package tts

import (
	"fmt"
	"time"

	"github.com/iabetor/pleasespeak/internal/config"
)

// Names 列出支持的后端。
var Names = []string{"elevenlabs", "openai", "edge", "tencent", "piper"}

// New 根据配置创建后端。
// apiKey 非空时覆盖配置文件中的密钥（设置界面里输入的 Key），
// 仅对 elevenlabs 和 openai 生效。
func New(name string, cfg config.TTSConfig, apiKey string, timeout time.Duration) (Provider, error) {
	switch name {
	case "elevenlabs", "":
		key := cfg.ElevenLabs.APIKey
		if apiKey != "" {
			key = apiKey
		}
		return NewElevenLabsProvider(ElevenLabsConfig{
			APIKey:       key,
			BaseURL:      cfg.ElevenLabs.BaseURL,
			ModelID:      cfg.ElevenLabs.ModelID,
			OutputFormat: cfg.ElevenLabs.OutputFormat,
			Timeout:      timeout,
		}), nil
	case "openai":
		key := cfg.OpenAI.APIKey
		if apiKey != "" {
			key = apiKey
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  key,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Speed:   cfg.OpenAI.Speed,
		})
	case "edge":
		return NewEdgeProvider(cfg.Edge.Voice), nil
	case "tencent":
		return NewTencentProvider(TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
			Speed:     cfg.Tencent.Speed,
		})
	case "piper":
		return NewPiperProvider(PiperConfig{
			ModelPath:   cfg.Piper.ModelPath,
			TokensPath:  cfg.Piper.TokensPath,
			DataDir:     cfg.Piper.DataDir,
			NumSpeakers: cfg.Piper.NumSpeakers,
			NumThreads:  cfg.Piper.NumThreads,
			Speed:       cfg.Piper.Speed,
		})
	default:
		return nil, fmt.Errorf("未知的 TTS 后端: %s", name)
	}
}
