package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/iabetor/pleasespeak/internal/logger"
)

// maxErrorRunes 是错误弹窗中显示的响应体最大字符数。
const maxErrorRunes = 200

// ElevenLabsProvider 通过 ElevenLabs REST API 获取音色列表和合成语音。
type ElevenLabsProvider struct {
	apiKey       string
	baseURL      string
	modelID      string
	outputFormat string
	client       *http.Client
}

// ElevenLabsConfig ElevenLabs 后端配置。
type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

var _ Provider = (*ElevenLabsProvider)(nil)

// NewElevenLabsProvider 创建 ElevenLabs 后端。
// 密钥不在这里校验，调用 Voices 时由服务端判断。
func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	return &ElevenLabsProvider{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Name 返回后端名称。
func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

type elevenLabsVoice struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type elevenLabsVoicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

type elevenLabsSpeechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// elevenLabsError 是 ElevenLabs 错误响应体，detail 可能是字符串或对象。
type elevenLabsError struct {
	Detail interface{} `json:"detail"`
}

// APIError 表示 ElevenLabs 返回了非 2xx 状态码。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs 返回状态码 %d: %s", e.StatusCode, e.Message)
}

// Voices 调用 GET /v1/voices。
func (p *ElevenLabsProvider) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建 elevenlabs 请求失败: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	body, err := p.do(req)
	if err != nil {
		return nil, err
	}

	var resp elevenLabsVoicesResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("[tts] 解析 elevenlabs 音色列表失败: %w", err)
	}

	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, Voice{ID: v.VoiceID, Name: v.Name})
	}
	logger.Debugf("[tts] elevenlabs: 获取到 %d 个音色", len(voices))
	return voices, nil
}

// Synthesize 调用 POST /v1/text-to-speech/{voice_id}，响应体即音频文件。
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, voice Voice, text string) (*Audio, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	if voice.ID == "" {
		return nil, fmt.Errorf("[tts] elevenlabs: 未选择音色")
	}

	payload, err := sonic.Marshal(elevenLabsSpeechRequest{Text: text, ModelID: p.modelID})
	if err != nil {
		return nil, fmt.Errorf("[tts] 序列化 elevenlabs 请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		p.baseURL, url.PathEscape(voice.ID), url.QueryEscape(p.outputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建 elevenlabs 请求失败: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	logger.Infof("[tts] elevenlabs: 正在合成 %d 个字符，音色=%s，模型=%s",
		len([]rune(text)), voice, p.modelID)

	data, err := p.do(req)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("[tts] elevenlabs: 未收到音频数据")
	}

	logger.Infof("[tts] elevenlabs: 收到 %d 字节音频", len(data))
	return &Audio{Data: data, Format: formatFromOutput(p.outputFormat)}, nil
}

func (p *ElevenLabsProvider) do(req *http.Request) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[tts] elevenlabs 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[tts] 读取 elevenlabs 响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage 尽量从错误响应中提取可读信息。
func errorMessage(body []byte) string {
	var e elevenLabsError
	if err := sonic.Unmarshal(body, &e); err == nil && e.Detail != nil {
		switch d := e.Detail.(type) {
		case string:
			return d
		case map[string]interface{}:
			if msg, ok := d["message"].(string); ok {
				return msg
			}
		}
	}
	msg := []rune(strings.TrimSpace(string(body)))
	if len(msg) > maxErrorRunes {
		msg = msg[:maxErrorRunes]
	}
	return string(msg)
}

// formatFromOutput 从 output_format（如 mp3_44100_128、pcm_16000）取出编码，
// 作为文件扩展名。
func formatFromOutput(outputFormat string) string {
	codec, _, _ := strings.Cut(strings.ToLower(outputFormat), "_")
	if codec == "" {
		return "mp3"
	}
	return codec
}
