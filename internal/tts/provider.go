package tts

import (
	"context"
	"errors"
	"strings"
)

// Voice 是一个可选音色。ID 传给后端，Name 用于展示。
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultVoice 是 ElevenLabs 的 Clyde，新安装时的默认音色。
var DefaultVoice = Voice{ID: "2EiwWnXFnvU5JabPnv8n", Name: "Clyde"}

// String 返回展示名称。
func (v Voice) String() string {
	if v.Name != "" {
		return v.Name
	}
	if v.ID != "" {
		return v.ID
	}
	return "(none)"
}

// IsZero 判断是否未选择音色。
func (v Voice) IsZero() bool {
	return v.ID == "" && v.Name == ""
}

// Audio 是合成得到的编码音频。
type Audio struct {
	Data   []byte
	Format string // 目前各后端均为 "mp3"
}

// Provider 定义语音合成后端接口。
type Provider interface {
	// Name 返回后端名称，如 "elevenlabs"。
	Name() string
	// Voices 返回后端可用的音色列表。
	// 对需要鉴权的后端，这也是校验密钥是否有效的方式。
	Voices(ctx context.Context) ([]Voice, error)
	// Synthesize 使用指定音色把文本合成为音频。
	Synthesize(ctx context.Context, voice Voice, text string) (*Audio, error)
}

// FindVoice 在列表中按名称（不区分大小写）或 ID 查找音色。
func FindVoice(voices []Voice, key string) (Voice, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		if v.ID == key {
			return v, true
		}
	}
	for _, v := range voices {
		if strings.EqualFold(v.Name, key) {
			return v, true
		}
	}
	return Voice{}, false
}

// ErrEmptyText 表示待合成文本为空。
var ErrEmptyText = errors.New("[tts] 文本为空")

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}
