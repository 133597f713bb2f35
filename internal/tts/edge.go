package tts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/pleasespeak/internal/logger"
)

// edgeVoices 是常用的 Edge 神经网络音色。
var edgeVoices = []Voice{
	{ID: "zh-CN-XiaoxiaoNeural", Name: "Xiaoxiao"},
	{ID: "zh-CN-YunxiNeural", Name: "Yunxi"},
	{ID: "zh-CN-YunjianNeural", Name: "Yunjian"},
	{ID: "zh-CN-XiaoyiNeural", Name: "Xiaoyi"},
	{ID: "en-US-AriaNeural", Name: "Aria"},
	{ID: "en-US-GuyNeural", Name: "Guy"},
	{ID: "en-US-JennyNeural", Name: "Jenny"},
	{ID: "en-GB-SoniaNeural", Name: "Sonia"},
}

// EdgeProvider 使用微软 Edge TTS，无需密钥。
type EdgeProvider struct {
	defaultVoice string
}

var _ Provider = (*EdgeProvider)(nil)

// NewEdgeProvider 创建 Edge 后端，defaultVoice 在未选择音色时使用。
func NewEdgeProvider(defaultVoice string) *EdgeProvider {
	if defaultVoice == "" {
		defaultVoice = edgeVoices[0].ID
	}
	return &EdgeProvider{defaultVoice: defaultVoice}
}

// Name 返回后端名称。
func (p *EdgeProvider) Name() string { return "edge" }

// Voices 返回内置音色列表，配置的默认音色不在列表中时追加到最前。
func (p *EdgeProvider) Voices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, 0, len(edgeVoices)+1)
	if _, ok := FindVoice(edgeVoices, p.defaultVoice); !ok {
		out = append(out, Voice{ID: p.defaultVoice, Name: p.defaultVoice})
	}
	return append(out, edgeVoices...), nil
}

// Synthesize 通过 Stream() 收集 MP3 音频块。
func (p *EdgeProvider) Synthesize(ctx context.Context, voice Voice, text string) (*Audio, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = p.defaultVoice
	}

	logger.Infof("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), voiceID)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(voiceID))
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}

	var buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		// type=="audio" 的条目包含音频数据
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				buf.Write(data)
			}
		}
	}

	if buf.Len() == 0 {
		return nil, fmt.Errorf("[tts] edge-tts: 未收到音频数据")
	}

	logger.Infof("[tts] edge-tts: 收到 %d 字节 MP3 数据", buf.Len())
	return &Audio{Data: buf.Bytes(), Format: "mp3"}, nil
}
