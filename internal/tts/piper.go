package tts

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/pleasespeak/internal/audio"
	"github.com/iabetor/pleasespeak/internal/logger"
)

// PiperProvider 使用 sherpa-onnx 在本地运行 Piper (VITS) 模型，作为离线后端。
// 音色即模型中的说话人编号，输出 WAV。
type PiperProvider struct {
	mu     sync.Mutex
	tts    *sherpa.OfflineTts
	voices []Voice
	speed  float32
}

// PiperConfig Piper 后端配置。
type PiperConfig struct {
	ModelPath   string
	TokensPath  string
	DataDir     string
	NumSpeakers int
	NumThreads  int
	Speed       float64
}

var _ Provider = (*PiperProvider)(nil)

// NewPiperProvider 加载模型并创建后端。
func NewPiperProvider(cfg PiperConfig) (*PiperProvider, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("[tts] piper 需要配置 model_path")
	}
	for _, path := range []string{cfg.ModelPath, cfg.TokensPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("[tts] piper 模型文件不可用: %w", err)
		}
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 2
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}

	config := sherpa.OfflineTtsConfig{}
	config.Model.Vits.Model = cfg.ModelPath
	config.Model.Vits.Tokens = cfg.TokensPath
	config.Model.Vits.DataDir = cfg.DataDir
	config.Model.Vits.NoiseScale = 0.667
	config.Model.Vits.NoiseScaleW = 0.8
	config.Model.Vits.LengthScale = 1.0
	config.Model.NumThreads = cfg.NumThreads
	config.Model.Provider = "cpu"
	config.MaxNumSentences = 1

	tts := sherpa.NewOfflineTts(&config)
	if tts == nil {
		return nil, fmt.Errorf("[tts] 创建 piper 合成器失败，模型: %s", cfg.ModelPath)
	}

	logger.Infof("[tts] piper 已加载 %s (%d 个说话人)", cfg.ModelPath, cfg.NumSpeakers)
	return &PiperProvider{
		tts:    tts,
		voices: speakerVoices(cfg.NumSpeakers),
		speed:  float32(cfg.Speed),
	}, nil
}

// speakerVoices 生成说话人编号 0..n-1 对应的音色。
func speakerVoices(n int) []Voice {
	if n <= 0 {
		n = 1
	}
	voices := make([]Voice, n)
	for i := range voices {
		voices[i] = Voice{ID: strconv.Itoa(i), Name: fmt.Sprintf("说话人 %d", i)}
	}
	return voices
}

// Name 返回后端名称。
func (p *PiperProvider) Name() string { return "piper" }

// Voices 返回模型的说话人列表。
func (p *PiperProvider) Voices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, len(p.voices))
	copy(out, p.voices)
	return out, nil
}

// Synthesize 在本地生成语音并编码为 WAV。
// 推理不可中断，ctx 只在开始前检查。
func (p *PiperProvider) Synthesize(ctx context.Context, voice Voice, text string) (*Audio, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	sid := 0
	if voice.ID != "" {
		v, err := strconv.Atoi(voice.ID)
		if err != nil || v < 0 || v >= len(p.voices) {
			return nil, fmt.Errorf("[tts] piper 说话人编号无效: %q", voice.ID)
		}
		sid = v
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Infof("[tts] piper: 正在合成 %d 个字符，说话人=%d", len([]rune(text)), sid)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tts == nil {
		return nil, fmt.Errorf("[tts] piper 已关闭")
	}
	generated := p.tts.Generate(text, sid, p.speed)
	if generated == nil || len(generated.Samples) == 0 {
		return nil, fmt.Errorf("[tts] piper: 未生成音频")
	}

	data := audio.EncodeWAV(generated.Samples, generated.SampleRate)
	logger.Infof("[tts] piper: 生成 %d 个样本 (%d Hz)", len(generated.Samples), generated.SampleRate)
	return &Audio{Data: data, Format: "wav"}, nil
}

// Close 释放模型。
func (p *PiperProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tts != nil {
		sherpa.DeleteOfflineTts(p.tts)
		p.tts = nil
	}
}
