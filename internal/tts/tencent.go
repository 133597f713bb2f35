package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tctts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/pleasespeak/internal/logger"
)

// tencentVoices 是常用的腾讯云音色，ID 为 VoiceType。
var tencentVoices = []Voice{
	{ID: "1001", Name: "智瑜"},
	{ID: "1002", Name: "智聆"},
	{ID: "1003", Name: "智美"},
	{ID: "1004", Name: "智云"},
	{ID: "1005", Name: "智莉"},
	{ID: "101001", Name: "智瑜（精品）"},
	{ID: "101050", Name: "WeJack"},
	{ID: "101051", Name: "WeRose"},
}

// TencentProvider 使用腾讯云 TTS 合成语音。
type TencentProvider struct {
	client *tctts.Client
	speed  float64
}

// TencentConfig 腾讯云后端配置。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	Speed     float64
}

var _ Provider = (*TencentProvider)(nil)

// NewTencentProvider 创建腾讯云后端。
func NewTencentProvider(cfg TencentConfig) (*TencentProvider, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := tctts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 已初始化 (region=%s)", cfg.Region)
	return &TencentProvider{client: client, speed: cfg.Speed}, nil
}

// Name 返回后端名称。
func (p *TencentProvider) Name() string { return "tencent" }

// Voices 返回内置音色列表。
func (p *TencentProvider) Voices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, len(tencentVoices))
	copy(out, tencentVoices)
	return out, nil
}

// Synthesize 调用 TextToVoice，返回 Base64 解码后的 MP3。
func (p *TencentProvider) Synthesize(ctx context.Context, voice Voice, text string) (*Audio, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	if voice.ID == "" {
		voice = tencentVoices[0]
	}
	voiceType, err := strconv.ParseInt(voice.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("[tts] 腾讯云音色 ID 无效 %q: %w", voice.ID, err)
	}

	logger.Infof("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), voiceType)

	request := tctts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(strconv.FormatInt(voiceType, 10) + "-pleasespeak")
	request.VoiceType = common.Int64Ptr(voiceType)
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(p.speed)
	request.Volume = common.Float64Ptr(5.0)

	response, err := p.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}
	if response.Response == nil || response.Response.Audio == nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS: 未返回音频数据")
	}

	data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(data))
	return &Audio{Data: data, Format: "mp3"}, nil
}
