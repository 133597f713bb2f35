package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 PleaseSpeak 的顶层配置结构。
type Config struct {
	App AppConfig `yaml:"app"`
	TTS TTSConfig `yaml:"tts"`
	Log LogConfig `yaml:"log"`
}

// AppConfig 前端与后台任务配置。
type AppConfig struct {
	// DataDir 存放数据库和默认输出目录。
	DataDir string `yaml:"data_dir"`
	// SavePath 生成音频的默认保存位置（目录或文件）。
	SavePath string `yaml:"save_path"`
	// TickMs 前端主循环的刷新间隔（毫秒）。
	TickMs int `yaml:"tick_ms"`
	// RequestTimeout 单次网络请求超时（秒）。
	RequestTimeout int `yaml:"request_timeout"`
	// Autoplay 生成后是否立即播放。
	Autoplay bool `yaml:"autoplay"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Provider   string           `yaml:"provider"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Edge       EdgeConfig       `yaml:"edge"`
	Tencent    TencentConfig    `yaml:"tencent"`
	Piper      PiperConfig      `yaml:"piper"`
}

// ElevenLabsConfig ElevenLabs 配置。
type ElevenLabsConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	ModelID      string `yaml:"model_id"`
	OutputFormat string `yaml:"output_format"`
}

// OpenAIConfig OpenAI TTS 配置。
type OpenAIConfig struct {
	APIKey  string  `yaml:"api_key"`
	BaseURL string  `yaml:"base_url"`
	Model   string  `yaml:"model"`
	Speed   float64 `yaml:"speed"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string  `yaml:"secret_id"`
	SecretKey string  `yaml:"secret_key"`
	Region    string  `yaml:"region"`
	Speed     float64 `yaml:"speed"`
}

// PiperConfig Piper 离线 TTS 配置（sherpa-onnx 加载 VITS 模型）。
type PiperConfig struct {
	// ModelPath 是 .onnx 模型文件。
	ModelPath string `yaml:"model_path"`
	// TokensPath 默认为模型同目录下的 tokens.txt。
	TokensPath string `yaml:"tokens_path"`
	// DataDir 是 espeak-ng-data 目录，默认为模型同目录下的 espeak-ng-data。
	DataDir     string  `yaml:"data_dir"`
	NumSpeakers int     `yaml:"num_speakers"`
	NumThreads  int     `yaml:"num_threads"`
	Speed       float64 `yaml:"speed"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 先加载工作目录下的 .env，再展开 ${VAR_NAME} 形式的环境变量。
// 配置文件不存在时使用全部默认值。
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.Expand(string(data), os.Getenv)
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// 没有配置文件时只依赖环境变量和默认值
	default:
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.App.DataDir == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.App.DataDir = filepath.Join(home, ".pleasespeak")
		} else {
			cfg.App.DataDir = "./.pleasespeak-data"
		}
	} else {
		cfg.App.DataDir = expandHome(cfg.App.DataDir)
	}
	if cfg.App.SavePath == "" {
		cfg.App.SavePath = filepath.Join(cfg.App.DataDir, "speech")
	} else {
		cfg.App.SavePath = expandHome(cfg.App.SavePath)
	}
	if cfg.App.TickMs <= 0 {
		cfg.App.TickMs = 50
	}
	if cfg.App.RequestTimeout <= 0 {
		cfg.App.RequestTimeout = 90
	}

	if cfg.TTS.Provider == "" {
		cfg.TTS.Provider = "elevenlabs"
	}
	if cfg.TTS.ElevenLabs.APIKey == "" {
		cfg.TTS.ElevenLabs.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.TTS.ElevenLabs.BaseURL == "" {
		cfg.TTS.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.TTS.ElevenLabs.ModelID == "" {
		cfg.TTS.ElevenLabs.ModelID = "eleven_multilingual_v2"
	}
	if cfg.TTS.ElevenLabs.OutputFormat == "" {
		cfg.TTS.ElevenLabs.OutputFormat = "mp3_44100_128"
	}
	if cfg.TTS.OpenAI.APIKey == "" {
		cfg.TTS.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.TTS.OpenAI.Model == "" {
		cfg.TTS.OpenAI.Model = "tts-1"
	}
	if cfg.TTS.OpenAI.Speed == 0 {
		cfg.TTS.OpenAI.Speed = 1.0
	}
	if cfg.TTS.Edge.Voice == "" {
		cfg.TTS.Edge.Voice = "zh-CN-XiaoxiaoNeural"
	}
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.TTS.Tencent.Speed == 0 {
		cfg.TTS.Tencent.Speed = 1.0
	}
	if cfg.TTS.Piper.ModelPath != "" {
		cfg.TTS.Piper.ModelPath = expandHome(cfg.TTS.Piper.ModelPath)
		dir := filepath.Dir(cfg.TTS.Piper.ModelPath)
		if cfg.TTS.Piper.TokensPath == "" {
			cfg.TTS.Piper.TokensPath = filepath.Join(dir, "tokens.txt")
		}
		if cfg.TTS.Piper.DataDir == "" {
			cfg.TTS.Piper.DataDir = filepath.Join(dir, "espeak-ng-data")
		}
	}
	cfg.TTS.Piper.TokensPath = expandHome(cfg.TTS.Piper.TokensPath)
	cfg.TTS.Piper.DataDir = expandHome(cfg.TTS.Piper.DataDir)
	if cfg.TTS.Piper.NumSpeakers <= 0 {
		cfg.TTS.Piper.NumSpeakers = 1
	}
	if cfg.TTS.Piper.NumThreads <= 0 {
		cfg.TTS.Piper.NumThreads = 2
	}
	if cfg.TTS.Piper.Speed == 0 {
		cfg.TTS.Piper.Speed = 1.0
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = expandHome(cfg.Log.File)

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.TTS.ElevenLabs.APIKey = strings.TrimSpace(cfg.TTS.ElevenLabs.APIKey)
	cfg.TTS.OpenAI.APIKey = strings.TrimSpace(cfg.TTS.OpenAI.APIKey)
}

// DBPath 返回 SQLite 数据库文件路径。
func (c *Config) DBPath() string {
	return filepath.Join(c.App.DataDir, "pleasespeak.db")
}

// expandHome 将 ~/ 前缀替换为用户主目录，Go 不会自动展开。
func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return p
	}
	return filepath.Join(home, p[2:])
}
