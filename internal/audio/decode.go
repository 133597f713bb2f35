package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

// ErrNoAudio 表示没有可解码的音频数据。
var ErrNoAudio = errors.New("[audio] 没有音频数据")

// ErrUnsupportedFormat 表示该格式可以保存但不能播放。
var ErrUnsupportedFormat = errors.New("[audio] 不支持播放该格式")

// Decode 按格式（文件扩展名，不含点）解码为单声道样本。
func Decode(ctx context.Context, data []byte, format string) ([]float32, int, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "mp3":
		return DecodeMP3(ctx, data)
	case "wav":
		return DecodeWAV(data)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DecodeMP3 将 MP3 数据解码为单声道 float32 样本，返回样本和采样率。
// go-mp3 的输出固定为 S16LE 立体声。
func DecodeMP3(ctx context.Context, data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrNoAudio
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("[audio] MP3 解码失败: %w", err)
	}
	sampleRate := decoder.SampleRate()

	var pcm bytes.Buffer
	buf := make([]byte, 8192)
	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		n, err := decoder.Read(buf)
		pcm.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("[audio] 读取 PCM 数据失败: %w", err)
		}
	}

	samples := StereoS16ToMono(pcm.Bytes())
	if len(samples) == 0 {
		return nil, 0, ErrNoAudio
	}
	return samples, sampleRate, nil
}
