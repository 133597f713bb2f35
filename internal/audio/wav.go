package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	wavHeaderSize    = 44
	wavFormatPCM     = 1
	wavBitsPerSample = 16
)

// EncodeWAV 把单声道 float32 样本编码为 16 位 PCM WAV 文件。
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToBytes(samples)
	blockAlign := wavBitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV 解码 16 位 PCM WAV（单声道或立体声），返回单声道样本和采样率。
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) == 0 {
		return nil, 0, ErrNoAudio
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("[audio] 不是 WAV 文件")
	}

	var (
		channels   int
		sampleRate int
		bits       int
		format     int
		pcm        []byte
	)
	for i := 12; i+8 <= len(data); {
		id := string(data[i : i+4])
		size := int(binary.LittleEndian.Uint32(data[i+4 : i+8]))
		body := i + 8
		next := body + size
		if next > len(data) {
			if id != "data" {
				return nil, 0, fmt.Errorf("[audio] WAV 块 %q 越界", id)
			}
			// 流式写出的文件 data 大小可能不准确
			next = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("[audio] WAV fmt 块过短")
			}
			format = int(binary.LittleEndian.Uint16(data[body:]))
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			pcm = data[body:next]
		}

		if size%2 != 0 {
			next++
		}
		i = next
	}

	if format != wavFormatPCM || bits != wavBitsPerSample {
		return nil, 0, fmt.Errorf("[audio] 不支持的 WAV 编码 (format=%d, bits=%d)", format, bits)
	}

	var samples []float32
	switch channels {
	case 1:
		samples = make([]float32, len(pcm)/2)
		for i := range samples {
			s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
			samples[i] = float32(s) / 32768.0
		}
	case 2:
		samples = StereoS16ToMono(pcm)
	default:
		return nil, 0, fmt.Errorf("[audio] 不支持的声道数: %d", channels)
	}
	if len(samples) == 0 {
		return nil, 0, ErrNoAudio
	}
	return samples, sampleRate, nil
}
