package audio

import (
	"math"
)

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本转换为 PCM int16，越界值会被钳位。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * math.MaxInt16)
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// Float32ToBytes 将 float32 样本直接转换为 S16LE 字节，供播放设备使用。
func Float32ToBytes(in []float32) []byte {
	return Int16ToBytes(Float32ToInt16(in))
}

// StereoS16ToMono 将 S16LE 立体声 PCM 转换为单声道 float32，左右声道取平均。
// 不完整的尾部帧会被丢弃。
func StereoS16ToMono(data []byte) []float32 {
	const bytesPerFrame = 4
	numFrames := len(data) / bytesPerFrame
	if numFrames == 0 {
		return nil
	}
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		left := int16(data[i*4]) | int16(data[i*4+1])<<8
		right := int16(data[i*4+2]) | int16(data[i*4+3])<<8
		samples[i] = (float32(left) + float32(right)) / 65536.0
	}
	return samples
}
