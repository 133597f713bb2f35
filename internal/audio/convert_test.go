package audio

import (
	"math"
	"testing"
)

func TestFloat32ToInt16_Clamp(t *testing.T) {
	out := Float32ToInt16([]float32{2.0, -2.0, 0})
	if out[0] != math.MaxInt16 {
		t.Fatalf("expected MaxInt16 for 2.0 input, got %d", out[0])
	}
	if out[1] != -math.MaxInt16 {
		t.Fatalf("expected -MaxInt16 for -2.0 input, got %d", out[1])
	}
	if out[2] != 0 {
		t.Fatalf("expected 0 for 0.0 input, got %d", out[2])
	}
}

func TestInt16ToBytes_LittleEndian(t *testing.T) {
	out := Int16ToBytes([]int16{0x0102, -1})
	want := []byte{0x02, 0x01, 0xFF, 0xFF}
	if len(out) != len(want) {
		t.Fatalf("length: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, out[i], want[i])
		}
	}
}

func TestFloat32ToBytes_Length(t *testing.T) {
	out := Float32ToBytes([]float32{0.1, 0.2, 0.3})
	if len(out) != 6 {
		t.Fatalf("expected 6 bytes, got %d", len(out))
	}
}

func TestStereoS16ToMono(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected []float32
	}{
		{
			name:  "两个立体声帧",
			input: []byte{0x00, 0x80, 0x00, 0x80, 0xFF, 0x7F, 0xFF, 0x7F},
			expected: []float32{
				(float32(-32768) + float32(-32768)) / 65536.0,
				(float32(32767) + float32(32767)) / 65536.0,
			},
		},
		{
			name:     "空输入",
			input:    []byte{},
			expected: nil,
		},
		{
			name:     "不完整尾帧被丢弃",
			input:    []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x02},
			expected: []float32{0.0},
		},
		{
			name:     "左右声道抵消",
			input:    []byte{0xFF, 0x7F, 0x01, 0x80},
			expected: []float32{0.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StereoS16ToMono(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("结果长度错误: got %d, want %d", len(result), len(tt.expected))
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("样本 %d: got %f, want %f", i, result[i], tt.expected[i])
				}
			}
		})
	}
}
