package audio

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/iabetor/pleasespeak/internal/logger"
)

// Player 使用 malgo (miniaudio) 播放单声道音频。
type Player struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewPlayer 创建播放器并初始化 miniaudio 上下文。
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// Devices 列出所有播放设备。
func (p *Player) Devices() ([]Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("播放器已关闭")
	}

	infos, err := p.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("枚举播放设备失败: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			Name:    info.Name(),
			Default: info.IsDefault != 0,
			id:      info.ID,
		})
	}
	return devices, nil
}

// Play 播放 float32 单声道样本，阻塞直到播放完成或 ctx 被取消。
// deviceName 为空时使用系统默认设备；找不到同名设备时也回退到默认设备。
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int, deviceName string) error {
	if len(samples) == 0 {
		return nil
	}

	var deviceID unsafe.Pointer
	if deviceName != "" {
		devices, err := p.Devices()
		if err != nil {
			return err
		}
		if d, ok := FindDevice(devices, deviceName); ok {
			id := d.id
			deviceID = id.Pointer()
		} else {
			logger.Warnf("[audio] 未找到播放设备 %q，使用默认设备", deviceName)
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("播放器已关闭")
	}
	p.mu.Unlock()

	pcmBytes := Float32ToBytes(samples)
	pos := 0
	done := make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.Playback.DeviceID = deviceID
	deviceConfig.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			bytesNeeded := int(frameCount) * 2 // 单声道 int16
			if pos >= len(pcmBytes) {
				for i := range outputSamples[:bytesNeeded] {
					outputSamples[i] = 0
				}
				select {
				case done <- struct{}{}:
				default:
				}
				return
			}

			end := pos + bytesNeeded
			if end > len(pcmBytes) {
				end = len(pcmBytes)
			}
			n := copy(outputSamples, pcmBytes[pos:end])
			for i := n; i < bytesNeeded; i++ {
				outputSamples[i] = 0
			}
			pos = end
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("启动播放设备失败: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		logger.Infof("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成 (%d 个样本, %d Hz)", len(samples), sampleRate)
		return nil
	}
}

// Close 释放 miniaudio 上下文。
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
