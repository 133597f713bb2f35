package audio

import (
	"strings"

	"github.com/gen2brain/malgo"
)

// Device 是一个播放设备。设备按名称持久化和比较，ID 只在本次运行内有效。
type Device struct {
	Name    string
	Default bool
	id      malgo.DeviceID
}

// Equal 按名称比较设备。
func (d Device) Equal(other Device) bool {
	return d.Name == other.Name
}

// FindDevice 按名称查找设备，先精确匹配再忽略大小写匹配。
func FindDevice(devices []Device, name string) (Device, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Device{}, false
	}
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	for _, d := range devices {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Device{}, false
}
