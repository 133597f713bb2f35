package main

import (
	"fmt"
	"os"

	"github.com/iabetor/pleasespeak/internal/audio"
)

func main() {
	player, err := audio.NewPlayer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化音频失败: %v\n", err)
		os.Exit(1)
	}
	defer player.Close()

	devices, err := player.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取播放设备失败: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("没有找到播放设备")
		return
	}

	fmt.Println("播放设备:")
	for i, d := range devices {
		mark := ""
		if d.Default {
			mark = " (默认)"
		}
		fmt.Printf("  %d. %s%s\n", i+1, d.Name, mark)
	}
}
