package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iabetor/pleasespeak/internal/app"
	"github.com/iabetor/pleasespeak/internal/audio"
	"github.com/iabetor/pleasespeak/internal/config"
	"github.com/iabetor/pleasespeak/internal/database"
	"github.com/iabetor/pleasespeak/internal/history"
	"github.com/iabetor/pleasespeak/internal/logger"
	"github.com/iabetor/pleasespeak/internal/settings"
)

func main() {
	configPath := flag.String("config", "configs/pleasespeak.yaml", "配置文件路径")
	text := flag.String("text", "", "要朗读的文本，指定后生成一次即退出")
	voice := flag.String("voice", "", "音色名称、ID 或序号")
	out := flag.String("out", "", "保存位置（目录或 .mp3 文件）")
	provider := flag.String("provider", "", "TTS 后端: elevenlabs, openai, edge, tencent, piper")
	flag.Parse()

	os.Exit(run(*configPath, *text, *voice, *out, *provider))
}

func run(configPath, text, voice, out, provider string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	oneShot := text != ""
	if err := logger.Init(cfg.Log, oneShot); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Infof("[main] PleaseSpeak 启动中 (log_level=%s)", cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	db, err := database.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开数据库失败: %v\n", err)
		return 1
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "数据库迁移失败: %v\n", err)
		return 1
	}

	opts := app.Options{
		Config:   cfg,
		Settings: settings.NewStore(db),
		History:  history.NewStore(db),
		Factory:  app.NewProviderFactory(cfg),
		// 脚本调用不改动交互模式保存的设置
		ReadOnly: oneShot,
	}
	player, err := audio.NewPlayer()
	if err != nil {
		logger.Warnf("[main] 音频设备不可用，播放功能已禁用: %v", err)
	} else {
		defer player.Close()
		opts.Player = player
	}

	a, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建应用失败: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Errorf("[main] %v", err)
		}
	}()

	if oneShot {
		return speakOnce(ctx, a, text, voice, out, provider)
	}

	if provider != "" {
		err = a.SetProvider(provider)
	} else {
		err = a.Init()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接失败: %v\n", err)
		return 1
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.Duration(cfg.App.TickMs) * time.Millisecond
	err = app.NewConsole(a, os.Stdout, tick).Run(ctx, lines)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "运行出错: %v\n", err)
		return 1
	}

	logger.Info("[main] PleaseSpeak 已停止")
	return 0
}

// speakOnce 连接、生成并保存一次，失败时打印错误弹窗内容。
func speakOnce(ctx context.Context, a *app.App, text, voice, out, provider string) int {
	var err error
	if provider != "" {
		err = a.SetProvider(provider)
	} else {
		err = a.Init()
	}
	if err == nil {
		err = a.Wait(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接失败: %v\n", err)
		return 1
	}
	if !a.Connected() {
		printErrors(a)
		return 1
	}

	if voice != "" {
		if err := a.SelectVoice(voice); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if out != "" {
		if err := a.SetSavePath(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	a.SetText(text)

	if err := a.Speak(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := a.Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "已取消: %v\n", err)
		return 1
	}

	sp := a.LastSpeech()
	if sp == nil {
		printErrors(a)
		return 1
	}
	fmt.Println(sp.Path)
	return 0
}

func printErrors(a *app.App) {
	for _, msg := range a.OpenErrors() {
		fmt.Fprintln(os.Stderr, msg)
	}
}
