package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const helpText = `命令:
  text <内容>        设置要朗读的文本（不带参数时显示当前文本）
  voices             列出音色
  voice <序号|名称>  选择音色
  speak              生成语音并保存
  play [文件]        播放最近生成的音频或指定文件
  save <路径>        设置保存位置（目录或 .mp3 文件）
  devices            列出播放设备
  device <序号|名称> 选择播放设备（default 表示系统默认）
  provider <名称>    切换后端: elevenlabs, openai, edge, tencent, piper
  settings           打开设置，输入 API Key
  key <API Key>      直接设置 API Key 并重新连接
  history [n]        最近的生成记录
  dismiss            关闭错误弹窗
  status             显示当前状态
  quit               保存设置并退出`

// Console 是基于行输入的前端。主循环每帧调用 App.Update，
// 并把状态变化和错误弹窗输出到 out。
type Console struct {
	app  *App
	out  io.Writer
	tick time.Duration

	// shown 记录每个错误弹窗已经显示过的错误数
	shown map[string]int
}

// NewConsole 创建前端，tick 为帧间隔。
func NewConsole(a *App, out io.Writer, tick time.Duration) *Console {
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	return &Console{app: a, out: out, tick: tick, shown: make(map[string]int)}
}

// Run 运行主循环，直到输入 quit、输入结束或 ctx 被取消。
func (c *Console) Run(ctx context.Context, lines <-chan string) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.printf("PleaseSpeak，输入 help 查看命令\n")
	c.status()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if c.Exec(line) {
				return nil
			}
			c.Frame()
		case <-ticker.C:
			c.Frame()
		}
	}
}

// Frame 执行一帧并输出变化。
func (c *Console) Frame() {
	if !c.app.Update() {
		return
	}
	for _, ev := range c.app.Events() {
		c.printf("* %s\n", ev)
	}
	for _, m := range c.app.ErrorManagers() {
		msg, open := m.Modal()
		if !open || c.shown[m.Name()] == m.Received() {
			continue
		}
		c.shown[m.Name()] = m.Received()
		c.printf("┌─ %s\n│ 错误: %s\n└─ 输入 dismiss 关闭\n", m.Name(), msg)
	}
}

// Exec 执行一行输入，返回 true 表示退出。
func (c *Console) Exec(line string) bool {
	line = strings.TrimSpace(line)

	// 设置弹窗打开时，整行都是 API Key
	if c.app.SettingsOpen() {
		if err := c.app.SetAPIKey(line); err != nil {
			c.report(err)
			return false
		}
		c.printf("正在重新连接...\n")
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "help", "?":
		c.printf("%s\n", helpText)
	case "text":
		if arg == "" {
			c.printf("文本: %s\n", c.app.Settings().Text)
			break
		}
		c.app.SetText(arg)
	case "voices":
		c.voices()
	case "voice":
		if err := c.app.SelectVoice(arg); err != nil {
			c.report(err)
			break
		}
		c.printf("音色: %s\n", c.app.Settings().Voice)
	case "speak":
		if err := c.app.Speak(); err != nil {
			c.report(err)
			break
		}
		c.printf("正在生成...\n")
	case "play":
		c.report(c.app.Play(arg))
	case "save":
		if arg == "" {
			c.printf("保存到: %s\n", c.app.Settings().SavePath)
			break
		}
		c.report(c.app.SetSavePath(arg))
	case "devices":
		c.devices()
	case "device":
		if err := c.app.SelectDevice(arg); err != nil {
			c.report(err)
			break
		}
		c.printf("设备: %s\n", deviceLabel(c.app.Settings().Device))
	case "provider":
		if err := c.app.SetProvider(arg); err != nil {
			c.report(err)
			break
		}
		c.printf("正在连接 %s...\n", c.app.Settings().Provider)
	case "settings":
		c.app.OpenSettings()
		c.printf("输入 API Key:\n")
	case "key":
		if err := c.app.SetAPIKey(arg); err != nil {
			c.report(err)
			break
		}
		c.printf("正在重新连接...\n")
	case "history":
		c.history(arg)
	case "dismiss":
		c.app.DismissErrors()
	case "status":
		c.status()
	case "quit", "exit":
		return true
	default:
		c.printf("未知命令: %s（输入 help 查看命令）\n", cmd)
	}
	return false
}

func (c *Console) status() {
	st := c.app.Settings()
	conn := "未连接"
	switch {
	case c.app.Connecting():
		conn = "连接中"
	case c.app.Connected():
		conn = "已连接"
	}
	c.printf("后端: %s (%s)\n", st.Provider, conn)
	c.printf("API Key: %s\n", maskKey(st.APIKey))
	c.printf("音色: %s\n", st.Voice)
	c.printf("文本: %s\n", st.Text)
	c.printf("保存到: %s\n", st.SavePath)
	c.printf("设备: %s\n", deviceLabel(st.Device))
}

func (c *Console) voices() {
	voices := c.app.Voices()
	if len(voices) == 0 {
		if c.app.Connecting() {
			c.printf("正在加载音色...\n")
		} else {
			c.printf("没有可用的音色\n")
		}
		return
	}
	current := c.app.Settings().Voice
	for i, v := range voices {
		mark := " "
		if v == current {
			mark = "*"
		}
		c.printf("%s %2d. %s (%s)\n", mark, i+1, v.Name, v.ID)
	}
}

func (c *Console) devices() {
	devices, err := c.app.Devices()
	if err != nil {
		c.report(err)
		return
	}
	current := c.app.Settings().Device
	for i, d := range devices {
		mark := " "
		if d.Name == current || (current == "" && d.Default) {
			mark = "*"
		}
		c.printf("%s %2d. %s\n", mark, i+1, d.Name)
	}
}

func (c *Console) history(arg string) {
	n := 10
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			c.report(fmt.Errorf("无效的数量: %s", arg))
			return
		}
		n = v
	}
	records, err := c.app.History(n)
	if err != nil {
		c.report(err)
		return
	}
	if len(records) == 0 {
		c.printf("暂无生成记录\n")
		return
	}
	for _, r := range records {
		c.printf("%s  %-10s %-12s %s\n", r.CreatedAt.Local().Format("01-02 15:04"), r.Provider, r.Voice, r.Path)
	}
}

func (c *Console) report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrBusy) {
		c.printf("请稍候: %v\n", err)
		return
	}
	c.printf("错误: %v\n", err)
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func deviceLabel(name string) string {
	if name == "" {
		return "系统默认"
	}
	return name
}

// maskKey 只显示密钥末尾 4 位。
func maskKey(key string) string {
	if key == "" || key == placeholderAPIKey {
		return "(未设置)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return strings.Repeat("*", 8) + key[len(key)-4:]
}
