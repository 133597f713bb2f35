package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/iabetor/pleasespeak/internal/audio"
	"github.com/iabetor/pleasespeak/internal/config"
	"github.com/iabetor/pleasespeak/internal/history"
	"github.com/iabetor/pleasespeak/internal/logger"
	"github.com/iabetor/pleasespeak/internal/settings"
	"github.com/iabetor/pleasespeak/internal/tts"
)

// 弹窗标题。
const (
	APIErrorTitle    = "API 错误"
	ClientErrorTitle = "客户端错误"
)

// placeholderAPIKey 是默认设置中的占位密钥，视为未填写。
const placeholderAPIKey = "your_api_key"

// defaultMaxTasks 是同时运行的后台任务上限。
const defaultMaxTasks = 4

var (
	// ErrBusy 表示同类任务仍在运行。
	ErrBusy = errors.New("上一个任务尚未完成")
	// ErrNoPlayer 表示没有可用的播放设备。
	ErrNoPlayer = errors.New("没有可用的播放设备")
)

// Player 播放解码后的单声道音频。
type Player interface {
	Play(ctx context.Context, samples []float32, sampleRate int, device string) error
	Devices() ([]audio.Device, error)
}

// SettingsStore 持久化用户设置。
type SettingsStore interface {
	Load(defaults settings.Settings) (settings.Settings, error)
	Save(st settings.Settings) error
}

// HistoryStore 保存生成记录。
type HistoryStore interface {
	Add(sp history.Speech) error
	Recent(n int) ([]history.Speech, error)
}

// Options 是创建 App 所需的依赖。Player 和 History 可以为 nil。
type Options struct {
	Config   *config.Config
	Settings SettingsStore
	History  HistoryStore
	Player   Player
	Factory  ProviderFactory
	MaxTasks int
	// ReadOnly 为 true 时 Close 不保存设置（命令行一次性模式）。
	ReadOnly bool
}

// App 保存前端状态并调度后台任务。
// 除构造外的所有方法都只能在主循环所在的 goroutine 中调用；
// 后台任务只拿到设置的快照，结果由 Update 取回。
type App struct {
	cfg     *config.Config
	store   SettingsStore
	history HistoryStore
	player  Player
	session *Session

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	st      settings.Settings
	voices  []tts.Voice
	devices []audio.Device

	initTask   *Task[connectResult]
	initCancel context.CancelFunc
	speakTask  *Task[*history.Speech]
	playTask   *Task[string]

	clientReporter *Reporter
	apiErrors      *ErrorManager
	clientErrors   *ErrorManager

	settingsModal bool
	lastSpeech    *history.Speech
	events        []string
	readOnly      bool
}

// connectResult 是一次连接的结果，带上发起时的后端和密钥。
type connectResult struct {
	provider string
	apiKey   string
	voices   []tts.Voice
}

// New 创建 App 并恢复上次保存的设置，读取失败时使用默认设置。
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("缺少配置")
	}
	if opts.Factory == nil {
		return nil, errors.New("缺少 TTS 后端工厂")
	}
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = defaultMaxTasks
	}

	apiTx, apiRx := NewErrorChannel(APIErrorTitle)
	clientTx, clientRx := NewErrorChannel(ClientErrorTitle)

	ctx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}
	group.SetLimit(opts.MaxTasks)

	a := &App{
		cfg:            opts.Config,
		store:          opts.Settings,
		history:        opts.History,
		player:         opts.Player,
		session:        NewSession(opts.Factory, apiTx, clientTx),
		ctx:            ctx,
		cancel:         cancel,
		group:          group,
		clientReporter: clientTx,
		apiErrors:      NewErrorManager(APIErrorTitle, apiRx),
		clientErrors:   NewErrorManager(ClientErrorTitle, clientRx),
		readOnly:       opts.ReadOnly,
	}

	a.st = settings.Default(opts.Config.App.SavePath, opts.Config.TTS.Provider)
	if a.store != nil {
		st, err := a.store.Load(a.st)
		if err != nil {
			logger.Warnf("[app] 读取设置失败，使用默认设置: %v", err)
		} else {
			a.st = st
		}
	}
	return a, nil
}

// NewProviderFactory 返回基于配置文件的后端工厂。
// piper 模型加载慢且常驻内存，只创建一次，之后重连复用。
func NewProviderFactory(cfg *config.Config) ProviderFactory {
	timeout := time.Duration(cfg.App.RequestTimeout) * time.Second
	var (
		mu    sync.Mutex
		piper tts.Provider
	)
	return func(name, apiKey string) (tts.Provider, error) {
		if name != "piper" {
			return tts.New(name, cfg.TTS, apiKey, timeout)
		}
		mu.Lock()
		defer mu.Unlock()
		if piper == nil {
			p, err := tts.New(name, cfg.TTS, apiKey, timeout)
			if err != nil {
				return nil, err
			}
			piper = p
		}
		return piper, nil
	}
}

// Init 在后台连接后端并加载音色列表。已在连接时返回 ErrBusy。
func (a *App) Init() error {
	if a.initTask != nil {
		return ErrBusy
	}
	return a.connect(a.st)
}

// connect 按 st 启动新的连接任务，并取消仍在进行的旧连接。
// 新任务启动失败时旧连接保持不变。
func (a *App) connect(st settings.Settings) error {
	ctx, cancel := context.WithCancel(a.ctx)
	key := effectiveKey(st.APIKey)
	task, err := Spawn(ctx, a.group, func(ctx context.Context) (connectResult, error) {
		res := connectResult{provider: st.Provider, apiKey: st.APIKey}
		ctx, cancel := a.requestContext(ctx)
		defer cancel()

		if !a.session.Init(ctx, st.Provider, key) {
			return res, ErrNotConnected
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.voices = a.session.Voices(ctx, true)
		if res.voices == nil {
			return res, errors.New("获取音色列表失败")
		}
		return res, nil
	})
	if err != nil {
		cancel()
		return err
	}
	a.stopConnect()
	a.initTask = task
	a.initCancel = cancel
	return nil
}

// stopConnect 取消并丢弃正在进行的连接。
func (a *App) stopConnect() {
	if a.initCancel != nil {
		a.initCancel()
	}
	a.initTask = nil
	a.initCancel = nil
}

// OpenSettings 打开设置弹窗。
func (a *App) OpenSettings() {
	a.settingsModal = true
}

// SettingsOpen 返回设置弹窗是否打开。
func (a *App) SettingsOpen() bool {
	return a.settingsModal
}

// SetAPIKey 对应设置弹窗的“完成”：保存密钥、关闭弹窗并重新连接。
// 正在进行的连接会被取消。启动失败时设置和弹窗保持不变。
func (a *App) SetAPIKey(key string) error {
	next := a.st
	next.APIKey = strings.TrimSpace(key)
	if err := a.connect(next); err != nil {
		return err
	}
	a.st = next
	a.settingsModal = false
	return nil
}

// SetProvider 切换后端并重新连接，正在进行的连接会被取消。
func (a *App) SetProvider(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if !slices.Contains(tts.Names, name) {
		return fmt.Errorf("未知的 TTS 后端: %s（可选: %s）", name, strings.Join(tts.Names, ", "))
	}
	next := a.st
	if name != next.Provider {
		// 音色 ID 只在各自的后端内有效
		next.Voice = tts.Voice{}
	}
	next.Provider = name
	if err := a.connect(next); err != nil {
		return err
	}
	a.st = next
	a.voices = nil
	return nil
}

// SetText 设置待合成的文本。
func (a *App) SetText(text string) {
	a.st.Text = text
}

// SelectVoice 从已加载的音色中选择，key 可以是 1 开始的序号、名称或 ID。
func (a *App) SelectVoice(key string) error {
	if len(a.voices) == 0 {
		return errors.New("音色列表为空，请先连接")
	}
	if i, err := strconv.Atoi(strings.TrimSpace(key)); err == nil {
		if i < 1 || i > len(a.voices) {
			return fmt.Errorf("序号超出范围: %d（共 %d 个音色）", i, len(a.voices))
		}
		a.st.Voice = a.voices[i-1]
		return nil
	}
	v, ok := tts.FindVoice(a.voices, key)
	if !ok {
		return fmt.Errorf("未找到音色: %s", key)
	}
	a.st.Voice = v
	return nil
}

// SetSavePath 设置保存位置（目录或文件）。
func (a *App) SetSavePath(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return errors.New("保存位置不能为空")
	}
	a.st.SavePath = p
	return nil
}

// Speak 在后台合成当前文本并保存，autoplay 打开时接着播放。
func (a *App) Speak() error {
	// 连接中的会话和音色可能属于不同后端
	if a.speakTask != nil || a.initTask != nil {
		return ErrBusy
	}
	if strings.TrimSpace(a.st.Text) == "" {
		return tts.ErrEmptyText
	}
	st := a.st
	task, err := Spawn(a.ctx, a.group, func(ctx context.Context) (*history.Speech, error) {
		return a.speak(ctx, st)
	})
	if err != nil {
		return err
	}
	a.speakTask = task
	return nil
}

func (a *App) speak(ctx context.Context, st settings.Settings) (*history.Speech, error) {
	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	out, err := a.session.Speak(reqCtx, st.Voice, st.Text)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := audio.ResolvePath(st.SavePath, st.Text, id, out.Format)
	if err := audio.WriteFile(path, out.Data); err != nil {
		a.clientReporter.Send(err.Error())
		return nil, err
	}
	logger.Infof("[app] 已保存 %s (%d 字节)", path, len(out.Data))

	sp := &history.Speech{
		ID:        id,
		Provider:  a.session.ProviderName(),
		Voice:     st.Voice,
		Text:      st.Text,
		Path:      path,
		Size:      int64(len(out.Data)),
		CreatedAt: time.Now(),
	}
	if a.history != nil {
		if err := a.history.Add(*sp); err != nil {
			logger.Warnf("[app] 写入生成记录失败: %v", err)
		}
	}

	if a.cfg.App.Autoplay {
		if err := a.playFile(ctx, path, st.Device); err != nil && !errors.Is(err, context.Canceled) {
			a.clientReporter.Send(fmt.Sprintf("播放失败: %v", err))
		}
	}
	return sp, nil
}

// Play 在后台播放文件，path 为空时播放最近一次生成的音频。
func (a *App) Play(path string) error {
	if a.playTask != nil {
		return ErrBusy
	}
	path = strings.TrimSpace(path)
	if path == "" {
		if a.lastSpeech == nil {
			return errors.New("还没有生成过音频")
		}
		path = a.lastSpeech.Path
	}
	if a.player == nil {
		return ErrNoPlayer
	}
	device := a.st.Device
	task, err := Spawn(a.ctx, a.group, func(ctx context.Context) (string, error) {
		if err := a.playFile(ctx, path, device); err != nil {
			if !errors.Is(err, context.Canceled) {
				a.clientReporter.Send(fmt.Sprintf("播放失败: %v", err))
			}
			return "", err
		}
		return path, nil
	})
	if err != nil {
		return err
	}
	a.playTask = task
	return nil
}

func (a *App) playFile(ctx context.Context, path, device string) error {
	if a.player == nil {
		return ErrNoPlayer
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取音频文件失败: %w", err)
	}
	samples, sampleRate, err := audio.Decode(ctx, data, filepath.Ext(path))
	if err != nil {
		return err
	}
	return a.player.Play(ctx, samples, sampleRate, device)
}

// Devices 刷新并返回播放设备列表。
func (a *App) Devices() ([]audio.Device, error) {
	if a.player == nil {
		return nil, ErrNoPlayer
	}
	devices, err := a.player.Devices()
	if err != nil {
		return nil, err
	}
	a.devices = devices
	return devices, nil
}

// SelectDevice 按名称或序号选择播放设备，"default" 或空字符串表示系统默认。
func (a *App) SelectDevice(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.EqualFold(key, "default") {
		a.st.Device = ""
		return nil
	}
	if len(a.devices) == 0 {
		if _, err := a.Devices(); err != nil {
			return err
		}
	}
	if i, err := strconv.Atoi(key); err == nil {
		if i < 1 || i > len(a.devices) {
			return fmt.Errorf("序号超出范围: %d（共 %d 个设备）", i, len(a.devices))
		}
		a.st.Device = a.devices[i-1].Name
		return nil
	}
	d, ok := audio.FindDevice(a.devices, key)
	if !ok {
		return fmt.Errorf("未找到播放设备: %s", key)
	}
	a.st.Device = d.Name
	return nil
}

// History 返回最近 n 条生成记录。
func (a *App) History(n int) ([]history.Speech, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.Recent(n)
}

// Update 是一帧：取回已完成的任务并更新错误弹窗。有变化时返回 true。
func (a *App) Update() bool {
	changed := false

	if a.initTask != nil {
		if res, done := a.initTask.Poll(); done {
			a.stopConnect()
			changed = true
			switch {
			case res.Value.provider != a.st.Provider || res.Value.apiKey != a.st.APIKey:
				// 发起后设置已变，结果作废
				logger.Debugf("[app] 丢弃过期的连接结果 (%s)", res.Value.provider)
			case res.Err == nil:
				a.voices = res.Value.voices
				a.pickVoice()
				a.emit(fmt.Sprintf("已连接 %s，共 %d 个音色", a.session.ProviderName(), len(a.voices)))
			default:
				a.emit("未连接")
			}
		}
	}

	if a.speakTask != nil {
		if res, done := a.speakTask.Poll(); done {
			a.speakTask = nil
			changed = true
			if res.Err == nil {
				a.lastSpeech = res.Value
				a.emit("已保存: " + res.Value.Path)
			}
		}
	}

	if a.playTask != nil {
		if res, done := a.playTask.Poll(); done {
			a.playTask = nil
			changed = true
			if res.Err == nil {
				a.emit("播放完成")
			}
		}
	}

	if a.apiErrors.Update() {
		changed = true
	}
	if a.clientErrors.Update() {
		changed = true
	}
	return changed
}

// pickVoice 保证当前音色来自已加载的列表，否则选第一个。
func (a *App) pickVoice() {
	if len(a.voices) == 0 || slices.Contains(a.voices, a.st.Voice) {
		return
	}
	if v, ok := tts.FindVoice(a.voices, a.st.Voice.ID); ok {
		a.st.Voice = v
		return
	}
	a.st.Voice = a.voices[0]
}

// Wait 阻塞直到所有后台任务完成，并把结果和错误全部取回。
// 任务本身的错误已经进入错误弹窗，这里只返回 ctx 的错误。
func (a *App) Wait(ctx context.Context) error {
	for a.Busy() {
		switch {
		case a.initTask != nil:
			a.initTask.Wait(ctx)
		case a.speakTask != nil:
			a.speakTask.Wait(ctx)
		case a.playTask != nil:
			a.playTask.Wait(ctx)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Update()
	}
	a.apiErrors.Drain()
	a.clientErrors.Drain()
	return nil
}

// OpenErrors 返回当前打开的错误弹窗内容，格式为 "标题: 错误"。
func (a *App) OpenErrors() []string {
	var out []string
	for _, m := range a.ErrorManagers() {
		if msg, open := m.Modal(); open {
			out = append(out, m.Name()+": "+msg)
		}
	}
	return out
}

// Busy 返回是否有后台任务在运行。
func (a *App) Busy() bool {
	return a.initTask != nil || a.speakTask != nil || a.playTask != nil
}

// Connecting 返回是否正在连接。
func (a *App) Connecting() bool { return a.initTask != nil }

// Speaking 返回是否正在合成。
func (a *App) Speaking() bool { return a.speakTask != nil }

// Connected 返回后端是否已连接。
func (a *App) Connected() bool { return a.session.Connected() }

// Settings 返回当前设置的副本。
func (a *App) Settings() settings.Settings { return a.st }

// Voices 返回已加载的音色。
func (a *App) Voices() []tts.Voice { return a.voices }

// LastSpeech 返回最近一次生成结果。
func (a *App) LastSpeech() *history.Speech { return a.lastSpeech }

// ErrorManagers 返回 API 错误和客户端错误两个弹窗。
func (a *App) ErrorManagers() []*ErrorManager {
	return []*ErrorManager{a.apiErrors, a.clientErrors}
}

// DismissErrors 关闭所有错误弹窗。
func (a *App) DismissErrors() {
	a.apiErrors.Dismiss()
	a.clientErrors.Dismiss()
}

// Events 返回并清空 Update 产生的状态消息。
func (a *App) Events() []string {
	ev := a.events
	a.events = nil
	return ev
}

func (a *App) emit(msg string) {
	a.events = append(a.events, msg)
}

// Close 取消后台任务、等待其退出并保存设置（ReadOnly 时不保存）。
func (a *App) Close() error {
	a.cancel()
	_ = a.group.Wait()
	if a.store == nil || a.readOnly {
		return nil
	}
	if err := a.store.Save(a.st); err != nil {
		return fmt.Errorf("保存设置失败: %w", err)
	}
	return nil
}

func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(a.cfg.App.RequestTimeout) * time.Second
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func effectiveKey(key string) string {
	if key == placeholderAPIKey {
		return ""
	}
	return key
}
