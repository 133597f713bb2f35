package settings

import (
	"database/sql"
	"fmt"

	"github.com/iabetor/pleasespeak/internal/database"
	"github.com/iabetor/pleasespeak/internal/logger"
	"github.com/iabetor/pleasespeak/internal/tts"
)

// Settings 是退出时持久化、启动时恢复的用户设置。
type Settings struct {
	APIKey   string
	Text     string
	Voice    tts.Voice
	SavePath string
	Provider string
	Device   string
}

// 数据库中的键名。
const (
	keyAPIKey    = "api_key"
	keyText      = "text"
	keyVoiceID   = "voice_id"
	keyVoiceName = "voice_name"
	keySavePath  = "save_path"
	keyProvider  = "provider"
	keyDevice    = "device"
)

// Default 返回首次启动时的设置。
// 默认音色只属于 ElevenLabs，其他后端留空，连接后选第一个音色。
func Default(savePath, provider string) Settings {
	st := Settings{
		APIKey:   "your_api_key",
		Text:     "Hello World!",
		SavePath: savePath,
		Provider: provider,
	}
	if provider == "" || provider == "elevenlabs" {
		st.Voice = tts.DefaultVoice
	}
	return st
}

// Store 把设置保存在 settings 表中。
type Store struct {
	db *database.DB
}

// NewStore 创建设置存储，db 需已完成迁移。
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Load 读取设置，缺失的键使用 defaults 中的值。
func (s *Store) Load(defaults Settings) (Settings, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return defaults, fmt.Errorf("读取设置失败: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return defaults, fmt.Errorf("读取设置失败: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return defaults, fmt.Errorf("读取设置失败: %w", err)
	}

	out := defaults
	pick := func(key string, dst *string) {
		if v, ok := values[key]; ok {
			*dst = v
		}
	}
	pick(keyAPIKey, &out.APIKey)
	pick(keyText, &out.Text)
	pick(keySavePath, &out.SavePath)
	pick(keyProvider, &out.Provider)
	pick(keyDevice, &out.Device)

	// 音色的 ID 和名称成对保存。保存过空音色时保持为空，
	// 不能退回默认音色：它可能不属于保存的后端
	if id, ok := values[keyVoiceID]; ok {
		out.Voice = tts.Voice{ID: id, Name: values[keyVoiceName]}
	}

	logger.Debugf("[settings] 已加载 %d 项设置", len(values))
	return out, nil
}

// Save 在一个事务中写入全部设置。
func (s *Store) Save(st Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("保存设置失败: %w", err)
	}

	values := []struct{ k, v string }{
		{keyAPIKey, st.APIKey},
		{keyText, st.Text},
		{keyVoiceID, st.Voice.ID},
		{keyVoiceName, st.Voice.Name},
		{keySavePath, st.SavePath},
		{keyProvider, st.Provider},
		{keyDevice, st.Device},
	}
	for _, kv := range values {
		if err := upsert(tx, kv.k, kv.v); err != nil {
			tx.Rollback()
			return fmt.Errorf("保存设置 %s 失败: %w", kv.k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交设置失败: %w", err)
	}
	logger.Debugf("[settings] 设置已保存")
	return nil
}

func upsert(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	return err
}
