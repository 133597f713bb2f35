package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/pleasespeak/internal/database"
	"github.com/iabetor/pleasespeak/internal/tts"
)

// Speech 是一次成功的生成记录。
type Speech struct {
	ID        string
	Provider  string
	Voice     tts.Voice
	Text      string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Store 保存生成记录（SQLite）。
type Store struct {
	db *database.DB
}

// NewStore 创建记录存储，db 需已完成迁移。
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Add 写入一条记录，CreatedAt 为零值时使用当前时间。
func (s *Store) Add(sp Speech) error {
	if sp.ID == "" {
		return errors.New("[history] 记录缺少 ID")
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO speech_history (id, provider, voice_id, voice_name, text, path, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.Provider, sp.Voice.ID, sp.Voice.Name, sp.Text, sp.Path, sp.Size, sp.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("写入生成记录失败: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近 n 条记录。
func (s *Store) Recent(n int) ([]Speech, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.Query(`SELECT id, provider, voice_id, voice_name, text, path, size, created_at
		FROM speech_history ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("查询生成记录失败: %w", err)
	}
	defer rows.Close()

	var out []Speech
	for rows.Next() {
		sp, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("查询生成记录失败: %w", err)
	}
	return out, nil
}

// Get 按 ID 查找记录，不存在时返回 nil。
func (s *Store) Get(id string) (*Speech, error) {
	row := s.db.QueryRow(`SELECT id, provider, voice_id, voice_name, text, path, size, created_at
		FROM speech_history WHERE id = ?`, id)
	sp, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (Speech, error) {
	var sp Speech
	var createdAt sql.NullTime
	err := row.Scan(&sp.ID, &sp.Provider, &sp.Voice.ID, &sp.Voice.Name,
		&sp.Text, &sp.Path, &sp.Size, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sp, err
	}
	if err != nil {
		return sp, fmt.Errorf("读取生成记录失败: %w", err)
	}
	if createdAt.Valid {
		sp.CreatedAt = createdAt.Time
	}
	return sp, nil
}
