package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// maxSlugLen 是文件名中文本部分的最大长度。
const maxSlugLen = 32

var pinyinArgs = pinyin.NewArgs()

// Slug 把文本转换为适合做文件名的 ASCII 片段。
// 汉字转为不带声调的拼音，每个字单独成词；字母数字转小写保留；
// 其他字符视为分隔符。词之间用 "-" 连接。
func Slug(text string) string {
	var words []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			if py := pinyin.LazyPinyin(string(r), pinyinArgs); len(py) > 0 {
				words = append(words, py[0])
			}
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			word.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()

	slug := strings.Join(words, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "speech"
	}
	return slug
}

// FileName 返回 "<slug>-<id 前 8 位>.<format>"。
func FileName(text, id, format string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	if format == "" {
		format = "mp3"
	}
	return fmt.Sprintf("%s-%s.%s", Slug(text), id, format)
}

// ResolvePath 根据保存位置决定最终文件路径。
// savePath 是已存在的目录、以分隔符结尾或没有扩展名时视为目录，
// 文件名由 FileName 生成；否则直接使用 savePath。
func ResolvePath(savePath, text, id, format string) string {
	if savePath == "" {
		savePath = "."
	}
	if isDirLike(savePath) {
		return filepath.Join(savePath, FileName(text, id, format))
	}
	return savePath
}

func isDirLike(p string) bool {
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(os.PathSeparator)) {
		return true
	}
	if info, err := os.Stat(p); err == nil {
		return info.IsDir()
	}
	return filepath.Ext(p) == ""
}

// WriteFile 先写入 .tmp 临时文件再重命名，避免留下半个音频文件。
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入音频文件失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("保存音频文件失败: %w", err)
	}
	return nil
}
