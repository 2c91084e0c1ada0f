package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const DefaultLang = "en"

//go:embed locales/*.json
var embeddedLocales embed.FS

var (
	messages     = make(map[string]map[string]string)
	messagesLock sync.RWMutex
)

func init() {
	entries, err := embeddedLocales.ReadDir("locales")
	if err != nil {
		return
	}
	for _, entry := range entries {
		raw, err := embeddedLocales.ReadFile("locales/" + entry.Name())
		if err != nil {
			continue
		}
		_ = loadMessages(strings.TrimSuffix(entry.Name(), ".json"), raw)
	}
}

// Init 从目录加载额外的语言文件，同名 key 覆盖内置消息
func Init(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read locale %s: %w", file, err)
		}
		lang := strings.TrimSuffix(filepath.Base(file), ".json")
		if err := loadMessages(lang, raw); err != nil {
			return fmt.Errorf("parse locale %s: %w", file, err)
		}
	}
	return nil
}

func loadMessages(lang string, raw []byte) error {
	parsed := make(map[string]string)
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return err
	}
	messagesLock.Lock()
	defer messagesLock.Unlock()
	if messages[lang] == nil {
		messages[lang] = make(map[string]string)
	}
	for k, v := range parsed {
		messages[lang][k] = v
	}
	return nil
}

// NormalizeLang "zh-CN" -> "zh"
func NormalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_;"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "" {
		return DefaultLang
	}
	return lang
}

// Translate 查找不到对应语言时回退到默认语言，仍找不到则返回 code 本身
func Translate(code string, lang string, args ...interface{}) string {
	messagesLock.RLock()
	msg, ok := messages[NormalizeLang(lang)][code]
	if !ok {
		msg, ok = messages[DefaultLang][code]
	}
	messagesLock.RUnlock()
	if !ok {
		return code
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
