package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTPlural(t *testing.T) {
	tr, err := NewI18nSupport("en")
	require.NoError(t, err)

	require.NoError(t, tr.AddMessages("en", &Message{
		ID:    "apples",
		One:   "{{.Count}} apple",
		Other: "{{.Count}} apples",
	}))

	assert.Equal(t, "1 apple", tr.TPlural("en", "apples", 1))
	assert.Equal(t, "3 apples", tr.TPlural("en", "apples", 3))
	// 未注册的语言回落到默认语言
	assert.Equal(t, "3 apples", tr.TPlural("fr", "apples", 3))
	assert.Equal(t, "missing", tr.T("en", "missing", nil))
}

func TestNewI18nSupport_InvalidLanguage(t *testing.T) {
	_, err := NewI18nSupport("not a tag!")
	assert.Error(t, err)
}

func TestLoadFiles(t *testing.T) {
	tr, err := NewI18nSupport("en")
	require.NoError(t, err)
	require.NoError(t, tr.AddMessages("ko", &Message{ID: "greeting", Other: "안녕"}))

	path := filepath.Join(t.TempDir(), "ko.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"greeting": "안녕하세요 {{.Name}}"}`), 0o644))

	// 不存在的文件跳过，文件中的文案覆盖已注册的
	require.NoError(t, tr.LoadFiles(filepath.Join(t.TempDir(), "missing.json"), path))
	assert.Equal(t, "안녕하세요 Bob", tr.T("ko", "greeting", map[string]interface{}{"Name": "Bob"}))

	bad := filepath.Join(t.TempDir(), "en.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	assert.Error(t, tr.LoadFiles(bad))
}
