package i18n

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Message 直接复用 go-i18n 的消息定义
type Message = i18n.Message

// I18nSupport 国际化支持结构体
type I18nSupport struct {
	bundle      *i18n.Bundle
	defaultLang string
}

// NewI18nSupport 初始化国际化支持；消息由调用方通过 AddMessages 或 LoadFiles 注册
func NewI18nSupport(defaultLang string) (*I18nSupport, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	return &I18nSupport{
		bundle:      bundle,
		defaultLang: defaultLang,
	}, nil
}

// AddMessages 注册某个语言的消息
func (i *I18nSupport) AddMessages(lang string, messages ...*Message) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("invalid language %q: %w", lang, err)
	}
	return i.bundle.AddMessages(tag, messages...)
}

// LoadFiles 加载外部语言文件（如 locales/ko.json），不存在的文件跳过
func (i *I18nSupport) LoadFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if _, err := i.bundle.LoadMessageFile(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// DefaultLang 默认语言
func (i *I18nSupport) DefaultLang() string { return i.defaultLang }

// T 获取翻译文本；找不到时返回 key
func (i *I18nSupport) T(languageTag, key string, templateData map[string]interface{}) string {
	localizer := i18n.NewLocalizer(i.bundle, languageTag, i.defaultLang)

	translation, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: templateData,
	})
	if err != nil {
		return key
	}
	return translation
}

// TPlural 按数量选择单复数形式，模板里用 {{.Count}}
func (i *I18nSupport) TPlural(languageTag, key string, count int) string {
	localizer := i18n.NewLocalizer(i.bundle, languageTag, i.defaultLang)

	translation, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		PluralCount:  count,
		TemplateData: map[string]interface{}{"Count": count},
	})
	if err != nil {
		return key
	}
	return translation
}
