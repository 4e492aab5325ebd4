package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

const LangKey = "lang"

// LanguageMiddleware 从 ?lang= 或 Accept-Language 中选出受支持的语言，写入 c.Get("lang")
// supported 的第一个为默认语言
func LanguageMiddleware(supported ...string) gin.HandlerFunc {
	if len(supported) == 0 {
		supported = []string{"en"}
	}
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		tags = append(tags, language.Make(s))
	}
	matcher := language.NewMatcher(tags)

	return func(c *gin.Context) {
		var wanted []language.Tag
		if q := c.Query("lang"); q != "" {
			if t, err := language.Parse(q); err == nil {
				wanted = append(wanted, t)
			}
		}
		if accept, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil {
			wanted = append(wanted, accept...)
		}

		_, idx, conf := matcher.Match(wanted...)
		lang := supported[0]
		if conf != language.No {
			lang = supported[idx]
		}
		c.Set(LangKey, lang)
		c.Next()
	}
}

// Lang 读取中间件写入的语言，未设置时返回 def
func Lang(c *gin.Context, def string) string {
	if v, ok := c.Get(LangKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
