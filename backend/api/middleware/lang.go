package middleware

import (
	"strings"

	"filebox/backend/common/i18n"

	"github.com/gin-gonic/gin"
)

// LangMiddleware 注入 lang 到 context，默认英文
func LangMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetHeader("Accept-Language")
		if lang == "" {
			lang = i18n.DefaultLang
		} else {
			// 只取第一个语言
			lang = strings.Split(lang, ",")[0]
		}
		c.Set("lang", i18n.NormalizeLang(lang))
		c.Next()
	}
}
