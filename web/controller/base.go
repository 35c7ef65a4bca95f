// Package controller provides the HTTP handlers of the trojan-ui panel API.
package controller

import (
	"github.com/trojan-ui/trojan-ui/logger"
	"github.com/trojan-ui/trojan-ui/web/locale"

	"github.com/gin-gonic/gin"
)

// I18nWeb retrieves an internationalized message for the web interface based on the current locale.
func I18nWeb(c *gin.Context, name string, params ...string) string {
	anyfunc, funcExists := c.Get("I18n")
	if !funcExists {
		logger.Warning("I18n function not exists in gin context!")
		return name
	}
	i18nFunc, _ := anyfunc.(locale.I18nFunc)
	if i18nFunc == nil {
		return name
	}
	return i18nFunc(name, params...)
}
