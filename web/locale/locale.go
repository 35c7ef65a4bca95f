// Package locale loads the panel's translation bundles and picks a
// localizer per request.
package locale

import (
	"io/fs"
	"strings"

	"github.com/trojan-ui/trojan-ui/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

var i18nBundle *i18n.Bundle

// I18nFunc localizes a message id for the current request.
type I18nFunc func(key string, params ...string) string

func newBundle() *i18n.Bundle {
	// set default bundle to english
	bundle := i18n.NewBundle(language.MustParse("en-US"))
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
	return bundle
}

func InitLocalizer(i18nFS fs.FS) error {
	bundle := newBundle()
	if err := parseTranslationFiles(i18nFS, bundle); err != nil {
		return err
	}
	i18nBundle = bundle
	return nil
}

func createTemplateData(params []string, seperator ...string) map[string]any {
	var sep string = "=="
	if len(seperator) > 0 {
		sep = seperator[0]
	}

	templateData := make(map[string]any)
	for _, param := range params {
		parts := strings.SplitN(param, sep, 2)
		if len(parts) != 2 {
			continue
		}
		templateData[parts[0]] = parts[1]
	}

	return templateData
}

// I18n localizes key. Without a localizer, or for an unknown key, the key
// itself is returned.
func I18n(localizer *i18n.Localizer, key string, params ...string) string {
	if localizer == nil {
		return key
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	})
	if err != nil {
		logger.Debugf("Failed to localize message: %v", err)
		return key
	}

	return msg
}

func LocalizerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Ensure bundle is initialized so creating a Localizer won't panic
		bundle := i18nBundle
		if bundle == nil {
			bundle = newBundle()
		}
		var lang string

		if cookie, err := c.Request.Cookie("lang"); err == nil {
			lang = cookie.Value
		} else {
			lang = c.GetHeader("Accept-Language")
		}

		localizer := i18n.NewLocalizer(bundle, lang)

		c.Set("localizer", localizer)
		c.Set("I18n", I18nFunc(func(key string, params ...string) string {
			return I18n(localizer, key, params...)
		}))
		c.Next()
	}
}

func parseTranslationFiles(i18nFS fs.FS, i18nBundle *i18n.Bundle) error {
	return fs.WalkDir(i18nFS, "translation",
		func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			data, err := fs.ReadFile(i18nFS, path)
			if err != nil {
				return err
			}

			_, err = i18nBundle.ParseMessageFileBytes(data, path)
			return err
		})
}
