package middleware

import (
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

const (
	localsLocalizer = "localizer"
	localsLang      = "lang"
)

// LocaleMiddleware detects and sets the user's locale
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// 1. query parameter, 2. cookie, 3. Accept-Language
		lang := c.Query("lang")
		if !utils.IsSupportedLanguage(lang) {
			lang = c.Cookies("lang")
		}
		if !utils.IsSupportedLanguage(lang) {
			lang = utils.MatchLanguage(c.Get(fiber.HeaderAcceptLanguage))
		}

		c.Locals(localsLocalizer, utils.GetLocalizer(lang))
		c.Locals(localsLang, lang)

		utils.Log.Debug("Locale detected: %s for path: %s", lang, c.Path())
		return c.Next()
	}
}

// Localizer returns the request localizer, or nil before LocaleMiddleware ran
func Localizer(c *fiber.Ctx) *i18n.Localizer {
	l, _ := c.Locals(localsLocalizer).(*i18n.Localizer)
	return l
}

// Lang returns the request language
func Lang(c *fiber.Ctx) string {
	if lang, ok := c.Locals(localsLang).(string); ok && lang != "" {
		return lang
	}
	return utils.DefaultLanguage
}
