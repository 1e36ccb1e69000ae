package api

import (
	"webmail/utils"

	"github.com/gofiber/fiber/v2"
)

// GetTranslations returns the message table of a supported language. Unknown
// languages fall back to the default one.
func GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if !utils.IsSupportedLanguage(lang) {
		lang = utils.DefaultLanguage
	}

	messages, ok := utils.Messages(lang)
	if !ok {
		return utils.NotFoundError(t(c, "error_not_found"), nil)
	}
	return c.JSON(fiber.Map{
		"language":  lang,
		"languages": utils.SupportedLanguages,
		"messages":  messages,
	})
}
