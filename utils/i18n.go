package utils

import (
	"embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

// SupportedLanguages lists the locales shipped with the server
var SupportedLanguages = []string{"en", "pt"}

var (
	// Bundle is the global translation bundle
	Bundle *i18n.Bundle
	// DefaultLanguage is used when the request names no supported language
	DefaultLanguage = "pt"

	messageTables = map[string]map[string]string{}
	matcher       language.Matcher
)

// InitI18n loads the embedded locale files
func InitI18n(defaultLang string) error {
	if IsSupportedLanguage(defaultLang) {
		DefaultLanguage = defaultLang
	}

	Bundle = i18n.NewBundle(language.MustParse(DefaultLanguage))
	Bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	tags := make([]language.Tag, 0, len(SupportedLanguages))
	for _, lang := range SupportedLanguages {
		path := fmt.Sprintf("locales/active.%s.toml", lang)
		if _, err := Bundle.LoadMessageFileFS(localeFS, path); err != nil {
			return fmt.Errorf("failed to load %s locale: %w", lang, err)
		}

		raw, err := localeFS.ReadFile(path)
		if err != nil {
			return err
		}
		table := map[string]string{}
		if err := toml.Unmarshal(raw, &table); err != nil {
			return fmt.Errorf("failed to parse %s locale: %w", lang, err)
		}
		messageTables[lang] = table
		tags = append(tags, language.MustParse(lang))
	}
	matcher = language.NewMatcher(tags)

	Log.Info("i18n initialized (default language %s)", DefaultLanguage)
	return nil
}

// IsSupportedLanguage reports whether a locale file exists for lang
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// MatchLanguage picks a supported language from an Accept-Language header
func MatchLanguage(acceptLanguage string) string {
	if matcher == nil || strings.TrimSpace(acceptLanguage) == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return SupportedLanguages[idx]
}

// Messages returns the raw message table for a language
func Messages(lang string) (map[string]string, bool) {
	table, ok := messageTables[lang]
	return table, ok
}

// GetLocalizer returns a localizer for the specified language
func GetLocalizer(lang string) *i18n.Localizer {
	if lang == "" {
		lang = DefaultLanguage
	}
	return i18n.NewLocalizer(Bundle, lang, DefaultLanguage)
}

// T translates a message ID
func T(localizer *i18n.Localizer, messageID string) string {
	return TWithData(localizer, messageID, nil)
}

// TWithData translates a message ID with template data
func TWithData(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
	if localizer == nil {
		if Bundle == nil {
			return messageID
		}
		localizer = GetLocalizer(DefaultLanguage)
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		Log.Debug("Translation error for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}
