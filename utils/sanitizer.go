package utils

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all markup
	StrictPolicy *bluemonday.Policy
	// EmailPolicy allows the rich-text subset produced by the composer
	EmailPolicy *bluemonday.Policy

	controlChars    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	cssExpression   = regexp.MustCompile(`(?i)expression\s*\([^)]*\)`)
	mozBinding      = regexp.MustCompile(`(?i)-moz-binding\s*:[^;]*`)
	eventHandlerRe  = regexp.MustCompile(`(?i)on\w+\s*=`)
	simpleAddressRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	tagRe           = regexp.MustCompile(`<[^>]*>`)
	blankLinesRe    = regexp.MustCompile(`\n\s*\n`)
)

// ErrInvalidEmailAddress is returned by SanitizeEmailAddress
var ErrInvalidEmailAddress = errors.New("invalid email format")

func init() {
	StrictPolicy = bluemonday.StrictPolicy()

	EmailPolicy = bluemonday.NewPolicy()
	EmailPolicy.AllowElements(
		"p", "br", "strong", "b", "em", "i", "u", "s", "del", "span", "div",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"a", "img",
	)
	EmailPolicy.AllowAttrs("href", "target", "rel").OnElements("a")
	EmailPolicy.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	EmailPolicy.AllowAttrs("title", "class").Globally()
	EmailPolicy.AllowStyles(
		"color", "background-color", "font-size", "font-weight", "font-style",
		"font-family", "text-align", "text-decoration", "margin", "padding",
	).Globally()
	EmailPolicy.AllowURLSchemes("http", "https", "mailto", "cid")
	EmailPolicy.AllowDataURIImages()
	EmailPolicy.RequireParseableURLs(true)
}

// SanitizeEmailContent cleans HTML bodies and signatures before storage
func SanitizeEmailContent(content string) string {
	if content == "" {
		return ""
	}
	cleaned := EmailPolicy.Sanitize(content)
	cleaned = cssExpression.ReplaceAllString(cleaned, "")
	return mozBinding.ReplaceAllString(cleaned, "")
}

// SanitizeText removes control characters except newline, tab and CR
func SanitizeText(text string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(text, ""))
}

// SanitizeSubject cleans a subject line and caps it at 255 characters
func SanitizeSubject(subject string) string {
	subject = SanitizeText(subject)
	runes := []rune(subject)
	if len(runes) > 255 {
		return string(runes[:255])
	}
	return subject
}

// SanitizeEmailAddress lowercases and validates a single address
func SanitizeEmailAddress(address string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(address))
	if !simpleAddressRe.MatchString(cleaned) {
		return "", ErrInvalidEmailAddress
	}
	return cleaned, nil
}

// DetectSuspiciousContent reports markup that the sanitizer will strip
func DetectSuspiciousContent(content string) (bool, []string) {
	lower := strings.ToLower(content)
	var reasons []string

	checks := []struct {
		needle string
		reason string
	}{
		{"<script", "Script tags detected"},
		{"javascript:", "JavaScript protocol detected"},
		{"vbscript:", "VBScript protocol detected"},
		{"expression(", "CSS expressions detected"},
		{"<iframe", "Iframe tags detected"},
		{"<object", "Object tags detected"},
		{"<embed", "Embed tags detected"},
	}
	for _, check := range checks {
		if strings.Contains(lower, check.needle) {
			reasons = append(reasons, check.reason)
		}
	}
	if eventHandlerRe.MatchString(content) {
		reasons = append(reasons, "Event handlers detected")
	}

	return len(reasons) > 0, reasons
}

// StripHTML removes all HTML tags from content
func StripHTML(content string) string {
	return StrictPolicy.Sanitize(content)
}

// HTMLToText derives a plain-text alternative from an HTML body
func HTMLToText(body string) string {
	text := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n").Replace(body)
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n"))
}

var (
	boldRe      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe    = regexp.MustCompile(`\*(.*?)\*`)
	underlineRe = regexp.MustCompile(`__(.*?)__`)
	strikeRe    = regexp.MustCompile(`~~(.*?)~~`)
)

// TextToHTML converts a plain-text body with light markdown to HTML.
// Bodies that already contain markup are returned unchanged.
func TextToHTML(text string) string {
	if text == "" {
		return ""
	}
	if strings.Contains(text, "<") && strings.Contains(text, ">") {
		return text
	}
	out := strings.ReplaceAll(text, "\n", "<br>")
	out = boldRe.ReplaceAllString(out, "<strong>$1</strong>")
	out = italicRe.ReplaceAllString(out, "<em>$1</em>")
	out = underlineRe.ReplaceAllString(out, "<u>$1</u>")
	return strikeRe.ReplaceAllString(out, "<del>$1</del>")
}

// NormalizeSubject normalizes email subject for threading
func NormalizeSubject(subject string) string {
	subject = strings.ToLower(strings.TrimSpace(subject))

	prefixes := []string{"re:", "fwd:", "fw:", "aw:", "wg:"}
	for {
		trimmed := false
		for _, prefix := range prefixes {
			if strings.HasPrefix(subject, prefix) {
				subject = strings.TrimSpace(strings.TrimPrefix(subject, prefix))
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}

	return subject
}

// GenerateThreadID derives a stable thread ID from the normalized subject
func GenerateThreadID(subject string) string {
	hash := sha256.Sum256([]byte(NormalizeSubject(subject)))
	return fmt.Sprintf("%x", hash[:16])
}
