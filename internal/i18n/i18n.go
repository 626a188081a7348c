// Package i18n loads the embedded message catalogs and resolves the language
// of a request.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the visitor's language preference.
	LangCookieName = "dcis_lang"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Label    string            `yaml:"label"`
	Messages map[string]string `yaml:"messages"`
}

// LanguageOption is one entry of the language switch.
type LanguageOption struct {
	Tag    string
	Label  string
	Active bool
}

// Translator renders message keys in the supported languages.
type Translator struct {
	fallback language.Tag
	tags     []language.Tag
	labels   map[language.Tag]string
	messages map[language.Tag]map[string]string
	matcher  language.Matcher
	printers map[language.Tag]*message.Printer
}

// New loads the embedded catalogs. fallback selects the language used when
// nothing better matches; unknown values select English.
func New(fallback string) (*Translator, error) {
	return Load(embeddedLocales, fallback)
}

// Load reads locales/*.yaml from catalogFS.
func Load(catalogFS fs.FS, fallback string) (*Translator, error) {
	paths, err := fs.Glob(catalogFS, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	translator := &Translator{
		labels:   map[language.Tag]string{},
		messages: map[language.Tag]map[string]string{},
		printers: map[language.Tag]*message.Printer{},
	}
	for _, path := range paths {
		data, err := fs.ReadFile(catalogFS, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: locale %q: %w", path, file.Locale, err)
		}
		if len(file.Messages) == 0 {
			return nil, fmt.Errorf("catalog %s: messages are required", path)
		}
		if _, exists := translator.messages[tag]; exists {
			return nil, fmt.Errorf("catalog %s: locale %s defined twice", path, tag)
		}
		messages := make(map[string]string, len(file.Messages))
		for key, value := range file.Messages {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				return nil, fmt.Errorf("catalog %s: message key cannot be blank", path)
			}
			if err := builder.SetString(tag, trimmed, value); err != nil {
				return nil, fmt.Errorf("catalog %s: key %q: %w", path, trimmed, err)
			}
			messages[trimmed] = value
		}
		translator.messages[tag] = messages
		translator.labels[tag] = file.Label
		translator.tags = append(translator.tags, tag)
	}
	if _, ok := translator.messages[language.English]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", language.English)
	}

	translator.matcher = language.NewMatcher(translator.tags)
	translator.fallback = language.English
	if tag, ok := translator.Match(fallback); ok {
		translator.fallback = tag
	}
	for _, tag := range translator.tags {
		translator.printers[tag] = message.NewPrinter(tag, message.Catalog(builder))
	}
	return translator, nil
}

// Supported returns the catalog languages.
func (t *Translator) Supported() []language.Tag {
	return append([]language.Tag(nil), t.tags...)
}

// Default returns the fallback language.
func (t *Translator) Default() language.Tag {
	return t.fallback
}

// Match maps a locale such as "de-AT" onto a supported language.
func (t *Translator) Match(locale string) (language.Tag, bool) {
	trimmed := strings.TrimSpace(locale)
	if trimmed == "" {
		return language.Und, false
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return language.Und, false
	}
	_, index, confidence := t.matcher.Match(parsed)
	if confidence < language.High {
		return language.Und, false
	}
	return t.tags[index], true
}

// Normalize returns the supported language for locale, or the fallback.
func (t *Translator) Normalize(locale string) language.Tag {
	if tag, ok := t.Match(locale); ok {
		return tag
	}
	return t.fallback
}

// Has reports whether key exists in the given language.
func (t *Translator) Has(locale, key string) bool {
	_, ok := t.messages[t.Normalize(locale)][key]
	return ok
}

// Translate renders key with args in locale. Keys missing from the locale
// fall back to English; unknown keys render as the key itself.
func (t *Translator) Translate(locale, key string, args ...any) string {
	tag := t.Normalize(locale)
	if _, ok := t.messages[tag][key]; !ok {
		if _, ok := t.messages[language.English][key]; !ok {
			return key
		}
		tag = language.English
	}
	return t.printers[tag].Sprintf(key, args...)
}

// Printer returns the message printer of the supported language closest to tag.
func (t *Translator) Printer(tag language.Tag) *message.Printer {
	return t.printers[t.Normalize(tag.String())]
}

// ResolveTag determines the language of a request: the lang query parameter,
// the language cookie, the person's own locale, then Accept-Language. The bool
// reports whether the query parameter should be persisted as a cookie.
func (t *Translator) ResolveTag(r *http.Request, personLocale string) (language.Tag, bool) {
	if r == nil {
		return t.Normalize(personLocale), false
	}
	if value := strings.TrimSpace(r.URL.Query().Get(LangParam)); value != "" {
		if tag, ok := t.Match(value); ok {
			return tag, true
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := t.Match(cookie.Value); ok {
			return tag, false
		}
	}
	if tag, ok := t.Match(personLocale); ok {
		return tag, false
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			if _, index, confidence := t.matcher.Match(tags...); confidence >= language.Low {
				return t.tags[index], false
			}
		}
	}
	return t.fallback, false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// LanguageOptions returns the language switch entries with the active one marked.
func (t *Translator) LanguageOptions(active language.Tag) []LanguageOption {
	activeTag := t.Normalize(active.String())
	options := make([]LanguageOption, 0, len(t.tags))
	for _, tag := range t.tags {
		label := t.labels[tag]
		if label == "" {
			label = tag.String()
		}
		options = append(options, LanguageOption{Tag: tag.String(), Label: label, Active: tag == activeTag})
	}
	return options
}
