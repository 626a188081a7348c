package i18n

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	translator, err := New("en")
	require.NoError(t, err)
	return translator
}

func TestTranslateUsesLocaleAndArguments(t *testing.T) {
	translator := newTranslator(t)

	assert.Equal(t, "Mission has been saved.", translator.Translate("en", "input.data.saved.success", "Mission"))
	assert.Equal(t, "Mission wurde gespeichert.", translator.Translate("de-DE", "input.data.saved.success", "Mission"))
	assert.Equal(t, "Willkommen, Quin!", translator.Translate("de", "dashboard.welcome", "Quin"))
}

func TestTranslateFallsBack(t *testing.T) {
	translator := newTranslator(t)

	assert.Equal(t, "Dashboard", translator.Translate("fr", "nav.dashboard"))
	assert.Equal(t, "no.such.key", translator.Translate("de", "no.such.key"))
	assert.True(t, translator.Has("de", "nav.dashboard"))
	assert.False(t, translator.Has("de", "no.such.key"))
}

func TestCatalogsDefineTheSameKeys(t *testing.T) {
	var english, german catalogFile
	for path, target := range map[string]*catalogFile{"locales/en.yaml": &english, "locales/de.yaml": &german} {
		data, err := fs.ReadFile(embeddedLocales, path)
		require.NoError(t, err)
		require.NoError(t, yaml.Unmarshal(data, target))
	}

	verbs := regexp.MustCompile(`%\[\d+\][a-z]`)
	for key, value := range english.Messages {
		translated, ok := german.Messages[key]
		if assert.True(t, ok, "german catalog misses %s", key) {
			assert.ElementsMatch(t, verbs.FindAllString(value, -1), verbs.FindAllString(translated, -1), "verbs of %s differ", key)
		}
	}
	assert.Len(t, german.Messages, len(english.Messages))
}

func TestResolveTagOrder(t *testing.T) {
	translator := newTranslator(t)

	request := httptest.NewRequest(http.MethodGet, "/?lang=de", http.NoBody)
	tag, persist := translator.ResolveTag(request, "en")
	assert.Equal(t, language.German, tag)
	assert.True(t, persist)

	request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	request.AddCookie(&http.Cookie{Name: LangCookieName, Value: "en"})
	request.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	tag, persist = translator.ResolveTag(request, "de")
	assert.Equal(t, language.English, tag)
	assert.False(t, persist)

	request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	request.Header.Set("Accept-Language", "en-US")
	tag, _ = translator.ResolveTag(request, "de")
	assert.Equal(t, language.German, tag)

	request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	request.Header.Set("Accept-Language", "de-CH,fr;q=0.5")
	tag, _ = translator.ResolveTag(request, "")
	assert.Equal(t, language.German, tag)

	request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	tag, _ = translator.ResolveTag(request, "")
	assert.Equal(t, language.English, tag)
}

func TestLanguageOptionsMarkActive(t *testing.T) {
	translator := newTranslator(t)
	options := translator.LanguageOptions(language.German)
	require.Len(t, options, 2)
	for _, option := range options {
		assert.Equal(t, option.Tag == "de", option.Active)
		assert.NotEmpty(t, option.Label)
	}
}

func TestLoadRejectsCatalogWithoutEnglish(t *testing.T) {
	catalogFS := fstest.MapFS{
		"locales/de.yaml": &fstest.MapFile{Data: []byte("locale: de\nmessages:\n  nav.dashboard: Übersicht\n")},
	}
	_, err := Load(catalogFS, "de")
	assert.Error(t, err)
}

func TestSetLanguageCookie(t *testing.T) {
	recorder := httptest.NewRecorder()
	SetLanguageCookie(recorder, language.German)
	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, LangCookieName, cookies[0].Name)
	assert.Equal(t, "de", cookies[0].Value)
}
