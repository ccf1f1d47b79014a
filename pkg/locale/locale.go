package locale

import (
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

const (
	DefaultLang       = "en"
	DefaultLocalePath = "locales/"
)

var localeFile = regexp.MustCompile(`^active\.(?P<lang>.*)\.toml$`)

// Translator renders the user-visible API messages. Languages are loaded from active.<lang>.toml files;
// messages missing from a file fall back to their compiled-in English text.
type Translator struct {
	bundle      *i18n.Bundle
	defaultLang string
	languages   map[string]string
	logger      zerolog.Logger
}

func NewTranslator(localePath, defaultLang string, logger zerolog.Logger) *Translator {
	if localePath == "" {
		localePath = DefaultLocalePath
	}
	if defaultLang == "" {
		defaultLang = DefaultLang
	}
	bundle := i18n.NewBundle(language.Make(defaultLang))
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	t := &Translator{
		bundle:      bundle,
		defaultLang: defaultLang,
		languages:   map[string]string{defaultLang: language.Make(defaultLang).String()},
		logger:      logger,
	}

	files, err := os.ReadDir(localePath)
	if err != nil {
		logger.Warn().Err(err).Str("path", localePath).Msg("no locale files loaded")
		return t
	}
	for _, file := range files {
		match := localeFile.FindStringSubmatch(file.Name())
		if match == nil {
			continue
		}
		fileLang := match[localeFile.SubexpIndex("lang")]
		if _, err := bundle.LoadMessageFile(path.Join(localePath, file.Name())); err != nil {
			logger.Error().Err(err).Str("file", file.Name()).Msg("failed to load locale")
			continue
		}
		langName, _ := i18n.NewLocalizer(bundle, fileLang).Localize(&i18n.LocalizeConfig{
			DefaultMessage: &i18n.Message{
				ID:    "locale.language.name",
				Other: "English",
			},
		})
		t.languages[fileLang] = langName
		logger.Debug().Str("lang", fileLang).Str("name", langName).Msg("loaded language")
	}
	return t
}

func (t *Translator) Languages() map[string]string {
	return t.languages
}

// Localize renders message for the first matching language in langs. Each entry may be a plain tag
// ("de") or a full Accept-Language header value.
func (t *Translator) Localize(message *i18n.Message, templateData map[string]interface{}, langs ...string) string {
	langs = append(langs, t.defaultLang)
	msg, err := i18n.NewLocalizer(t.bundle, langs...).Localize(&i18n.LocalizeConfig{
		DefaultMessage: message,
		TemplateData:   templateData,
	})
	if err != nil {
		t.logger.Debug().Err(err).Str("message", message.ID).Msg("falling back to default message")
	}
	return strings.ReplaceAll(msg, "\\n", "\n")
}
