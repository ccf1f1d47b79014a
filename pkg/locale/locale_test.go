package locale

import (
	"testing"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog"
)

var notFound = &i18n.Message{
	ID:    "api.match.notFound",
	Other: "Match {{.ID}} not found",
}

func TestNewTranslator(t *testing.T) {
	tr := NewTranslator("does-not-exist", "en", zerolog.Nop())
	if len(tr.Languages()) != 1 {
		t.Error("Shouldn't have loaded more than a single language")
	}
	tr = NewTranslator("testdata", "en", zerolog.Nop())
	langs := tr.Languages()
	if len(langs) != 2 {
		t.Error("Expected 2 languages to be loaded, the default, and testdata/active.de.toml")
	}
	if langs["de"] != "Deutsch" {
		t.Errorf("expected the language name from the file, got %s", langs["de"])
	}
}

func TestLocalize(t *testing.T) {
	tr := NewTranslator("testdata", "en", zerolog.Nop())
	data := map[string]interface{}{"ID": "m1"}

	if out := tr.Localize(notFound, data); out != "Match m1 not found" {
		t.Error("Substitution was not performed properly: " + out)
	}
	if out := tr.Localize(notFound, data, "fr"); out != "Match m1 not found" {
		t.Error("Unknown languages should fall back to the default: " + out)
	}
	if out := tr.Localize(notFound, data, "de"); out != "Spiel m1 wurde nicht gefunden" {
		t.Error("Substitution should succeed for a loaded language: " + out)
	}
	if out := tr.Localize(notFound, data, "fr-CH, de;q=0.8, en;q=0.5"); out != "Spiel m1 wurde nicht gefunden" {
		t.Error("Accept-Language headers should be matched: " + out)
	}
}
