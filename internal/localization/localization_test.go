package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testResolver() *Resolver {
	return NewResolver("en_US", map[string]map[string]string{
		"en":    {"disconnect_no_target": `{"text":"No server available"}`},
		"en_US": {"disconnect_timeout": `{"text":"Timed out"}`},
		"de":    {"disconnect_no_target": `{"text":"Kein Server verfügbar"}`},
		"ru_RU": {"disconnect_no_target": `{"text":"Нет доступного сервера"}`},
	})
}

func TestResolveExactTag(t *testing.T) {
	r := testResolver()
	assert.Equal(t, `{"text":"Нет доступного сервера"}`, r.Resolve("ru_RU", "disconnect_no_target", nil))
}

func TestResolveFallsBackToLanguage(t *testing.T) {
	r := testResolver()
	// no en_GB catalog, the "en" language entry serves it
	assert.Equal(t, `{"text":"No server available"}`, r.Resolve("en_GB", "disconnect_no_target", nil))
	assert.Equal(t, `{"text":"Kein Server verfügbar"}`, r.Resolve("de_AT", "disconnect_no_target", nil))
}

func TestResolveFallsBackToDefaultLocale(t *testing.T) {
	r := testResolver()
	// fr has no catalog at all, en_US (the default) has the timeout key
	assert.Equal(t, `{"text":"Timed out"}`, r.Resolve("fr_FR", "disconnect_timeout", nil))
}

func TestResolveFallsBackToDefaultLanguage(t *testing.T) {
	r := testResolver()
	// key missing in en_US but present in "en", the default's language prefix
	assert.Equal(t, `{"text":"No server available"}`, r.Resolve("fr_FR", "disconnect_no_target", nil))
}

func TestResolveUnknownKeyIsEmpty(t *testing.T) {
	r := testResolver()
	assert.Empty(t, r.Resolve("en_US", "no_such_key", nil))
}

func TestResolveSubstitutesParams(t *testing.T) {
	r := NewResolver("en", map[string]map[string]string{
		"en": {"greeting": `{"text":"Hello {player} on {server}"}`},
	})

	got := r.Resolve("en", "greeting", map[string]string{
		"player": "Notch",
		"server": "play.example.com",
	})
	assert.Equal(t, `{"text":"Hello Notch on play.example.com"}`, got)
}

func TestResolveDefault(t *testing.T) {
	r := testResolver()
	assert.Equal(t, `{"text":"Timed out"}`, r.ResolveDefault("disconnect_timeout", nil))
}
