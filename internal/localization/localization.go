// Package localization resolves locale-tagged disconnect messages with
// language-tag fallback.
package localization

import (
	"strings"
)

// Message keys used by the connection state machine.
const (
	KeyDisconnectTimeout    = "disconnect_timeout"
	KeyDisconnectNoTarget   = "disconnect_no_target"
	KeyDisconnectFailedAuth = "disconnect_failed_auth"
	KeyDisconnectFailedPack = "disconnect_failed_resourcepack"
	KeyResourcePackPrompt   = "resourcepack_impackable_prompt"
)

// Resolver looks up templated JSON chat-component fragments by locale and key.
// Built once at startup and shared read-only.
type Resolver struct {
	defaultLocale string
	messages      map[string]map[string]string
}

func NewResolver(defaultLocale string, messages map[string]map[string]string) *Resolver {
	return &Resolver{defaultLocale: defaultLocale, messages: messages}
}

// Resolve looks up key for a locale tag like "en_US". Lookup order: exact tag,
// language-only prefix, default locale, its prefix, then empty string.
// Params like {player} are substituted into the template.
func (r *Resolver) Resolve(locale, key string, params map[string]string) string {
	candidates := []string{locale, langOnly(locale), r.defaultLocale, langOnly(r.defaultLocale)}

	var template string
	for _, tag := range candidates {
		if tag == "" {
			continue
		}
		if msgs, ok := r.messages[tag]; ok {
			if t, ok := msgs[key]; ok {
				template = t
				break
			}
		}
	}
	if template == "" {
		return ""
	}

	for name, value := range params {
		template = strings.ReplaceAll(template, "{"+name+"}", value)
	}
	return template
}

// ResolveDefault resolves with the configured default locale.
func (r *Resolver) ResolveDefault(key string, params map[string]string) string {
	return r.Resolve(r.defaultLocale, key, params)
}

func langOnly(tag string) string {
	if i := strings.IndexByte(tag, '_'); i > 0 {
		return tag[:i]
	}
	return ""
}
