// Package i18n holds the user-facing texts of the bot in every supported
// language.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edgard/matchbot/internal/domain"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Catalog resolves message keys to localized text.
type Catalog struct {
	messages map[domain.Language]map[string]string
	fallback domain.Language
}

// Load parses the embedded locale files. Keys missing from a language fall back
// to the fallback language, then to the key itself.
func Load(fallback domain.Language) (*Catalog, error) {
	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	c := &Catalog{
		messages: make(map[domain.Language]map[string]string),
		fallback: fallback,
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		lang, ok := domain.ParseLanguage(strings.TrimSuffix(name, ".yaml"))
		if !ok {
			return nil, fmt.Errorf("unsupported locale file %s", name)
		}

		content, err := localesFS.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale file %s: %w", name, err)
		}
		var data map[string]string
		if err := yaml.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("failed to parse locale file %s: %w", name, err)
		}
		c.messages[lang] = data
	}

	if _, ok := c.messages[fallback]; !ok {
		return nil, fmt.Errorf("no locale file for fallback language %q", fallback)
	}
	return c, nil
}

// T returns the text for key in lang, formatted with args when given.
func (c *Catalog) T(lang domain.Language, key string, args ...any) string {
	text, ok := c.lookup(lang, key)
	if !ok {
		text, ok = c.lookup(c.fallback, key)
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

func (c *Catalog) lookup(lang domain.Language, key string) (string, bool) {
	data, ok := c.messages[lang]
	if !ok {
		return "", false
	}
	text, ok := data[key]
	return text, ok
}

// Matches reports whether text is the label for key in any language. Users can
// switch language while an old keyboard is still on screen.
func (c *Catalog) Matches(key, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, data := range c.messages {
		if label, ok := data[key]; ok && strings.EqualFold(label, text) {
			return true
		}
	}
	return false
}

// Fallback returns the language used when a user has none yet.
func (c *Catalog) Fallback() domain.Language {
	return c.fallback
}
