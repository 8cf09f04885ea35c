package i18n

import (
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/matchbot/internal/domain"
)

func TestLoad(t *testing.T) {
	c, err := Load(domain.LangFrench)
	require.NoError(t, err)
	assert.Equal(t, domain.LangFrench, c.Fallback())

	_, err = Load(domain.Language("de"))
	assert.Error(t, err)
}

func TestLocalesDefineSameKeys(t *testing.T) {
	c, err := Load(domain.LangFrench)
	require.NoError(t, err)

	keys := func(lang domain.Language) []string {
		var out []string
		for k := range c.messages[lang] {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	assert.Equal(t, keys(domain.LangFrench), keys(domain.LangEnglish))
}

var verbRe = regexp.MustCompile(`%[a-z]`)

func TestLocalesUseSameVerbs(t *testing.T) {
	c, err := Load(domain.LangFrench)
	require.NoError(t, err)

	for key, fr := range c.messages[domain.LangFrench] {
		en := c.messages[domain.LangEnglish][key]
		assert.Equal(t, verbRe.FindAllString(fr, -1), verbRe.FindAllString(en, -1), key)
	}
}

func TestT(t *testing.T) {
	c, err := Load(domain.LangFrench)
	require.NoError(t, err)

	assert.Equal(t, "Find a match 💘", c.T(domain.LangEnglish, "menu.find"))
	assert.Equal(t, "Chercher une correspondance 💘", c.T(domain.LangFrench, "menu.find"))
	assert.Equal(t, "Please choose a number between 1 and 3.", c.T(domain.LangEnglish, "reg.city_range", 3))

	// Unknown languages use the fallback, unknown keys echo the key.
	assert.Equal(t, "Chercher une correspondance 💘", c.T(domain.Language("de"), "menu.find"))
	assert.Equal(t, "no.such.key", c.T(domain.LangEnglish, "no.such.key"))
}

func TestMatches(t *testing.T) {
	c, err := Load(domain.LangFrench)
	require.NoError(t, err)

	assert.True(t, c.Matches("menu.find", "Find a match 💘"))
	assert.True(t, c.Matches("menu.find", " Chercher une correspondance 💘 "))
	assert.True(t, c.Matches("location.enter_city_button", "🏙️ indiquer ma ville"))
	assert.False(t, c.Matches("menu.find", "My profile 👤"))
	assert.False(t, c.Matches("menu.find", ""))
}
