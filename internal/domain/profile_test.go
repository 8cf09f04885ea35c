package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceAccepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pref   Preference
		gender Gender
		want   bool
	}{
		{PreferFemale, GenderFemale, true},
		{PreferFemale, GenderMale, false},
		{PreferFemale, GenderOther, false},
		{PreferMale, GenderMale, true},
		{PreferMale, GenderFemale, false},
		{PreferAny, GenderOther, true},
		{PreferAny, GenderMale, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.pref.Accepts(tt.gender), "%s accepts %s", tt.pref, tt.gender)
	}
	assert.Nil(t, PreferAny.Genders())
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Profile {
		return &Profile{
			UserID:     42,
			Age:        25,
			Gender:     GenderMale,
			Preference: PreferFemale,
			PhotoRef:   "photo-1",
			Language:   LangEnglish,
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(p *Profile){
		"minor":         func(p *Profile) { p.Age = 17 },
		"no photo":      func(p *Profile) { p.PhotoRef = "" },
		"no gender":     func(p *Profile) { p.Gender = "" },
		"bad pref":      func(p *Profile) { p.Preference = "robots" },
		"no language":   func(p *Profile) { p.Language = "" },
		"missing owner": func(p *Profile) { p.UserID = 0 },
	}
	for name, mutate := range cases {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := valid()
			mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestContactURL(t *testing.T) {
	t.Parallel()

	p := &Profile{UserID: 7, Handle: "kofi"}
	assert.Equal(t, "https://t.me/kofi", p.ContactURL())

	p.Handle = ""
	assert.Equal(t, "tg://user?id=7", p.ContactURL())
}

func TestParsers(t *testing.T) {
	t.Parallel()

	g, ok := ParseGender(" Female ")
	assert.True(t, ok)
	assert.Equal(t, GenderFemale, g)

	_, ok = ParsePreference("women")
	assert.False(t, ok)

	l, ok := ParseLanguage("EN")
	assert.True(t, ok)
	assert.Equal(t, LangEnglish, l)

	_, ok = ParseDecision("maybe")
	assert.False(t, ok)

	assert.Equal(t, "Accra, Ghana", Place{City: "Accra", Country: "Ghana"}.Label())
	assert.Equal(t, "Ghana", Place{Country: "Ghana"}.Label())
}
