package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

func TestCatalogIsExhaustive(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	for _, et := range model.EventTypes {
		for _, r := range RolesFor(et) {
			for _, l := range Locales {
				tpl, ok := c.TemplateFor(et, r, string(l))
				require.Truef(t, ok, "missing %s/%s/%s", et, r, l)
				assert.NotEmpty(t, tpl.Title)
				assert.NotEmpty(t, tpl.Body)
			}
		}
	}
}

func TestValidateReportsHoles(t *testing.T) {
	c := &Catalog{entries: map[key]Template{
		{model.EventCreated, model.RoleAny, LocaleEnglish}: {Title: "t", Body: "b"},
	}}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREATED//mr")
	assert.Contains(t, err.Error(), "PAYMENT_REQUESTED/PAYER/en")
}

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]Locale{
		"":          LocaleEnglish,
		"   ":       LocaleEnglish,
		"null":      LocaleEnglish,
		"undefined": LocaleEnglish,
		"en-US":     LocaleEnglish,
		"de-DE":     LocaleEnglish,
		"mr":        LocaleMarathi,
		"mr-IN":     LocaleMarathi,
		"mr_IN":     LocaleMarathi,
		"MR_in":     LocaleMarathi,
	}
	for in, want := range cases {
		assert.Equalf(t, want, NormalizeLocale(in), "tag %q", in)
	}
}

func TestTemplateForLocaleFallback(t *testing.T) {
	c := MustNew()

	de, ok := c.TemplateFor(model.EventCreated, model.RoleAny, "de-DE")
	require.True(t, ok)
	en, _ := c.TemplateFor(model.EventCreated, model.RoleAny, "en")
	assert.Equal(t, en, de)

	dash, ok := c.TemplateFor(model.EventCreated, model.RoleAny, "mr-IN")
	require.True(t, ok)
	under, ok := c.TemplateFor(model.EventCreated, model.RoleAny, "mr_IN")
	require.True(t, ok)
	assert.Equal(t, dash, under)
	assert.NotEqual(t, en.Title, dash.Title)
}

func TestTemplateForRoleKeyed(t *testing.T) {
	c := MustNew()

	payer, ok := c.TemplateFor(model.EventPaymentRequested, model.RolePayer, "en")
	require.True(t, ok)
	payee, ok := c.TemplateFor(model.EventPaymentRequested, model.RolePayee, "en")
	require.True(t, ok)
	assert.NotEqual(t, payer.Body, payee.Body)

	// role is ignored where wording does not depend on it
	a, ok := c.TemplateFor(model.EventCancelled, model.RolePayer, "en")
	require.True(t, ok)
	b, _ := c.TemplateFor(model.EventCancelled, model.RoleAny, "en")
	assert.Equal(t, b, a)

	_, ok = c.TemplateFor(model.EventPaymentRequested, model.RoleAny, "en")
	assert.False(t, ok)
}
