package localization_test

import (
	"testing"
	"testing/fstest"

	"roomchat/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogs(t *testing.T) {
	l, err := localization.NewDefault()
	require.NoError(t, err)

	assert.Equal(t, "alice joined the room", l.Format("en", "user_joined", "alice"))
	assert.Equal(t, "alice se unió a la sala", l.Format("es", "user_joined", "alice"))
	assert.Equal(t, "Room not found", l.GetString("fr", "error.not_found"), "unknown languages fall back to English")
	assert.Equal(t, "missing.key", l.GetString("es", "missing.key"))
}

func TestNewLocalizer_SkipsNonJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"de.json":   {Data: []byte(`{"hello":"Hallo"}`)},
		"README.md": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys)
	require.NoError(t, err)
	assert.Equal(t, "Hallo", l.GetString("de", "hello"))
}

func TestNewLocalizer_BadJSON(t *testing.T) {
	_, err := localization.NewLocalizer(fstest.MapFS{"en.json": {Data: []byte("{")}})
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	l, err := localization.NewDefault()
	require.NoError(t, err)

	assert.Equal(t, "es", l.Match("es-AR,es;q=0.9,en;q=0.8", "en"))
	assert.Equal(t, "en", l.Match("fr-FR, en-GB;q=0.5", "es"))
	assert.Equal(t, "es", l.Match("", "es"))
	assert.Equal(t, "en", l.Match("ja", "en"))
}
