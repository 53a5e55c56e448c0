package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/appweather/internal/weather"
)

type preferenceStore interface {
	weather.PreferenceStore
	Close() error
}

func exercise(t *testing.T, s preferenceStore) {
	t.Helper()

	_, err := s.Get(weather.PrefCity)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, weather.ErrPreferenceNotFound)

	require.NoError(t, s.Set(weather.PrefCity, "Gdansk"))
	require.NoError(t, s.Set(weather.PrefTheme, weather.ThemeDark))
	require.NoError(t, s.Set(weather.PrefCity, "Krakow,PL"))

	city, err := s.Get(weather.PrefCity)
	require.NoError(t, err)
	assert.Equal(t, "Krakow,PL", city)

	theme, err := s.Get(weather.PrefTheme)
	require.NoError(t, err)
	assert.Equal(t, weather.ThemeDark, theme)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exercise(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	exercise(t, s)
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	city, err := reopened.Get(weather.PrefCity)
	require.NoError(t, err)
	assert.Equal(t, "Krakow,PL", city)
}
