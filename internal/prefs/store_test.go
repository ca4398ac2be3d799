package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "prefs.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestParseTheme(t *testing.T) {
	theme, err := ParseTheme("light")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	_, err = ParseTheme("sepia")
	assert.ErrorIs(t, err, ErrInvalidTheme)
}

func TestToggle(t *testing.T) {
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
}

func TestThemeDefaultsToDark(t *testing.T) {
	store, _ := openTestStore(t)
	theme, err := store.Theme(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)
}

func TestSetThemePersists(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)

	require.NoError(t, store.SetTheme(ctx, ThemeLight))
	assert.ErrorIs(t, store.SetTheme(ctx, Theme("neon")), ErrInvalidTheme)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	theme, err := reopened.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestToggleTheme(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	next, err := store.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, next)

	next, err = store.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, next)
}

func TestUnknownStoredThemeFallsBack(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	require.NoError(t, store.Set(ctx, KeyTheme, "purple"))
	theme, err := store.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, theme)
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Set(ctx, "k", "v2"))
	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", value)
}
