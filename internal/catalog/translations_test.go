package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsHash(t *testing.T) {
	h, err := ParamsHash([]Param{{Name: "%1", Value: "1"}, {Name: "%2", Value: "3"}})
	require.NoError(t, err)
	assert.Equal(t, 1<<16+1+2<<16+3, h)

	h, err = ParamsHash(nil)
	require.NoError(t, err)
	assert.Zero(t, h)

	_, err = ParamsHash([]Param{{Name: "%1", Value: "many"}})
	assert.Error(t, err)
	_, err = ParamsHash([]Param{{Name: "x", Value: "1"}})
	assert.Error(t, err)
}

func TestAddInherits(t *testing.T) {
	store := NewTranslations()
	require.NoError(t, store.Add(`"Open"`, "", "", "", "EN", `"Open"`, nil))
	require.NoError(t, store.Add(`"Open"`, "", "", "", "DE", `"Öffnen"`, nil))

	require.NoError(t, store.Add(`"Open"`, `"FXFile.cxx"`, "", "", "DE", `"Öffnen"`, nil))
	require.NoError(t, store.Add(`"Open"`, `"FXFile.cxx"`, "", "", "EN", `"Open file"`, nil))

	raw, _ := store.Fetch(`"Open"`, `"FXFile.cxx"`, "", "", "DE")
	assert.Equal(t, Inherit, raw)
	raw, _ = store.Fetch(`"Open"`, `"FXFile.cxx"`, "", "", "EN")
	assert.Equal(t, `"Open file"`, raw)

	// The master itself never inherits.
	require.NoError(t, store.Add(`"Open"`, "", "", "", "EN", `"Open"`, nil))
	raw, _ = store.Fetch(`"Open"`, "", "", "", "EN")
	assert.Equal(t, `"Open"`, raw)

	_, ok := store.Resolve(Key{Text: `"Missing"`}, "EN")
	assert.False(t, ok)
	_, ok = store.Resolve(Key{Text: `"Open"`}, "FR")
	assert.False(t, ok)
}

func TestKeysOrder(t *testing.T) {
	store := NewTranslations()
	require.NoError(t, store.Add(`"b"`, "", "", "", "EN", `"b"`, nil))
	require.NoError(t, store.Add(`"a"`, `"Z.cxx"`, "", "", "EN", `"a"`, nil))
	require.NoError(t, store.Add(`"a"`, "", "", `"hint"`, "EN", `"a"`, nil))
	require.NoError(t, store.Add(`"a"`, "", "", "", "EN", `"a"`, []Param{{Name: "%1", Value: "2"}}))
	require.NoError(t, store.Add(`"a"`, "", "", "", "EN", `"a"`, nil))

	keys := store.Keys()
	require.Len(t, keys, 5)
	assert.True(t, keys[0].IsMaster())
	assert.Equal(t, 1<<16+2, keys[1].ParamsHash)
	assert.Equal(t, `"hint"`, keys[2].Hint)
	assert.Equal(t, `"Z.cxx"`, keys[3].SrcFile)
	assert.Equal(t, `"b"`, keys[4].Text)
}
